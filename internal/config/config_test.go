package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FromProjectRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("version: 1\ntimeout: 2h\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.ProjectRoot != dir {
		t.Errorf("ProjectRoot = %q, want %q", res.ProjectRoot, dir)
	}
	if res.Config.Version != 1 {
		t.Errorf("Config.Version = %d, want 1", res.Config.Version)
	}
	if got := res.Config.Timeout(); got != 2*time.Hour {
		t.Errorf("Timeout() = %v, want 2h", got)
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("[package]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("version: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "src", "bin")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Load(sub)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.ProjectRoot != root {
		t.Errorf("ProjectRoot = %q, want %q", res.ProjectRoot, root)
	}
	if res.Config.Version != 2 {
		t.Errorf("Config.Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_NoCargoToml(t *testing.T) {
	dir := t.TempDir()

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.ProjectRoot != dir {
		t.Errorf("ProjectRoot = %q, want %q (fallback to workspace)", res.ProjectRoot, dir)
	}
	if res.Config.RawTimeout != "" {
		t.Errorf("expected default config, got RawTimeout = %q", res.Config.RawTimeout)
	}
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("defaults: [oops\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed .falcon")
	}
}

func TestLoad_FullFile(t *testing.T) {
	dir := t.TempDir()
	body := `version: 1
build_timeout: 10m
max_output: 4096
defaults:
  database: /srv/firebird/erp.fdb
  out_dir: /srv/out
  tables: [PEDIDOS, ITENSPEDIDO]
  parallelism: 8
  pool_size: 16
  use_compression: true
  auto_build: false
artifact:
  kind: shell_script
  path: scripts/extract.sh
build:
  command: [make, extractor]
keyring: true
metrics:
  backend: datadog
  job: nightly
  tags: [env:prod]
  flush_every: 15s
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := res.Config
	if c.BuildTimeout() != 10*time.Minute {
		t.Errorf("BuildTimeout() = %v, want 10m", c.BuildTimeout())
	}
	if c.MaxOutputBytes() != 4096 {
		t.Errorf("MaxOutputBytes() = %d, want 4096", c.MaxOutputBytes())
	}
	if c.Artifact.Kind != "shell_script" || c.Artifact.Path != "scripts/extract.sh" {
		t.Errorf("Artifact = %+v", c.Artifact)
	}
	if got := c.BuildCommand(); len(got) != 2 || got[0] != "make" {
		t.Errorf("BuildCommand() = %v, want [make extractor]", got)
	}
	if !c.Keyring {
		t.Error("Keyring = false, want true")
	}
	if c.Metrics.FlushEvery() != 15*time.Second {
		t.Errorf("FlushEvery() = %v, want 15s", c.Metrics.FlushEvery())
	}

	d := BuiltinDefaults(POSIX).WithFile(c)
	if d.Database != "/srv/firebird/erp.fdb" || d.OutDir != "/srv/out" {
		t.Errorf("paths = %q, %q", d.Database, d.OutDir)
	}
	if len(d.Tables) != 2 || d.Tables[1] != "ITENSPEDIDO" {
		t.Errorf("Tables = %v", d.Tables)
	}
	if d.Parallelism != 8 || d.PoolSize != 16 {
		t.Errorf("Parallelism, PoolSize = %d, %d", d.Parallelism, d.PoolSize)
	}
	if !d.UseCompression || d.AutoBuild {
		t.Errorf("UseCompression, AutoBuild = %v, %v", d.UseCompression, d.AutoBuild)
	}
}

func TestConfig_Fallbacks(t *testing.T) {
	c := &Config{RawTimeout: "bogus", RawBuildTimeout: "-5m"}
	if c.Timeout() != 0 {
		t.Errorf("Timeout() = %v, want 0", c.Timeout())
	}
	if c.BuildTimeout() != DefaultBuildTimeout {
		t.Errorf("BuildTimeout() = %v, want %v", c.BuildTimeout(), DefaultBuildTimeout)
	}
	if c.MaxOutputBytes() != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes() = %d, want %d", c.MaxOutputBytes(), DefaultMaxOutput)
	}
	if got := c.BuildCommand(); len(got) != 3 || got[0] != "cargo" {
		t.Errorf("BuildCommand() = %v, want cargo build --release", got)
	}
}
