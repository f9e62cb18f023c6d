// Package config loads the optional .falcon project file and resolves the
// configuration of an extraction run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the project file looked up in the project root.
const FileName = ".falcon"

// Default values for runner configuration.
const (
	DefaultBuildTimeout = 30 * time.Minute
	DefaultMaxOutput    = 1 << 20 // 1 MB
)

// DefaultBuildCommand builds the extractor in release mode.
var DefaultBuildCommand = []string{"cargo", "build", "--release"}

// Config holds the parsed .falcon configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version         int            `yaml:"version"`
	RawTimeout      string         `yaml:"timeout"`       // per table, e.g. "2h"; empty means no limit
	RawBuildTimeout string         `yaml:"build_timeout"` // e.g. "30m"
	RawMaxOutput    int            `yaml:"max_output"`    // bytes
	Defaults        DefaultsConfig `yaml:"defaults"`
	Artifact        ArtifactConfig `yaml:"artifact"`
	Build           BuildConfig    `yaml:"build"`
	Keyring         bool           `yaml:"keyring"` // consult the OS keychain for the default password
	Metrics         MetricsConfig  `yaml:"metrics"`
}

// DefaultsConfig replaces built-in defaults for a project. Environment
// variables and explicit inputs still take precedence.
type DefaultsConfig struct {
	Database       string   `yaml:"database"`
	OutDir         string   `yaml:"out_dir"`
	Tables         []string `yaml:"tables"`
	Parallelism    int      `yaml:"parallelism"`
	PoolSize       int      `yaml:"pool_size"`
	User           string   `yaml:"user"`
	UseCompression *bool    `yaml:"use_compression"`
	AutoBuild      *bool    `yaml:"auto_build"`
}

// ArtifactConfig selects the kind of extraction collaborator.
type ArtifactConfig struct {
	Kind string `yaml:"kind"` // binary (default), shell_script, powershell_script
	Path string `yaml:"path"` // relative to the project root; overrides the conventional location
}

// BuildConfig controls how a missing binary is built.
type BuildConfig struct {
	Command []string `yaml:"command"` // default: cargo build --release
}

// MetricsConfig selects an optional metrics backend.
type MetricsConfig struct {
	Backend       string   `yaml:"backend"` // "" or "datadog"
	Job           string   `yaml:"job"`
	Tags          []string `yaml:"tags"`
	RawFlushEvery string   `yaml:"flush_every"`
}

// Timeout returns the configured per-table timeout. Zero means no limit.
func (c *Config) Timeout() time.Duration {
	return parsePositiveDuration(c.RawTimeout, 0)
}

// BuildTimeout returns the configured build timeout or the default.
func (c *Config) BuildTimeout() time.Duration {
	return parsePositiveDuration(c.RawBuildTimeout, DefaultBuildTimeout)
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// BuildCommand returns the configured build argv, falling back to cargo.
func (c *Config) BuildCommand() []string {
	if len(c.Build.Command) > 0 {
		return c.Build.Command
	}
	return DefaultBuildCommand
}

// FlushEvery returns the metrics flush interval; zero lets the backend decide.
func (m MetricsConfig) FlushEvery() time.Duration {
	return parsePositiveDuration(m.RawFlushEvery, 0)
}

func parsePositiveDuration(raw string, fallback time.Duration) time.Duration {
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// LoadResult holds the parsed config and the discovered project root.
type LoadResult struct {
	Config      *Config
	ProjectRoot string // directory containing Cargo.toml; falls back to workspace
}

// Load reads the .falcon file from the project root.
// The project root is discovered by walking upward from workspace
// looking for Cargo.toml. If no .falcon file exists, a default Config is returned.
func Load(workspace string) (*LoadResult, error) {
	root, err := findProjectRoot(workspace)
	if err != nil {
		// No Cargo.toml found; use workspace as root.
		root = workspace
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, ProjectRoot: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, ProjectRoot: root}, nil
}

// findProjectRoot walks upward from dir looking for a directory containing Cargo.toml.
func findProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "Cargo.toml")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("Cargo.toml not found")
		}
		dir = parent
	}
}
