package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"

	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/invoke"
	"github.com/deixis/falconctl/internal/runner"
	"github.com/deixis/falconctl/internal/secret"
)

func writeProject(t *testing.T, falconFile string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("[package]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if falconFile != "" {
		if err := os.WriteFile(filepath.Join(root, config.FileName), []byte(falconFile), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func keychainWith(t *testing.T, pw string) *secret.Store {
	t.Helper()
	s := secret.NewStore(keyring.NewArrayKeyring(nil))
	if pw != "" {
		if err := s.SetPassword(config.Secret(pw)); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestLoadProject_KeychainPasswordIsDefault(t *testing.T) {
	root := writeProject(t, "keyring: true\n")
	p, err := LoadProject(root, config.POSIX, keychainWith(t, "from-keychain"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Defaults().Password.Reveal(); got != "from-keychain" {
		t.Errorf("default password = %q", got)
	}

	// The environment still wins over the keychain.
	cfg := config.Merge(config.Params{}, func(k string) (string, bool) {
		return "from-env", k == config.EnvPassword
	}, p.Defaults())
	if cfg.Password.Reveal() != "from-env" {
		t.Errorf("password = %q, want env value", cfg.Password.Reveal())
	}
}

func TestLoadProject_KeychainIgnoredUnlessEnabled(t *testing.T) {
	root := writeProject(t, "")
	called := false
	src := PasswordSourceFunc(func() (config.Secret, bool, error) {
		called = true
		return "x", true, nil
	})
	p, err := LoadProject(root, config.POSIX, src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("keychain consulted for a project without keyring: true")
	}
	if got := p.Defaults().Password; got != config.BuiltinDefaults(config.POSIX).Password {
		t.Errorf("default password changed without keychain")
	}
}

func TestLoadProject_KeychainErrorFallsBack(t *testing.T) {
	root := writeProject(t, "keyring: true\n")
	src := PasswordSourceFunc(func() (config.Secret, bool, error) {
		return "", false, errors.New("no secret service")
	})
	p, err := LoadProject(root, config.POSIX, src, nil)
	if err != nil {
		t.Fatalf("keychain error must not fail the project: %v", err)
	}
	if got := p.Defaults().Password; got != config.BuiltinDefaults(config.POSIX).Password {
		t.Errorf("default password = %v, want built-in", got)
	}
}

func TestLoadProject_EmptyKeychain(t *testing.T) {
	root := writeProject(t, "keyring: true\n")
	p, err := LoadProject(root, config.POSIX, keychainWith(t, ""), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Defaults().Password; got != config.BuiltinDefaults(config.POSIX).Password {
		t.Errorf("default password = %v, want built-in", got)
	}
}

func TestProject_DefaultsUseFileAndRoot(t *testing.T) {
	root := writeProject(t, "defaults:\n  tables: [ORDERS]\n  pool_size: 3\n")
	sub := filepath.Join(root, "scripts")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProject(sub, config.POSIX, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := p.Defaults()
	if d.ProjectRoot != p.Root {
		t.Errorf("ProjectRoot = %q, want %q", d.ProjectRoot, p.Root)
	}
	if len(d.Tables) != 1 || d.Tables[0] != "ORDERS" || d.PoolSize != 3 {
		t.Errorf("defaults = %+v", d)
	}
}

func TestProject_NewEngineWiring(t *testing.T) {
	root := writeProject(t, "timeout: 90m\nbuild_timeout: 5m\nmax_output: 4096\n")
	p, err := LoadProject(root, config.POSIX, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := p.Resolve(config.Params{Tables: []string{"A"}}, config.NoEnv)
	if err != nil {
		t.Fatal(err)
	}

	e, err := p.NewEngine(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	inv, ok := e.Invoker.(*invoke.Invoker)
	if !ok {
		t.Fatalf("Invoker = %T", e.Invoker)
	}
	r := inv.Runner.(*runner.Runner)
	if r.Timeout != 90*time.Minute || r.MaxOutput != 4096 || r.Workspace != p.Root {
		t.Errorf("invoke runner = %+v", r)
	}

	loc, err := p.Locator(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if br := loc.Runner.(*runner.Runner); br.Timeout != 5*time.Minute {
		t.Errorf("build timeout = %v", br.Timeout)
	}
}

func TestProject_UnknownArtifactKind(t *testing.T) {
	root := writeProject(t, "artifact:\n  kind: jar\n")
	p, err := LoadProject(root, config.POSIX, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Merge(config.Params{}, config.NoEnv, p.Defaults())
	if _, err := p.NewEngine(cfg, nil, nil); err == nil {
		t.Error("NewEngine accepted an unknown artifact kind")
	}
}
