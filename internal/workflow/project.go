package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/pterm/pterm"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/invoke"
	"github.com/deixis/falconctl/internal/logging"
	"github.com/deixis/falconctl/internal/metrics"
	"github.com/deixis/falconctl/internal/runner"
)

// PasswordSource supplies a stored default password.
// Implemented by secret.Store.
type PasswordSource interface {
	Password() (config.Secret, bool, error)
}

// PasswordSourceFunc adapts a function to PasswordSource, for example to
// open the keychain only when the project asks for it.
type PasswordSourceFunc func() (config.Secret, bool, error)

func (f PasswordSourceFunc) Password() (config.Secret, bool, error) { return f() }

// Project is the extraction project a run operates on: its root, its
// .falcon file and the platform it runs on.
type Project struct {
	Root     string
	Config   *config.Config
	Platform config.Platform

	// password is the keychain default, when enabled and present.
	password config.Secret
}

// LoadProject finds the project containing workspace and loads its file.
// When the file enables the keychain and keychain is non-nil, the stored
// password becomes the default password. A keychain that cannot be read
// is logged and otherwise ignored.
func LoadProject(workspace string, platform config.Platform, keychain PasswordSource, log *pterm.Logger) (*Project, error) {
	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(loaded.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	p := &Project{Root: root, Config: loaded.Config, Platform: platform}

	if loaded.Config.Keyring && keychain != nil {
		log = logging.OrDiscard(log)
		pw, found, err := keychain.Password()
		switch {
		case err != nil:
			log.Warn("keychain unavailable, using built-in password default", log.Args("error", err.Error()))
		case found:
			p.password = pw
			log.Debug("default password loaded from keychain")
		}
	}
	return p, nil
}

// Defaults returns the lowest precedence tier for this project.
func (p *Project) Defaults() config.Defaults {
	d := config.BuiltinDefaults(p.Platform).WithFile(p.Config).WithProjectRoot(p.Root)
	if !p.password.IsZero() {
		d = d.WithPassword(p.password)
	}
	return d
}

// Resolve resolves explicit params against env and the project defaults.
func (p *Project) Resolve(params config.Params, env config.LookupEnv) (config.RunConfiguration, error) {
	return config.Resolve(params, env, p.Defaults())
}

// Locator returns the artifact locator for cfg. Builds run under the
// project's build timeout.
func (p *Project) Locator(cfg config.RunConfiguration, log *pterm.Logger) (*artifact.Locator, error) {
	kind, err := artifact.ParseKind(p.Config.Artifact.Kind)
	if err != nil {
		return nil, err
	}
	return &artifact.Locator{
		ProjectRoot:  cfg.ProjectRoot,
		Platform:     cfg.Platform,
		Kind:         kind,
		Path:         p.Config.Artifact.Path,
		BuildCommand: p.Config.BuildCommand(),
		Runner: &runner.Runner{
			Workspace: cfg.ProjectRoot,
			Timeout:   p.Config.BuildTimeout(),
			MaxOutput: p.Config.MaxOutputBytes(),
		},
		Log: log,
	}, nil
}

// NewEngine wires an Engine for cfg. Each table invocation runs under the
// project's per-table timeout.
func (p *Project) NewEngine(cfg config.RunConfiguration, log *pterm.Logger, m metrics.Backend) (*Engine, error) {
	loc, err := p.Locator(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.Root, err)
	}
	return &Engine{
		Locator: loc,
		Invoker: &invoke.Invoker{
			Runner: &runner.Runner{
				Workspace: cfg.ProjectRoot,
				Timeout:   p.Config.Timeout(),
				MaxOutput: p.Config.MaxOutputBytes(),
			},
			Log: log,
		},
		Metrics: m,
		Log:     log,
	}, nil
}
