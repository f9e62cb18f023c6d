// Package artifact locates the external extraction program and builds it
// when it is missing.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/logging"
	"github.com/deixis/falconctl/internal/runner"
	"github.com/pterm/pterm"
)

// Kind is the closed set of collaborator variants.
type Kind string

const (
	Binary           Kind = "binary"
	ShellScript      Kind = "shell_script"
	PowerShellScript Kind = "powershell_script"
)

// ParseKind maps a configured kind to a Kind; empty means Binary.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.TrimSpace(s)) {
	case "", Binary:
		return Binary, nil
	case ShellScript:
		return ShellScript, nil
	case PowerShellScript:
		return PowerShellScript, nil
	}
	return "", fmt.Errorf("unknown artifact kind %q (want binary, shell_script or powershell_script)", s)
}

// BinaryName is the extractor's executable name without platform suffix.
const BinaryName = "firebird_peregrine_falcon"

// Conventional script names at the project root.
const (
	ShellScriptName      = "run_extraction.sh"
	PowerShellScriptName = "run_extraction.ps1"
)

// buildOutputDir is where cargo build --release places the binary.
var buildOutputDir = filepath.Join("target", "release")

// Descriptor identifies a runnable artifact. It is computed once per run
// and not modified afterwards.
type Descriptor struct {
	Platform config.Platform
	Path     string
	Kind     Kind
	Built    bool // produced by this LocateOrBuild call
}

// ExpectedPath returns where the artifact of kind k lives under projectRoot.
func ExpectedPath(projectRoot string, p config.Platform, k Kind) string {
	switch k {
	case ShellScript:
		return filepath.Join(projectRoot, ShellScriptName)
	case PowerShellScript:
		return filepath.Join(projectRoot, PowerShellScriptName)
	}
	name := BinaryName
	if p == config.Windows {
		name += ".exe"
	}
	return filepath.Join(projectRoot, buildOutputDir, name)
}

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Locator finds the artifact and, for binaries, builds it on demand.
type Locator struct {
	ProjectRoot  string
	Platform     config.Platform
	Kind         Kind
	Path         string   // optional override, relative to ProjectRoot
	BuildCommand []string // defaults to config.DefaultBuildCommand
	Runner       CommandRunner
	Log          *pterm.Logger

	// exists is a test seam; nil uses os.Stat.
	exists func(path string) bool
}

func (l *Locator) path(kind Kind) string {
	if l.Path != "" {
		if filepath.IsAbs(l.Path) {
			return l.Path
		}
		return filepath.Join(l.ProjectRoot, l.Path)
	}
	return ExpectedPath(l.ProjectRoot, l.Platform, kind)
}

func (l *Locator) fileExists(path string) bool {
	if l.exists != nil {
		return l.exists(path)
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// LocateOrBuild returns the artifact descriptor. Existence alone is
// sufficient: a present artifact is never rebuilt. A missing binary is
// built with BuildCommand when autoBuild is set, then checked again.
// Scripts cannot be built.
func (l *Locator) LocateOrBuild(ctx context.Context, autoBuild bool) (Descriptor, error) {
	kind := l.Kind
	if kind == "" {
		kind = Binary
	}
	path := l.path(kind)
	desc := Descriptor{Platform: l.Platform, Path: path, Kind: kind}
	log := logging.OrDiscard(l.Log)

	if l.fileExists(path) {
		log.Debug("artifact present", log.Args("path", path, "kind", string(kind)))
		return desc, nil
	}

	if !autoBuild || kind != Binary {
		return Descriptor{}, &ExecutableNotFoundError{Path: path, Kind: kind, AutoBuild: autoBuild}
	}

	argv := l.BuildCommand
	if len(argv) == 0 {
		argv = config.DefaultBuildCommand
	}
	log.Info("building extractor", log.Args("command", strings.Join(argv, " "), "project_root", l.ProjectRoot))

	res, err := l.Runner.Run(ctx, argv, l.ProjectRoot)
	if err != nil {
		return Descriptor{}, &BuildError{Command: argv, ExitCode: -1, Err: err, Hint: installHint(argv[0])}
	}
	if res.Canceled {
		return Descriptor{}, &BuildError{Command: argv, ExitCode: res.ExitCode, Stderr: string(res.Stderr), Err: res.Cause}
	}
	if res.ExitCode != 0 {
		return Descriptor{}, &BuildError{Command: argv, ExitCode: res.ExitCode, Stderr: string(res.Stderr)}
	}

	if !l.fileExists(path) {
		return Descriptor{}, &BuildVerificationError{Path: path, Command: argv}
	}
	log.Info("build completed", log.Args("path", path, "duration", res.Duration.String()))
	desc.Built = true
	return desc, nil
}

// installHints maps build tool names to install instructions.
var installHints = map[string]string{
	"cargo": "install the Rust toolchain: https://rustup.rs",
	"make":  "install make from your platform's package manager",
}

func installHint(tool string) string {
	return installHints[filepath.Base(strings.TrimSuffix(tool, ".exe"))]
}
