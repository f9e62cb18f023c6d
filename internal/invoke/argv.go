package invoke

import (
	"fmt"
	"strconv"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
)

// BuildArgv returns the argument vector that runs desc against table.
// The result is fully determined by its inputs. Argument order for each
// kind is part of the collaborator contract and must not change.
func BuildArgv(desc artifact.Descriptor, cfg config.RunConfiguration, table string) ([]string, error) {
	switch desc.Kind {
	case artifact.Binary, "":
		return binaryArgv(desc.Path, cfg, table), nil
	case artifact.ShellScript:
		return shellArgv(desc.Path, cfg, table), nil
	case artifact.PowerShellScript:
		return powerShellArgv(desc.Platform, desc.Path, cfg, table), nil
	}
	return nil, fmt.Errorf("unsupported artifact kind %q", desc.Kind)
}

func binaryArgv(path string, cfg config.RunConfiguration, table string) []string {
	argv := []string{
		path,
		"--database", cfg.DatabasePath,
		"--out-dir", cfg.OutputDir,
		"--table", table,
		"--parallelism", strconv.Itoa(cfg.Parallelism),
		"--pool-size", strconv.Itoa(cfg.PoolSize),
		"--user", cfg.User,
		"--password", cfg.Password.Reveal(),
	}
	if cfg.UseCompression {
		argv = append(argv, "--use-compression")
	}
	return argv
}

// shellArgv passes positional parameters: database, out dir, table,
// parallelism, pool size, user, password.
func shellArgv(path string, cfg config.RunConfiguration, table string) []string {
	argv := []string{
		"sh", path,
		cfg.DatabasePath,
		cfg.OutputDir,
		table,
		strconv.Itoa(cfg.Parallelism),
		strconv.Itoa(cfg.PoolSize),
		cfg.User,
		cfg.Password.Reveal(),
	}
	if cfg.UseCompression {
		argv = append(argv, "--use-compression")
	}
	return argv
}

func powerShellArgv(p config.Platform, path string, cfg config.RunConfiguration, table string) []string {
	host := "pwsh"
	if p == config.Windows {
		host = "powershell.exe"
	}
	argv := []string{
		host, "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", path,
		"-Database", cfg.DatabasePath,
		"-OutDir", cfg.OutputDir,
		"-Table", table,
		"-Parallelism", strconv.Itoa(cfg.Parallelism),
		"-PoolSize", strconv.Itoa(cfg.PoolSize),
		"-User", cfg.User,
		"-Password", cfg.Password.Reveal(),
	}
	if cfg.UseCompression {
		argv = append(argv, "-UseCompression")
	}
	return argv
}
