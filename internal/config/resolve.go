package config

import (
	"fmt"
	"strings"
	"unicode"
)

// Environment variables consulted when the matching explicit input is absent.
const (
	EnvDatabase = "FIREBIRD_DATABASE"
	EnvOutDir   = "FIREBIRD_OUT_DIR"
	EnvPassword = "FIREBIRD_PASSWORD"
)

// Built-in defaults shared by every platform.
const (
	DefaultTable       = "AGILE_LOG_OBRIGACAO"
	DefaultParallelism = 40
	DefaultPoolSize    = 80
	DefaultUser        = "SYSDBA"
	DefaultPassword    = "masterkey"
)

// RunConfiguration is the fully resolved configuration of one run.
// It is passed by value to every component; none of them read the
// process environment.
type RunConfiguration struct {
	DatabasePath   string
	OutputDir      string
	Tables         []string
	Parallelism    int
	PoolSize       int
	User           string
	Password       Secret
	UseCompression bool
	ProjectRoot    string
	AutoBuild      bool
	Platform       Platform
}

// Params holds explicit call-time inputs. A nil field is absent and falls
// through to the environment or the default.
type Params struct {
	Database       *string
	OutDir         *string
	Tables         []string
	Parallelism    *int
	PoolSize       *int
	User           *string
	Password       *string
	UseCompression *bool
	ProjectRoot    *string
	AutoBuild      *bool
}

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// NoEnv is a LookupEnv with nothing set.
func NoEnv(string) (string, bool) { return "", false }

// Defaults is the lowest precedence tier. It is computed once per run for a
// single platform so that every default path comes from the same set.
type Defaults struct {
	Platform       Platform
	Database       string
	OutDir         string
	Tables         []string
	Parallelism    int
	PoolSize       int
	User           string
	Password       Secret
	UseCompression bool
	AutoBuild      bool
	ProjectRoot    string
}

// BuiltinDefaults returns the built-in defaults for p.
func BuiltinDefaults(p Platform) Defaults {
	paths := pathDefaults(p)
	return Defaults{
		Platform:    p,
		Database:    paths.Database,
		OutDir:      paths.OutDir,
		Tables:      []string{DefaultTable},
		Parallelism: DefaultParallelism,
		PoolSize:    DefaultPoolSize,
		User:        DefaultUser,
		Password:    DefaultPassword,
		AutoBuild:   true,
	}
}

// WithFile overlays the project file's defaults section.
func (d Defaults) WithFile(c *Config) Defaults {
	if c == nil {
		return d
	}
	f := c.Defaults
	if f.Database != "" {
		d.Database = f.Database
	}
	if f.OutDir != "" {
		d.OutDir = f.OutDir
	}
	if len(f.Tables) > 0 {
		d.Tables = append([]string(nil), f.Tables...)
	}
	if f.Parallelism > 0 {
		d.Parallelism = f.Parallelism
	}
	if f.PoolSize > 0 {
		d.PoolSize = f.PoolSize
	}
	if f.User != "" {
		d.User = f.User
	}
	if f.UseCompression != nil {
		d.UseCompression = *f.UseCompression
	}
	if f.AutoBuild != nil {
		d.AutoBuild = *f.AutoBuild
	}
	return d
}

// WithPassword replaces the default password, e.g. with a keychain entry.
func (d Defaults) WithPassword(s Secret) Defaults {
	if !s.IsZero() {
		d.Password = s
	}
	return d
}

// WithProjectRoot sets the default project root.
func (d Defaults) WithProjectRoot(root string) Defaults {
	d.ProjectRoot = root
	return d
}

// ConfigurationError reports invalid or missing configuration after
// resolution. It is fatal: no process is launched.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Resolve merges explicit params, environment values and defaults, in that
// order of precedence, and validates the result. It performs no I/O.
func Resolve(p Params, env LookupEnv, d Defaults) (RunConfiguration, error) {
	cfg := Merge(p, env, d)
	if err := cfg.Validate(); err != nil {
		return RunConfiguration{}, err
	}
	return cfg, nil
}

// Merge is Resolve without validation, for callers that only report the
// configuration or need its project fields.
func Merge(p Params, env LookupEnv, d Defaults) RunConfiguration {
	if env == nil {
		env = NoEnv
	}

	cfg := RunConfiguration{
		DatabasePath:   pick(p.Database, env, EnvDatabase, d.Database),
		OutputDir:      pick(p.OutDir, env, EnvOutDir, d.OutDir),
		Password:       Secret(pick(p.Password, env, EnvPassword, d.Password.Reveal())),
		Parallelism:    deref(p.Parallelism, d.Parallelism),
		PoolSize:       deref(p.PoolSize, d.PoolSize),
		User:           deref(p.User, d.User),
		UseCompression: deref(p.UseCompression, d.UseCompression),
		ProjectRoot:    deref(p.ProjectRoot, d.ProjectRoot),
		AutoBuild:      deref(p.AutoBuild, d.AutoBuild),
		Platform:       d.Platform,
	}
	if p.Tables != nil {
		cfg.Tables = append([]string(nil), p.Tables...)
	} else {
		cfg.Tables = append([]string(nil), d.Tables...)
	}
	for i, t := range cfg.Tables {
		cfg.Tables[i] = strings.TrimSpace(t)
	}
	return cfg
}

// Validate checks the invariants of a resolved configuration.
func (c RunConfiguration) Validate() error {
	var problems []string
	if strings.TrimSpace(c.DatabasePath) == "" {
		problems = append(problems, "database path must not be empty")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "output directory must not be empty")
	}
	if len(c.Tables) == 0 {
		problems = append(problems, "at least one table is required")
	}
	for i, t := range c.Tables {
		switch {
		case t == "":
			problems = append(problems, fmt.Sprintf("table #%d is blank", i+1))
		case strings.IndexFunc(t, unicode.IsControl) >= 0:
			problems = append(problems, fmt.Sprintf("table #%d (%q) contains a control character", i+1, t))
		}
	}
	if c.Parallelism <= 0 {
		problems = append(problems, fmt.Sprintf("parallelism must be positive, got %d", c.Parallelism))
	}
	if c.PoolSize <= 0 {
		problems = append(problems, fmt.Sprintf("pool size must be positive, got %d", c.PoolSize))
	}
	if strings.TrimSpace(c.ProjectRoot) == "" {
		problems = append(problems, "project root must not be empty")
	}
	if c.Platform != Windows && c.Platform != POSIX {
		problems = append(problems, fmt.Sprintf("unknown platform %q", c.Platform))
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// pick applies explicit > environment > default for a string field.
// An environment variable that is set but blank counts as absent.
func pick(explicit *string, env LookupEnv, key, def string) string {
	if explicit != nil {
		return *explicit
	}
	if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func deref[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}
