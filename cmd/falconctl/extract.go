package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/report"
)

// extractOptions holds the extract flags.
type extractOptions struct {
	database       string
	outDir         string
	tables         []string
	parallelism    int
	poolSize       int
	user           string
	password       string
	useCompression bool
	projectRoot    string
	noAutoBuild    bool
	timeout        time.Duration
	json           bool
	pretty         bool
}

func newExtractCmd() *cobra.Command {
	var o extractOptions
	cmd := &cobra.Command{
		Use:   "extract [TABLE...]",
		Short: "Extract tables, one extractor run per table",
		Long: `Extract runs the extractor once per table, in the order given. A failing
table does not stop the others. Tables come from the arguments and --table;
when neither is given the project's default tables are used.

Inputs not given as flags fall back to FIREBIRD_DATABASE, FIREBIRD_OUT_DIR and
FIREBIRD_PASSWORD, then to the project's .falcon file, then to built-in
defaults.

Exit status is 0 when every table succeeded, 1 when any table failed and 2
when nothing could be run.`,
		RunE: o.run,
	}
	o.bind(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive("json", "pretty")
	return cmd
}

func init() {
	rootCmd.AddCommand(newExtractCmd())
}

func (o *extractOptions) bind(f *pflag.FlagSet) {
	f.StringVar(&o.database, "database", "", "Firebird database path or DSN")
	f.StringVar(&o.outDir, "out-dir", "", "output directory")
	f.StringArrayVar(&o.tables, "table", nil, "table to extract (repeatable)")
	f.IntVar(&o.parallelism, "parallelism", 0, "worker count passed to the extractor")
	f.IntVar(&o.poolSize, "pool-size", 0, "connection pool size passed to the extractor")
	f.StringVar(&o.user, "user", "", "database user")
	f.StringVar(&o.password, "password", "", "database password (prefer FIREBIRD_PASSWORD or the keychain)")
	f.BoolVar(&o.useCompression, "use-compression", false, "ask the extractor to compress its output")
	f.StringVar(&o.projectRoot, "project-root", "", "extraction project directory (default: found from the working directory)")
	f.BoolVar(&o.noAutoBuild, "no-auto-build", false, "fail instead of building a missing extractor")
	f.DurationVar(&o.timeout, "timeout", 0, "per-table timeout, overriding the project file (e.g. 2h)")
	f.BoolVar(&o.json, "json", false, "print the report as JSON")
	f.BoolVar(&o.pretty, "pretty", false, "print the report as a table")
}

// params maps the flags that were set to explicit params. Unset flags
// stay nil so that the environment and defaults apply.
func (o *extractOptions) params(f *pflag.FlagSet, args []string) config.Params {
	var p config.Params
	if f.Changed("database") {
		p.Database = &o.database
	}
	if f.Changed("out-dir") {
		p.OutDir = &o.outDir
	}
	if len(args) > 0 || f.Changed("table") {
		p.Tables = append(append([]string{}, args...), o.tables...)
	}
	if f.Changed("parallelism") {
		p.Parallelism = &o.parallelism
	}
	if f.Changed("pool-size") {
		p.PoolSize = &o.poolSize
	}
	if f.Changed("user") {
		p.User = &o.user
	}
	if f.Changed("password") {
		p.Password = &o.password
	}
	if f.Changed("use-compression") {
		p.UseCompression = &o.useCompression
	}
	if f.Changed("no-auto-build") {
		autoBuild := !o.noAutoBuild
		p.AutoBuild = &autoBuild
	}
	return p
}

func (o *extractOptions) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	project, err := loadProject(o.projectRoot)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	if o.timeout > 0 {
		project.Config.RawTimeout = o.timeout.String()
	}

	cfg, err := project.Resolve(o.params(cmd.Flags(), args), os.LookupEnv)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	// Metrics outlive an interrupt so the final flush still reports it.
	m, err := newMetrics(context.WithoutCancel(ctx), project)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("flushing metrics failed", log.Args("error", err.Error()))
		}
	}()

	engine, err := project.NewEngine(cfg, log, m)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	summary, err := engine.Extract(ctx, cfg)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	rendered := report.Render(summary)
	out := cmd.OutOrStdout()
	switch {
	case o.json:
		b, err := rendered.JSON()
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		fmt.Fprintln(out, string(b))
	case o.pretty:
		if err := printTable(out, rendered); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
	default:
		fmt.Fprint(out, rendered.Text())
	}

	if !summary.AllSucceeded() {
		return &exitError{code: exitFailed}
	}
	return nil
}

func printTable(w io.Writer, r report.RenderedReport) error {
	data := pterm.TableData{{"Table", "Status", "Exit code", "Error"}}
	for _, t := range r.Tables {
		code := ""
		if t.Status == report.Failed {
			code = strconv.Itoa(t.ExitCode)
		}
		data = append(data, []string{t.Table, string(t.Status), code, firstLine(t.Error)})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	ok, failed := r.Counts()
	fmt.Fprintf(w, "%s\nRun %s: %d succeeded, %d failed\n", table, r.RunID, ok, failed)
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
