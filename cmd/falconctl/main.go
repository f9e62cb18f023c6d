// Command falconctl runs the Firebird table extractor once per table and
// reports the outcome of every table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/deixis/falconctl"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/logging"
	"github.com/deixis/falconctl/internal/metrics"
	"github.com/deixis/falconctl/internal/metrics/datadog"
	"github.com/deixis/falconctl/internal/secret"
	"github.com/deixis/falconctl/internal/workflow"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // at least one table failed
	exitFatal  = 2 // usage, configuration or artifact error
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var (
	logLevel  string
	logFormat string
	log       *pterm.Logger
)

var rootCmd = &cobra.Command{
	Use:           "falconctl",
	Short:         "Extract Firebird tables with firebird_peregrine_falcon",
	Long:          `falconctl locates (or builds) the firebird_peregrine_falcon extractor and runs it once per table, continuing past failures and reporting every table's outcome.`,
	Version:       falconctl.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Options{Level: logLevel, Format: logFormat, Writer: os.Stderr})
		if err != nil {
			return err
		}
		log = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error, off")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "falconctl:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "falconctl:", err)
	return exitFatal
}

// loadProject loads the project containing dir (the working directory when
// empty). The keychain is opened only if the project enables it.
func loadProject(dir string) (*workflow.Project, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining workspace: %w", err)
		}
		dir = wd
	}
	return workflow.LoadProject(dir, config.CurrentPlatform(), keychain, log)
}

var keychain = workflow.PasswordSourceFunc(func() (config.Secret, bool, error) {
	s, err := secret.Open()
	if err != nil {
		return "", false, err
	}
	return s.Password()
})

// newMetrics returns the backend selected by the project file.
func newMetrics(ctx context.Context, p *workflow.Project) (metrics.BackendCloser, error) {
	m := p.Config.Metrics
	switch m.Backend {
	case "", "none":
		return metrics.Nop{}, nil
	case "datadog":
		return datadog.NewBackend(ctx, datadog.Options{
			JobName:    m.Job,
			Env:        os.Getenv("DD_ENV"),
			Tags:       m.Tags,
			FlushEvery: m.FlushEvery(),
		})
	}
	return nil, fmt.Errorf("unknown metrics backend %q (want datadog)", m.Backend)
}
