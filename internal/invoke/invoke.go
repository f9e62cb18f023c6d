// Package invoke runs the extraction program once per table and classifies
// the outcome.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/logging"
	"github.com/deixis/falconctl/internal/runner"
	"github.com/pterm/pterm"
)

// Status is the outcome tag of one invocation.
type Status string

const (
	Success Status = "success"
	Failure Status = "failure"
)

// InvocationResult is the outcome of running the extractor for one table.
// It is not modified after creation.
type InvocationResult struct {
	Table        string        `json:"table"`
	Status       Status        `json:"status"`
	Stdout       string        `json:"stdout,omitempty"`
	Stderr       string        `json:"stderr,omitempty"`
	ExitCode     int           `json:"exit_code"`
	ErrorMessage string        `json:"error_message,omitempty"`
	RunID        string        `json:"run_id,omitempty"`
	Duration     time.Duration `json:"duration"`
	Truncated    bool          `json:"truncated,omitempty"`
}

// Succeeded reports whether the invocation exited zero.
func (r InvocationResult) Succeeded() bool { return r.Status == Success }

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// Invoker launches one child process per call and waits for it. It never
// retries.
type Invoker struct {
	Runner CommandRunner
	Log    *pterm.Logger
}

// Invoke runs desc for table with the working directory set to the project
// root. A non-zero exit or a cancellation is a failure result, not an
// error. The only error returned is a *runner.LaunchError, for a process
// that never started.
func (inv *Invoker) Invoke(ctx context.Context, desc artifact.Descriptor, cfg config.RunConfiguration, table string) (InvocationResult, error) {
	log := logging.OrDiscard(inv.Log)
	secret := cfg.Password.Reveal()

	argv, err := BuildArgv(desc, cfg, table)
	if err != nil {
		return InvocationResult{}, &runner.LaunchError{Command: desc.Path, Err: err}
	}
	log.Debug("invoking extractor", log.Args("table", table, "argv", strings.Join(logging.MaskArgv(argv, secret), " ")))

	res, err := inv.Runner.Run(ctx, argv, cfg.ProjectRoot)
	if err != nil {
		var launchErr *runner.LaunchError
		if errors.As(err, &launchErr) {
			return InvocationResult{}, launchErr
		}
		return InvocationResult{}, &runner.LaunchError{Command: argv[0], Err: err}
	}

	out := InvocationResult{
		Table:     table,
		Stdout:    logging.MaskSecrets(string(res.Stdout), secret),
		Stderr:    logging.MaskSecrets(string(res.Stderr), secret),
		ExitCode:  res.ExitCode,
		RunID:     res.RunID,
		Duration:  res.Duration,
		Truncated: res.Truncated,
	}

	switch {
	case res.Canceled:
		out.Status = Failure
		out.ErrorMessage = fmt.Sprintf("canceled: %v", res.Cause)
	case res.ExitCode != 0:
		out.Status = Failure
		out.ErrorMessage = failureMessage(out.Stderr, res.ExitCode)
	default:
		out.Status = Success
	}

	if out.Succeeded() {
		log.Info("table extracted", log.Args("table", table, "duration", res.Duration.String()))
	} else {
		log.Warn("table failed", log.Args("table", table, "exit_code", res.ExitCode, "error", logging.Mask(out.ErrorMessage)))
	}
	return out, nil
}

// LaunchFailure converts an error from Invoke into a failure result so the
// batch can record it and move on.
func LaunchFailure(table string, err error) InvocationResult {
	return InvocationResult{
		Table:        table,
		Status:       Failure,
		ExitCode:     -1,
		ErrorMessage: err.Error(),
	}
}

// Canceled is the result recorded for a table that was never started
// because the batch context had already ended.
func Canceled(table string, cause error) InvocationResult {
	return InvocationResult{
		Table:        table,
		Status:       Failure,
		ExitCode:     -1,
		ErrorMessage: fmt.Sprintf("canceled: batch canceled before start (%v)", cause),
	}
}

func failureMessage(stderr string, code int) string {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		return fmt.Sprintf("exit code %d", code)
	}
	return msg
}
