// Package workflow drives an extraction run: it makes sure the extractor
// is available, then runs every requested table in order and collects
// the outcomes. It is consumed by both the MCP server and the CLI.
package workflow

import (
	"context"
	"time"

	"github.com/pterm/pterm"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/invoke"
	"github.com/deixis/falconctl/internal/logging"
	"github.com/deixis/falconctl/internal/metrics"
)

// Locator guarantees a runnable artifact. Implemented by artifact.Locator.
type Locator interface {
	LocateOrBuild(ctx context.Context, autoBuild bool) (artifact.Descriptor, error)
}

// Invoker runs the extractor for one table. Implemented by invoke.Invoker.
type Invoker interface {
	Invoke(ctx context.Context, desc artifact.Descriptor, cfg config.RunConfiguration, table string) (invoke.InvocationResult, error)
}

// State is a table's position in the batch.
type State string

const (
	Pending   State = "pending"
	Invoking  State = "invoking"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// Transition is reported each time a table changes state.
type Transition struct {
	Index int // position in the request, 0-based
	Table string
	State State
	// Result is set once the table reaches Succeeded or Failed.
	Result *invoke.InvocationResult
}

// Engine holds shared dependencies for extraction runs.
type Engine struct {
	Locator Locator
	Invoker Invoker
	Metrics metrics.Backend
	Log     *pterm.Logger

	// OnTransition, when set, observes every state change. It is called
	// from the goroutine running the batch.
	OnTransition func(Transition)

	now func() time.Time
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Engine) log() *pterm.Logger { return logging.OrDiscard(e.Log) }

func (e *Engine) metrics() metrics.Backend { return metrics.OrNop(e.Metrics) }

func (e *Engine) notify(t Transition) {
	if e.OnTransition != nil {
		e.OnTransition(t)
	}
}
