package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/invoke"
	"github.com/deixis/falconctl/internal/metrics"
	"github.com/deixis/falconctl/internal/report"
)

// Extract validates cfg, acquires the artifact and runs the batch.
// Configuration and artifact errors are returned before any table runs;
// table failures are only recorded in the summary.
func (e *Engine) Extract(ctx context.Context, cfg config.RunConfiguration) (*report.BatchSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	desc, err := e.Acquire(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return e.RunBatch(ctx, desc, cfg), nil
}

// Acquire locates the artifact, building it when allowed. Only builds that
// actually ran are counted.
func (e *Engine) Acquire(ctx context.Context, cfg config.RunConfiguration) (artifact.Descriptor, error) {
	desc, err := e.Locator.LocateOrBuild(ctx, cfg.AutoBuild)
	if err != nil {
		var (
			build  *artifact.BuildError
			verify *artifact.BuildVerificationError
		)
		if errors.As(err, &build) || errors.As(err, &verify) {
			e.metrics().IncCounter(metrics.BuildTotal, 1, metrics.Labels{"status": "failed"})
		}
		e.log().Error("extractor unavailable", e.log().Args("error", err.Error()))
		return artifact.Descriptor{}, err
	}
	if desc.Built {
		e.metrics().IncCounter(metrics.BuildTotal, 1, metrics.Labels{"status": "ok"})
	}
	return desc, nil
}

// RunBatch runs every table in cfg.Tables in order, one child process at a
// time, and returns one entry per requested table. A failing table never
// stops the batch. Once ctx is done, tables not yet started are recorded
// as canceled without launching anything.
func (e *Engine) RunBatch(ctx context.Context, desc artifact.Descriptor, cfg config.RunConfiguration) *report.BatchSummary {
	log := e.log()
	rec := newRecorder(len(cfg.Tables))
	summary := &report.BatchSummary{RunID: uuid.New().String(), StartedAt: e.clock()}

	log.Info("batch started", log.Args(
		"run_id", summary.RunID,
		"tables", strings.Join(cfg.Tables, ","),
		"artifact", desc.Path,
		"kind", string(desc.Kind),
	))

	for i, table := range cfg.Tables {
		e.notify(Transition{Index: i, Table: table, State: Pending})
	}

	for i, table := range cfg.Tables {
		res := e.runTable(ctx, i, desc, cfg, table)
		rec.record(i, res)

		state := Succeeded
		if !res.Succeeded() {
			state = Failed
		}
		e.notify(Transition{Index: i, Table: table, State: state, Result: &res})

		labels := metrics.Labels{"table": table, "status": string(state)}
		e.metrics().IncCounter(metrics.TableTotal, 1, labels)
		e.metrics().ObserveHistogram(metrics.TableDurationSeconds, res.Duration.Seconds(), labels)
	}

	summary.Entries = rec.entries()
	summary.Duration = e.clock().Sub(summary.StartedAt)

	ok := len(summary.Entries) - len(summary.Failed())
	log.Info("batch finished", log.Args(
		"run_id", summary.RunID,
		"succeeded", ok,
		"failed", len(summary.Entries)-ok,
		"duration", summary.Duration.String(),
	))
	return summary
}

// runTable produces the result for one table. A launch failure becomes a
// failure result here and goes no further.
func (e *Engine) runTable(ctx context.Context, i int, desc artifact.Descriptor, cfg config.RunConfiguration, table string) invoke.InvocationResult {
	if err := ctx.Err(); err != nil {
		return invoke.Canceled(table, err)
	}
	e.notify(Transition{Index: i, Table: table, State: Invoking})

	res, err := e.Invoker.Invoke(ctx, desc, cfg, table)
	if err != nil {
		e.log().Warn("extractor did not start", e.log().Args("table", table, "error", err.Error()))
		return invoke.LaunchFailure(table, err)
	}
	if res.Table == "" {
		res.Table = table
	}
	return res
}

// recorder owns the results of one batch. Each slot is written once, by
// request position, so concurrent writers would never touch the same entry.
type recorder struct {
	mu      sync.Mutex
	results []invoke.InvocationResult
	written []bool
}

func newRecorder(n int) *recorder {
	return &recorder{
		results: make([]invoke.InvocationResult, n),
		written: make([]bool, n),
	}
}

func (r *recorder) record(i int, res invoke.InvocationResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.written[i] {
		panic(fmt.Sprintf("workflow: result for position %d recorded twice", i))
	}
	r.results[i] = res
	r.written[i] = true
}

func (r *recorder) entries() []invoke.InvocationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]invoke.InvocationResult(nil), r.results...)
}
