// Package metrics defines the metric sink used by the orchestrator. The
// core depends only on Backend; concrete sinks live in subpackages.
package metrics

// Labels are metric dimensions.
type Labels map[string]string

// Backend records counters and histogram samples. Implementations must be
// safe for concurrent use and ignore metric names they do not know.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// BackendCloser is a Backend that buffers and must be closed to flush.
type BackendCloser interface {
	Backend
	Close() error
}

// Metric names emitted by falconctl.
const (
	// TableTotal counts finished table invocations, labelled table and status.
	TableTotal = "falcon_table_total"
	// TableDurationSeconds observes invocation wall time, labelled table and status.
	TableDurationSeconds = "falcon_table_duration_seconds"
	// BuildTotal counts builds that ran, labelled status (ok, failed). An
	// artifact found already present is not counted.
	BuildTotal = "falcon_build_total"
)

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Close() error                             { return nil }

// OrNop returns b, or Nop when b is nil.
func OrNop(b Backend) Backend {
	if b == nil {
		return Nop{}
	}
	return b
}
