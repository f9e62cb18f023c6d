// Package report holds batch summaries, renders them for operators and
// keeps recent batches available for inspection.
package report

import (
	"fmt"
	"time"

	"github.com/deixis/falconctl/internal/invoke"
)

// Store persists and retrieves batch summaries.
type Store interface {
	Save(summary *BatchSummary) error
	Load(runID string) (*BatchSummary, error)
}

// BatchSummary is the ordered result of one batch: one entry per requested
// table, in request order, duplicates included. It is read-only once
// returned by the orchestrator.
type BatchSummary struct {
	RunID     string                    `json:"run_id"`
	StartedAt time.Time                 `json:"started_at"`
	Duration  time.Duration             `json:"duration"`
	Entries   []invoke.InvocationResult `json:"entries"`
}

// Len returns the number of recorded entries.
func (s *BatchSummary) Len() int { return len(s.Entries) }

// AllSucceeded reports whether every entry succeeded. An empty summary
// has not succeeded.
func (s *BatchSummary) AllSucceeded() bool {
	if len(s.Entries) == 0 {
		return false
	}
	for _, e := range s.Entries {
		if !e.Succeeded() {
			return false
		}
	}
	return true
}

// Failed returns the failed entries in request order.
func (s *BatchSummary) Failed() []invoke.InvocationResult {
	var out []invoke.InvocationResult
	for _, e := range s.Entries {
		if !e.Succeeded() {
			out = append(out, e)
		}
	}
	return out
}

// ByTable returns every entry recorded for table. A table requested twice
// has two entries.
func (s *BatchSummary) ByTable(table string) []invoke.InvocationResult {
	var out []invoke.InvocationResult
	for _, e := range s.Entries {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

// Entry returns the table's entry. When the table was requested more than
// once, occurrence selects which one (1-based; 0 means the last).
func (s *BatchSummary) Entry(table string, occurrence int) (invoke.InvocationResult, error) {
	matches := s.ByTable(table)
	if len(matches) == 0 {
		return invoke.InvocationResult{}, fmt.Errorf("table %s is not part of run %s", table, s.RunID)
	}
	if occurrence <= 0 {
		return matches[len(matches)-1], nil
	}
	if occurrence > len(matches) {
		return invoke.InvocationResult{}, fmt.Errorf("table %s ran %d time(s) in run %s, not %d", table, len(matches), s.RunID, occurrence)
	}
	return matches[occurrence-1], nil
}
