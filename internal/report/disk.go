package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DiskStore writes batch summaries as JSON files to a lazily-created
// directory under base.
type DiskStore struct {
	base string
	mu   sync.Mutex
	dir  string
}

// NewDiskStore returns a DiskStore rooted in base; empty base means the
// system temp directory. Nothing is created until first use.
func NewDiskStore(base string) *DiskStore {
	return &DiskStore{base: base}
}

// Save writes a summary as a JSON file named after its run ID.
func (s *DiskStore) Save(summary *BatchSummary) error {
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	if summary.RunID == "" {
		return fmt.Errorf("summary has no run ID")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshalling run %s: %w", summary.RunID, err)
	}
	if err := os.WriteFile(s.path(dir, summary.RunID), data, 0o600); err != nil {
		return fmt.Errorf("writing run %s: %w", summary.RunID, err)
	}
	return nil
}

// Load reads a summary back by run ID.
func (s *DiskStore) Load(runID string) (*BatchSummary, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("invalid run ID %q", runID)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(dir, runID))
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}
	var summary BatchSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("unmarshalling run %s: %w", runID, err)
	}
	return &summary, nil
}

func (s *DiskStore) path(dir, runID string) string {
	return filepath.Join(dir, runID+".json")
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		return s.dir, nil
	}
	dir, err := os.MkdirTemp(s.base, "falconctl-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
