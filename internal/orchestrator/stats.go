package orchestrator

import (
	"sync"
	"time"

	"github.com/contentforge/newsmigrate/internal/model"
)

// Stats is the mutex-guarded owner of RunStatistics for one run. Pipelines of
// a window complete concurrently, so every increment goes through here; the
// folder resolver and asset uploader report creations via the hook methods.
type Stats struct {
	mu sync.Mutex
	s  model.RunStatistics
}

// NewStats creates an empty recorder.
func NewStats() *Stats {
	return &Stats{}
}

func (st *Stats) begin(total int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.TotalItems = total
	st.s.StartTime = time.Now().UTC()
}

// finish stamps EndTime exactly once.
func (st *Stats) finish() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.EndTime.IsZero() {
		st.s.EndTime = time.Now().UTC()
	}
}

// FolderCreated records one remote folder creation.
func (st *Stats) FolderCreated(model.FolderHandle) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.FoldersCreated++
}

// AssetUploaded records one remote asset upload.
func (st *Stats) AssetUploaded(model.AssetHandle) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.AssetsUploaded++
}

func (st *Stats) itemDone(res model.MigrationResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ProcessedItems++
	if res.Success {
		st.s.SucceededItems++
	} else {
		st.s.FailedItems++
	}
	if res.State == model.StateCreated {
		st.s.ContentsCreated++
	}
}

// Snapshot returns a copy of the current counters.
func (st *Stats) Snapshot() model.RunStatistics {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}
