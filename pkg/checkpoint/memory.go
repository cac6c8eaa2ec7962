package checkpoint

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/teamh-ai/teamh/pkg/observability"
)

// MemoryStore keeps checkpoints in process memory. Suitable for tests and
// single-instance deployments that can tolerate losing threads on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	threads      map[string][]Snapshot
	historyLimit int
}

func NewMemoryStore(historyLimit int) *MemoryStore {
	return &MemoryStore{
		threads:      make(map[string][]Snapshot),
		historyLimit: historyLimit,
	}
}

func (s *MemoryStore) Save(ctx context.Context, threadID string, state, interrupt json.RawMessage) (int, error) {
	startTime := time.Now()

	s.mu.Lock()
	snapshots := s.threads[threadID]
	version := 1
	if n := len(snapshots); n > 0 {
		version = snapshots[n-1].Version + 1
	}

	snapshots = append(snapshots, Snapshot{
		ThreadID:  threadID,
		Version:   version,
		State:     append(json.RawMessage(nil), state...),
		Interrupt: append(json.RawMessage(nil), interrupt...),
		CreatedAt: time.Now().UTC(),
	})
	if s.historyLimit > 0 && len(snapshots) > s.historyLimit {
		snapshots = snapshots[len(snapshots)-s.historyLimit:]
	}
	s.threads[threadID] = snapshots
	s.mu.Unlock()

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordCheckpointSave(ctx, "memory", time.Since(startTime), nil)
	}
	return version, nil
}

func (s *MemoryStore) Latest(ctx context.Context, threadID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := s.threads[threadID]
	if len(snapshots) == 0 {
		return nil, ErrNotFound
	}
	snap := snapshots[len(snapshots)-1]
	return &snap, nil
}

func (s *MemoryStore) Get(ctx context.Context, threadID string, version int) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.threads[threadID] {
		if snap.Version == version {
			out := snap
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) History(ctx context.Context, threadID string, limit int) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := s.threads[threadID]
	if limit > 0 && len(snapshots) > limit {
		snapshots = snapshots[len(snapshots)-limit:]
	}

	out := make([]Snapshot, len(snapshots))
	copy(out, snapshots)
	return out, nil
}

func (s *MemoryStore) DeleteThread(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
