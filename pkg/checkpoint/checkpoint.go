package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/teamh-ai/teamh/pkg/config"
)

// Snapshot is one versioned checkpoint of a conversation thread. State is
// opaque to the store; the executor serializes its own structure into it.
// Interrupt is non-empty while the thread is suspended waiting for a human
// decision.
type Snapshot struct {
	ThreadID  string          `json:"thread_id"`
	Version   int             `json:"version"`
	State     json.RawMessage `json:"state"`
	Interrupt json.RawMessage `json:"interrupt,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// HasInterrupt reports whether the snapshot left the thread suspended.
func (s *Snapshot) HasInterrupt() bool {
	return len(s.Interrupt) > 0 && string(s.Interrupt) != "null"
}

// Store persists checkpoints. Save assigns the next version for the thread
// and returns it; versions are contiguous starting at 1.
type Store interface {
	Save(ctx context.Context, threadID string, state, interrupt json.RawMessage) (int, error)
	Latest(ctx context.Context, threadID string) (*Snapshot, error)
	Get(ctx context.Context, threadID string, version int) (*Snapshot, error)
	History(ctx context.Context, threadID string, limit int) ([]Snapshot, error)
	DeleteThread(ctx context.Context, threadID string) error
	Close() error
}

// ErrNotFound is returned when a thread has no checkpoint.
var ErrNotFound = fmt.Errorf("checkpoint not found")

// NewStore builds the configured checkpoint backend.
func NewStore(cfg config.CheckpointConfig) (Store, error) {
	switch cfg.Backend {
	case config.CheckpointBackendMemory:
		return NewMemoryStore(cfg.HistoryLimit), nil
	case config.CheckpointBackendSQL:
		return NewSQLStoreFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported checkpoint backend: %s", cfg.Backend)
	}
}
