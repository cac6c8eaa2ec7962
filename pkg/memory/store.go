package memory

import (
	"context"
	"fmt"

	"github.com/teamh-ai/teamh/pkg/config"
)

// Record is a stored memory with its embedding and payload.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]interface{}
}

// SearchResult is a record returned from a similarity query.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]interface{}
}

// Store is the vector backend the memory service writes to. Filters are
// exact-match on metadata keys (user_id scoping relies on this).
// Get returns nil without error when no record has the id.
type Store interface {
	Upsert(ctx context.Context, record Record) error
	Get(ctx context.Context, id string) (*SearchResult, error)
	Search(ctx context.Context, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error)
	List(ctx context.Context, filter map[string]interface{}, limit int) ([]SearchResult, error)
	Delete(ctx context.Context, id string) error
	DeleteByFilter(ctx context.Context, filter map[string]interface{}) error
	Close() error
}

// NewStore builds the configured vector backend.
func NewStore(cfg config.MemoryConfig, dimension int) (Store, error) {
	switch cfg.Provider {
	case "chromem":
		chromemCfg := config.ChromemConfig{}
		if cfg.Chromem != nil {
			chromemCfg = *cfg.Chromem
		}
		return NewChromemStore(cfg.Collection, chromemCfg)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant memory provider requires a qdrant config block")
		}
		return NewQdrantStore(cfg.Collection, uint64(dimension), *cfg.Qdrant)
	default:
		return nil, fmt.Errorf("unsupported memory provider: %s", cfg.Provider)
	}
}
