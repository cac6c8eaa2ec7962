package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/teamh-ai/teamh/pkg/config"
)

// ChromemStore is the embedded vector backend. It needs no external service
// and optionally persists to disk, which makes it the zero-config default.
//
// chromem has no listing API, so the store keeps an in-process index of
// stored records to serve List. With persistence enabled the index only
// covers records written during the current process lifetime.
type ChromemStore struct {
	db          *chromem.DB
	collection  *chromem.Collection
	persistPath string
	compress    bool

	mu    sync.RWMutex
	index map[string]SearchResult
}

func NewChromemStore(collection string, cfg config.ChromemConfig) (*ChromemStore, error) {
	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := cfg.PersistPath + "/vectors.gob"
		if cfg.Compress {
			dbPath += ".gz"
		}

		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("Loaded vector database from file", "path", dbPath)
				db = loaded
			}
		} else {
			db = chromem.NewDB()
			slog.Info("Created new vector database", "path", dbPath)
		}
	} else {
		db = chromem.NewDB()
	}

	// Vectors are pre-computed by the embedder, so the embedding function
	// must never be reached.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}

	col, err := db.GetOrCreateCollection(collection, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", collection, err)
	}

	return &ChromemStore{
		db:          db,
		collection:  col,
		persistPath: cfg.PersistPath,
		compress:    cfg.Compress,
		index:       make(map[string]SearchResult),
	}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, record Record) error {
	strMetadata := make(map[string]string, len(record.Metadata))
	for k, v := range record.Metadata {
		strMetadata[k] = fmt.Sprint(v)
	}

	doc := chromem.Document{
		ID:        record.ID,
		Content:   record.Content,
		Metadata:  strMetadata,
		Embedding: record.Vector,
	}

	if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	s.mu.Lock()
	s.index[record.ID] = SearchResult{
		ID:       record.ID,
		Content:  record.Content,
		Metadata: copyMetadata(record.Metadata),
	}
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after upsert", "error", err)
	}
	return nil
}

func (s *ChromemStore) Get(ctx context.Context, id string) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.index[id]
	if !ok {
		return nil, nil
	}
	out := r
	out.Metadata = copyMetadata(r.Metadata)
	return &out, nil
}

func (s *ChromemStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error) {
	var whereFilter map[string]string
	if len(filter) > 0 {
		whereFilter = make(map[string]string, len(filter))
		for k, v := range filter {
			whereFilter[k] = fmt.Sprint(v)
		}
	}

	if count := s.collection.Count(); topK > count {
		topK = count
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, topK, whereFilter, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		out = append(out, SearchResult{
			ID:       r.ID,
			Score:    r.Similarity,
			Content:  r.Content,
			Metadata: metadata,
		})
	}
	return out, nil
}

func (s *ChromemStore) List(ctx context.Context, filter map[string]interface{}, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SearchResult, 0, len(s.index))
	for _, r := range s.index {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *ChromemStore) Delete(ctx context.Context, id string) error {
	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}
	return nil
}

func (s *ChromemStore) DeleteByFilter(ctx context.Context, filter map[string]interface{}) error {
	whereFilter := make(map[string]string, len(filter))
	for k, v := range filter {
		whereFilter[k] = fmt.Sprint(v)
	}

	if err := s.collection.Delete(ctx, whereFilter, nil); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}

	s.mu.Lock()
	for id, r := range s.index {
		if matchesFilter(r.Metadata, filter) {
			delete(s.index, id)
		}
	}
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}
	return nil
}

func (s *ChromemStore) Close() error {
	return s.persist()
}

func (s *ChromemStore) persist() error {
	if s.persistPath == "" {
		return nil
	}

	dbPath := s.persistPath + "/vectors.gob"
	if s.compress {
		dbPath += ".gz"
	}

	if err := s.db.Export(dbPath, s.compress, ""); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}
	return nil
}

func matchesFilter(metadata map[string]interface{}, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

var _ Store = (*ChromemStore)(nil)
