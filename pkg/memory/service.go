package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teamh-ai/teamh/pkg/config"
)

// Memory is a single stored fact about a user.
type Memory struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	UserID    string  `json:"user_id"`
	Score     float32 `json:"score,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
}

// Service is the long-term memory layer. Every operation is scoped to a
// user id so one user's facts never leak into another's retrieval.
type Service struct {
	embedder Embedder
	store    Store
	topK     int
}

func NewService(embedder Embedder, store Store, cfg config.MemoryConfig) *Service {
	return &Service{
		embedder: embedder,
		store:    store,
		topK:     cfg.TopK,
	}
}

// Add stores a new memory and returns its generated id.
func (s *Service) Add(ctx context.Context, userID, content string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("memory content cannot be empty")
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("failed to embed memory: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	err = s.store.Upsert(ctx, Record{
		ID:      id,
		Vector:  vector,
		Content: content,
		Metadata: map[string]interface{}{
			"user_id":    userID,
			"created_at": now,
			"updated_at": now,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to store memory: %w", err)
	}
	return id, nil
}

// Search returns the memories most similar to the query for this user.
func (s *Service) Search(ctx context.Context, userID, query string) ([]Memory, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vector, s.topK, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("memory search failed: %w", err)
	}
	return toMemories(results), nil
}

// GetAll lists every memory stored for this user.
func (s *Service) GetAll(ctx context.Context, userID string) ([]Memory, error) {
	results, err := s.store.List(ctx, map[string]interface{}{"user_id": userID}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return toMemories(results), nil
}

// Update replaces the content of a memory owned by userID, re-embedding it.
func (s *Service) Update(ctx context.Context, userID, id, content string) error {
	if content == "" {
		return fmt.Errorf("memory content cannot be empty")
	}

	existing, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed memory: %w", err)
	}

	metadata := map[string]interface{}{
		"user_id":    userID,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if created, ok := existing.Metadata["created_at"]; ok {
		metadata["created_at"] = created
	}

	err = s.store.Upsert(ctx, Record{
		ID:       id,
		Vector:   vector,
		Content:  content,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	return nil
}

// Delete removes a single memory owned by userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// owned loads a record and verifies it belongs to userID. Records owned by
// someone else report not found, so ids cannot be confirmed across users.
func (s *Service) owned(ctx context.Context, userID, id string) (*SearchResult, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory %s: %w", id, err)
	}
	if record == nil {
		return nil, fmt.Errorf("memory %s not found", id)
	}
	if owner, _ := record.Metadata["user_id"].(string); owner != userID {
		return nil, fmt.Errorf("memory %s not found", id)
	}
	return record, nil
}

// DeleteAll removes every memory stored for this user.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.store.DeleteByFilter(ctx, map[string]interface{}{"user_id": userID})
}

// Close releases the embedder and store.
func (s *Service) Close() error {
	if err := s.embedder.Close(); err != nil {
		return err
	}
	return s.store.Close()
}

func toMemories(results []SearchResult) []Memory {
	memories := make([]Memory, 0, len(results))
	for _, r := range results {
		m := Memory{
			ID:      r.ID,
			Content: r.Content,
			Score:   r.Score,
		}
		if v, ok := r.Metadata["user_id"].(string); ok {
			m.UserID = v
		}
		if v, ok := r.Metadata["created_at"].(string); ok {
			m.CreatedAt = v
		}
		if v, ok := r.Metadata["updated_at"].(string); ok {
			m.UpdatedAt = v
		}
		memories = append(memories, m)
	}
	return memories
}
