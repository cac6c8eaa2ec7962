package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/teamh-ai/teamh/pkg/config"
)

// QdrantStore keeps memories in a Qdrant collection, one point per record.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
}

func NewQdrantStore(collection string, dimension uint64, cfg config.QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, record Record) error {
	if err := s.ensureCollection(ctx, uint64(len(record.Vector))); err != nil {
		return err
	}

	metadata := make(map[string]interface{}, len(record.Metadata)+1)
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	metadata["content"] = record.Content

	payload := make(map[string]*qdrant.Value, len(metadata))
	for key, value := range metadata {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("failed to convert metadata value for key %s: %w", key, err)
		}
		payload[key] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(record.ID),
		Vectors: qdrant.NewVectors(record.Vector...),
		Payload: payload,
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

func (s *QdrantStore) Get(ctx context.Context, id string) (*SearchResult, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get point %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	metadata := convertPayload(points[0].Payload)
	return &SearchResult{
		ID:       pointID(points[0].Id),
		Content:  contentFromMetadata(metadata),
		Metadata: metadata,
	}, nil
}

func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]interface{}) ([]SearchResult, error) {
	searchRequest := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filter) > 0 {
		searchRequest.Filter = buildFilter(filter)
	}

	searchResult, err := s.client.GetPointsClient().Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		metadata := convertPayload(point.Payload)
		results = append(results, SearchResult{
			ID:       pointID(point.Id),
			Score:    point.Score,
			Content:  contentFromMetadata(metadata),
			Metadata: metadata,
		})
	}
	return results, nil
}

func (s *QdrantStore) List(ctx context.Context, filter map[string]interface{}, limit int) ([]SearchResult, error) {
	scroll := &qdrant.ScrollPoints{
		CollectionName: s.collection,
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if limit > 0 {
		l := uint32(limit)
		scroll.Limit = &l
	}
	if len(filter) > 0 {
		scroll.Filter = buildFilter(filter)
	}

	points, err := s.client.Scroll(ctx, scroll)
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		metadata := convertPayload(point.Payload)
		results = append(results, SearchResult{
			ID:       pointID(point.Id),
			Content:  contentFromMetadata(metadata),
			Metadata: metadata,
		})
	}
	return results, nil
}

func (s *QdrantStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{
						{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point %s: %w", id, err)
	}
	return nil
}

func (s *QdrantStore) DeleteByFilter(ctx context.Context, filter map[string]interface{}) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: buildFilter(filter),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points by filter: %w", err)
	}
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func buildFilter(filter map[string]interface{}) *qdrant.Filter {
	conditions := make([]*qdrant.Condition, 0, len(filter))
	for key, value := range filter {
		val, err := qdrant.NewValue(value)
		if err != nil {
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{
							Keyword: val.GetStringValue(),
						},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func pointID(id *qdrant.PointId) string {
	if id == nil || id.PointIdOptions == nil {
		return ""
	}
	switch idType := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return idType.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", idType.Num)
	}
	return ""
}

func convertPayload(payload map[string]*qdrant.Value) map[string]interface{} {
	metadata := make(map[string]interface{}, len(payload))
	for key, value := range payload {
		switch v := value.Kind.(type) {
		case *qdrant.Value_StringValue:
			metadata[key] = v.StringValue
		case *qdrant.Value_IntegerValue:
			metadata[key] = v.IntegerValue
		case *qdrant.Value_DoubleValue:
			metadata[key] = v.DoubleValue
		case *qdrant.Value_BoolValue:
			metadata[key] = v.BoolValue
		default:
			metadata[key] = value
		}
	}
	return metadata
}

func contentFromMetadata(metadata map[string]interface{}) string {
	if c, ok := metadata["content"].(string); ok {
		return c
	}
	return ""
}

var _ Store = (*QdrantStore)(nil)
