package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/httpclient"
)

// Embedder converts text into dense vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Close() error
}

const embedBatchSize = 100

// OpenAIEmbedder calls the OpenAI embeddings endpoint. Requests above the
// batch size are split into multiple calls.
type OpenAIEmbedder struct {
	model      string
	apiKey     string
	baseURL    string
	dimensions int
	httpClient *httpclient.Client
}

func NewOpenAIEmbedder(cfg config.EmbedderConfig) *OpenAIEmbedder {
	client := httpclient.New(
		httpclient.WithMaxRetries(3),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)
	return &OpenAIEmbedder{
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		dimensions: cfg.Dimensions,
		httpClient: client,
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model: e.model,
		Input: texts,
	}
	// The dimensions parameter is only honored by text-embedding-3 models.
	if strings.HasPrefix(e.model, "text-embedding-3") && e.dimensions > 0 {
		reqBody.Dimensions = e.dimensions
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	// On non-2xx the client returns both the response and an error, so the
	// body must be read for the API's own message before giving up.
	resp, err := e.httpClient.Do(req)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if resp == nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}

	var parsed embeddingResponse
	if resp.StatusCode != http.StatusOK {
		if jsonErr := json.Unmarshal(body, &parsed); jsonErr == nil && parsed.Error != nil {
			return nil, fmt.Errorf("embedding API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
		}
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embedding response: %w", err)
	}

	// The API does not guarantee ordering, so place by index.
	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embedding response missing vector for input %d", i)
		}
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Close() error {
	return nil
}
