package tools

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

// SearchTool queries a Tavily style web search API and formats the top
// results for the model.
type SearchTool struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *httpclient.Client
}

func NewSearchTool(cfg config.SearchConfig) *SearchTool {
	return &SearchTool{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		httpClient: httpclient.New(httpclient.WithMaxRetries(2)),
	}
}

func (t *SearchTool) GetName() string { return "search_web" }

func (t *SearchTool) GetDescription() string {
	return "Search the web for current information and return the most relevant results"
}

func (t *SearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Search query",
				Required:    true,
			},
		},
	}
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type searchResponse struct {
	Answer  string `json:"answer,omitempty"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	payload, err := json.Marshal(searchRequest{
		APIKey:     t.apiKey,
		Query:      query,
		MaxResults: t.maxResults,
	})
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if resp == nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("search request failed: %v", err)}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("search API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}, nil
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("failed to parse search response: %v", err)}, nil
	}

	if len(parsed.Results) == 0 && parsed.Answer == "" {
		return ToolResult{Success: true, Content: "No results found for: " + query}, nil
	}

	var sb strings.Builder
	if parsed.Answer != "" {
		sb.WriteString("Answer: " + parsed.Answer + "\n\n")
	}
	for i, r := range parsed.Results {
		fmt.Fprintf(&sb, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return ToolResult{Success: true, Content: strings.TrimSpace(sb.String())}, nil
}
