package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/protocol"
)

func testProvider(serverURL string) *OpenAIProvider {
	return NewOpenAIProvider(config.LLMConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
		BaseURL:  serverURL,
	})
}

func TestGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", auth)
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"role": "assistant", "content": "hello there"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := testProvider(server.URL)
	text, toolCalls, tokens, err := p.Generate(context.Background(), []protocol.Message{
		protocol.NewUserMessage("hi"),
	}, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "hello there" {
		t.Errorf("text = %q", text)
	}
	if len(toolCalls) != 0 {
		t.Errorf("unexpected tool calls: %v", toolCalls)
	}
	if tokens != 15 {
		t.Errorf("tokens = %d, want 15", tokens)
	}
}

func TestGenerateToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "turn_on_light" {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}
		if req.ToolChoice != "auto" {
			t.Errorf("tool_choice = %q, want auto", req.ToolChoice)
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]interface{}{
							{
								"id":   "call_abc",
								"type": "function",
								"function": map[string]string{
									"name":      "turn_on_light",
									"arguments": `{"room":"bedroom"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
			"usage": map[string]int{"total_tokens": 20},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := testProvider(server.URL)
	_, toolCalls, _, err := p.Generate(context.Background(), []protocol.Message{
		protocol.NewUserMessage("lights on in the bedroom"),
	}, []ToolDefinition{
		{Name: "turn_on_light", Description: "turn on a light", Parameters: map[string]interface{}{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(toolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(toolCalls))
	}
	tc := toolCalls[0]
	if tc.ID != "call_abc" || tc.Name != "turn_on_light" || tc.Args["room"] != "bedroom" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	p := testProvider(server.URL)
	_, _, _, err := p.Generate(context.Background(), []protocol.Message{protocol.NewUserMessage("hi")}, nil)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestGenerateStreamingText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"total_tokens":9}}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := testProvider(server.URL)
	ch, err := p.GenerateStreaming(context.Background(), []protocol.Message{protocol.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming failed: %v", err)
	}

	var text string
	var sawDone bool
	var tokens int
	for chunk := range ch {
		switch chunk.Type {
		case "text":
			text += chunk.Text
		case "done":
			sawDone = true
			tokens = chunk.Tokens
		case "error":
			t.Fatalf("stream error: %v", chunk.Error)
		}
	}

	if text != "Hello" {
		t.Errorf("streamed text = %q, want Hello", text)
	}
	if !sawDone {
		t.Error("missing done chunk")
	}
	if tokens != 9 {
		t.Errorf("tokens = %d, want 9", tokens)
	}
}

func TestGenerateStreamingToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_web","arguments":""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"{\"query\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"\"weather\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := testProvider(server.URL)
	ch, err := p.GenerateStreaming(context.Background(), []protocol.Message{protocol.NewUserMessage("weather?")}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming failed: %v", err)
	}

	var calls []protocol.ToolCall
	for chunk := range ch {
		if chunk.Type == "tool_call" {
			calls = append(calls, *chunk.ToolCall)
		}
		if chunk.Type == "error" {
			t.Fatalf("stream error: %v", chunk.Error)
		}
	}

	if len(calls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(calls))
	}
	if calls[0].Name != "search_web" || calls[0].Args["query"] != "weather" {
		t.Errorf("unexpected accumulated call: %+v", calls[0])
	}
}

func TestGenerateStreamingToolCallParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_web","arguments":""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"function":{"arguments":"{\"query\":"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := testProvider(server.URL)
	ch, err := p.GenerateStreaming(context.Background(), []protocol.Message{protocol.NewUserMessage("weather?")}, nil)
	if err != nil {
		t.Fatalf("GenerateStreaming failed: %v", err)
	}

	var sawError, sawDone bool
	var toolCalls int
	for chunk := range ch {
		switch chunk.Type {
		case "tool_call":
			toolCalls++
		case "done":
			sawDone = true
		case "error":
			sawError = true
			if chunk.Error == nil {
				t.Error("error chunk missing the error")
			}
		}
	}

	// Truncated arguments must surface as an error, not as a silent
	// terminal message.
	if !sawError {
		t.Fatal("expected an error chunk for unparseable tool call arguments")
	}
	if toolCalls != 0 {
		t.Errorf("tool calls = %d, want 0", toolCalls)
	}
	if sawDone {
		t.Error("stream must not report done after a parse failure")
	}
}

func TestGenerateStructured(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Errorf("response_format not set: %+v", req.ResponseFormat)
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"message":       map[string]interface{}{"role": "assistant", "content": `{"next_agent":"s","reason":"web lookup"}`},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"total_tokens": 8},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := testProvider(server.URL)
	text, _, err := p.GenerateStructured(context.Background(), []protocol.Message{protocol.NewUserMessage("route this")}, &StructuredOutputConfig{
		Format: "json",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"next_agent": map[string]interface{}{"type": "string"},
				"reason":     map[string]interface{}{"type": "string"},
			},
		},
	})
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["next_agent"] != "s" {
		t.Errorf("next_agent = %s, want s", decoded["next_agent"])
	}
}

func TestBuildRequestRoleMapping(t *testing.T) {
	p := testProvider("http://localhost")

	messages := []protocol.Message{
		protocol.NewSystemMessage("be helpful"),
		protocol.NewUserMessage("hi"),
		protocol.NewAssistantMessage("", protocol.ToolCall{ID: "call_1", Name: "x", Args: map[string]interface{}{"a": 1.0}}),
		protocol.NewToolMessage("call_1", "x", "done"),
	}

	req := p.buildRequest(messages, false, nil)
	if len(req.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(req.Messages))
	}
	wantRoles := []string{"system", "user", "assistant", "tool"}
	for i, want := range wantRoles {
		if req.Messages[i].Role != want {
			t.Errorf("message %d role = %s, want %s", i, req.Messages[i].Role, want)
		}
	}
	if req.Messages[3].ToolCallID != "call_1" {
		t.Errorf("tool message missing tool_call_id")
	}
	if len(req.Messages[2].ToolCalls) != 1 {
		t.Errorf("assistant tool calls not forwarded")
	}
}

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"o1", true},
		{"o3-mini", true},
		{"gpt-5-mini", true},
		{"gpt-4o-mini", false},
		{"llama3", false},
	}
	for _, tt := range tests {
		if got := isReasoningModel(tt.model); got != tt.want {
			t.Errorf("isReasoningModel(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestCreateProvider(t *testing.T) {
	for _, providerType := range []string{"openai", "ollama", "vllm"} {
		p, err := CreateProvider(config.LLMConfig{Provider: providerType, Model: "m"})
		if err != nil {
			t.Errorf("CreateProvider(%s) failed: %v", providerType, err)
		}
		if p == nil {
			t.Errorf("CreateProvider(%s) returned nil", providerType)
		}
	}
	if _, err := CreateProvider(config.LLMConfig{Provider: "bedrock"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
