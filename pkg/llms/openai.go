package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/httpclient"
	"github.com/teamh-ai/teamh/pkg/observability"
	"github.com/teamh-ai/teamh/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIProvider speaks the OpenAI chat completions protocol. Ollama and
// vLLM expose the same surface, so BaseURL selects the backend.
type OpenAIProvider struct {
	config     config.LLMConfig
	httpClient *httpclient.Client
}

type openAIRequest struct {
	Model               string                `json:"model"`
	Messages            []openAIMessage       `json:"messages"`
	MaxTokens           *int                  `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int                  `json:"max_completion_tokens,omitempty"`
	Temperature         float64               `json:"temperature"`
	Stream              bool                  `json:"stream"`
	Tools               []openAITool          `json:"tools,omitempty"`
	ToolChoice          string                `json:"tool_choice,omitempty"`
	ResponseFormat      *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []choice  `json:"choices"`
	Usage   usage     `json:"usage"`
	Error   *apiError `json:"error,omitempty"`
}

type openAIStreamResponse struct {
	Choices []streamChoice `json:"choices"`
	Usage   *usage         `json:"usage,omitempty"`
	Error   *apiError      `json:"error,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type choice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type streamChoice struct {
	Delta        delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type delta struct {
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type openAIResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *openAIJSONSchema `json:"json_schema,omitempty"`
}

type openAIJSONSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func NewOpenAIProvider(cfg config.LLMConfig) *OpenAIProvider {
	cfg.SetDefaults()

	httpClient := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		}),
		httpclient.WithMaxRetries(cfg.MaxRetries),
		httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
	)

	return &OpenAIProvider{
		config:     cfg,
		httpClient: httpClient,
	}
}

func (p *OpenAIProvider) GetModelName() string {
	return p.config.Model
}

func (p *OpenAIProvider) Close() error {
	return nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (string, []protocol.ToolCall, int, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("teamh.llm")
	ctx, span := tracer.Start(ctx, "llm.request",
		trace.WithAttributes(
			attribute.String("llm.model", p.config.Model),
			attribute.String("provider", p.config.Provider),
			attribute.Bool("streaming", false),
		),
	)
	defer span.End()

	request := p.buildRequest(messages, false, tools)

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		return "", nil, 0, p.recordFailure(ctx, span, duration, err)
	}
	if response.Error != nil {
		apiErr := fmt.Errorf("API error: %s", response.Error.Message)
		return "", nil, 0, p.recordFailure(ctx, span, duration, apiErr)
	}
	if len(response.Choices) == 0 {
		return "", nil, 0, p.recordFailure(ctx, span, duration, fmt.Errorf("no response choices returned"))
	}

	chosen := response.Choices[0]
	tokensUsed := response.Usage.TotalTokens

	var toolCalls []protocol.ToolCall
	if len(chosen.Message.ToolCalls) > 0 {
		toolCalls, err = parseToolCalls(chosen.Message.ToolCalls)
		if err != nil {
			span.RecordError(err)
			return chosen.Message.Content, nil, tokensUsed, err
		}
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_input", response.Usage.PromptTokens),
		attribute.Int("llm.tokens_output", response.Usage.CompletionTokens),
		attribute.Int("llm.tool_calls", len(toolCalls)),
	)
	span.SetStatus(codes.Ok, "success")

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	}

	return chosen.Message.Content, toolCalls, tokensUsed, nil
}

func (p *OpenAIProvider) recordFailure(ctx context.Context, span trace.Span, duration time.Duration, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
	}
	return err
}

func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := p.buildRequest(messages, true, tools)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			outputCh <- StreamChunk{
				Type:  "error",
				Error: err,
			}
		}
	}()

	return outputCh, nil
}

func (p *OpenAIProvider) GenerateStructured(ctx context.Context, messages []protocol.Message, structConfig *StructuredOutputConfig) (string, int, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("teamh.llm")
	ctx, span := tracer.Start(ctx, "llm.request",
		trace.WithAttributes(
			attribute.String("llm.model", p.config.Model),
			attribute.String("provider", p.config.Provider),
			attribute.Bool("structured", true),
		),
	)
	defer span.End()

	request := p.buildRequest(messages, false, nil)

	if structConfig != nil && structConfig.Format == "json" {
		if structConfig.Schema != nil {
			schema, ok := structConfig.Schema.(map[string]interface{})
			if !ok {
				return "", 0, fmt.Errorf("schema must be a map")
			}
			request.ResponseFormat = &openAIResponseFormat{
				Type: "json_schema",
				JSONSchema: &openAIJSONSchema{
					Name:   "response",
					Schema: schema,
					Strict: true,
				},
			}
		} else {
			request.ResponseFormat = &openAIResponseFormat{
				Type: "json_object",
			}
		}
	}

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		return "", 0, p.recordFailure(ctx, span, duration, err)
	}
	if response.Error != nil {
		apiErr := fmt.Errorf("API error: %s", response.Error.Message)
		return "", 0, p.recordFailure(ctx, span, duration, apiErr)
	}
	if len(response.Choices) == 0 {
		return "", 0, p.recordFailure(ctx, span, duration, fmt.Errorf("no response choices returned"))
	}

	span.SetStatus(codes.Ok, "success")
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordLLMCall(ctx, p.config.Model, duration, response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)
	}

	return response.Choices[0].Message.Content, response.Usage.TotalTokens, nil
}

func roleToWire(role protocol.Role) string {
	switch role {
	case protocol.RoleUser:
		return "user"
	case protocol.RoleAssistant:
		return "assistant"
	case protocol.RoleTool:
		return "tool"
	default:
		return "system"
	}
}

func (p *OpenAIProvider) buildRequest(messages []protocol.Message, stream bool, tools []ToolDefinition) openAIRequest {
	wireMessages := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		wireMsg := openAIMessage{
			Role:    roleToWire(msg.Role),
			Content: msg.Content,
		}

		if msg.Role == protocol.RoleTool {
			wireMsg.ToolCallID = msg.ToolCallID
		}

		if len(msg.ToolCalls) > 0 {
			wireMsg.ToolCalls = make([]openAIToolCall, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				wireMsg.ToolCalls[j] = openAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      tc.Name,
						Arguments: tc.ArgsJSON(),
					},
				}
			}
		}

		wireMessages = append(wireMessages, wireMsg)
	}

	isReasoning := isReasoningModel(p.config.Model)

	temperature := p.config.Temperature
	if isReasoning {
		// Reasoning models only accept the default temperature.
		temperature = 1.0
	}

	request := openAIRequest{
		Model:       p.config.Model,
		Messages:    wireMessages,
		Temperature: temperature,
		Stream:      stream,
	}

	if p.config.MaxTokens > 0 {
		maxTokens := p.config.MaxTokens
		if isReasoning {
			request.MaxCompletionTokens = &maxTokens
		} else {
			request.MaxTokens = &maxTokens
		}
	}

	if len(tools) > 0 {
		request.Tools = convertTools(tools)
		request.ToolChoice = "auto"
	}

	return request
}

// isReasoningModel reports whether the model requires max_completion_tokens.
func isReasoningModel(model string) bool {
	modelLower := strings.ToLower(model)
	if modelLower == "o1" || modelLower == "o3" || modelLower == "o4" || modelLower == "gpt-5" {
		return true
	}
	for _, prefix := range []string{"o1-", "o3-", "o4-", "gpt-5-"} {
		if strings.HasPrefix(modelLower, prefix) {
			return true
		}
	}
	return false
}

func convertTools(tools []ToolDefinition) []openAITool {
	result := make([]openAITool, len(tools))
	for i, tool := range tools {
		result[i] = openAITool{
			Type:     "function",
			Function: (openAIToolFunction)(tool),
		}
	}
	return result
}

func parseToolCalls(wireCalls []openAIToolCall) ([]protocol.ToolCall, error) {
	result := make([]protocol.ToolCall, len(wireCalls))

	for i, tc := range wireCalls {
		args := map[string]interface{}{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool arguments: %w", err)
			}
		}

		result[i] = protocol.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		}
	}

	return result, nil
}

func parseErrorResponse(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

func (p *OpenAIProvider) newRequest(ctx context.Context, request openAIRequest) (*http.Request, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	return req, nil
}

func checkResponse(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		errorBody := string(body)
		if readErr != nil {
			errorBody = fmt.Sprintf("(failed to read error body: %v)", readErr)
		}
		if apiErr := parseErrorResponse(body); apiErr != nil {
			return fmt.Errorf("API request failed with status %d: %s (type: %s, code: %s)",
				resp.StatusCode, apiErr.Message, apiErr.Type, apiErr.Code)
		}
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, errorBody)
	}
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("HTTP request failed: no response received")
	}
	return nil
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openAIRequest) (*openAIResponse, error) {
	req, err := p.newRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &response, nil
}

func (p *OpenAIProvider) makeStreamingRequest(ctx context.Context, request openAIRequest, outputCh chan<- StreamChunk) error {
	req, err := p.newRequest(ctx, request)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err := checkResponse(resp, err); err != nil {
		return err
	}

	reader := bufio.NewReader(resp.Body)

	toolCallsMap := make(map[int]*openAIToolCall)
	totalTokens := 0

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp openAIStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			continue
		}

		if streamResp.Error != nil {
			return fmt.Errorf("API error: %s", streamResp.Error.Message)
		}

		if streamResp.Usage != nil {
			totalTokens = streamResp.Usage.TotalTokens
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		chosen := streamResp.Choices[0]

		if chosen.Delta.Content != "" {
			outputCh <- StreamChunk{
				Type: "text",
				Text: chosen.Delta.Content,
			}
		}

		for _, deltaCall := range chosen.Delta.ToolCalls {
			if deltaCall.ID != "" {
				// New call starts; later deltas carry argument fragments only.
				toolCallsMap[len(toolCallsMap)] = &openAIToolCall{
					ID:       deltaCall.ID,
					Type:     deltaCall.Type,
					Function: deltaCall.Function,
				}
			} else if len(toolCallsMap) > 0 {
				lastIdx := len(toolCallsMap) - 1
				if toolCall, exists := toolCallsMap[lastIdx]; exists {
					toolCall.Function.Arguments += deltaCall.Function.Arguments
				}
			}
		}

		if chosen.FinishReason == "stop" || chosen.FinishReason == "tool_calls" {
			var accumulated []openAIToolCall
			for i := 0; i < len(toolCallsMap); i++ {
				if toolCall, exists := toolCallsMap[i]; exists {
					accumulated = append(accumulated, *toolCall)
				}
			}

			if len(accumulated) > 0 {
				toolCalls, err := parseToolCalls(accumulated)
				if err != nil {
					return fmt.Errorf("failed to parse streamed tool calls: %w", err)
				}
				for i := range toolCalls {
					outputCh <- StreamChunk{
						Type:     "tool_call",
						ToolCall: &toolCalls[i],
					}
				}
			}
			break
		}
	}

	outputCh <- StreamChunk{
		Type:   "done",
		Tokens: totalTokens,
	}

	return nil
}
