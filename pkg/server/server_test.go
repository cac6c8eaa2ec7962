package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamh-ai/teamh/pkg/checkpoint"
	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/graph"
	"github.com/teamh-ai/teamh/pkg/llms"
	"github.com/teamh-ai/teamh/pkg/protocol"
	"github.com/teamh-ai/teamh/pkg/team"
	"github.com/teamh-ai/teamh/pkg/tools"
)

// stubProvider replays canned turns and records the last request so tests
// can inspect what the model was shown.
type stubProvider struct {
	turns        []stubTurn
	structured   []string
	streamCalls  int
	structCalls  int
	lastMessages []protocol.Message
}

type stubTurn struct {
	text      string
	toolCalls []protocol.ToolCall
}

func (p *stubProvider) Generate(ctx context.Context, messages []protocol.Message, defs []llms.ToolDefinition) (string, []protocol.ToolCall, int, error) {
	return "", nil, 0, errors.New("not scripted")
}

func (p *stubProvider) GenerateStreaming(ctx context.Context, messages []protocol.Message, defs []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	if p.streamCalls >= len(p.turns) {
		return nil, errors.New("no turns left")
	}
	p.lastMessages = messages
	turn := p.turns[p.streamCalls]
	p.streamCalls++

	ch := make(chan llms.StreamChunk, len(turn.toolCalls)+2)
	if turn.text != "" {
		ch <- llms.StreamChunk{Type: "text", Text: turn.text}
	}
	for i := range turn.toolCalls {
		call := turn.toolCalls[i]
		ch <- llms.StreamChunk{Type: "tool_call", ToolCall: &call}
	}
	ch <- llms.StreamChunk{Type: "done"}
	close(ch)
	return ch, nil
}

func (p *stubProvider) GenerateStructured(ctx context.Context, messages []protocol.Message, cfg *llms.StructuredOutputConfig) (string, int, error) {
	if p.structCalls >= len(p.structured) {
		return "", 0, errors.New("no structured responses left")
	}
	text := p.structured[p.structCalls]
	p.structCalls++
	return text, 0, nil
}

func (p *stubProvider) GetModelName() string { return "stub-model" }
func (p *stubProvider) Close() error         { return nil }

// gateTool requires approval and records whether it ran.
type gateTool struct {
	ran int
}

func (t *gateTool) GetName() string        { return "shutdown_mini_pc" }
func (t *gateTool) GetDescription() string { return "shuts down the mini pc" }
func (t *gateTool) GetInfo() tools.ToolInfo {
	return tools.ToolInfo{Name: t.GetName(), Description: t.GetDescription()}
}
func (t *gateTool) RequiresApproval() bool { return true }
func (t *gateTool) Execute(ctx context.Context, args map[string]interface{}) (tools.ToolResult, error) {
	t.ran++
	return tools.ToolResult{Success: true, Content: "powered off"}, nil
}

func newTestServer(t *testing.T, routerLLM, agentLLM *stubProvider, injectUserID bool, extraTools ...tools.Tool) (*Server, *httptest.Server) {
	t.Helper()

	registry := tools.NewToolRegistry()
	for _, tool := range extraTools {
		require.NoError(t, registry.RegisterTool(tool))
	}

	node := graph.NewAgentNode(graph.NodeConfig{
		ID:           "i",
		Name:         "Manager I",
		SystemPrompt: "You are manager i.",
		Provider:     agentLLM,
		Tools:        registry,
		InjectUserID: injectUserID,
	})

	router := graph.NewRouter(routerLLM, "route", []string{"i"}, "i")
	executor := graph.NewExecutor(router, map[string]*graph.AgentNode{"i": node}, checkpoint.NewMemoryStore(0), 5)

	cfg := &config.Config{}
	cfg.SetDefaults()

	srv := NewServer(cfg, &team.Team{Executor: executor, DefaultUserID: "default_user"}, "test")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postSSE(t *testing.T, url string, body interface{}) []graph.Event {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []graph.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event graph.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func eventTypes(events []graph.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{}, &stubProvider{}, false)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "teamh", health.Service)
	assert.True(t, health.AgentInitialized)
}

func TestChatStream(t *testing.T) {
	routerLLM := &stubProvider{structured: []string{`{"next_agent": "i", "reason": "home"}`}}
	agentLLM := &stubProvider{turns: []stubTurn{{text: "Lights are on."}}}
	_, ts := newTestServer(t, routerLLM, agentLLM, false)

	events := postSSE(t, ts.URL+"/chat/stream", map[string]string{
		"message":   "turn on the lights",
		"thread_id": "th1",
	})

	assert.Equal(t, []string{
		graph.EventRouterDecision,
		graph.EventAgentStart,
		graph.EventNodeStart,
		graph.EventToken,
		graph.EventLLMEnd,
		graph.EventNodeEnd,
		graph.EventDone,
	}, eventTypes(events))
}

func TestChatStreamValidation(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{}, &stubProvider{}, false)

	for _, body := range []map[string]string{
		{"thread_id": "th1"},
		{"message": "hello"},
	} {
		payload, _ := json.Marshal(body)
		resp, err := http.Post(ts.URL+"/chat/stream", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestChatStreamDefaultsUserID(t *testing.T) {
	routerLLM := &stubProvider{structured: []string{`{"next_agent": "i", "reason": "home"}`}}
	agentLLM := &stubProvider{turns: []stubTurn{{text: "Noted."}}}
	_, ts := newTestServer(t, routerLLM, agentLLM, true)

	postSSE(t, ts.URL+"/chat/stream", map[string]string{
		"message":   "remember I like tea",
		"thread_id": "th1",
	})

	require.NotEmpty(t, agentLLM.lastMessages)
	last := agentLLM.lastMessages[len(agentLLM.lastMessages)-1]
	assert.True(t, strings.HasPrefix(last.Content, "[User ID: default_user] "), "got %q", last.Content)
}

func TestApprovalRoundTrip(t *testing.T) {
	gate := &gateTool{}
	routerLLM := &stubProvider{structured: []string{`{"next_agent": "i", "reason": "device"}`}}
	agentLLM := &stubProvider{turns: []stubTurn{
		{toolCalls: []protocol.ToolCall{{ID: "call_1", Name: "shutdown_mini_pc", Args: map[string]interface{}{}}}},
		{text: "Done, it is off."},
	}}
	_, ts := newTestServer(t, routerLLM, agentLLM, false, gate)

	events := postSSE(t, ts.URL+"/chat/stream", map[string]string{
		"message":   "shut down the mini pc",
		"thread_id": "th1",
	})

	var interrupt *graph.Event
	for i := range events {
		if events[i].Type == graph.EventInterrupt {
			interrupt = &events[i]
		}
	}
	require.NotNil(t, interrupt)
	require.NotNil(t, interrupt.Interrupt)
	assert.Zero(t, gate.ran)

	resp, err := http.Get(ts.URL + "/state/th1")
	require.NoError(t, err)
	var state graph.ThreadState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	resp.Body.Close()
	assert.Equal(t, "interrupted", state.Status)
	assert.True(t, state.HasInterrupt)

	resumeEvents := postSSE(t, ts.URL+"/chat/resume", map[string]interface{}{
		"thread_id": "th1",
		"decisions": []map[string]string{{"type": "approve"}},
	})
	assert.Equal(t, 1, gate.ran)
	assert.Equal(t, graph.EventDone, resumeEvents[len(resumeEvents)-1].Type)

	resp, err = http.Get(ts.URL + "/state/th1")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	resp.Body.Close()
	assert.Equal(t, "completed", state.Status)
}

func TestGetStateUnknownThread(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{}, &stubProvider{}, false)

	resp, err := http.Get(ts.URL + "/state/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResumeValidation(t *testing.T) {
	_, ts := newTestServer(t, &stubProvider{}, &stubProvider{}, false)

	payload, _ := json.Marshal(map[string]interface{}{"thread_id": "th1"})
	resp, err := http.Post(ts.URL+"/chat/resume", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
