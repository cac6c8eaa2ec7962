package protocol

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{
			name: "valid user message",
			msg:  NewUserMessage("hello"),
		},
		{
			name: "valid assistant with tool calls",
			msg: NewAssistantMessage("", ToolCall{
				ID:   "call_1",
				Name: "search_web",
				Args: map[string]interface{}{"query": "weather"},
			}),
		},
		{
			name: "valid tool message",
			msg:  NewToolMessage("call_1", "search_web", "sunny"),
		},
		{
			name:    "user message with tool calls",
			msg:     Message{Role: RoleUser, ToolCalls: []ToolCall{{ID: "x", Name: "y"}}},
			wantErr: true,
		},
		{
			name:    "tool message without call id",
			msg:     Message{Role: RoleTool, Content: "result"},
			wantErr: true,
		},
		{
			name:    "assistant tool call missing name",
			msg:     Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1"}}},
			wantErr: true,
		},
		{
			name:    "unknown role",
			msg:     Message{Role: "narrator"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToolCallArgsJSON(t *testing.T) {
	tc := ToolCall{ID: "call_1", Name: "turn_on_light", Args: map[string]interface{}{"room": "bedroom"}}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(tc.ArgsJSON()), &decoded); err != nil {
		t.Fatalf("ArgsJSON produced invalid JSON: %v", err)
	}
	if decoded["room"] != "bedroom" {
		t.Errorf("expected room=bedroom, got %v", decoded["room"])
	}

	empty := ToolCall{ID: "call_2", Name: "noop"}
	if got := empty.ArgsJSON(); got != "{}" {
		t.Errorf("empty args should render as {}, got %s", got)
	}
}

func TestLastUserIndex(t *testing.T) {
	messages := []Message{
		NewUserMessage("first"),
		NewAssistantMessage("reply"),
		NewUserMessage("second"),
		NewAssistantMessage("reply again"),
	}
	if got := LastUserIndex(messages); got != 2 {
		t.Errorf("LastUserIndex = %d, want 2", got)
	}
	if got := LastUserIndex(nil); got != -1 {
		t.Errorf("LastUserIndex on empty = %d, want -1", got)
	}
}

func TestToolResultsByCallID(t *testing.T) {
	messages := []Message{
		NewAssistantMessage("", ToolCall{ID: "call_1", Name: "a"}, ToolCall{ID: "call_2", Name: "b"}),
		NewToolMessage("call_1", "a", "result a"),
		NewToolMessage("call_2", "b", "result b"),
	}
	results := ToolResultsByCallID(messages)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["call_2"].Content != "result b" {
		t.Errorf("wrong content for call_2: %s", results["call_2"].Content)
	}
}

func TestRunContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := RunContextFrom(ctx); ok {
		t.Fatal("empty context should not carry a run context")
	}

	rc := RunContext{UserID: "u1", ThreadID: "t1", SessionID: "s1"}
	ctx = WithRunContext(ctx, rc)

	got, ok := RunContextFrom(ctx)
	if !ok {
		t.Fatal("run context not found after WithRunContext")
	}
	if got != rc {
		t.Errorf("got %+v, want %+v", got, rc)
	}
}
