// Package protocol defines the conversation message model shared by the
// LLM providers, the graph runtime and the checkpoint store.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the assistant.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"arguments"`
}

// ArgsJSON renders the arguments as a JSON object string for the wire.
func (tc *ToolCall) ArgsJSON() string {
	if len(tc.Args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(tc.Args)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Message is one entry in the append-only conversation log.
// Exactly one role; tool calls only on assistant messages, ToolCallID and
// ToolName only on tool messages.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	Name       string     `json:"name,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text, CreatedAt: time.Now().UTC()}
}

func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, CreatedAt: time.Now().UTC()}
}

func NewAssistantMessage(text string, toolCalls ...ToolCall) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   text,
		ToolCalls: toolCalls,
		CreatedAt: time.Now().UTC(),
	}
}

// NewToolMessage records a tool result correlated back to its call.
func NewToolMessage(toolCallID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		CreatedAt:  time.Now().UTC(),
	}
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m *Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Validate enforces the role/field pairing rules.
func (m *Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser:
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return fmt.Errorf("%s message cannot carry tool fields", m.Role)
		}
	case RoleAssistant:
		if m.ToolCallID != "" {
			return fmt.Errorf("assistant message cannot carry tool_call_id")
		}
		for i, tc := range m.ToolCalls {
			if tc.ID == "" || tc.Name == "" {
				return fmt.Errorf("tool call %d missing id or name", i)
			}
		}
	case RoleTool:
		if m.ToolCallID == "" {
			return fmt.Errorf("tool message missing tool_call_id")
		}
	default:
		return fmt.Errorf("unknown role %q", m.Role)
	}
	return nil
}

// LastUserIndex returns the index of the most recent user message, or -1.
func LastUserIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// ToolResultsByCallID maps tool_call_id to its tool message within the slice.
func ToolResultsByCallID(messages []Message) map[string]*Message {
	results := make(map[string]*Message)
	for i := range messages {
		if messages[i].Role == RoleTool {
			results[messages[i].ToolCallID] = &messages[i]
		}
	}
	return results
}
