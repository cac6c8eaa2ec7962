// Package llms provides the chat model abstraction and the OpenAI-compatible
// provider used for both agents and the router.
package llms

import (
	"context"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

// ToolDefinition describes a callable tool in the LLM function protocol.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// StreamChunk is one unit of a streaming generation.
// Type is one of "text", "tool_call", "done", "error".
type StreamChunk struct {
	Type     string
	Text     string
	ToolCall *protocol.ToolCall
	Tokens   int
	Error    error
}

// StructuredOutputConfig requests schema-constrained JSON output.
type StructuredOutputConfig struct {
	Format string      `json:"format,omitempty" yaml:"format,omitempty"`
	Schema interface{} `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Provider is a chat completion model.
type Provider interface {
	Generate(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (string, []protocol.ToolCall, int, error)
	GenerateStreaming(ctx context.Context, messages []protocol.Message, tools []ToolDefinition) (<-chan StreamChunk, error)
	GenerateStructured(ctx context.Context, messages []protocol.Message, structConfig *StructuredOutputConfig) (string, int, error)
	GetModelName() string
	Close() error
}
