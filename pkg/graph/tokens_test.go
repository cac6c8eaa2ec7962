package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

func TestTrimToBudgetKeepsNewest(t *testing.T) {
	counter := &TokenCounter{} // bytes/4 approximation keeps the math predictable

	messages := []protocol.Message{
		protocol.NewUserMessage(strings.Repeat("a", 400)),
		protocol.NewAssistantMessage(strings.Repeat("b", 400)),
		protocol.NewUserMessage("short question"),
		protocol.NewAssistantMessage("short answer"),
	}

	trimmed := counter.TrimToBudget(messages, 30)
	assert.Len(t, trimmed, 2)
	assert.Equal(t, "short question", trimmed[0].Content)
	assert.Equal(t, "short answer", trimmed[1].Content)
}

func TestTrimToBudgetAlwaysKeepsLastMessage(t *testing.T) {
	counter := &TokenCounter{}

	messages := []protocol.Message{
		protocol.NewUserMessage(strings.Repeat("x", 4000)),
	}

	trimmed := counter.TrimToBudget(messages, 10)
	assert.Len(t, trimmed, 1)
}

func TestTrimToBudgetNoOrphanToolMessage(t *testing.T) {
	counter := &TokenCounter{}

	call := protocol.ToolCall{ID: "call_1", Name: "search", Args: map[string]interface{}{
		"query": strings.Repeat("q", 200),
	}}
	messages := []protocol.Message{
		protocol.NewUserMessage("find things"),
		protocol.NewAssistantMessage("", call),
		protocol.NewToolMessage("call_1", "search", "lots of results"),
		protocol.NewAssistantMessage("here you go"),
	}

	// A budget that fits the tool result but not the assistant call that
	// produced it must drop both.
	trimmed := counter.TrimToBudget(messages, 20)
	assert.NotEqual(t, protocol.RoleTool, trimmed[0].Role)
}

func TestTrimToBudgetZeroDisablesTrimming(t *testing.T) {
	counter := &TokenCounter{}

	messages := []protocol.Message{
		protocol.NewUserMessage(strings.Repeat("a", 4000)),
		protocol.NewAssistantMessage(strings.Repeat("b", 4000)),
	}

	assert.Len(t, counter.TrimToBudget(messages, 0), 2)
}

func TestCountFallsBackWithoutEncoding(t *testing.T) {
	counter := &TokenCounter{}
	assert.Equal(t, 10, counter.Count(strings.Repeat("a", 40)))
}
