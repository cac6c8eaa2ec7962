package graph

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

// perMessageOverhead approximates the tokens the chat format spends on
// role and framing per message.
const perMessageOverhead = 4

// TokenCounter measures message token usage for context-window trimming.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter for the model, falling back to the
// cl100k_base encoding for models tiktoken does not know.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return &TokenCounter{}
		}
	}
	return &TokenCounter{encoding: enc}
}

// Count returns the token count of a text, approximating by bytes/4 when
// no encoding is available.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.encoding == nil {
		return len(text) / 4
	}
	return len(c.encoding.Encode(text, nil, nil))
}

func (c *TokenCounter) countMessage(msg protocol.Message) int {
	total := perMessageOverhead + c.Count(msg.Content)
	for _, tc := range msg.ToolCalls {
		total += c.Count(tc.Name) + c.Count(tc.ArgsJSON())
	}
	return total
}

// TrimToBudget drops the oldest messages until the rest fit the budget.
// The newest message is always kept, and a leading tool message is never
// left orphaned from its assistant call.
func (c *TokenCounter) TrimToBudget(messages []protocol.Message, budget int) []protocol.Message {
	if budget <= 0 || len(messages) == 0 {
		return messages
	}

	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		cost := c.countMessage(messages[i])
		if total+cost > budget && start < len(messages) {
			break
		}
		total += cost
		start = i
	}

	// Do not start the window on a tool result whose call was trimmed away.
	for start < len(messages)-1 && messages[start].Role == protocol.RoleTool {
		start++
	}
	return messages[start:]
}
