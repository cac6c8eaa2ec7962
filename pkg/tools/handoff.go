package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

// HandoffTool lets an agent delegate the conversation to another manager.
// Its result carries the delegation marker the executor scans for.
type HandoffTool struct {
	target      string
	description string
}

func NewHandoffTool(target, targetDescription string) *HandoffTool {
	return &HandoffTool{
		target:      strings.ToLower(target),
		description: targetDescription,
	}
}

func (t *HandoffTool) GetName() string {
	return "handoff_to_" + t.target
}

func (t *HandoffTool) GetDescription() string {
	return fmt.Sprintf("Hand the conversation off to manager %s (%s). Use when the request is outside your own responsibilities.", strings.ToUpper(t.target), t.description)
}

func (t *HandoffTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "reason",
				Type:        "string",
				Description: "Short explanation of why the conversation is being handed off",
				Required:    true,
			},
		},
	}
}

func (t *HandoffTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	reason := optionalString(args, "reason")
	if reason == "" {
		reason = "delegating to " + strings.ToUpper(t.target)
	}

	return ToolResult{
		Success: true,
		Content: protocol.HandoffSentinel(t.target, reason),
	}, nil
}

// NewHandoffTools builds one handoff tool per reachable manager, skipping
// the agent itself.
func NewHandoffTools(self string, managers map[string]string) []Tool {
	out := make([]Tool, 0, len(managers))
	for target, description := range managers {
		if strings.EqualFold(target, self) {
			continue
		}
		out = append(out, NewHandoffTool(target, description))
	}
	return out
}
