package tools

import (
	"context"
	"time"
)

// Tool is a capability an agent can invoke during its tool loop.
type Tool interface {
	GetInfo() ToolInfo
	GetName() string
	GetDescription() string
	Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error)
}

// Approvable marks tools whose execution must be approved by a human
// before it runs. Tools that do not implement it never require approval.
type Approvable interface {
	RequiresApproval() bool
}

type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// ParametersSchema renders the parameter list as a JSON schema object,
// the shape the chat completions tools field expects.
func (i ToolInfo) ParametersSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(i.Parameters))
	required := make([]string, 0, len(i.Parameters))

	for _, p := range i.Parameters {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type ToolResult struct {
	Success       bool                   `json:"success"`
	Content       string                 `json:"content"`
	Error         string                 `json:"error,omitempty"`
	ToolName      string                 `json:"tool_name,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}
