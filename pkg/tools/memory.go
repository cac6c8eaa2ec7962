package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teamh-ai/teamh/pkg/memory"
	"github.com/teamh-ai/teamh/pkg/protocol"
)

// userIDFrom resolves the user the memory operation is scoped to. The
// gateway always attaches a run context, so the fallback only covers
// direct programmatic use.
func userIDFrom(ctx context.Context) string {
	if rc, ok := protocol.RunContextFrom(ctx); ok && rc.UserID != "" {
		return rc.UserID
	}
	return "default_user"
}

// addMemoryTool stores a new fact about the user. Writes to long-term
// memory are approved by the user first.
type addMemoryTool struct {
	service *memory.Service
}

func NewAddMemoryTool(service *memory.Service) Tool { return &addMemoryTool{service: service} }

func (t *addMemoryTool) GetName() string { return "add_memory" }

func (t *addMemoryTool) GetDescription() string {
	return "Store a new fact about the user in long-term memory"
}

func (t *addMemoryTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "content", Type: "string", Description: "The fact to remember, phrased as a standalone sentence", Required: true},
		},
	}
}

func (t *addMemoryTool) RequiresApproval() bool { return true }

func (t *addMemoryTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	content, err := requireString(args, "content")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	id, err := t.service.Add(ctx, userIDFrom(ctx), content)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: fmt.Sprintf("Memory stored with id %s", id)}, nil
}

// searchMemoriesTool retrieves facts relevant to a query.
type searchMemoriesTool struct {
	service *memory.Service
}

func NewSearchMemoriesTool(service *memory.Service) Tool {
	return &searchMemoriesTool{service: service}
}

func (t *searchMemoriesTool) GetName() string { return "search_memories" }

func (t *searchMemoriesTool) GetDescription() string {
	return "Search the user's long-term memory for relevant facts"
}

func (t *searchMemoriesTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "What to look for", Required: true},
		},
	}
}

func (t *searchMemoriesTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	query, err := requireString(args, "query")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	memories, err := t.service.Search(ctx, userIDFrom(ctx), query)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: formatMemories(memories)}, nil
}

// getAllMemoriesTool lists everything stored for the user.
type getAllMemoriesTool struct {
	service *memory.Service
}

func NewGetAllMemoriesTool(service *memory.Service) Tool {
	return &getAllMemoriesTool{service: service}
}

func (t *getAllMemoriesTool) GetName() string { return "get_all_memories" }

func (t *getAllMemoriesTool) GetDescription() string {
	return "List every fact stored about the user"
}

func (t *getAllMemoriesTool) GetInfo() ToolInfo {
	return ToolInfo{Name: t.GetName(), Description: t.GetDescription()}
}

func (t *getAllMemoriesTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	memories, err := t.service.GetAll(ctx, userIDFrom(ctx))
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: formatMemories(memories)}, nil
}

// updateMemoryTool rewrites an existing fact, subject to approval.
type updateMemoryTool struct {
	service *memory.Service
}

func NewUpdateMemoryTool(service *memory.Service) Tool { return &updateMemoryTool{service: service} }

func (t *updateMemoryTool) GetName() string { return "update_memory" }

func (t *updateMemoryTool) GetDescription() string {
	return "Replace the content of an existing memory"
}

func (t *updateMemoryTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "memory_id", Type: "string", Description: "Id of the memory to update", Required: true},
			{Name: "content", Type: "string", Description: "The corrected fact", Required: true},
		},
	}
}

func (t *updateMemoryTool) RequiresApproval() bool { return true }

func (t *updateMemoryTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	id, err := requireString(args, "memory_id")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	content, err := requireString(args, "content")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	if err := t.service.Update(ctx, userIDFrom(ctx), id, content); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "Memory " + id + " updated"}, nil
}

// deleteMemoryTool removes one fact, subject to approval.
type deleteMemoryTool struct {
	service *memory.Service
}

func NewDeleteMemoryTool(service *memory.Service) Tool { return &deleteMemoryTool{service: service} }

func (t *deleteMemoryTool) GetName() string { return "delete_memory" }

func (t *deleteMemoryTool) GetDescription() string {
	return "Delete a single memory by id"
}

func (t *deleteMemoryTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "memory_id", Type: "string", Description: "Id of the memory to delete", Required: true},
		},
	}
}

func (t *deleteMemoryTool) RequiresApproval() bool { return true }

func (t *deleteMemoryTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	id, err := requireString(args, "memory_id")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	if err := t.service.Delete(ctx, userIDFrom(ctx), id); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "Memory " + id + " deleted"}, nil
}

// deleteAllMemoriesTool wipes the user's memory, subject to approval.
type deleteAllMemoriesTool struct {
	service *memory.Service
}

func NewDeleteAllMemoriesTool(service *memory.Service) Tool {
	return &deleteAllMemoriesTool{service: service}
}

func (t *deleteAllMemoriesTool) GetName() string { return "delete_all_memories" }

func (t *deleteAllMemoriesTool) GetDescription() string {
	return "Delete every memory stored about the user"
}

func (t *deleteAllMemoriesTool) GetInfo() ToolInfo {
	return ToolInfo{Name: t.GetName(), Description: t.GetDescription()}
}

func (t *deleteAllMemoriesTool) RequiresApproval() bool { return true }

func (t *deleteAllMemoriesTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	if err := t.service.DeleteAll(ctx, userIDFrom(ctx)); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "All memories deleted"}, nil
}

func formatMemories(memories []memory.Memory) string {
	if len(memories) == 0 {
		return "No memories found"
	}
	data, err := json.MarshalIndent(memories, "", "  ")
	if err != nil {
		return fmt.Sprintf("failed to format memories: %v", err)
	}
	return string(data)
}

// NewMemoryTools builds the memory manager's tool set.
func NewMemoryTools(service *memory.Service) []Tool {
	return []Tool{
		NewAddMemoryTool(service),
		NewSearchMemoriesTool(service),
		NewGetAllMemoriesTool(service),
		NewUpdateMemoryTool(service),
		NewDeleteMemoryTool(service),
		NewDeleteAllMemoriesTool(service),
	}
}
