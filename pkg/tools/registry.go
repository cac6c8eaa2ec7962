package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teamh-ai/teamh/pkg/observability"
	"github.com/teamh-ai/teamh/pkg/registry"
)

type ToolRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *ToolRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func NewToolRegistryError(component, action, message string, err error) *ToolRegistryError {
	return &ToolRegistryError{
		Component: component,
		Action:    action,
		Message:   message,
		Err:       err,
	}
}

// ToolRegistry holds the tools available to one agent.
type ToolRegistry struct {
	*registry.BaseRegistry[Tool]
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
	}
}

// RegisterTool adds a tool under its own name.
func (r *ToolRegistry) RegisterTool(tool Tool) error {
	name := tool.GetName()
	if name == "" {
		return NewToolRegistryError("ToolRegistry", "RegisterTool", "tool name cannot be empty", nil)
	}
	if err := r.Register(name, tool); err != nil {
		return NewToolRegistryError("ToolRegistry", "RegisterTool",
			fmt.Sprintf("failed to register tool %s", name), err)
	}
	return nil
}

func (r *ToolRegistry) GetTool(name string) (Tool, error) {
	tool, exists := r.Get(name)
	if !exists {
		return nil, NewToolRegistryError("ToolRegistry", "GetTool",
			fmt.Sprintf("tool %s not found", name), nil)
	}
	return tool, nil
}

func (r *ToolRegistry) ListTools() []ToolInfo {
	var infos []ToolInfo
	for _, tool := range r.List() {
		infos = append(infos, tool.GetInfo())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// RequiresApproval reports whether a tool must be approved before running.
// Unknown tools do not require approval; execution will fail on lookup anyway.
func (r *ToolRegistry) RequiresApproval(name string) bool {
	tool, exists := r.Get(name)
	if !exists {
		return false
	}
	if a, ok := tool.(Approvable); ok {
		return a.RequiresApproval()
	}
	return false
}

func (r *ToolRegistry) ExecuteTool(ctx context.Context, toolName string, args map[string]interface{}) (ToolResult, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("teamh.tools")
	ctx, span := tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
		),
	)
	defer span.End()

	tool, err := r.GetTool(toolName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")

		if metrics := observability.GetGlobalMetrics(); metrics != nil {
			metrics.RecordToolExecution(ctx, toolName, time.Since(startTime), err)
		}

		return ToolResult{
			Success:  false,
			Error:    err.Error(),
			ToolName: toolName,
		}, err
	}

	result, execErr := tool.Execute(ctx, args)
	duration := time.Since(startTime)
	result.ToolName = toolName
	result.ExecutionTime = duration

	var recordErr error
	if execErr != nil {
		recordErr = execErr
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
	} else if !result.Success {
		recordErr = fmt.Errorf("%s", result.Error)
		span.RecordError(recordErr)
		span.SetStatus(codes.Error, result.Error)
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordToolExecution(ctx, toolName, duration, recordErr)
	}

	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)

	return result, execErr
}
