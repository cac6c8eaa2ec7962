package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teamh-ai/teamh/pkg/llms"
	"github.com/teamh-ai/teamh/pkg/protocol"
	"github.com/teamh-ai/teamh/pkg/tools"
)

// NodeConfig assembles one agent node.
type NodeConfig struct {
	ID           string
	Name         string
	SystemPrompt string
	Provider     llms.Provider
	Tools        *tools.ToolRegistry

	// RecursionLimit caps LLM calls within one node invocation.
	RecursionLimit int

	// InjectUserID prefixes the last user message with the request's user
	// id when talking to the model. The memory manager needs this to scope
	// its storage operations.
	InjectUserID bool

	// MaxContextTokens trims the oldest history before each LLM call.
	// Zero disables trimming.
	MaxContextTokens int
}

// AgentNode runs one manager's bounded LLM/tool loop.
type AgentNode struct {
	id               string
	name             string
	systemPrompt     string
	provider         llms.Provider
	tools            *tools.ToolRegistry
	recursionLimit   int
	injectUserID     bool
	maxContextTokens int
	tokenCounter     *TokenCounter
}

func NewAgentNode(cfg NodeConfig) *AgentNode {
	limit := cfg.RecursionLimit
	if limit <= 0 {
		limit = 25
	}
	return &AgentNode{
		id:               cfg.ID,
		name:             cfg.Name,
		systemPrompt:     cfg.SystemPrompt,
		provider:         cfg.Provider,
		tools:            cfg.Tools,
		recursionLimit:   limit,
		injectUserID:     cfg.InjectUserID,
		maxContextTokens: cfg.MaxContextTokens,
		tokenCounter:     NewTokenCounter(cfg.Provider.GetModelName()),
	}
}

func (n *AgentNode) ID() string { return n.id }

// NodeResult carries the newly appended messages plus a pending interrupt
// when the node suspended for approval.
type NodeResult struct {
	Messages  []protocol.Message
	Interrupt *Interrupt
}

// Run executes the node's inner loop from the current log.
func (n *AgentNode) Run(ctx context.Context, state ConversationState, emitter Emitter) (NodeResult, error) {
	return n.loop(ctx, state, nil, emitter)
}

// Resume folds reviewed decisions into tool results and continues the
// inner loop. It is a cold start: everything it needs comes from the
// checkpointed state and the resolved actions.
func (n *AgentNode) Resume(ctx context.Context, state ConversationState, actions []ResolvedAction, emitter Emitter) (NodeResult, error) {
	var appended []protocol.Message
	for _, action := range actions {
		if !action.Execute {
			appended = append(appended, protocol.NewToolMessage(action.Call.ID, action.Call.Name, action.Refusal))
			continue
		}
		appended = append(appended, n.executeCall(ctx, action.Call, emitter))
	}
	return n.loop(ctx, state, appended, emitter)
}

// loop drives LLM turns until a terminal assistant message, a handoff, an
// approval suspension or the recursion limit.
func (n *AgentNode) loop(ctx context.Context, state ConversationState, appended []protocol.Message, emitter Emitter) (NodeResult, error) {
	toolDefs := n.toolDefinitions()

	for iteration := 0; iteration < n.recursionLimit; iteration++ {
		request := n.buildRequest(ctx, state.Messages, appended)

		assistant, err := n.streamTurn(ctx, request, toolDefs, emitter)
		if err != nil {
			return NodeResult{Messages: appended}, err
		}
		appended = append(appended, assistant)

		if !assistant.HasToolCalls() {
			return NodeResult{Messages: appended}, nil
		}

		// Approval gate: any flagged call suspends the whole batch that
		// needs review. Unflagged calls run first so their results are
		// already in the log when the thread resumes.
		var pending []protocol.ToolCall
		for _, call := range assistant.ToolCalls {
			if n.tools.RequiresApproval(call.Name) {
				pending = append(pending, call)
				continue
			}
			appended = append(appended, n.executeCall(ctx, call, emitter))
		}
		if len(pending) > 0 {
			return NodeResult{Messages: appended, Interrupt: NewInterrupt(pending)}, nil
		}

		// A handoff result ends this node's turn; the executor decides
		// where control goes next.
		if _, ok := DetectHandoff(appended, 0, allTargets); ok {
			return NodeResult{Messages: appended}, nil
		}
	}

	slog.Warn("Agent hit recursion limit", "agent", n.id, "limit", n.recursionLimit)
	return NodeResult{Messages: appended}, nil
}

// allTargets accepts any single-letter manager id when scanning a node's
// own new messages. The executor re-checks against the enabled set.
var allTargets = map[string]bool{}

func init() {
	for ch := 'a'; ch <= 'z'; ch++ {
		allTargets[string(ch)] = true
	}
}

// buildRequest assembles the provider message list: system prompt, trimmed
// history and the messages appended so far this turn.
func (n *AgentNode) buildRequest(ctx context.Context, history, appended []protocol.Message) []protocol.Message {
	trimmed := history
	if n.maxContextTokens > 0 {
		trimmed = n.tokenCounter.TrimToBudget(history, n.maxContextTokens)
	}

	request := make([]protocol.Message, 0, len(trimmed)+len(appended)+1)
	request = append(request, protocol.NewSystemMessage(n.systemPrompt))
	request = append(request, trimmed...)
	request = append(request, appended...)

	if n.injectUserID {
		if rc, ok := protocol.RunContextFrom(ctx); ok && rc.UserID != "" {
			if idx := protocol.LastUserIndex(request); idx >= 0 {
				tagged := request[idx]
				tagged.Content = fmt.Sprintf("[User ID: %s] %s", rc.UserID, tagged.Content)
				request[idx] = tagged
			}
		}
	}
	return request
}

// streamTurn runs one streaming LLM call, emitting token events, and
// returns the completed assistant message.
func (n *AgentNode) streamTurn(ctx context.Context, request []protocol.Message, toolDefs []llms.ToolDefinition, emitter Emitter) (protocol.Message, error) {
	stream, err := n.provider.GenerateStreaming(ctx, request, toolDefs)
	if err != nil {
		return protocol.Message{}, fmt.Errorf("agent %s: LLM call failed: %w", n.id, err)
	}

	var content string
	var toolCalls []protocol.ToolCall
	for chunk := range stream {
		switch chunk.Type {
		case "text":
			content += chunk.Text
			emitter.Emit(ctx, Event{
				Type:         EventToken,
				Content:      chunk.Text,
				CurrentAgent: n.id,
			})
		case "tool_call":
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
			}
		case "error":
			return protocol.Message{}, fmt.Errorf("agent %s: stream failed: %w", n.id, chunk.Error)
		}
	}

	emitter.Emit(ctx, Event{
		Type:        EventLLMEnd,
		Node:        n.id,
		FullMessage: content,
	})

	return protocol.NewAssistantMessage(content, toolCalls...), nil
}

// executeCall invokes one tool and converts any failure into a tool
// message so the model can see it and recover.
func (n *AgentNode) executeCall(ctx context.Context, call protocol.ToolCall, emitter Emitter) protocol.Message {
	emitter.Emit(ctx, Event{
		Type:      EventToolStart,
		Node:      n.id,
		ToolName:  call.Name,
		ToolInput: call.Args,
	})

	result, err := n.tools.ExecuteTool(ctx, call.Name, call.Args)
	content := result.Content
	if err != nil {
		content = fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	} else if !result.Success {
		content = fmt.Sprintf("Tool %s failed: %s", call.Name, result.Error)
	}

	emitter.Emit(ctx, Event{
		Type:       EventToolEnd,
		Node:       n.id,
		ToolName:   call.Name,
		ToolOutput: content,
	})

	return protocol.NewToolMessage(call.ID, call.Name, content)
}

// toolDefinitions renders the registry for the LLM function protocol.
func (n *AgentNode) toolDefinitions() []llms.ToolDefinition {
	infos := n.tools.ListTools()
	defs := make([]llms.ToolDefinition, 0, len(infos))
	for _, info := range infos {
		defs = append(defs, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.ParametersSchema(),
		})
	}
	return defs
}
