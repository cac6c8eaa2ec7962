package graph

import "context"

// Event types surfaced to SSE clients.
const (
	EventAgentStart     = "agent_start"
	EventAgentChange    = "agent_change"
	EventRouterDecision = "router_decision"
	EventToken          = "token"
	EventLLMEnd         = "llm_end"
	EventToolStart      = "tool_start"
	EventToolEnd        = "tool_end"
	EventNodeStart      = "node_start"
	EventNodeEnd        = "node_end"
	EventInterrupt      = "interrupt"
	EventDiagnostic     = "diagnostic"
	EventDone           = "done"
	EventError          = "error"
)

// Event is the normalized stream unit. Only the fields relevant to the
// event type are populated.
type Event struct {
	Type string `json:"type"`

	CurrentAgent string `json:"current_agent,omitempty"`
	Content      string `json:"content,omitempty"`
	Node         string `json:"node,omitempty"`

	TargetAgent string `json:"target_agent,omitempty"`
	Reason      string `json:"reason,omitempty"`

	ToolName   string                 `json:"tool_name,omitempty"`
	ToolInput  map[string]interface{} `json:"tool_input,omitempty"`
	ToolOutput string                 `json:"tool_output,omitempty"`

	FullMessage string `json:"full_message,omitempty"`

	ThreadID  string     `json:"thread_id,omitempty"`
	Interrupt *Interrupt `json:"interrupt,omitempty"`

	MessagesCount int  `json:"messages_count,omitempty"`
	HandoffCount  *int `json:"handoff_count,omitempty"`

	Error     string `json:"error,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Emitter receives events in execution order. Implementations must be safe
// to call from the single executor goroutine of a request.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// ChannelEmitter bridges events onto a channel until the context ends.
type ChannelEmitter struct {
	ch chan Event
}

func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{ch: make(chan Event, buffer)}
}

func (e *ChannelEmitter) Emit(ctx context.Context, event Event) {
	select {
	case e.ch <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the stream.
func (e *ChannelEmitter) Events() <-chan Event {
	return e.ch
}

// Close signals that no further events will be emitted.
func (e *ChannelEmitter) Close() {
	close(e.ch)
}

// NopEmitter discards events. Used by tests and non-streaming callers.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, event Event) {}
