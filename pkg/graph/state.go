package graph

import (
	"github.com/teamh-ai/teamh/pkg/protocol"
)

// Next step sentinels. Anything else is a manager id.
const (
	NextRouter = "ROUTER"
	NextEnd    = "END"
)

// ConversationState is the single source of truth for one thread: the
// append-only message log plus a handful of scalar routing fields.
type ConversationState struct {
	Messages          []protocol.Message `json:"messages"`
	CurrentAgent      string             `json:"current_agent,omitempty"`
	LastActiveManager string             `json:"last_active_manager,omitempty"`
	RoutingReason     string             `json:"routing_reason,omitempty"`
	HandoffCount      int                `json:"handoff_count"`
	NextStep          string             `json:"next_step,omitempty"`
}

// StateUpdate is the partial state a node returns. Messages are appended by
// the reducer; scalar fields overwrite only when set.
type StateUpdate struct {
	Messages          []protocol.Message
	CurrentAgent      string
	LastActiveManager string
	RoutingReason     string
	HandoffCount      *int
	NextStep          string
}

// Merge applies the reducer rule: message lists concatenate, scalars
// overwrite when present. It never mutates its inputs.
func Merge(state ConversationState, update StateUpdate) ConversationState {
	out := state
	if len(update.Messages) > 0 {
		merged := make([]protocol.Message, 0, len(state.Messages)+len(update.Messages))
		merged = append(merged, state.Messages...)
		merged = append(merged, update.Messages...)
		out.Messages = merged
	}
	if update.CurrentAgent != "" {
		out.CurrentAgent = update.CurrentAgent
	}
	if update.LastActiveManager != "" {
		out.LastActiveManager = update.LastActiveManager
	}
	if update.RoutingReason != "" {
		out.RoutingReason = update.RoutingReason
	}
	if update.HandoffCount != nil {
		out.HandoffCount = *update.HandoffCount
	}
	if update.NextStep != "" {
		out.NextStep = update.NextStep
	}
	return out
}

// IntPtr is a convenience for StateUpdate.HandoffCount.
func IntPtr(n int) *int {
	return &n
}
