package graph

import (
	"fmt"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

// Decision kinds a human reviewer can return for a pending action.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionEdit    = "edit"
)

// ActionRequest echoes one pending tool call awaiting review.
type ActionRequest struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Args        map[string]interface{} `json:"args"`
	Description string                 `json:"description"`
}

// ReviewConfig lists the decision kinds allowed for one action request.
type ReviewConfig struct {
	AllowedDecisions []string `json:"allowed_decisions"`
}

// Interrupt suspends a thread until the client resumes with one decision
// per action request, in the same order.
type Interrupt struct {
	Reason         string          `json:"reason"`
	ActionRequests []ActionRequest `json:"action_requests"`
	ReviewConfigs  []ReviewConfig  `json:"review_configs"`
}

// EditedAction is the replacement call supplied with an edit decision.
type EditedAction struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Decision is the reviewer's verdict for one action request.
type Decision struct {
	Type         string        `json:"type"`
	Message      string        `json:"message,omitempty"`
	EditedAction *EditedAction `json:"edited_action,omitempty"`
}

// NewInterrupt builds the interrupt record for a batch of pending calls.
func NewInterrupt(calls []protocol.ToolCall) *Interrupt {
	requests := make([]ActionRequest, 0, len(calls))
	configs := make([]ReviewConfig, 0, len(calls))
	for _, call := range calls {
		requests = append(requests, ActionRequest{
			ID:          call.ID,
			Name:        call.Name,
			Args:        call.Args,
			Description: fmt.Sprintf("Tool %s requires approval before it runs", call.Name),
		})
		configs = append(configs, ReviewConfig{
			AllowedDecisions: []string{DecisionApprove, DecisionReject, DecisionEdit},
		})
	}
	return &Interrupt{
		Reason:         "approval_required",
		ActionRequests: requests,
		ReviewConfigs:  configs,
	}
}

// ResolvedAction is the outcome of folding one decision into its pending
// call: either a call to execute (possibly edited) or a synthesized
// refusal message.
type ResolvedAction struct {
	Call    protocol.ToolCall
	Execute bool
	Refusal string
}

// ResolveDecisions validates the decision list against the interrupt and
// pairs each action request with its verdict. The list must match 1:1 and
// in order; any mismatch fails without touching state.
func ResolveDecisions(interrupt *Interrupt, decisions []Decision) ([]ResolvedAction, error) {
	if interrupt == nil || len(interrupt.ActionRequests) == 0 {
		return nil, fmt.Errorf("no pending interrupt to resolve")
	}
	if len(decisions) != len(interrupt.ActionRequests) {
		return nil, fmt.Errorf("expected %d decisions, got %d", len(interrupt.ActionRequests), len(decisions))
	}

	out := make([]ResolvedAction, 0, len(decisions))
	for i, decision := range decisions {
		request := interrupt.ActionRequests[i]
		call := protocol.ToolCall{ID: request.ID, Name: request.Name, Args: request.Args}

		switch decision.Type {
		case DecisionApprove:
			out = append(out, ResolvedAction{Call: call, Execute: true})
		case DecisionEdit:
			if decision.EditedAction == nil || decision.EditedAction.Name == "" {
				return nil, fmt.Errorf("decision %d: edit requires an edited_action with a name", i)
			}
			call.Name = decision.EditedAction.Name
			call.Args = decision.EditedAction.Args
			out = append(out, ResolvedAction{Call: call, Execute: true})
		case DecisionReject:
			refusal := decision.Message
			if refusal == "" {
				refusal = fmt.Sprintf("User rejected the %s call", request.Name)
			}
			out = append(out, ResolvedAction{Call: call, Refusal: refusal})
		default:
			return nil, fmt.Errorf("decision %d: unknown type %q", i, decision.Type)
		}
	}
	return out, nil
}
