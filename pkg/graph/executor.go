package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teamh-ai/teamh/pkg/checkpoint"
	"github.com/teamh-ai/teamh/pkg/observability"
	"github.com/teamh-ai/teamh/pkg/protocol"
)

// pendingInterrupt is the checkpointed suspension record: the interrupt
// itself plus the agent that must resume it.
type pendingInterrupt struct {
	Agent     string     `json:"agent"`
	Interrupt *Interrupt `json:"interrupt"`
}

// Executor drives node transitions for a thread: router, agent nodes,
// handoff policy and a checkpoint after every transition.
type Executor struct {
	router      *Router
	nodes       map[string]*AgentNode
	store       checkpoint.Store
	locks       *checkpoint.ThreadLocks
	maxHandoffs int
	known       map[string]bool
}

func NewExecutor(router *Router, nodes map[string]*AgentNode, store checkpoint.Store, maxHandoffs int) *Executor {
	known := make(map[string]bool, len(nodes))
	for id := range nodes {
		known[id] = true
	}
	if maxHandoffs <= 0 {
		maxHandoffs = 5
	}
	return &Executor{
		router:      router,
		nodes:       nodes,
		store:       store,
		locks:       checkpoint.NewThreadLocks(),
		maxHandoffs: maxHandoffs,
		known:       known,
	}
}

// Run processes one user message on a thread, streaming events until the
// run completes, suspends for approval or fails.
func (e *Executor) Run(ctx context.Context, threadID, userMessage string, emitter Emitter) error {
	if err := e.locks.Acquire(ctx, threadID); err != nil {
		return err
	}
	defer e.locks.Release(threadID)

	state, pending, err := e.loadThread(ctx, threadID)
	if err != nil {
		return e.fail(ctx, emitter, err)
	}
	if pending != nil {
		return e.fail(ctx, emitter, fmt.Errorf("thread %s is suspended awaiting approval; resume it first", threadID))
	}

	// A new user request appends to the log and resets the handoff budget.
	state = Merge(state, StateUpdate{
		Messages:     []protocol.Message{protocol.NewUserMessage(userMessage)},
		HandoffCount: IntPtr(0),
		NextStep:     NextRouter,
	})
	state.RoutingReason = ""

	if err := e.save(ctx, threadID, state, nil); err != nil {
		return e.fail(ctx, emitter, err)
	}

	return e.drive(ctx, threadID, state, nil, emitter)
}

// Resume folds approval decisions into the suspended node and continues
// the thread from its checkpoint.
func (e *Executor) Resume(ctx context.Context, threadID string, decisions []Decision, emitter Emitter) error {
	if err := e.locks.Acquire(ctx, threadID); err != nil {
		return err
	}
	defer e.locks.Release(threadID)

	snap, err := e.store.Latest(ctx, threadID)
	if err != nil {
		return e.fail(ctx, emitter, fmt.Errorf("unknown thread %s: %w", threadID, err))
	}

	var state ConversationState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return e.fail(ctx, emitter, fmt.Errorf("corrupt checkpoint for thread %s: %w", threadID, err))
	}

	pending, err := decodeInterrupt(snap)
	if err != nil {
		return e.fail(ctx, emitter, err)
	}
	if pending == nil {
		return e.fail(ctx, emitter, fmt.Errorf("thread %s has no pending interrupt", threadID))
	}

	resolved, err := ResolveDecisions(pending.Interrupt, decisions)
	if err != nil {
		// Malformed decisions abort without touching state.
		return e.fail(ctx, emitter, err)
	}

	node, ok := e.nodes[pending.Agent]
	if !ok {
		return e.fail(ctx, emitter, fmt.Errorf("interrupted agent %s is not enabled", pending.Agent))
	}

	state.NextStep = node.ID()
	return e.drive(ctx, threadID, state, resolved, emitter)
}

// drive is the transition loop shared by Run and Resume. resumeActions is
// consumed by the first agent node invocation, after which the loop
// proceeds normally.
func (e *Executor) drive(ctx context.Context, threadID string, state ConversationState, resumeActions []ResolvedAction, emitter Emitter) error {
	startedAgent := ""

	for state.NextStep != NextEnd {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if state.NextStep == NextRouter {
			target, err := e.route(ctx, &state, emitter)
			if err != nil {
				return e.fail(ctx, emitter, err)
			}
			state.NextStep = target
			continue
		}

		node, ok := e.nodes[state.NextStep]
		if !ok {
			return e.fail(ctx, emitter, fmt.Errorf("unknown node %q", state.NextStep))
		}

		if startedAgent == "" {
			emitter.Emit(ctx, Event{Type: EventAgentStart, CurrentAgent: node.ID()})
		} else if startedAgent != node.ID() {
			emitter.Emit(ctx, Event{Type: EventAgentChange, CurrentAgent: node.ID()})
		}
		startedAgent = node.ID()

		suspended, err := e.runNode(ctx, threadID, node, &state, resumeActions, emitter)
		resumeActions = nil
		if err != nil {
			return e.fail(ctx, emitter, err)
		}
		if suspended {
			return nil
		}
	}

	emitter.Emit(ctx, Event{
		Type:          EventDone,
		CurrentAgent:  state.CurrentAgent,
		MessagesCount: len(state.Messages),
		HandoffCount:  IntPtr(state.HandoffCount),
	})
	return nil
}

// route resolves the next agent, emitting router_decision only when the
// router actually classified (sticky reuse stays silent).
func (e *Executor) route(ctx context.Context, state *ConversationState, emitter Emitter) (string, error) {
	target, reason, reused, err := e.router.Route(ctx, *state)
	if err != nil {
		return "", err
	}
	state.RoutingReason = reason

	if !reused {
		emitter.Emit(ctx, Event{
			Type:        EventRouterDecision,
			TargetAgent: target,
			Reason:      reason,
		})
	}
	return target, nil
}

// runNode invokes one agent node, applies the reducer, decides the next
// step and persists the checkpoint. Returns true when the node suspended.
func (e *Executor) runNode(ctx context.Context, threadID string, node *AgentNode, state *ConversationState, resumeActions []ResolvedAction, emitter Emitter) (bool, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("teamh.graph")
	ctx, span := tracer.Start(ctx, "graph.node",
		trace.WithAttributes(
			attribute.String("node.id", node.ID()),
			attribute.String("thread.id", threadID),
		),
	)
	defer span.End()

	emitter.Emit(ctx, Event{Type: EventNodeStart, Node: node.ID()})
	prevCount := len(state.Messages)

	var result NodeResult
	var err error
	if resumeActions != nil {
		result, err = node.Resume(ctx, *state, resumeActions, emitter)
	} else {
		result, err = node.Run(ctx, *state, emitter)
	}

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordNodeTransition(ctx, node.ID(), time.Since(startTime), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetStatus(codes.Ok, "")

	*state = Merge(*state, StateUpdate{
		Messages:     result.Messages,
		CurrentAgent: node.ID(),
	})

	if result.Interrupt != nil {
		pending := &pendingInterrupt{Agent: node.ID(), Interrupt: result.Interrupt}
		if err := e.save(ctx, threadID, *state, pending); err != nil {
			return false, err
		}
		emitter.Emit(ctx, Event{
			Type:      EventInterrupt,
			ThreadID:  threadID,
			Interrupt: result.Interrupt,
		})
		emitter.Emit(ctx, Event{Type: EventNodeEnd, Node: node.ID()})
		return true, nil
	}

	target, found := DetectHandoff(state.Messages, prevCount, e.known)
	switch {
	case found && state.HandoffCount >= e.maxHandoffs:
		slog.Warn("Handoff limit reached, forcing termination",
			"thread_id", threadID,
			"from", node.ID(),
			"suppressed_target", target,
			"handoff_count", state.HandoffCount)
		emitter.Emit(ctx, Event{
			Type:   EventDiagnostic,
			Node:   node.ID(),
			Reason: fmt.Sprintf("handoff limit %d reached, staying with %s", e.maxHandoffs, node.ID()),
		})
		state.NextStep = NextEnd
		state.LastActiveManager = node.ID()
	case found:
		state.HandoffCount++
		state.NextStep = target
		state.LastActiveManager = target
	default:
		state.NextStep = NextEnd
		state.LastActiveManager = node.ID()
	}

	if err := e.save(ctx, threadID, *state, nil); err != nil {
		return false, err
	}
	emitter.Emit(ctx, Event{Type: EventNodeEnd, Node: node.ID()})
	return false, nil
}

// ThreadState is the inspection view served by the state endpoint.
type ThreadState struct {
	Status       string            `json:"status"`
	ThreadID     string            `json:"thread_id"`
	State        ConversationState `json:"state"`
	NextNodes    []string          `json:"next_nodes"`
	HasInterrupt bool              `json:"has_interrupt"`
	Interrupts   []*Interrupt      `json:"interrupts"`
}

// GetState reads the latest checkpoint for inspection.
func (e *Executor) GetState(ctx context.Context, threadID string) (*ThreadState, error) {
	snap, err := e.store.Latest(ctx, threadID)
	if err != nil {
		return nil, err
	}

	var state ConversationState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("corrupt checkpoint for thread %s: %w", threadID, err)
	}

	out := &ThreadState{
		ThreadID:   threadID,
		State:      state,
		NextNodes:  []string{},
		Interrupts: []*Interrupt{},
	}

	pending, err := decodeInterrupt(snap)
	if err != nil {
		return nil, err
	}

	switch {
	case pending != nil:
		out.Status = "interrupted"
		out.HasInterrupt = true
		out.Interrupts = append(out.Interrupts, pending.Interrupt)
		out.NextNodes = append(out.NextNodes, pending.Agent)
	case state.NextStep == NextEnd || state.NextStep == "":
		out.Status = "completed"
	default:
		out.Status = "in_progress"
		out.NextNodes = append(out.NextNodes, state.NextStep)
	}
	return out, nil
}

func (e *Executor) loadThread(ctx context.Context, threadID string) (ConversationState, *pendingInterrupt, error) {
	snap, err := e.store.Latest(ctx, threadID)
	if err == checkpoint.ErrNotFound {
		return ConversationState{}, nil, nil
	}
	if err != nil {
		return ConversationState{}, nil, err
	}

	var state ConversationState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return ConversationState{}, nil, fmt.Errorf("corrupt checkpoint for thread %s: %w", threadID, err)
	}

	pending, err := decodeInterrupt(snap)
	if err != nil {
		return ConversationState{}, nil, err
	}
	return state, pending, nil
}

func decodeInterrupt(snap *checkpoint.Snapshot) (*pendingInterrupt, error) {
	if !snap.HasInterrupt() {
		return nil, nil
	}
	var pending pendingInterrupt
	if err := json.Unmarshal(snap.Interrupt, &pending); err != nil {
		return nil, fmt.Errorf("corrupt interrupt record: %w", err)
	}
	if pending.Interrupt == nil {
		return nil, nil
	}
	return &pending, nil
}

// save persists one checkpoint transition.
func (e *Executor) save(ctx context.Context, threadID string, state ConversationState, pending *pendingInterrupt) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	var interruptJSON json.RawMessage
	if pending != nil {
		interruptJSON, err = json.Marshal(pending)
		if err != nil {
			return fmt.Errorf("failed to serialize interrupt: %w", err)
		}
	}

	if _, err := e.store.Save(ctx, threadID, stateJSON, interruptJSON); err != nil {
		return fmt.Errorf("checkpoint save failed: %w", err)
	}
	return nil
}

// fail surfaces an error to the stream and returns it.
func (e *Executor) fail(ctx context.Context, emitter Emitter, err error) error {
	emitter.Emit(ctx, Event{
		Type:  EventError,
		Error: err.Error(),
	})
	return err
}
