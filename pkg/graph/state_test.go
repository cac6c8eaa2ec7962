package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

func TestMergeAppendsMessages(t *testing.T) {
	state := ConversationState{
		Messages: []protocol.Message{protocol.NewUserMessage("hi")},
	}

	merged := Merge(state, StateUpdate{
		Messages:     []protocol.Message{protocol.NewAssistantMessage("hello")},
		CurrentAgent: "i",
	})

	assert.Len(t, merged.Messages, 2)
	assert.Equal(t, "i", merged.CurrentAgent)

	// The input state is untouched.
	assert.Len(t, state.Messages, 1)
	assert.Empty(t, state.CurrentAgent)
}

func TestMergeScalarOverwriteOnlyWhenSet(t *testing.T) {
	state := ConversationState{
		CurrentAgent:      "i",
		LastActiveManager: "i",
		RoutingReason:     "initial",
		HandoffCount:      2,
	}

	merged := Merge(state, StateUpdate{CurrentAgent: "s"})
	assert.Equal(t, "s", merged.CurrentAgent)
	assert.Equal(t, "i", merged.LastActiveManager)
	assert.Equal(t, "initial", merged.RoutingReason)
	assert.Equal(t, 2, merged.HandoffCount)

	merged = Merge(merged, StateUpdate{HandoffCount: IntPtr(0)})
	assert.Equal(t, 0, merged.HandoffCount)
}

func TestMergeAssociativity(t *testing.T) {
	state := ConversationState{Messages: []protocol.Message{protocol.NewUserMessage("a")}}
	p1 := StateUpdate{Messages: []protocol.Message{protocol.NewAssistantMessage("b")}, CurrentAgent: "i"}
	p2 := StateUpdate{Messages: []protocol.Message{protocol.NewAssistantMessage("c")}, CurrentAgent: "s"}

	left := Merge(Merge(state, p1), p2)

	combined := StateUpdate{
		Messages:     append(append([]protocol.Message{}, p1.Messages...), p2.Messages...),
		CurrentAgent: p2.CurrentAgent,
	}
	right := Merge(state, combined)

	assert.Equal(t, right, left)
}
