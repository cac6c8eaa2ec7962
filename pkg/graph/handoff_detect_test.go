package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

var testManagers = map[string]bool{"i": true, "m": true, "s": true, "t": true}

func TestDetectHandoffOnlyScansNewMessages(t *testing.T) {
	messages := []protocol.Message{
		protocol.NewUserMessage("turn on the lights"),
		protocol.NewToolMessage("call_1", "handoff_to_i", protocol.HandoffSentinel("i", "old handoff")),
		protocol.NewAssistantMessage("done"),
		protocol.NewUserMessage("thanks"),
		protocol.NewAssistantMessage("welcome"),
	}

	// The historical sentinel at index 1 is before prevCount and must be
	// ignored.
	target, found := DetectHandoff(messages, 3, testManagers)
	assert.False(t, found)
	assert.Empty(t, target)

	// Scanning from the start does find it.
	target, found = DetectHandoff(messages, 0, testManagers)
	assert.True(t, found)
	assert.Equal(t, "i", target)
}

func TestDetectHandoffNewestWins(t *testing.T) {
	messages := []protocol.Message{
		protocol.NewToolMessage("call_1", "handoff_to_m", protocol.HandoffSentinel("m", "first")),
		protocol.NewToolMessage("call_2", "handoff_to_s", protocol.HandoffSentinel("s", "second")),
	}

	target, found := DetectHandoff(messages, 0, testManagers)
	assert.True(t, found)
	assert.Equal(t, "s", target)
}

func TestDetectHandoffIgnoresNonToolMessages(t *testing.T) {
	messages := []protocol.Message{
		protocol.NewAssistantMessage("I would HANDOFF_TO_S if I could"),
		protocol.NewUserMessage("please HANDOFF_TO_M"),
	}

	_, found := DetectHandoff(messages, 0, testManagers)
	assert.False(t, found)
}

func TestDetectHandoffUnknownManager(t *testing.T) {
	messages := []protocol.Message{
		protocol.NewToolMessage("call_1", "handoff_to_z", protocol.HandoffSentinel("z", "nobody home")),
	}

	_, found := DetectHandoff(messages, 0, testManagers)
	assert.False(t, found)
}
