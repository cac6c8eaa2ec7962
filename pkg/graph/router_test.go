package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamh-ai/teamh/pkg/protocol"
)

func TestRouteStickyReusesLastActiveManager(t *testing.T) {
	provider := &scriptedProvider{}
	router := NewRouter(provider, "route", []string{"i", "s"}, "i")

	target, reason, reused, err := router.Route(context.Background(), ConversationState{
		Messages:          []protocol.Message{protocol.NewUserMessage("and tomorrow?")},
		LastActiveManager: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "s", target)
	assert.Equal(t, "continuing with last active manager", reason)
	assert.True(t, reused)
	assert.Zero(t, provider.structCalls, "sticky routing must not call the model")
}

func TestRouteStickyIgnoresUnknownManager(t *testing.T) {
	provider := &scriptedProvider{structured: []string{`{"next_agent": "i", "reason": "home stuff"}`}}
	router := NewRouter(provider, "route", []string{"i", "s"}, "i")

	// A manager that was disabled since the last turn falls back to the
	// model instead of routing into a missing node.
	target, reason, reused, err := router.Route(context.Background(), ConversationState{
		Messages:          []protocol.Message{protocol.NewUserMessage("turn on the lights")},
		LastActiveManager: "t",
	})
	require.NoError(t, err)
	assert.Equal(t, "i", target)
	assert.Equal(t, "home stuff", reason)
	assert.False(t, reused, "a disabled manager is a fresh classification, not a reuse")
	assert.Equal(t, 1, provider.structCalls)
}

func TestRouteFallbackOnJunk(t *testing.T) {
	provider := &scriptedProvider{structured: []string{"I think the search manager? Hard to say."}}
	router := NewRouter(provider, "route", []string{"i", "s"}, "i")

	target, reason, reused, err := router.Route(context.Background(), ConversationState{
		Messages: []protocol.Message{protocol.NewUserMessage("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "i", target)
	assert.Equal(t, "fallback to default manager", reason)
	assert.False(t, reused)
}

func TestRouteFallbackOnUnknownTarget(t *testing.T) {
	provider := &scriptedProvider{structured: []string{`{"next_agent": "x", "reason": "no idea"}`}}
	router := NewRouter(provider, "route", []string{"i", "s"}, "i")

	target, _, _, err := router.Route(context.Background(), ConversationState{
		Messages: []protocol.Message{protocol.NewUserMessage("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, "i", target)
}

func TestRouteNoUserMessage(t *testing.T) {
	router := NewRouter(&scriptedProvider{}, "route", []string{"i"}, "i")

	_, _, _, err := router.Route(context.Background(), ConversationState{})
	assert.Error(t, err)
}

func TestParseRouteDecision(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		reason string
		ok     bool
	}{
		{
			name: "plain json",
			text: `{"next_agent": "s", "reason": "web"}`,
			want: "s", reason: "web", ok: true,
		},
		{
			name: "prose wrapped",
			text: "Sure, here is my decision:\n```json\n{\"next_agent\": \"M\", \"reason\": \"memory\"}\n```",
			want: "m", reason: "memory", ok: true,
		},
		{
			name: "uppercase agent",
			text: `{"next_agent": " S ", "reason": "web"}`,
			want: "s", reason: "web", ok: true,
		},
		{name: "no json", text: "the search one", ok: false},
		{name: "empty agent", text: `{"next_agent": "", "reason": "?"}`, ok: false},
		{name: "empty", text: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, ok := parseRouteDecision(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, decision.NextAgent)
				assert.Equal(t, tt.reason, decision.Reason)
			}
		})
	}
}
