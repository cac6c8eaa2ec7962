package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/teamh-ai/teamh/pkg/llms"
	"github.com/teamh-ai/teamh/pkg/protocol"
)

// stickyReason is the routing reason recorded when the router reuses the
// last active manager without an LLM call.
const stickyReason = "continuing with last active manager"

// routeDecision is the structured output the router model must produce.
type routeDecision struct {
	NextAgent string `json:"next_agent" jsonschema_description:"Identifier of the manager that should handle the request"`
	Reason    string `json:"reason" jsonschema_description:"One sentence explaining the choice"`
}

// Router picks the manager for a new turn. Threads that already ran a
// manager are routed back to it without consulting the model.
type Router struct {
	provider      llms.Provider
	systemPrompt  string
	known         map[string]bool
	defaultTarget string
	schema        map[string]interface{}
}

func NewRouter(provider llms.Provider, systemPrompt string, managers []string, defaultTarget string) *Router {
	known := make(map[string]bool, len(managers))
	for _, m := range managers {
		known[m] = true
	}
	return &Router{
		provider:      provider,
		systemPrompt:  systemPrompt,
		known:         known,
		defaultTarget: defaultTarget,
		schema:        routeDecisionSchema(),
	}
}

func routeDecisionSchema() map[string]interface{} {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(&routeDecision{})

	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	delete(out, "$schema")
	return out
}

// Route returns the target manager, the routing reason and whether the
// last active manager was reused without consulting the model.
func (r *Router) Route(ctx context.Context, state ConversationState) (string, string, bool, error) {
	if state.LastActiveManager != "" && r.known[state.LastActiveManager] {
		return state.LastActiveManager, stickyReason, true, nil
	}

	idx := protocol.LastUserIndex(state.Messages)
	if idx < 0 {
		return "", "", false, fmt.Errorf("cannot route a thread with no user message")
	}

	messages := []protocol.Message{
		protocol.NewSystemMessage(r.systemPrompt),
		protocol.NewUserMessage(state.Messages[idx].Content),
	}

	text, _, err := r.provider.GenerateStructured(ctx, messages, &llms.StructuredOutputConfig{
		Format: "json",
		Schema: r.schema,
	})
	if err != nil {
		return "", "", false, fmt.Errorf("router model call failed: %w", err)
	}

	decision, ok := parseRouteDecision(text)
	if !ok || !r.known[decision.NextAgent] {
		// Deterministic fallback keeps the thread moving when the model
		// returns junk or an unknown manager.
		slog.Warn("Router produced an unusable decision, using default",
			"raw", text,
			"default", r.defaultTarget)
		return r.defaultTarget, "fallback to default manager", false, nil
	}
	return decision.NextAgent, decision.Reason, false, nil
}

// parseRouteDecision tolerates prose around the JSON object.
func parseRouteDecision(text string) (routeDecision, bool) {
	var decision routeDecision
	if err := json.Unmarshal([]byte(text), &decision); err == nil && decision.NextAgent != "" {
		decision.NextAgent = strings.ToLower(strings.TrimSpace(decision.NextAgent))
		return decision, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return routeDecision{}, false
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &decision); err != nil || decision.NextAgent == "" {
		return routeDecision{}, false
	}
	decision.NextAgent = strings.ToLower(strings.TrimSpace(decision.NextAgent))
	return decision, true
}
