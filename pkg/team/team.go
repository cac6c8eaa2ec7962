// Package team assembles the manager graph from configuration: providers,
// tool registries, the router and the executor.
package team

import (
	"fmt"
	"log/slog"

	"github.com/teamh-ai/teamh/pkg/checkpoint"
	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/graph"
	"github.com/teamh-ai/teamh/pkg/llms"
	"github.com/teamh-ai/teamh/pkg/memory"
	"github.com/teamh-ai/teamh/pkg/tools"
)

// Team is the fully wired runtime: one executor over the enabled managers
// plus the resources they own.
type Team struct {
	Executor *graph.Executor
	Store    checkpoint.Store
	Memory   *memory.Service

	DefaultUserID string

	providers []llms.Provider
}

// New builds the team from configuration. The returned Team owns its
// providers and stores; call Close when done.
func New(cfg *config.Config) (*Team, error) {
	provider, err := llms.CreateProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	routerProvider, err := llms.CreateProvider(cfg.RouterLLMConfig())
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to create router LLM provider: %w", err)
	}

	store, err := checkpoint.NewStore(cfg.Checkpoint)
	if err != nil {
		provider.Close()
		routerProvider.Close()
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	t := &Team{
		Store:         store,
		DefaultUserID: cfg.Team.DefaultUserID,
		providers:     []llms.Provider{provider, routerProvider},
	}

	nodes := make(map[string]*graph.AgentNode, len(cfg.Team.Managers))
	for _, id := range cfg.Team.Managers {
		node, err := t.buildNode(id, cfg, provider)
		if err != nil {
			t.Close()
			return nil, err
		}
		nodes[id] = node
	}

	routerSystem, err := routerPrompt(cfg.Team.Managers)
	if err != nil {
		t.Close()
		return nil, err
	}
	router := graph.NewRouter(
		routerProvider,
		routerSystem,
		cfg.Team.Managers,
		defaultManager(cfg.Team.Managers),
	)

	t.Executor = graph.NewExecutor(router, nodes, store, cfg.Team.MaxHandoffs)

	slog.Info("Team assembled",
		"managers", cfg.Team.Managers,
		"max_handoffs", cfg.Team.MaxHandoffs,
		"checkpoint_backend", cfg.Checkpoint.Backend)
	return t, nil
}

// buildNode wires one manager: its domain tools, its handoff tools and
// its node configuration.
func (t *Team) buildNode(id string, cfg *config.Config, provider llms.Provider) (*graph.AgentNode, error) {
	profile, ok := profiles[id]
	if !ok {
		return nil, fmt.Errorf("unknown manager %q", id)
	}

	systemPrompt, err := managerPrompt(id, cfg.Team.Managers)
	if err != nil {
		return nil, err
	}

	registry := tools.NewToolRegistry()

	domainTools, err := t.domainTools(id, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build tools for manager %s: %w", id, err)
	}
	for _, tool := range append(domainTools, tools.NewHandoffTools(id, peerDescriptions(id, cfg.Team.Managers))...) {
		if err := registry.RegisterTool(tool); err != nil {
			return nil, err
		}
	}

	return graph.NewAgentNode(graph.NodeConfig{
		ID:               id,
		Name:             profile.Name,
		SystemPrompt:     systemPrompt,
		Provider:         provider,
		Tools:            registry,
		RecursionLimit:   cfg.Team.RecursionLimitFor(id),
		InjectUserID:     id == "m",
		MaxContextTokens: cfg.Team.MaxContextTokens,
	}), nil
}

// domainTools builds the tool set a manager owns. Manager m lazily brings
// up the vector memory service on first use.
func (t *Team) domainTools(id string, cfg *config.Config) ([]tools.Tool, error) {
	switch id {
	case "i":
		return tools.NewHomeTools(cfg.Tools.Home), nil
	case "m":
		service, err := t.memoryService(cfg)
		if err != nil {
			return nil, err
		}
		return tools.NewMemoryTools(service), nil
	case "s":
		return []tools.Tool{tools.NewSearchTool(cfg.Tools.Search)}, nil
	case "t":
		return tools.NewCalendarTools(cfg.Tools.Calendar), nil
	default:
		return nil, fmt.Errorf("no tools defined for manager %q", id)
	}
}

func (t *Team) memoryService(cfg *config.Config) (*memory.Service, error) {
	if t.Memory != nil {
		return t.Memory, nil
	}

	embedder := memory.NewOpenAIEmbedder(cfg.Embedder)
	store, err := memory.NewStore(cfg.Memory, embedder.Dimension())
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	t.Memory = memory.NewService(embedder, store, cfg.Memory)
	return t.Memory, nil
}

// defaultManager is the router fallback target: the home manager when
// enabled, otherwise the first enabled manager.
func defaultManager(enabled []string) string {
	for _, id := range enabled {
		if id == "i" {
			return id
		}
	}
	if len(enabled) > 0 {
		return enabled[0]
	}
	return "i"
}

// Close releases providers, the checkpoint store and the memory service.
func (t *Team) Close() error {
	var firstErr error
	for _, p := range t.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.Memory != nil {
		if err := t.Memory.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.Store != nil {
		if err := t.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
