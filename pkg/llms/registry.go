package llms

import (
	"fmt"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/registry"
)

// ProviderRegistry holds named providers (primary model, router model).
type ProviderRegistry struct {
	*registry.BaseRegistry[Provider]
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		BaseRegistry: registry.NewBaseRegistry[Provider](),
	}
}

// CreateProvider builds a provider from config. All supported providers
// speak the OpenAI wire protocol.
func CreateProvider(cfg config.LLMConfig) (Provider, error) {
	cfg.SetDefaults()
	switch cfg.Provider {
	case "openai", "ollama", "vllm":
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
