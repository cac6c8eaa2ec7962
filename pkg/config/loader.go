package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML config file, expands env references and applies
// defaults. An empty path yields the zero-config defaults.
func LoadConfig(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = ParseConfig(data)
		if err != nil {
			return nil, err
		}
	}

	cfg.SetDefaults()

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedder.APIKey == "" {
		cfg.Embedder.APIKey = cfg.LLM.APIKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ParseConfig decodes YAML with env expansion applied to every string value.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	// Round-trip through YAML so expanded values land in typed fields.
	normalized, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(normalized, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}
