package main

import (
	"fmt"

	"github.com/teamh-ai/teamh/pkg/config"
)

// ValidateCmd checks a configuration file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}

	cfg, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration is valid.\n")
	fmt.Printf("  managers:   %v\n", cfg.Team.Managers)
	fmt.Printf("  llm:        %s (%s)\n", cfg.LLM.Model, cfg.LLM.Provider)
	fmt.Printf("  checkpoint: %s\n", cfg.Checkpoint.Backend)
	fmt.Printf("  memory:     %s\n", cfg.Memory.Provider)
	fmt.Printf("  listen:     %s\n", cfg.Server.Address())
	return nil
}
