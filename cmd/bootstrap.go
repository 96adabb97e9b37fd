package cmd

import (
	"fmt"

	"llamabridge/bridge"
	"llamabridge/config"
	"llamabridge/ollama"
)

// newFacade builds the process-wide daemon connection and the facade that
// owns it.
func newFacade(cfg *config.Config) (*bridge.Facade, error) {
	client, err := ollama.NewClient(cfg.OllamaURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Debug("daemon client ready", "host", client.BaseURL(), "stall_timeout", cfg.StallTimeout)
	}

	return bridge.NewFacade(bridge.NewShared(client), bridge.WithStallTimeout(cfg.StallTimeout)), nil
}
