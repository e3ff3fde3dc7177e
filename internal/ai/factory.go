package ai

import (
	"fmt"

	"well-go/internal/config"
	"well-go/internal/well"
)

// NewCompleterFromConfig creates the completer for cfg.Type. The "none" type
// returns nil, which makes every insight request use the fallback payload.
func NewCompleterFromConfig(cfg config.AIConfig) (well.Completer, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.Model == "" {
			return nil, fmt.Errorf("model required for openai completer")
		}
		return NewOpenAICompleter(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout.Duration), nil
	default:
		return nil, fmt.Errorf("unknown ai type: %s", cfg.Type)
	}
}
