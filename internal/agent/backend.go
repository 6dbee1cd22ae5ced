package agent

import (
	"context"
	"fmt"
)

// NewBackend constructs the backend named by cfg.Provider.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiBackend(ctx, cfg.APIKey, model, cfg.BaseURL)
	case ProviderOpenAI:
		return NewOpenAIBackend(cfg.APIKey, model, cfg.BaseURL)
	case ProviderAnthropic:
		return NewAnthropicBackend(cfg.APIKey, model, cfg.BaseURL)
	case ProviderEcho:
		return EchoBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
