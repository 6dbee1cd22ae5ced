// Package agent implements the persona responder used by the analysis workflow.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/analyst-labs/internal/domain"
)

var (
	// ErrEmptyResponse is returned when a backend produces no usable text.
	ErrEmptyResponse = errors.New("agent: empty response")
	// ErrTimeout is returned when a backend call exceeds the configured timeout.
	ErrTimeout = errors.New("agent: response timed out")
)

// Supported backend providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// Request is a single completion request sent to a backend.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Backend produces a completion for one request.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Config holds agent configuration.
type Config struct {
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	Instructions map[domain.Persona]string
}

// DefaultConfig returns default agent configuration.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderGemini,
		Model:       DefaultModel(ProviderGemini),
		Temperature: 0.2,
		MaxTokens:   4096,
		Timeout:     90 * time.Second,
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderEcho:
		return "echo"
	default:
		return "gemini-1.5-flash"
	}
}
