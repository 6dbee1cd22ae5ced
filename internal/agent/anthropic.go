package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend calls the Anthropic messages API.
type AnthropicBackend struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend(apiKey, model, baseURL string) (*AnthropicBackend, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{client: &client, model: model}, nil
}

// Name returns the backend identifier.
func (b *AnthropicBackend) Name() string { return ProviderAnthropic }

// Complete generates a single response. Text blocks are concatenated.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultConfig().MaxTokens
	}
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(tb.Text)
		}
	}
	return out.String(), nil
}
