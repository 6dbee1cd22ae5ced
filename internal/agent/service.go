package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/analyst-labs/internal/domain"
)

// Service answers prompts in the voice of a persona.
type Service struct {
	backend      Backend
	instructions Instructions
	temperature  float64
	maxTokens    int
	timeout      time.Duration
	logger       *slog.Logger
}

// NewService creates a service from configuration, constructing the backend
// named by cfg.Provider.
func NewService(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewServiceWithBackend(backend, cfg, logger), nil
}

// NewServiceWithBackend creates a service around an existing backend.
func NewServiceWithBackend(backend Backend, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:      backend,
		instructions: NewInstructions(cfg.Instructions),
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		timeout:      cfg.Timeout,
		logger:       logger,
	}
}

// Backend returns the name of the underlying backend.
func (s *Service) Backend() string {
	return s.backend.Name()
}

// Respond sends prompt to the backend under the persona's system instruction.
// Timeouts, backend errors and blank outputs are all returned as errors.
func (s *Service) Respond(ctx context.Context, prompt string, persona domain.Persona) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.backend.Complete(ctx, Request{
		System:      s.instructions.For(persona),
		Prompt:      prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	elapsed := time.Since(start)
	responderLatency.WithLabelValues(s.backend.Name(), string(persona)).Observe(elapsed.Seconds())

	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, s.timeout, err)
	}
	if err != nil {
		responderCalls.WithLabelValues(s.backend.Name(), string(persona), statusOf(err)).Inc()
		s.logger.Warn("persona responder failed",
			"backend", s.backend.Name(),
			"persona", persona,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return "", err
	}

	responderCalls.WithLabelValues(s.backend.Name(), string(persona), "ok").Inc()
	s.logger.Info("persona responder answered",
		"backend", s.backend.Name(),
		"persona", persona,
		"prompt_length", len(prompt),
		"response_length", len(text),
		"duration_ms", elapsed.Milliseconds(),
	)
	return text, nil
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}
