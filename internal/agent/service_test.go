package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/analyst-labs/internal/domain"
)

type fakeBackend struct {
	text  string
	err   error
	delay time.Duration
	last  Request
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(ctx context.Context, req Request) (string, error) {
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func TestRespondUsesPersonaInstruction(t *testing.T) {
	backend := &fakeBackend{text: "1. Explore"}
	svc := NewServiceWithBackend(backend, Config{Temperature: 0.2, MaxTokens: 100}, nil)

	got, err := svc.Respond(context.Background(), "make a plan", domain.PersonaManager)
	require.NoError(t, err)
	assert.Equal(t, "1. Explore", got)
	assert.Contains(t, backend.last.System, "AI Data Analysis Manager")
	assert.Equal(t, "make a plan", backend.last.Prompt)
	assert.Equal(t, 0.2, backend.last.Temperature)
	assert.Equal(t, 100, backend.last.MaxTokens)
}

func TestRespondInstructionOverride(t *testing.T) {
	backend := &fakeBackend{text: "ok"}
	svc := NewServiceWithBackend(backend, Config{
		Instructions: map[domain.Persona]string{domain.PersonaAnalyst: "Be terse."},
	}, nil)

	_, err := svc.Respond(context.Background(), "p", domain.PersonaAnalyst)
	require.NoError(t, err)
	assert.Equal(t, "Be terse.", backend.last.System)

	_, err = svc.Respond(context.Background(), "p", domain.Persona("unknown"))
	require.NoError(t, err)
	assert.Equal(t, "You are an AI assistant helping with data analysis.", backend.last.System)
}

func TestRespondEmptyOutputIsError(t *testing.T) {
	svc := NewServiceWithBackend(&fakeBackend{text: "  \n"}, Config{}, nil)
	_, err := svc.Respond(context.Background(), "p", domain.PersonaAnalyst)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRespondBackendError(t *testing.T) {
	boom := errors.New("quota exceeded")
	svc := NewServiceWithBackend(&fakeBackend{err: boom}, Config{}, nil)
	_, err := svc.Respond(context.Background(), "p", domain.PersonaAnalyst)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRespondTimeout(t *testing.T) {
	svc := NewServiceWithBackend(&fakeBackend{text: "late", delay: time.Second}, Config{Timeout: 20 * time.Millisecond}, nil)
	_, err := svc.Respond(context.Background(), "p", domain.PersonaAssociate)
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEchoBackend(t *testing.T) {
	svc := NewServiceWithBackend(EchoBackend{}, DefaultConfig(), nil)
	got, err := svc.Respond(context.Background(), "hello", domain.PersonaManager)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, ProviderEcho, svc.Backend())
}

func TestNewBackendRequiresKeys(t *testing.T) {
	for _, provider := range []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic} {
		_, err := NewBackend(context.Background(), Config{Provider: provider})
		assert.Error(t, err, provider)
	}
	_, err := NewBackend(context.Background(), Config{Provider: "bard"})
	assert.Error(t, err)

	b, err := NewBackend(context.Background(), Config{Provider: ProviderEcho})
	require.NoError(t, err)
	assert.Equal(t, ProviderEcho, b.Name())
}

func TestNewBackendOpenAIWithKey(t *testing.T) {
	b, err := NewBackend(context.Background(), Config{Provider: ProviderOpenAI, APIKey: "sk-test", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, b.Name())

	b, err = NewBackend(context.Background(), Config{Provider: ProviderAnthropic, APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, b.Name())
}
