package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/prompt"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "echo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/assistant.db", cfg.DBPath)
	assert.Equal(t, 60*time.Minute, cfg.SessionTTL)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("FRONTEND_URL", "https://analyst.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey())
	assert.Equal(t, 15*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown provider", map[string]string{"LLM_PROVIDER": "llama"}},
		{"missing key", map[string]string{"LLM_PROVIDER": "anthropic", "ANTHROPIC_API_KEY": ""}},
		{"empty port", map[string]string{"LLM_PROVIDER": "echo", "PORT": ""}},
		{"bad temperature", map[string]string{"LLM_PROVIDER": "echo", "LLM_TEMPERATURE": "3"}},
		{"zero rate limit", map[string]string{"LLM_PROVIDER": "echo", "RATE_LIMIT_REQUESTS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadPromptConfig(t *testing.T) {
	cfg, err := LoadPromptConfig("")
	require.NoError(t, err)
	assert.Equal(t, prompt.DefaultBudgets(), cfg.Budgets)
	assert.Empty(t, cfg.Personas)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	body := `budgets:
  review_result: 200
personas:
  manager: You are a terse manager.
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err = LoadPromptConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Budgets.ReviewResult)
	assert.Equal(t, prompt.DefaultBudgets().ReportResult, cfg.Budgets.ReportResult)
	assert.Equal(t, "You are a terse manager.", cfg.Personas[domain.PersonaManager])
}

func TestLoadPromptConfigErrors(t *testing.T) {
	_, err := LoadPromptConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personas:\n  intern: hi\n"), 0o644))
	_, err = LoadPromptConfig(path)
	assert.ErrorContains(t, err, "unknown persona")
}

func TestLLMConfigAgent(t *testing.T) {
	llm := LLMConfig{Provider: "anthropic", AnthropicAPIKey: "key", Temperature: 0.4, MaxTokens: 100, Timeout: time.Second}
	got := llm.Agent(map[domain.Persona]string{domain.PersonaAnalyst: "x"})

	assert.Equal(t, "anthropic", got.Provider)
	assert.Equal(t, "key", got.APIKey)
	assert.Equal(t, 100, got.MaxTokens)
	assert.Equal(t, "x", got.Instructions[domain.PersonaAnalyst])
}
