// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/analyst-labs/internal/agent"
	"github.com/ashureev/analyst-labs/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	DBPath         string
	SessionTTL     time.Duration
	ExportDir      string
	MaxUploadBytes int64
	PromptConfig   string

	LLM             LLMConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
	Timeout         TimeoutConfig
}

// LLMConfig selects and tunes the persona responder backend.
type LLMConfig struct {
	Provider        string
	Model           string
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	BaseURL         string
	Temperature     float64
	MaxTokens       int
	Timeout         time.Duration
}

// APIKey returns the key for the configured provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// RateLimitConfig bounds responder-invoking requests per user.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// TimeoutConfig holds server timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Shutdown    time.Duration
	Read        time.Duration
	Idle        time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "gemini"))

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/assistant.db"),
		SessionTTL:     getEnvDuration("SESSION_TTL", 60*time.Minute),
		ExportDir:      getEnv("EXPORT_DIR", "./data/reports"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
		PromptConfig:   getEnv("PROMPT_CONFIG_PATH", ""),
		LLM: LLMConfig{
			Provider:        provider,
			Model:           getEnv("LLM_MODEL", ""),
			GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
			OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:         getEnv("LLM_BASE_URL", ""),
			Temperature:     getEnvFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:       getEnvInt("LLM_MAX_TOKENS", 4096),
			Timeout:         getEnvDuration("LLM_TIMEOUT", 90*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		Timeout: TimeoutConfig{
			HealthCheck: 5 * time.Second,
			Shutdown:    10 * time.Second,
			Read:        30 * time.Second,
			Idle:        120 * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if c.ExportDir == "" {
		return errors.New("EXPORT_DIR cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be > 0")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "anthropic", "echo":
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLM.Provider)
	}
	if c.LLM.Provider != "echo" && c.LLM.APIKey() == "" {
		return fmt.Errorf("an API key is required for LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("LLM_MAX_TOKENS must be > 0")
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("LLM_TIMEOUT must be > 0")
	}
	if c.RateLimit.Requests <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return errors.New("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return errors.New("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return errors.New("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// Agent converts the LLM settings to a persona responder configuration.
func (c LLMConfig) Agent(instructions map[domain.Persona]string) agent.Config {
	return agent.Config{
		Provider:     c.Provider,
		Model:        c.Model,
		APIKey:       c.APIKey(),
		BaseURL:      c.BaseURL,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		Timeout:      c.Timeout,
		Instructions: instructions,
	}
}

// Agent converts the conversation log settings to a logger configuration.
func (c ConversationLogConfig) Agent() agent.ConversationLogConfig {
	return agent.ConversationLogConfig{
		Enabled:       c.Enabled,
		Dir:           c.Dir,
		GlobalEnabled: c.GlobalEnabled,
		GlobalPath:    c.GlobalPath,
		QueueSize:     c.QueueSize,
	}
}
