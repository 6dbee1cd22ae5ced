package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/analyst-labs/internal/domain"
	"github.com/ashureev/analyst-labs/internal/prompt"
)

// PromptConfig overrides prompt truncation budgets and persona instructions.
type PromptConfig struct {
	Budgets  prompt.Budgets            `yaml:"budgets"`
	Personas map[domain.Persona]string `yaml:"personas"`
}

// LoadPromptConfig reads a YAML prompt configuration. An empty path yields
// the defaults.
func LoadPromptConfig(path string) (*PromptConfig, error) {
	cfg := &PromptConfig{Budgets: prompt.DefaultBudgets()}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt config: %w", err)
	}
	var raw PromptConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompt config %s: %w", path, err)
	}

	cfg.Budgets = raw.Budgets.WithDefaults()
	for persona := range raw.Personas {
		switch persona {
		case domain.PersonaManager, domain.PersonaAnalyst, domain.PersonaAssociate, domain.PersonaGeneral:
		default:
			return nil, fmt.Errorf("prompt config %s: unknown persona %q", path, persona)
		}
	}
	cfg.Personas = raw.Personas
	return cfg, nil
}
