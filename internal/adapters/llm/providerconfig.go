package llm

import (
	"os"

	"gopkg.in/yaml.v3"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/net/http/bind"
)

// ProviderEntry holds one provider's credentials and optional base URL, as
// parsed from the provider-config document.
type ProviderEntry struct {
	APIKey  string `yaml:"api_key" validate:"required"`
	BaseURL string `yaml:"base_url"`
}

// TaskBinding is the {provider, model, escalation_model?, max_tokens?}
// binding for one task name.
type TaskBinding struct {
	Provider        string `yaml:"provider" validate:"required"`
	Model           string `yaml:"model" validate:"required"`
	EscalationModel string `yaml:"escalation_model"`
	MaxTokens       int    `yaml:"max_tokens"`
}

// ProviderConfig is the parsed shape of the provider-config document: a
// strategy mode, per-provider credentials, and per-task bindings.
type ProviderConfig struct {
	Strategy  domain.StrategyMode         `yaml:"strategy" validate:"required,oneof=economy standard premium adaptive fixed"`
	Providers map[string]ProviderEntry    `yaml:"providers" validate:"required,dive"`
	Tasks     map[domain.Task]TaskBinding `yaml:"tasks" validate:"required,dive"`
}

// LoadProviderConfig reads and validates the provider-config document at
// path, then confirms every task's provider name is actually configured —
// the router fails fast on a dangling reference rather than at first call.
func LoadProviderConfig(path string) (*ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "read provider config %s", path)
	}

	var cfg ProviderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeJSON, "parse provider config %s", path)
	}

	if err := bind.Get().Validator.Struct(&cfg); err != nil {
		field, msg := bind.ValidationFieldAndMessage(err)
		return nil, perr.SummarizeErrorf(perr.ErrorCodeValidation, "provider config %s: %s: %s", path, field, msg)
	}

	for task, binding := range cfg.Tasks {
		if _, ok := cfg.Providers[binding.Provider]; !ok {
			return nil, perr.SummarizeErrorf(perr.ErrorCodeValidation, "task %q references unconfigured provider %q", task, binding.Provider)
		}
	}

	return &cfg, nil
}

// TaskConfig returns the binding for task, falling back to a "default"
// binding when task has no explicit entry.
func (c *ProviderConfig) TaskConfig(task domain.Task) (TaskBinding, bool) {
	if b, ok := c.Tasks[task]; ok {
		return b, true
	}
	b, ok := c.Tasks[domain.Task("default")]
	return b, ok
}
