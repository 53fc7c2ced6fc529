package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leofalp/chatrelay/core/catalog"
	"github.com/leofalp/chatrelay/core/prompt"
	"github.com/leofalp/chatrelay/providers/ai"
	"github.com/leofalp/chatrelay/providers/ai/anthropic"
	"github.com/leofalp/chatrelay/providers/ai/gemini"
	"github.com/leofalp/chatrelay/providers/ai/mistral"
	"github.com/leofalp/chatrelay/providers/ai/openai"
)

const (
	DefaultFirstByteTimeout = 30 * time.Second
	DefaultStreamTimeout    = 5 * time.Minute
	DefaultAddr             = ":8080"
)

// ProviderSettings holds the credentials of one provider kind.
type ProviderSettings struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Empty uses the provider default
}

// Config is the full process configuration.
type Config struct {
	OpenAI    ProviderSettings `yaml:"openai"`
	Anthropic ProviderSettings `yaml:"anthropic"`
	Google    ProviderSettings `yaml:"google"`
	Mistral   ProviderSettings `yaml:"mistral"`

	// FallbackModel is tried once when the requested model is unavailable.
	// Empty disables the fallback attempt.
	FallbackModel string `yaml:"fallback_model"`

	// ContextBudget is the prompt budget in BudgetUnit. Zero derives it from
	// each model's context window.
	ContextBudget int         `yaml:"context_budget"`
	BudgetUnit    prompt.Unit `yaml:"budget_unit"`
	SystemPrompt  string      `yaml:"system_prompt"`
	NormalizeHTML bool        `yaml:"normalize_html"`

	FirstByteTimeout time.Duration `yaml:"first_byte_timeout"`
	StreamTimeout    time.Duration `yaml:"stream_timeout"`

	// Models adds or overrides catalog entries by id.
	Models []catalog.Entry `yaml:"models"`

	Addr       string `yaml:"addr"`
	RequestLog string `yaml:"request_log"` // minimal, standard or verbose
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		FallbackModel:    catalog.DefaultFallbackModel,
		BudgetUnit:       prompt.UnitChars,
		NormalizeHTML:    true,
		FirstByteTimeout: DefaultFirstByteTimeout,
		StreamTimeout:    DefaultStreamTimeout,
		Addr:             DefaultAddr,
		RequestLog:       "standard",
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}

	if unit, err := prompt.ParseUnit(string(cfg.BudgetUnit)); err == nil {
		cfg.BudgetUnit = unit
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// mergeFile overlays the YAML document onto cfg. Keys absent from the file
// keep their current value.
func (cfg *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// applyEnv overrides settings from environment variables.
func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(names ...string) (string, bool) {
		for _, name := range names {
			if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		}
		return "", false
	}

	providers := []struct {
		settings *ProviderSettings
		keys     []string
		urls     []string
	}{
		{&cfg.OpenAI, []string{"OPENAI_API_KEY"}, []string{"OPENAI_API_BASE_URL"}},
		{&cfg.Anthropic, []string{"ANTHROPIC_API_KEY"}, []string{"ANTHROPIC_API_BASE_URL"}},
		{&cfg.Google, []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}, []string{"GOOGLE_API_BASE_URL", "GEMINI_API_BASE_URL"}},
		{&cfg.Mistral, []string{"MISTRAL_API_KEY"}, []string{"MISTRAL_API_BASE_URL"}},
	}
	for _, p := range providers {
		if v, ok := get(p.keys...); ok {
			p.settings.APIKey = v
		}
		if v, ok := get(p.urls...); ok {
			p.settings.BaseURL = v
		}
	}

	if v, ok := lookup("CHATRELAY_FALLBACK_MODEL"); ok {
		cfg.FallbackModel = strings.TrimSpace(v)
	}
	if v, ok := get("CHATRELAY_CONTEXT_BUDGET"); ok {
		budget, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHATRELAY_CONTEXT_BUDGET: %w", err)
		}
		cfg.ContextBudget = budget
	}
	if v, ok := get("CHATRELAY_BUDGET_UNIT"); ok {
		cfg.BudgetUnit = prompt.Unit(v)
	}
	if v, ok := get("CHATRELAY_SYSTEM_PROMPT"); ok {
		cfg.SystemPrompt = v
	}
	if v, ok := get("CHATRELAY_NORMALIZE_HTML"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CHATRELAY_NORMALIZE_HTML: %w", err)
		}
		cfg.NormalizeHTML = enabled
	}

	durations := []struct {
		name   string
		target *time.Duration
	}{
		{"CHATRELAY_FIRST_BYTE_TIMEOUT", &cfg.FirstByteTimeout},
		{"CHATRELAY_STREAM_TIMEOUT", &cfg.StreamTimeout},
	}
	for _, d := range durations {
		if v, ok := get(d.name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.name, err)
			}
			*d.target = parsed
		}
	}

	if v, ok := get("CHATRELAY_ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := get("CHATRELAY_REQUEST_LOG"); ok {
		cfg.RequestLog = v
	}

	return nil
}

// Validate checks value ranges and that the fallback model is offered.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.ContextBudget < 0 {
		errs = append(errs, fmt.Errorf("context_budget must not be negative, got %d", cfg.ContextBudget))
	}
	if _, err := prompt.ParseUnit(string(cfg.BudgetUnit)); err != nil {
		errs = append(errs, err)
	}
	if cfg.FirstByteTimeout < 0 {
		errs = append(errs, errors.New("first_byte_timeout must not be negative"))
	}
	if cfg.StreamTimeout < 0 {
		errs = append(errs, errors.New("stream_timeout must not be negative"))
	}

	models, err := cfg.Catalog()
	if err != nil {
		errs = append(errs, err)
	} else if cfg.FallbackModel != "" && !models.Has(cfg.FallbackModel) {
		errs = append(errs, fmt.Errorf("fallback_model: %w: %q", catalog.ErrUnknownModel, cfg.FallbackModel))
	}

	return errors.Join(errs...)
}

// Catalog returns the default catalog extended with the configured models.
func (cfg *Config) Catalog() (*catalog.Catalog, error) {
	return catalog.Default().With(cfg.Models...)
}

// Provider returns the settings of one provider kind.
func (cfg *Config) Provider(kind ai.ProviderKind) ProviderSettings {
	switch kind {
	case ai.ProviderOpenAI:
		return cfg.OpenAI
	case ai.ProviderAnthropic:
		return cfg.Anthropic
	case ai.ProviderGoogle:
		return cfg.Google
	case ai.ProviderMistral:
		return cfg.Mistral
	}
	return ProviderSettings{}
}

// Configured lists the provider kinds that have an API key.
func (cfg *Config) Configured() []ai.ProviderKind {
	var kinds []ai.ProviderKind
	for _, kind := range ai.ProviderKinds() {
		if cfg.Provider(kind).APIKey != "" {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// Providers builds one client per provider kind sharing httpClient. Kinds
// without an API key still get a client; it fails with ai.ErrMissingAPIKey,
// which the orchestrator treats as an unavailable provider.
func (cfg *Config) Providers(httpClient *http.Client) map[ai.ProviderKind]ai.Provider {
	clients := map[ai.ProviderKind]ai.Provider{
		ai.ProviderOpenAI:    openai.New(),
		ai.ProviderAnthropic: anthropic.New(),
		ai.ProviderGoogle:    gemini.New(),
		ai.ProviderMistral:   mistral.New(),
	}

	for kind, client := range clients {
		settings := cfg.Provider(kind)
		clients[kind] = client.
			WithAPIKey(settings.APIKey).
			WithBaseURL(settings.BaseURL).
			WithHttpClient(httpClient).
			WithFirstByteTimeout(cfg.FirstByteTimeout)
	}

	return clients
}

// Assembler builds the prompt assembler for the configured budget unit.
func (cfg *Config) Assembler() (*prompt.Assembler, error) {
	counter, err := prompt.NewCounter(cfg.BudgetUnit)
	if err != nil {
		return nil, err
	}

	opts := []prompt.Option{prompt.WithHTMLNormalization(cfg.NormalizeHTML)}
	if cfg.SystemPrompt != "" {
		opts = append(opts, prompt.WithSystemPrompt(cfg.SystemPrompt))
	}
	return prompt.NewAssembler(counter, opts...), nil
}
