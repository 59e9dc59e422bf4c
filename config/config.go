package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every configuration validation failure so callers
// can distinguish construction-time errors from routing-time errors.
var ErrInvalid = errors.New("invalid router configuration")

// Config is the construction-time configuration envelope for the intent
// router. It is read once at startup and treated as immutable afterwards.
type Config struct {
	RouterVersion        string            `yaml:"router_version"`
	ModelPath            string            `yaml:"model_path"`
	MaxBatchSize         int               `yaml:"max_batch_size"`
	MaxPromptChars       int               `yaml:"max_prompt_chars"`
	LatencyBudgetSeconds float64           `yaml:"latency_budget_seconds"`
	MemoryBudgetBytes    int64             `yaml:"memory_budget_bytes"`
	ClassificationLabels []string          `yaml:"classification_labels"`
	OfflineMode          bool              `yaml:"offline_mode"`
	ComplianceLogContext map[string]string `yaml:"compliance_log_context"`

	// Rule tables are data, not code: both classifiers evaluate them in
	// declaration order with first-match-wins semantics.
	IntentPatterns []IntentPattern `yaml:"intent_patterns"`
	FallbackRules  []FallbackRule  `yaml:"fallback_rules"`

	Telemetry TelemetrySpec `yaml:"telemetry"`
}

// IntentPattern associates an intent label with the case-insensitive pattern
// the primary classifier matches against truncated request text.
type IntentPattern struct {
	Intent  string `yaml:"intent"`
	Pattern string `yaml:"pattern"`
}

// FallbackRule is one entry of the offline fallback lexicon.
type FallbackRule struct {
	Name      string `yaml:"name"`
	Intent    string `yaml:"intent"`
	Pattern   string `yaml:"pattern"`
	Reasoning string `yaml:"reasoning"`
}

// TelemetrySpec selects the optional persistent telemetry backends wired by
// the outer surfaces. The core only ever sees the Sink interface.
type TelemetrySpec struct {
	SQLitePath   string   `yaml:"sqlite_path"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// DefaultLabels is the canonical ordered label set served by the router.
var DefaultLabels = []string{
	"general_inquiry",
	"billing_support",
	"technical_support",
	"sales_inquiry",
	"account_security",
}

// Default returns a Config with the built-in rule tables and budgets. Loaded
// YAML is merged over this, so partial files stay valid.
func Default() *Config {
	return &Config{
		RouterVersion:        "qwen-30b-intent-router",
		MaxBatchSize:         4,
		MaxPromptChars:       2048,
		LatencyBudgetSeconds: 4.0,
		MemoryBudgetBytes:    2 << 30,
		ClassificationLabels: append([]string(nil), DefaultLabels...),
		ComplianceLogContext: map[string]string{},
		IntentPatterns:       defaultIntentPatterns(),
		FallbackRules:        defaultFallbackRules(),
	}
}

func defaultIntentPatterns() []IntentPattern {
	return []IntentPattern{
		{Intent: "billing_support", Pattern: `billing|invoice|refund|factura|facture|rechnung`},
		{Intent: "technical_support", Pattern: `error|bug|issue|problema|falla|störung`},
		{Intent: "sales_inquiry", Pattern: `buy|purchase|pricing|quote|precio|cotización`},
		{Intent: "account_security", Pattern: `password|login|contraseña|kennwort|mot de passe`},
		// Catch-all: matches anything, classified with reduced confidence.
		{Intent: "general_inquiry", Pattern: `(?s).*`},
	}
}

func defaultFallbackRules() []FallbackRule {
	return []FallbackRule{
		{
			Name:      "billing",
			Intent:    "billing_support",
			Pattern:   `billing|invoice|refund|factura|facture|rechnung|reembolso`,
			Reasoning: "Billing lexicon matched during offline fallback",
		},
		{
			Name:      "security",
			Intent:    "account_security",
			Pattern:   `password|login|contraseña|mot de passe|kennwort`,
			Reasoning: "Account security lexicon matched during offline fallback",
		},
		{
			Name:      "sales",
			Intent:    "sales_inquiry",
			Pattern:   `buy|purchase|pricing|quote|precio|cotización|angebot`,
			Reasoning: "Sales lexicon matched during offline fallback",
		},
		{
			Name:      "technical",
			Intent:    "technical_support",
			Pattern:   `error|bug|issue|falla|problema|panne`,
			Reasoning: "Technical support lexicon matched during offline fallback",
		},
		{
			Name:      "cancellation",
			Intent:    "general_inquiry",
			Pattern:   `cancel|close account|cerrar|annuler`,
			Reasoning: "Cancellation keywords detected while offline",
		},
	}
}

// Load reads router.yaml from configDir and merges it over Default().
// A relative model_path is resolved against configDir so the binary can run
// from any working directory. Load does not validate; call Validate before
// constructing the service.
func Load(configDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(configDir, "router.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading router.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing router.yaml: %w", err)
	}

	if cfg.ModelPath != "" && !filepath.IsAbs(cfg.ModelPath) {
		cfg.ModelPath = filepath.Join(configDir, cfg.ModelPath)
	}

	return cfg, nil
}

// Validate checks every construction-time invariant once. It asserts that
// the local model assets exist but never inspects their content.
func (c *Config) Validate() error {
	if len(c.RouterVersion) < 3 {
		return fmt.Errorf("%w: router_version must describe the deployed model", ErrInvalid)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max_batch_size must be greater than zero", ErrInvalid)
	}
	if c.MaxPromptChars <= 0 {
		return fmt.Errorf("%w: max_prompt_chars must be greater than zero", ErrInvalid)
	}
	if c.LatencyBudgetSeconds <= 0 {
		return fmt.Errorf("%w: latency_budget_seconds must be greater than zero", ErrInvalid)
	}
	if c.MemoryBudgetBytes <= 0 {
		return fmt.Errorf("%w: memory_budget_bytes must be greater than zero", ErrInvalid)
	}
	if len(c.ClassificationLabels) == 0 {
		return fmt.Errorf("%w: classification_labels must not be empty", ErrInvalid)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("%w: model_path is required", ErrInvalid)
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return fmt.Errorf("%w: local model assets expected at %q: %v", ErrInvalid, c.ModelPath, err)
	}
	if len(c.IntentPatterns) == 0 {
		return fmt.Errorf("%w: intent_patterns must not be empty", ErrInvalid)
	}
	for _, p := range c.IntentPatterns {
		if _, err := regexp.Compile("(?i)" + p.Pattern); err != nil {
			return fmt.Errorf("%w: intent pattern for %q does not compile: %v", ErrInvalid, p.Intent, err)
		}
	}
	if len(c.FallbackRules) == 0 {
		return fmt.Errorf("%w: fallback_rules must not be empty", ErrInvalid)
	}
	for _, r := range c.FallbackRules {
		if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
			return fmt.Errorf("%w: fallback rule %q pattern does not compile: %v", ErrInvalid, r.Name, err)
		}
	}
	return nil
}
