// ABOUTME: Configuration loading and parsing for the translation pipeline.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config represents the complete dict-sub configuration.
type Config struct {
	Translation TranslationConfig `yaml:"translation"`
	Pending     PendingConfig     `yaml:"pending"`
	Cache       CacheConfig       `yaml:"cache"`
	History     HistoryConfig     `yaml:"history"`
	Providers   []ProviderConfig  `yaml:"providers"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// TranslationConfig holds the default language pair.
type TranslationConfig struct {
	SourceLang string `yaml:"source_lang"` // "auto" or a language tag
	TargetLang string `yaml:"target_lang"`
}

// PendingConfig holds dedup guard settings.
type PendingConfig struct {
	TTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TTLRaw string `yaml:"ttl"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	TTL      time.Duration `yaml:"-"`
	Capacity int           `yaml:"capacity"`

	TTLRaw string `yaml:"ttl"`
}

// HistoryConfig holds history retention settings. PersistRecords bounds
// what is flushed to disk and may be smaller than MaxRecords.
type HistoryConfig struct {
	Path           string `yaml:"path"`
	MaxRecords     int    `yaml:"max_records"`
	PersistRecords int    `yaml:"persist_records"`
}

// ProviderConfig holds one translation provider profile.
type ProviderConfig struct {
	Name    string `yaml:"name"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration: auto-detect source, English
// target, no providers (the caller must configure at least one).
func Default() *Config {
	return &Config{
		Translation: TranslationConfig{SourceLang: "auto", TargetLang: "en"},
		Pending:     PendingConfig{TTL: 30 * time.Second},
		Cache:       CacheConfig{TTL: 7 * 24 * time.Hour, Capacity: 500},
		History:     HistoryConfig{MaxRecords: 200, PersistRecords: 100},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config merged over the defaults. Environment variables in the format
// ${VAR_NAME} are expanded. Duration strings are parsed into time.Duration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	seen := make(map[string]bool)
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
		if p.Model == "" {
			return fmt.Errorf("providers[%d].model is required", i)
		}
	}

	if c.Translation.SourceLang != "" && c.Translation.SourceLang != "auto" {
		if _, err := language.Parse(c.Translation.SourceLang); err != nil {
			return fmt.Errorf("translation.source_lang %q: %w", c.Translation.SourceLang, err)
		}
	}
	if c.Translation.TargetLang != "" {
		if _, err := language.Parse(c.Translation.TargetLang); err != nil {
			return fmt.Errorf("translation.target_lang %q: %w", c.Translation.TargetLang, err)
		}
	}

	if c.History.PersistRecords > c.History.MaxRecords {
		return fmt.Errorf("history.persist_records (%d) must not exceed history.max_records (%d)",
			c.History.PersistRecords, c.History.MaxRecords)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Pending.TTLRaw != "" {
		cfg.Pending.TTL, err = time.ParseDuration(cfg.Pending.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing pending.ttl %q: %w", cfg.Pending.TTLRaw, err)
		}
	}

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
	}

	return nil
}
