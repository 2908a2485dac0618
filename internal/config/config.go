// Package config holds the immutable configuration passed into each
// component at construction. There is no ambient global state: callers
// load a Config once and hand sub-sections to the pieces that need them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a refinement run.
type Config struct {
	Refine   RefineConfig   `yaml:"refine"`
	Quota    QuotaConfig    `yaml:"quota"`
	Provider ProviderConfig `yaml:"provider"`
	Patch    PatchConfig    `yaml:"patch"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RefineConfig controls the round loop.
type RefineConfig struct {
	MaxRounds   int     `yaml:"max_rounds"`   // Hard cap on critique->patch rounds
	TargetScore float64 `yaml:"target_score"` // Stop early once best reaches this
}

// QuotaConfig controls citation budgets.
type QuotaConfig struct {
	TotalCitations  int     `yaml:"total_citations"`  // Global cap per document
	IntroFraction   float64 `yaml:"intro_fraction"`   // Share for the introduction
	ChapterFraction float64 `yaml:"chapter_fraction"` // Share for each body chapter
	// Conclusion gets whatever the fractions leave, normally zero.
	SubsectionShare float64 `yaml:"subsection_share"` // Fraction of section quota per subsection
}

// ProviderConfig selects and tunes the generation collaborators.
type ProviderConfig struct {
	// Role routing: which named provider handles each call class.
	DraftProvider     string `yaml:"draft_provider"`
	CritiqueProvider  string `yaml:"critique_provider"`
	SynthesisProvider string `yaml:"synthesis_provider"`

	Gemini GeminiProviderConfig `yaml:"gemini"`
	Local  LocalProviderConfig  `yaml:"local"`

	CooldownSeconds float64 `yaml:"cooldown_seconds"` // Min interval between calls per provider
	MaxRetries      int     `yaml:"max_retries"`      // Attempts before GenerationError is fatal
}

// GeminiProviderConfig configures the Gemini-backed provider.
type GeminiProviderConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// LocalProviderConfig configures an OpenAI-compatible local runtime.
type LocalProviderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// PatchConfig bounds what a committed mutation may do to a paragraph.
type PatchConfig struct {
	MinLength     int     `yaml:"min_length"`      // Reject outputs shorter than this
	MinRatio      float64 `yaml:"min_ratio"`       // Lower bound on new/old length
	MaxRatio      float64 `yaml:"max_ratio"`       // Upper bound on new/old length
	MinKeywordHit int     `yaml:"min_keyword_hit"` // Locator resolution overlap floor
}

// StoreConfig configures round artifact persistence.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite database file
}

// LoggingConfig configures the categorized logger.
type LoggingConfig struct {
	DebugMode bool `yaml:"debug_mode"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Refine: RefineConfig{
			MaxRounds:   3,
			TargetScore: 90,
		},
		Quota: QuotaConfig{
			TotalCitations:  25,
			IntroFraction:   0.10,
			ChapterFraction: 0.30,
			SubsectionShare: 1.0 / 3.0,
		},
		Provider: ProviderConfig{
			DraftProvider:     "gemini",
			CritiqueProvider:  "gemini",
			SynthesisProvider: "gemini",
			Gemini: GeminiProviderConfig{
				Model:     "gemini-2.5-flash",
				MaxTokens: 8192,
			},
			Local: LocalProviderConfig{
				BaseURL:   "http://localhost:1234/v1",
				Model:     "qwen2.5-14b-instruct",
				MaxTokens: 8192,
			},
			CooldownSeconds: 10,
			MaxRetries:      3,
		},
		Patch: PatchConfig{
			MinLength:     50,
			MinRatio:      0.5,
			MaxRatio:      2.0,
			MinKeywordHit: 2,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    filepath.Join(".scribe", "rounds.db"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
		},
	}
}

// Load reads a Config from a yaml file, filling gaps with defaults.
// A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as yaml, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Refine.MaxRounds < 1 {
		return fmt.Errorf("refine.max_rounds must be >= 1, got %d", c.Refine.MaxRounds)
	}
	if c.Refine.TargetScore <= 0 || c.Refine.TargetScore > 100 {
		return fmt.Errorf("refine.target_score must be in (0,100], got %v", c.Refine.TargetScore)
	}
	if c.Quota.TotalCitations < 0 {
		return fmt.Errorf("quota.total_citations must be >= 0, got %d", c.Quota.TotalCitations)
	}
	if c.Patch.MinRatio <= 0 || c.Patch.MaxRatio < c.Patch.MinRatio {
		return fmt.Errorf("patch ratio bounds invalid: min=%v max=%v", c.Patch.MinRatio, c.Patch.MaxRatio)
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("provider.max_retries must be >= 1, got %d", c.Provider.MaxRetries)
	}
	return nil
}
