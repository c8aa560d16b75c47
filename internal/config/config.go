// Package config loads and validates docaudit.yaml, layering file
// settings over preset defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/docaudit/internal/chunker"
	"github.com/steveyegge/docaudit/internal/manager"
	"github.com/steveyegge/docaudit/internal/plugin"
)

// Preset defines a predefined analysis configuration.
type Preset string

const (
	// PresetQuick runs the cheap detectors with a tight budget
	PresetQuick Preset = "quick"

	// PresetStandard runs the core detectors with moderate budgets
	PresetStandard Preset = "standard"

	// PresetThorough runs every detector with generous budgets
	PresetThorough Preset = "thorough"
)

// DefaultConfigPath is where Load looks when no path is given.
const DefaultConfigPath = "docaudit.yaml"

// Config is the resolved run configuration consumed by the manager.
type Config struct {
	Preset   Preset
	Provider string // "anthropic" or "openai"
	Model    string
	APIKey   string
	BaseURL  string

	Plugins           []string
	TargetHighlights  int
	MaxModelCalls     int64
	MaxRunTime        time.Duration
	RequestsPerSecond float64

	Chunker  chunker.Config
	Pipeline plugin.Config
}

// ManagerConfig projects the run configuration into the manager's shape.
func (c *Config) ManagerConfig() manager.Config {
	return manager.Config{
		Chunker:          c.Chunker,
		Pipeline:         c.Pipeline,
		TargetHighlights: c.TargetHighlights,
		MaxModelCalls:    c.MaxModelCalls,
		MaxRunTime:       c.MaxRunTime,
	}
}

// Default returns the standard-preset configuration.
func Default() *Config {
	return PresetDefaults(PresetStandard)
}

// PresetDefaults returns the configuration for a preset.
func PresetDefaults(preset Preset) *Config {
	cfg := &Config{
		Preset:            preset,
		Provider:          "anthropic",
		TargetHighlights:  50,
		MaxModelCalls:     100,
		MaxRunTime:        10 * time.Minute,
		RequestsPerSecond: 2,
		Chunker:           chunker.DefaultConfig(),
	}

	switch preset {
	case PresetQuick:
		cfg.Plugins = []string{"spelling", "math"}
		cfg.TargetHighlights = 20
		cfg.MaxModelCalls = 20
		cfg.MaxRunTime = 2 * time.Minute
		cfg.Pipeline = plugin.Config{ExtractConcurrency: 2, MaxIssues: 20}

	case PresetThorough:
		cfg.Plugins = []string{"spelling", "math", "factcheck", "forecast"}
		cfg.TargetHighlights = 100
		cfg.MaxModelCalls = 500
		cfg.MaxRunTime = 30 * time.Minute
		cfg.Pipeline = plugin.Config{ExtractConcurrency: 8, MaxIssues: 100}

	default: // standard
		cfg.Preset = PresetStandard
		cfg.Plugins = []string{"spelling", "math", "factcheck"}
		cfg.Pipeline = plugin.Config{ExtractConcurrency: 4, MaxIssues: 50}
	}

	return cfg
}

// File is the structure of docaudit.yaml.
type File struct {
	// Preset to start from (quick/standard/thorough)
	Preset string `yaml:"preset"`

	// Model backend
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`

	// Plugins to run (empty uses the preset's set)
	Plugins []string `yaml:"plugins"`

	// Output and budget caps
	TargetHighlights  int     `yaml:"target_highlights"`
	MaxModelCalls     int64   `yaml:"max_model_calls"`
	MaxRunTime        string  `yaml:"max_run_time"` // duration string like "5m"
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Chunking parameters
	Chunker chunker.Config `yaml:"chunker"`

	// Pipeline tuning
	ExtractConcurrency int    `yaml:"extract_concurrency"`
	FindingTimeout     string `yaml:"finding_timeout"` // duration string like "30s"
	MaxIssuesPerPlugin int    `yaml:"max_issues_per_plugin"`
}

// Load reads configuration from path, falling back to preset defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return file.ToConfig()
}

// ToConfig resolves the file against its preset's defaults.
func (f *File) ToConfig() (*Config, error) {
	var cfg *Config
	switch f.Preset {
	case "", string(PresetStandard):
		cfg = PresetDefaults(PresetStandard)
	case string(PresetQuick), string(PresetThorough):
		cfg = PresetDefaults(Preset(f.Preset))
	default:
		return nil, fmt.Errorf("unknown preset %q (want quick, standard, or thorough)", f.Preset)
	}

	if f.Provider != "" {
		cfg.Provider = f.Provider
	}
	if f.Model != "" {
		cfg.Model = f.Model
	}
	if f.BaseURL != "" {
		cfg.BaseURL = f.BaseURL
	}
	if len(f.Plugins) > 0 {
		cfg.Plugins = f.Plugins
	}
	if f.TargetHighlights > 0 {
		cfg.TargetHighlights = f.TargetHighlights
	}
	if f.MaxModelCalls > 0 {
		cfg.MaxModelCalls = f.MaxModelCalls
	}
	if f.MaxRunTime != "" {
		d, err := time.ParseDuration(f.MaxRunTime)
		if err != nil {
			return nil, fmt.Errorf("invalid max_run_time: %w", err)
		}
		cfg.MaxRunTime = d
	}
	if f.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = f.RequestsPerSecond
	}

	if f.Chunker.TargetWords > 0 {
		cfg.Chunker.TargetWords = f.Chunker.TargetWords
	}
	if f.Chunker.MinChunkSize > 0 {
		cfg.Chunker.MinChunkSize = f.Chunker.MinChunkSize
	}
	if f.Chunker.MaxChunkSize > 0 {
		cfg.Chunker.MaxChunkSize = f.Chunker.MaxChunkSize
	}
	if f.Chunker.Overlap > 0 {
		cfg.Chunker.Overlap = f.Chunker.Overlap
	}
	if f.Chunker.Strategy != "" {
		cfg.Chunker.Strategy = f.Chunker.Strategy
	}

	if f.ExtractConcurrency > 0 {
		cfg.Pipeline.ExtractConcurrency = f.ExtractConcurrency
	}
	if f.FindingTimeout != "" {
		d, err := time.ParseDuration(f.FindingTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid finding_timeout: %w", err)
		}
		cfg.Pipeline.FindingTimeout = d
	}
	if f.MaxIssuesPerPlugin > 0 {
		cfg.Pipeline.MaxIssues = f.MaxIssuesPerPlugin
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the resolved configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown provider %q (want anthropic or openai)", c.Provider)
	}
	if len(c.Plugins) == 0 {
		return fmt.Errorf("no plugins selected")
	}
	if c.TargetHighlights < 0 {
		return fmt.Errorf("target_highlights cannot be negative (got %d)", c.TargetHighlights)
	}
	return c.Chunker.Validate()
}
