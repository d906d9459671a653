// Package config handles memorytest configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/speaks999/memorytest/internal/profile"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/memorytest/config.yaml, /etc/memorytest/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "memorytest", "config.yaml"))
	}

	paths = append(paths, "/etc/memorytest/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all memorytest configuration.
type Config struct {
	Listen        string                  `yaml:"listen"`
	PublicBaseURL string                  `yaml:"public_base_url"`
	LogLevel      string                  `yaml:"log_level"`
	LogFormat     string                  `yaml:"log_format"`
	OpenAI        OpenAIConfig            `yaml:"openai"`
	Agent         AgentConfig             `yaml:"agent"`
	Editor        EditorConfig            `yaml:"editor"`
	Store         StoreConfig             `yaml:"store"`
	Pricing       PricingConfig           `yaml:"pricing"`
	Profile       profile.BusinessProfile `yaml:"profile"`
}

// OpenAIConfig defines provider connection settings.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the API endpoint, e.g. for a proxy or a
	// compatible local server. Empty means the official endpoint.
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AgentConfig controls the conversation loop.
type AgentConfig struct {
	Model string `yaml:"model"`
	// MaxIterations caps how many tool-call rounds a single request
	// may take before the loop gives up.
	MaxIterations   int `yaml:"max_iterations"`
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// EditorConfig controls the HTML editor's model calls.
type EditorConfig struct {
	// Model used for edit and generate calls. Empty means the agent model.
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// StoreConfig locates persisted state on disk.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
}

// MemoryPath returns the key/value store file path.
func (s StoreConfig) MemoryPath() string {
	return filepath.Join(s.DataDir, "memory.json")
}

// DocumentsPath returns the document store file path.
func (s StoreConfig) DocumentsPath() string {
	return filepath.Join(s.DataDir, "documents.json")
}

// UsageDBPath returns the usage history database path.
func (s StoreConfig) UsageDBPath() string {
	return filepath.Join(s.DataDir, "usage.db")
}

// PricingEntry is a per-model price in dollars per million tokens.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million" json:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million" json:"output_per_million"`
}

// PricingConfig maps model names to prices. Models not listed are
// billed at the default model's prices.
type PricingConfig struct {
	DefaultModel string                  `yaml:"default_model"`
	Models       map[string]PricingEntry `yaml:"models"`
}

// Resolve returns the pricing for model, falling back to the default
// model's entry when the model has no entry of its own.
func (p PricingConfig) Resolve(model string) PricingEntry {
	if entry, ok := p.Models[model]; ok {
		return entry
	}
	return p.Models[p.DefaultModel]
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration. The OpenAI API key is
// taken from the environment; everything else uses built-in values.
func Default() *Config {
	cfg := &Config{
		OpenAI: OpenAIConfig{APIKey: os.Getenv("OPENAI_API_KEY")},
	}
	_ = cfg.Validate()
	return cfg
}

// Validate applies defaults and rejects values the rest of the
// program cannot work with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.PublicBaseURL == "" {
		c.PublicBaseURL = "http://" + c.Listen
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "":
		c.LogFormat = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q: must be text or json", c.LogFormat)
	}

	if c.OpenAI.TimeoutSeconds <= 0 {
		c.OpenAI.TimeoutSeconds = 120
	}

	if c.Agent.Model == "" {
		c.Agent.Model = "gpt-4o-mini"
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 8
	}
	if c.Agent.MaxOutputTokens <= 0 {
		c.Agent.MaxOutputTokens = 4096
	}

	if c.Editor.Model == "" {
		c.Editor.Model = c.Agent.Model
	}
	if c.Editor.MaxOutputTokens <= 0 {
		c.Editor.MaxOutputTokens = 8192
	}

	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}

	if c.Pricing.DefaultModel == "" {
		c.Pricing.DefaultModel = c.Agent.Model
	}
	if c.Pricing.Models == nil {
		c.Pricing.Models = map[string]PricingEntry{}
	}
	if _, ok := c.Pricing.Models[c.Pricing.DefaultModel]; !ok {
		c.Pricing.Models[c.Pricing.DefaultModel] = PricingEntry{
			InputPerMillion:  0.15,
			OutputPerMillion: 0.60,
		}
	}

	c.Profile.ApplyDefaults()

	return nil
}
