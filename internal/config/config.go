// Package config loads runtime configuration for the card service. Secrets
// and endpoints come from the environment; tunables may come from an
// optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names a generation backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Config is everything the service needs to start.
type Config struct {
	// Provider selects the generation backend. Defaults to gemini.
	Provider Provider
	// GeminiAPIKey authenticates against the Gemini API.
	GeminiAPIKey string
	// OpenAIAPIKey authenticates against the OpenAI-compatible API.
	OpenAIAPIKey string
	// Model is the generation model id for the active provider.
	Model string
	// ModelBaseURL overrides the provider endpoint, for tests.
	ModelBaseURL string

	// SinkURL is the submission endpoint. Required.
	SinkURL string

	// SearchAPIKey and SearchCSEID enable web search. Both or neither:
	// with either missing, search is disabled and the pipeline runs on
	// card text alone.
	SearchAPIKey string
	SearchCSEID  string
	// SearchResults is how many results each query asks for.
	SearchResults int
	// SearchRateRPS throttles outbound search calls.
	SearchRateRPS float64

	// Addr is the listen address for the HTTP server.
	Addr string
	// RequestTimeout bounds one inbound request end to end.
	RequestTimeout time.Duration
}

// fileConfig is the optional YAML tunables file. Secrets never live here.
type fileConfig struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	Addr           string  `yaml:"addr"`
	SearchResults  int     `yaml:"search_results"`
	SearchRateRPS  float64 `yaml:"search_rate_rps"`
	RequestTimeout string  `yaml:"request_timeout"`
}

const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultAddr        = ":8000"
)

// Load builds a Config from the environment plus an optional YAML file at
// path (empty path means env only). Fatal requirements are checked here so
// the process fails at startup, not on the first request.
func Load(path string) (Config, error) {
	cfg := Config{
		Provider:       ProviderGemini,
		SearchResults:  3,
		SearchRateRPS:  5,
		Addr:           defaultAddr,
		RequestTimeout: 120 * time.Second,
	}

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Model == "" {
		switch cfg.Provider {
		case ProviderGemini:
			cfg.Model = defaultGeminiModel
		case ProviderOpenAI:
			cfg.Model = defaultOpenAIModel
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config YAML: %w", err)
	}
	if v := strings.TrimSpace(fc.Provider); v != "" {
		cfg.Provider = Provider(v)
	}
	if v := strings.TrimSpace(fc.Model); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(fc.Addr); v != "" {
		cfg.Addr = v
	}
	if fc.SearchResults > 0 {
		cfg.SearchResults = fc.SearchResults
	}
	if fc.SearchRateRPS > 0 {
		cfg.SearchRateRPS = fc.SearchRateRPS
	}
	if v := strings.TrimSpace(fc.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("MODEL_PROVIDER")); v != "" {
		cfg.Provider = Provider(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("MODEL_NAME")); v != "" {
		cfg.Model = v
	}
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.ModelBaseURL = strings.TrimSpace(os.Getenv("MODEL_BASE_URL"))
	cfg.SinkURL = strings.TrimSpace(os.Getenv("APPS_SCRIPT_URL"))
	cfg.SearchAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_SEARCH_API_KEY"))
	cfg.SearchCSEID = strings.TrimSpace(os.Getenv("GOOGLE_CSE_ID"))
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Addr = ":" + v
	}
	return nil
}

func (c Config) validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown provider %q", string(c.Provider))
	}
	if c.SinkURL == "" {
		return fmt.Errorf("APPS_SCRIPT_URL is required")
	}
	return nil
}

// SearchEnabled reports whether both search credentials are present.
func (c Config) SearchEnabled() bool {
	return c.SearchAPIKey != "" && c.SearchCSEID != ""
}
