package config

import (
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const envPrefix = "SEIRI_"

type Config struct {
	Resolver      ResolverConfig      `koanf:"resolver"`
	Store         StoreConfig         `koanf:"store"`
	Worker        WorkerConfig        `koanf:"worker"`
	Catalog       CatalogConfig       `koanf:"catalog"`
	LanguageModel LanguageModelConfig `koanf:"language_model"`
	WebSearch     WebSearchConfig     `koanf:"web_search"`
	CoverCacheDir string              `koanf:"cover_cache_dir" default:"covers"`
}

type ResolverConfig struct {
	// ConfidenceThreshold is the score below which an already-resolved
	// field is still offered to the cascade.
	ConfidenceThreshold float64 `koanf:"confidence_threshold" default:"0.8" validate:"gte=0,lte=1"`
}

type StoreConfig struct {
	// Path is the single persisted document holding every entity's
	// resolved fields and approval status.
	Path string `koanf:"path" default:"book_entries.json" validate:"required"`
	// AutosaveOnStatus persists the document after every approve/reject.
	AutosaveOnStatus bool `koanf:"autosave_on_status" default:"true"`
}

type WorkerConfig struct {
	// Processes bounds how many entities resolve concurrently.
	Processes int `koanf:"processes" default:"2" validate:"gte=1"`
}

type CatalogConfig struct {
	GoogleBaseURL      string `koanf:"google_base_url" default:"https://www.googleapis.com/books/v1" validate:"url"`
	OpenLibraryBaseURL string `koanf:"openlibrary_base_url" default:"https://openlibrary.org" validate:"url"`
	APIKey             string `koanf:"api_key"`
	TimeoutSeconds     int    `koanf:"timeout_seconds" default:"15" validate:"gte=1"`
	// MinRequestIntervalMs throttles successive catalog requests.
	MinRequestIntervalMs int    `koanf:"min_request_interval_ms" default:"100" validate:"gte=0"`
	MaxResults           int    `koanf:"max_results" default:"10" validate:"gte=1,lte=40"`
	CachePath            string `koanf:"cache_path" default:"api_cache.json"`
	CacheTTLHours        int    `koanf:"cache_ttl_hours" default:"24" validate:"gte=0"`
}

type LanguageModelConfig struct {
	// BaseURL points at an OpenAI-compatible chat completions API. Empty
	// means the adapter is unconfigured and proposes nothing.
	BaseURL        string  `koanf:"base_url" validate:"omitempty,url"`
	APIKey         string  `koanf:"api_key"`
	Model          string  `koanf:"model"`
	TimeoutSeconds int     `koanf:"timeout_seconds" default:"30" validate:"gte=1"`
	Temperature    float64 `koanf:"temperature" default:"0.1" validate:"gte=0,lte=2"`
	MaxTokens      int     `koanf:"max_tokens" default:"500" validate:"gte=1"`
}

type WebSearchConfig struct {
	BaseURL        string `koanf:"base_url" default:"https://html.duckduckgo.com/html/" validate:"url"`
	TimeoutSeconds int    `koanf:"timeout_seconds" default:"15" validate:"gte=1"`
	MaxResults     int    `koanf:"max_results" default:"10" validate:"gte=1"`
}

func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c CatalogConfig) MinRequestInterval() time.Duration {
	return time.Duration(c.MinRequestIntervalMs) * time.Millisecond
}

func (c CatalogConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

func (c LanguageModelConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c WebSearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// New loads configuration from defaults, then an optional YAML file, then
// SEIRI_-prefixed environment variables, and validates the result.
func New(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrap(err, "load config file")
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.WithStack(err)
		}
	}

	// SEIRI_CATALOG__API_KEY=... maps to catalog.api_key.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "load env config")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return cfg, nil
}
