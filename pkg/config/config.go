// Package config loads the storylab configuration.
//
// Values are layered: Default, then an optional YAML file, then environment
// variables. String secrets in the YAML file may reference the environment
// with a leading "$", e.g. api_key: $DEEPSEEK_API_KEY.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"

	"github.com/Hua914255/media/pkg/genx"
)

const (
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	// ProviderNone forces offline mode.
	ProviderNone = "none"

	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultDeepSeekModel   = "deepseek-chat"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultGeminiModel     = "gemini-2.0-flash"
)

type Config struct {
	Server       Server       `yaml:"server"`
	Storage      Storage      `yaml:"storage"`
	LLM          LLM          `yaml:"llm"`
	Continuation Continuation `yaml:"continuation"`
}

type Server struct {
	Addr string `yaml:"addr" env:"STORYLAB_ADDR"`

	// CORSOrigins lists the allowed browser origins. "*" allows any.
	CORSOrigins []string `yaml:"cors_origins,omitempty" env:"STORYLAB_CORS_ORIGINS" envSeparator:","`
}

const (
	StorageBadger = "badger"
	StorageSQLite = "sqlite"
	// StorageMemory keeps stories in process memory only.
	StorageMemory = "memory"
)

type Storage struct {
	Driver string `yaml:"driver" env:"STORYLAB_STORAGE"`

	// Dir holds the badger files or the sqlite database file.
	Dir string `yaml:"dir" env:"STORYLAB_DATA_DIR"`
}

type LLM struct {
	// Provider is one of deepseek, openai, gemini or none. Empty picks the
	// first provider with a key.
	Provider string `yaml:"provider,omitempty" env:"LLM_PROVIDER"`

	// APIKey, BaseURL and Model serve the deepseek and openai providers.
	// Empty BaseURL and Model take the provider's defaults.
	APIKey  string `yaml:"api_key,omitempty" env:"DEEPSEEK_API_KEY"`
	BaseURL string `yaml:"base_url,omitempty" env:"DEEPSEEK_BASE_URL"`
	Model   string `yaml:"model,omitempty" env:"DEEPSEEK_MODEL"`

	GeminiAPIKey string `yaml:"gemini_api_key,omitempty" env:"GEMINI_API_KEY"`
	GeminiModel  string `yaml:"gemini_model,omitempty" env:"GEMINI_MODEL"`

	Timeout       time.Duration `yaml:"timeout" env:"LLM_TIMEOUT"`
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"LLM_STREAM_TIMEOUT"`

	Params *genx.ModelParams `yaml:"params,omitempty"`

	// Verbose logs upstream request bodies at debug level.
	Verbose bool `yaml:"verbose,omitempty" env:"LLM_VERBOSE"`
}

type Continuation struct {
	MaxAttempts  int           `yaml:"max_attempts" env:"STORYLAB_MAX_ATTEMPTS"`
	TopUp        bool          `yaml:"top_up,omitempty" env:"STORYLAB_TOP_UP"`
	FallbackPace time.Duration `yaml:"fallback_pace" env:"STORYLAB_FALLBACK_PACE"`
}

func Default() *Config {
	return &Config{
		Server: Server{
			Addr:        ":8000",
			CORSOrigins: []string{"*"},
		},
		Storage: Storage{
			Driver: StorageBadger,
			Dir:    "data",
		},
		LLM: LLM{
			GeminiModel:   DefaultGeminiModel,
			Timeout:       60 * time.Second,
			StreamTimeout: 120 * time.Second,
			Params:        genx.DefaultModelParams(),
		},
		Continuation: Continuation{
			MaxAttempts:  6,
			FallbackPace: 350 * time.Millisecond,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
		cfg.LLM.GeminiAPIKey = expandEnv(cfg.LLM.GeminiAPIKey)
		cfg.LLM.BaseURL = expandEnv(cfg.LLM.BaseURL)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse env: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Storage.Driver {
	case StorageBadger, StorageSQLite:
		if c.Storage.Dir == "" {
			errs = append(errs, fmt.Errorf("storage.dir is required for the %s driver", c.Storage.Driver))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is unknown", c.Storage.Driver))
	}
	switch c.LLM.Provider {
	case "", ProviderDeepSeek, ProviderOpenAI, ProviderGemini, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is unknown", c.LLM.Provider))
	}
	if c.LLM.Timeout < 0 || c.LLM.StreamTimeout < 0 {
		errs = append(errs, errors.New("llm timeouts must not be negative"))
	}
	if c.Continuation.MaxAttempts < 0 {
		errs = append(errs, errors.New("continuation.max_attempts must not be negative"))
	}
	if c.Continuation.FallbackPace < 0 {
		errs = append(errs, errors.New("continuation.fallback_pace must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// expandEnv resolves values of the form "$NAME" from the environment.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "$") {
		return os.ExpandEnv(s)
	}
	return s
}
