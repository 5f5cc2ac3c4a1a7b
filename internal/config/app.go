package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dshills/patentsearch/internal/embedder"
)

// EnvPrefix is prepended to every environment override, e.g. PATENTSEARCH_DB_PATH
const EnvPrefix = "PATENTSEARCH"

// Draft cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// App is the process configuration shared by every command
type App struct {
	DBPath       string `mapstructure:"db_path" yaml:"db_path"`
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`
	Listen       string `mapstructure:"listen" yaml:"listen"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string `mapstructure:"log_format" yaml:"log_format"` // console | json
	QueryLog     string `mapstructure:"query_log" yaml:"query_log"`
	SearchConfig string `mapstructure:"search_config" yaml:"search_config"`
	Workers      int    `mapstructure:"workers" yaml:"workers"`

	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Ollama    OllamaConfig    `mapstructure:"ollama" yaml:"ollama"`
	Draft     DraftConfig     `mapstructure:"draft" yaml:"draft"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	URL       string `mapstructure:"url" yaml:"url"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Dimension int    `mapstructure:"dimension" yaml:"dimension"`
	CacheSize int    `mapstructure:"cache_size" yaml:"cache_size"`
}

// OllamaConfig points at the Ollama server used for drafts
type OllamaConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Model   string        `mapstructure:"model" yaml:"model"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DraftConfig configures the draft cache
type DraftConfig struct {
	CacheBackend  string        `mapstructure:"cache_backend" yaml:"cache_backend"`
	CacheSize     int           `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "patents.db")
	v.SetDefault("data_dir", "data")
	v.SetDefault("listen", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("query_log", "query_log.jsonl")
	v.SetDefault("search_config", "search_config.yaml")
	v.SetDefault("workers", 0)

	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimension", 0)
	v.SetDefault("embedding.cache_size", embedder.DefaultCacheSize)

	v.SetDefault("ollama.url", embedder.DefaultOllamaURL)
	v.SetDefault("ollama.model", "llama3.2:3b")
	v.SetDefault("ollama.timeout", 5*time.Minute)

	v.SetDefault("draft.cache_backend", CacheMemory)
	v.SetDefault("draft.cache_size", 100)
	v.SetDefault("draft.cache_ttl", 24*time.Hour)
	v.SetDefault("draft.redis_addr", "localhost:6379")
	v.SetDefault("draft.redis_password", "")
}

// NewViper returns a viper instance with defaults and PATENTSEARCH_* environment overrides
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load decodes the application configuration from v
func Load(v *viper.Viper) (*App, error) {
	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// OLLAMA_HOST is the conventional override used by the ollama CLI
	if host := os.Getenv(embedder.EnvOllamaURL); host != "" && app.Ollama.URL == embedder.DefaultOllamaURL {
		app.Ollama.URL = host
	}

	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

// Validate checks enumerated settings
func (a *App) Validate() error {
	switch a.Draft.CacheBackend {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("invalid draft.cache_backend %q: want %s or %s", a.Draft.CacheBackend, CacheMemory, CacheRedis)
	}
	switch a.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log_format %q: want console or json", a.LogFormat)
	}
	if a.DBPath == "" {
		return errors.New("db_path cannot be empty")
	}
	return nil
}

// EmbedderConfig maps the embedding section to an embedder.Config.
// An empty provider is resolved from the environment.
func (a *App) EmbedderConfig() embedder.Config {
	provider := strings.ToLower(a.Embedding.Provider)
	if provider == "" {
		provider = embedder.DetectProvider()
	}
	baseURL := a.Embedding.URL
	if provider == embedder.ProviderOllama && baseURL == "" {
		baseURL = a.Ollama.URL
	}
	return embedder.Config{
		Provider:  provider,
		Model:     a.Embedding.Model,
		APIKey:    a.Embedding.APIKey,
		BaseURL:   baseURL,
		Dimension: a.Embedding.Dimension,
		CacheSize: a.Embedding.CacheSize,
	}
}

// LoadDotEnv loads variables from the given .env files (default ".env").
// Missing files are ignored; existing environment variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
