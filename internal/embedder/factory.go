package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by NewFromEnv
const (
	EnvProvider  = "PATENTSEARCH_EMBEDDING_PROVIDER"
	EnvModel     = "PATENTSEARCH_EMBEDDING_MODEL"
	EnvOllamaURL = "OLLAMA_HOST"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string // Endpoint override; the server URL for ollama
	Dimension int    // ollama only
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. PATENTSEARCH_EMBEDDING_PROVIDER (jina, openai, ollama, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	cfg := Config{
		Provider:  DetectProvider(),
		Model:     os.Getenv(EnvModel),
		CacheSize: DefaultCacheSize,
	}
	if cfg.Provider == ProviderOllama {
		cfg.BaseURL = os.Getenv(EnvOllamaURL)
	}
	return New(cfg)
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		p, err := NewJinaProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		return p.WithModel(cfg.Model).WithEndpoint(cfg.BaseURL), nil
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey, cache)
		if err != nil {
			return nil, err
		}
		return p.WithModel(cfg.Model).WithEndpoint(cfg.BaseURL), nil
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimension, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
