package draft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/dshills/patentsearch/internal/embedder"
	"github.com/dshills/patentsearch/pkg/types"
)

var (
	// ErrUnavailable means the Ollama server could not be reached
	ErrUnavailable = errors.New("ollama is not available")
	// ErrModelNotFound means the model is not installed on the server
	ErrModelNotFound = fmt.Errorf("model %w", types.ErrNotFound)
)

// Sampling options sent with every generation
const (
	Temperature       = 0.7
	TopP              = 0.9
	TopK              = 40
	RepetitionPenalty = 1.1
)

// Request asks for one draft
type Request struct {
	Description  string `json:"description"`
	Model        string `json:"model,omitempty"`
	TemplateType string `json:"template_type,omitempty"`
	UseCache     bool   `json:"use_cache"`
}

// Result is a generated draft
type Result struct {
	Draft          string  `json:"draft"`
	Model          string  `json:"model"`
	TemplateType   string  `json:"template_type"`
	Cached         bool    `json:"cached"`
	GenerationTime float64 `json:"generation_time"`
}

// Generator drafts patent applications on an Ollama server
type Generator struct {
	baseURL string
	model   string
	client  *http.Client
	cache   Cache
	logger  zerolog.Logger
}

// Option configures a Generator
type Option func(*Generator)

// WithModel sets the default model
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithTimeout bounds each request to the server, including generation
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) { g.client = &http.Client{Timeout: d} }
}

// WithCache enables draft caching
func WithCache(c Cache) Option {
	return func(g *Generator) { g.cache = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator creates a generator for the server at baseURL
func NewGenerator(baseURL string, opts ...Option) *Generator {
	if baseURL == "" {
		baseURL = embedder.DefaultOllamaURL
	}
	g := &Generator{
		baseURL: baseURL,
		model:   DefaultModel,
		client:  &http.Client{Timeout: 5 * time.Minute},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultModel returns the model used when a request names none
func (g *Generator) DefaultModel() string {
	return g.model
}

// Generate produces a draft, serving it from the cache when UseCache is set
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	model, templateType, err := g.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	key := CacheKey(model, templateType, req.Description)
	if req.UseCache && g.cache != nil {
		text, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			g.logger.Warn().Err(err).Msg("draft cache read failed")
		}
		if ok {
			return &Result{Draft: text, Model: model, TemplateType: templateType, Cached: true}, nil
		}
	}

	result, err := g.run(ctx, model, templateType, req.Description, nil)
	if err != nil {
		return nil, err
	}

	if req.UseCache && g.cache != nil {
		if err := g.cache.Set(ctx, key, result.Draft); err != nil {
			g.logger.Warn().Err(err).Msg("draft cache write failed")
		}
	}
	return result, nil
}

// Stream produces a draft and hands every chunk to fn as it arrives.
// Streamed drafts bypass the cache. Returning an error from fn stops generation.
func (g *Generator) Stream(ctx context.Context, req Request, fn func(chunk string) error) (*Result, error) {
	model, templateType, err := g.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, model, templateType, req.Description, fn)
}

// prepare validates the request and makes sure the model is installed
func (g *Generator) prepare(ctx context.Context, req Request) (model, templateType string, err error) {
	if err := ValidateDescription(req.Description); err != nil {
		return "", "", err
	}

	model = req.Model
	if model == "" {
		model = g.model
	}
	templateType = req.TemplateType
	if templateType == "" {
		templateType = TemplateUtility
	}

	if err := g.EnsureModel(ctx, model); err != nil {
		return "", "", err
	}
	return model, templateType, nil
}

func (g *Generator) run(ctx context.Context, model, templateType, description string, fn func(string) error) (*Result, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(g.baseURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(g.client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	opts := []llms.CallOption{
		llms.WithTemperature(Temperature),
		llms.WithTopP(TopP),
		llms.WithTopK(TopK),
		llms.WithRepetitionPenalty(RepetitionPenalty),
	}
	if fn != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return fn(string(chunk))
		}))
	}

	start := time.Now()
	text, err := llms.GenerateFromSinglePrompt(ctx, llm, Prompt(description, templateType), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate draft: %w", err)
	}
	elapsed := time.Since(start)

	g.logger.Info().
		Str("model", model).
		Str("template", templateType).
		Bool("stream", fn != nil).
		Dur("duration", elapsed).
		Int("chars", len(text)).
		Msg("draft generated")

	return &Result{
		Draft:          text,
		Model:          model,
		TemplateType:   templateType,
		GenerationTime: elapsed.Seconds(),
	}, nil
}
