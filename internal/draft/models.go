package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ModelInfo describes an installed Ollama model
type ModelInfo struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ModifiedAt  string `json:"modified_at"`
	Description string `json:"description"`
}

type tagsResponse struct {
	Models []struct {
		Name       string `json:"name"`
		Model      string `json:"model"`
		Size       int64  `json:"size"`
		ModifiedAt string `json:"modified_at"`
	} `json:"models"`
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Available reports whether the Ollama server answers
func (g *Generator) Available(ctx context.Context) bool {
	_, err := g.ListModels(ctx)
	return err == nil
}

// ListModels returns the models installed on the server
func (g *Generator) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint("/api/tags"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: tags returned %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		models = append(models, ModelInfo{
			Name:        name,
			Size:        m.Size,
			ModifiedAt:  m.ModifiedAt,
			Description: DescribeModel(name),
		})
	}
	return models, nil
}

// ModelInfo returns details for one installed model. An empty name means the
// default model.
func (g *Generator) ModelInfo(ctx context.Context, name string) (*ModelInfo, error) {
	if name == "" {
		name = g.model
	}
	models, err := g.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].Name == name {
			return &models[i], nil
		}
	}
	return nil, fmt.Errorf("model %s: %w", name, ErrModelNotFound)
}

// EnsureModel pulls model when it is not installed
func (g *Generator) EnsureModel(ctx context.Context, model string) error {
	models, err := g.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name == model {
			return nil
		}
	}

	g.logger.Info().Str("model", model).Msg("pulling model")
	if err := g.pull(ctx, model); err != nil {
		return fmt.Errorf("model %s is not available: %w", model, err)
	}
	g.logger.Info().Str("model", model).Msg("model pulled")
	return nil
}

func (g *Generator) pull(ctx context.Context, model string) error {
	body, err := json.Marshal(pullRequest{Model: model, Stream: false})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint("/api/pull"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var pr pullResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode pull response: %w", err)
	}
	if pr.Error != "" {
		return fmt.Errorf("pull failed: %s", pr.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull returned %d", resp.StatusCode)
	}
	return nil
}

func (g *Generator) endpoint(path string) string {
	return strings.TrimRight(g.baseURL, "/") + path
}
