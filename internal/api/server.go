// Package api serves the patent search HTTP API and the web frontend.
package api

import (
	"context"
	"embed"
	"errors"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/dshills/patentsearch/internal/api/middleware"
)

//go:embed web/index.html
var webFS embed.FS

func enrichSwaggerObject(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Patent NLP API",
			Description: "Patent search with TF-IDF, semantic and hybrid ranking, plus local draft generation",
			Version:     Version,
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "search", Description: "Search, summarize, batch and compare"}},
		{TagProps: spec.TagProps{Name: "draft", Description: "Draft generation and models"}},
		{TagProps: spec.TagProps{Name: "logs", Description: "Query log analysis"}},
		{TagProps: spec.TagProps{Name: "config", Description: "Search configuration"}},
		{TagProps: spec.TagProps{Name: "health", Description: "Health checks"}},
	}
}

// NewContainer builds the restful container with filters, routes, the OpenAPI
// document and the frontend page
func NewContainer(handler *Handler) *restful.Container {
	container := restful.NewContainer()
	container.Filter(middleware.Logger)
	container.Filter(middleware.RecoverPanic)

	RegisterRoutes(container, handler)

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices:                   container.RegisteredWebServices(),
		APIPath:                       DocsPath,
		PostBuildSwaggerObjectHandler: enrichSwaggerObject,
	}))

	container.Handle("/", http.HandlerFunc(serveIndex))
	return container
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// NewHTTPHandler wraps the container with CORS for every origin
func NewHTTPHandler(container *restful.Container) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(container)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
func Serve(ctx context.Context, addr string, handler *Handler, logger *zerolog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(NewContainer(handler)),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("address", addr).Msg("starting patent search API")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
