package api

import (
	"net/http"

	"github.com/emicklei/go-restful/v3"

	"github.com/dshills/patentsearch/internal/api/middleware"
	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/orchestrator"
)

// DraftRequest is the body of POST /draft and /draft/stream. use_cache defaults to true.
type DraftRequest struct {
	Description  string `json:"description"`
	Model        string `json:"model,omitempty"`
	TemplateType string `json:"template_type,omitempty"`
	UseCache     *bool  `json:"use_cache,omitempty"`
}

func (d DraftRequest) toDraft() draft.Request {
	useCache := true
	if d.UseCache != nil {
		useCache = *d.UseCache
	}
	return draft.Request{
		Description:  d.Description,
		Model:        d.Model,
		TemplateType: d.TemplateType,
		UseCache:     useCache,
	}
}

// ModelsResponse is the body of GET /models
type ModelsResponse struct {
	DefaultModel string            `json:"default_model"`
	Models       []draft.ModelInfo `json:"models"`
}

func (h *Handler) draftUnavailable(resp *restful.Response) bool {
	if h.svc.Drafter == nil {
		middleware.HandleError(resp, draft.ErrUnavailable, http.StatusServiceUnavailable)
		return true
	}
	return false
}

// Draft handles POST /api/v1/draft
func (h *Handler) Draft(req *restful.Request, resp *restful.Response) {
	if h.draftUnavailable(resp) {
		return
	}
	var body DraftRequest
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result, err := h.svc.Drafter.Generate(req.Request.Context(), body.toDraft())
	if err != nil {
		h.fail(resp, err, "Draft generation failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// DraftStream handles POST /api/v1/draft/stream. The draft is written as chunked
// plain text; errors before the first chunk are reported as JSON.
func (h *Handler) DraftStream(req *restful.Request, resp *restful.Response) {
	if h.draftUnavailable(resp) {
		return
	}
	var body DraftRequest
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	w := resp.ResponseWriter
	flusher, _ := w.(http.Flusher)
	started := false

	_, err := h.svc.Drafter.Stream(req.Request.Context(), body.toDraft(), func(chunk string) error {
		if !started {
			resp.AddHeader("Content-Type", "text/plain; charset=utf-8")
			resp.AddHeader("Cache-Control", "no-cache")
			resp.AddHeader("X-Accel-Buffering", "no")
			resp.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err == nil {
		if !started {
			resp.AddHeader("Content-Type", "text/plain; charset=utf-8")
			resp.WriteHeader(http.StatusOK)
		}
		return
	}
	if !started {
		h.fail(resp, err, "Draft generation failed")
		return
	}
	h.logger.Warn().Err(err).Msg("draft stream interrupted")
}

// DraftAnalyze handles POST /api/v1/draft/analyze. Generation failures are
// reported in the body with success=false.
func (h *Handler) DraftAnalyze(req *restful.Request, resp *restful.Response) {
	if h.svc.Analyzer == nil {
		middleware.HandleError(resp, draft.ErrUnavailable, http.StatusServiceUnavailable)
		return
	}
	body := orchestrator.NewRequest("")
	if err := req.ReadEntity(&body); err != nil {
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result, err := h.svc.Analyzer.GenerateWithAnalysis(req.Request.Context(), body)
	if err != nil {
		h.fail(resp, err, "Draft analysis failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// Models handles GET /api/v1/models
func (h *Handler) Models(req *restful.Request, resp *restful.Response) {
	if h.draftUnavailable(resp) {
		return
	}
	models, err := h.svc.Drafter.ListModels(req.Request.Context())
	if err != nil {
		h.fail(resp, err, "Model listing failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, ModelsResponse{
		DefaultModel: h.svc.Drafter.DefaultModel(),
		Models:       models,
	})
}

// Model handles GET /api/v1/models/{name}
func (h *Handler) Model(req *restful.Request, resp *restful.Response) {
	if h.draftUnavailable(resp) {
		return
	}
	info, err := h.svc.Drafter.ModelInfo(req.Request.Context(), req.PathParameter("name"))
	if err != nil {
		h.fail(resp, err, "Model lookup failed")
		return
	}
	_ = resp.WriteHeaderAndEntity(http.StatusOK, info)
}
