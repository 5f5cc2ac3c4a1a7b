package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"github.com/dshills/patentsearch/internal/api/middleware"
	"github.com/dshills/patentsearch/internal/draft"
	"github.com/dshills/patentsearch/internal/orchestrator"
	"github.com/dshills/patentsearch/internal/querylog"
	"github.com/dshills/patentsearch/internal/searcher"
)

// Paths
const (
	APIPrefix = "/api/v1"
	DocsPath  = "/apidocs.json"
)

// RegisterRoutes adds the /api/v1 and /api web services to container
func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)
	ws.
		Path(APIPrefix).
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	searchTags := []string{"search"}
	draftTags := []string{"draft"}

	ws.Route(ws.POST("/search").
		To(handler.Search).
		Doc("Search patents").
		Metadata(restfulspec.KeyOpenAPITags, searchTags).
		Param(ws.QueryParameter("profile", "Search profile to apply before the body fields").DataType("string").Required(false)).
		Reads(searcher.Request{}).
		Writes(searcher.Response{}).
		Returns(200, "OK", searcher.Response{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}).
		Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.Route(ws.POST("/summarize").
		To(handler.Summarize).
		Doc("Summarize a patent description").
		Metadata(restfulspec.KeyOpenAPITags, searchTags).
		Reads(SummarizeRequest{}).
		Writes(searcher.Summary{}).
		Returns(200, "OK", searcher.Summary{}).
		Returns(404, "Patent Not Found", middleware.ErrorResponse{}))

	ws.Route(ws.POST("/lookup").
		To(handler.Lookup).
		Doc("Keyword lookup over patent titles and abstracts").
		Metadata(restfulspec.KeyOpenAPITags, searchTags).
		Reads(LookupRequest{}).
		Writes(searcher.LookupResponse{}).
		Returns(200, "OK", searcher.LookupResponse{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}).
		Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.Route(ws.POST("/batch_search").
		To(handler.BatchSearch).
		Doc("Run several queries with the same parameters").
		Metadata(restfulspec.KeyOpenAPITags, searchTags).
		Reads(BatchSearchRequest{}).
		Writes(BatchSearchResponse{}).
		Returns(200, "OK", BatchSearchResponse{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}))

	ws.Route(ws.POST("/compare_modes").
		To(handler.CompareModes).
		Doc("Run one query in every search mode").
		Metadata(restfulspec.KeyOpenAPITags, searchTags).
		Reads(searcher.Request{}).
		Writes(searcher.CompareResponse{}).
		Returns(200, "OK", searcher.CompareResponse{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}))

	ws.Route(ws.GET("/logs/analyze").
		To(handler.AnalyzeLogs).
		Doc("Summarize the query log").
		Metadata(restfulspec.KeyOpenAPITags, []string{"logs"}).
		Param(ws.QueryParameter("log_file", "Query log path").DataType("string").Required(false)).
		Writes(querylog.EndpointSummary{}).
		Returns(200, "OK", querylog.EndpointSummary{}))

	ws.Route(ws.GET("/health").
		To(handler.Health).
		Doc("Health check").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthResponse{}).
		Returns(200, "OK", HealthResponse{}).
		Returns(503, "Service Unavailable", middleware.ErrorResponse{}))

	ws.Route(ws.GET("/config").
		To(handler.Config).
		Doc("Search modes, profiles and query types").
		Metadata(restfulspec.KeyOpenAPITags, []string{"config"}).
		Writes(ConfigResponse{}).
		Returns(200, "OK", ConfigResponse{}))

	ws.Route(ws.POST("/draft").
		To(handler.Draft).
		Doc("Generate a patent draft").
		Metadata(restfulspec.KeyOpenAPITags, draftTags).
		Reads(DraftRequest{}).
		Writes(draft.Result{}).
		Returns(200, "OK", draft.Result{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}).
		Returns(503, "Ollama Unavailable", middleware.ErrorResponse{}))

	ws.Route(ws.POST("/draft/stream").
		To(handler.DraftStream).
		Doc("Stream a patent draft as plain text").
		Metadata(restfulspec.KeyOpenAPITags, draftTags).
		Produces("text/plain", restful.MIME_JSON).
		Reads(DraftRequest{}).
		Returns(200, "OK", nil).
		Returns(400, "Bad Request", middleware.ErrorResponse{}).
		Returns(503, "Ollama Unavailable", middleware.ErrorResponse{}))

	ws.Route(ws.POST("/draft/analyze").
		To(handler.DraftAnalyze).
		Doc("Generate a draft and find similar patents for each section").
		Metadata(restfulspec.KeyOpenAPITags, draftTags).
		Reads(orchestrator.Request{}).
		Writes(orchestrator.Response{}).
		Returns(200, "OK", orchestrator.Response{}).
		Returns(400, "Bad Request", middleware.ErrorResponse{}))

	ws.Route(ws.GET("/models").
		To(handler.Models).
		Doc("List installed Ollama models").
		Metadata(restfulspec.KeyOpenAPITags, draftTags).
		Writes(ModelsResponse{}).
		Returns(200, "OK", ModelsResponse{}).
		Returns(503, "Ollama Unavailable", middleware.ErrorResponse{}))

	ws.Route(ws.GET("/models/{name:*}").
		To(handler.Model).
		Doc("Describe one installed model").
		Metadata(restfulspec.KeyOpenAPITags, draftTags).
		Param(ws.PathParameter("name", "Model name, e.g. llama3.2:3b").DataType("string")).
		Writes(draft.ModelInfo{}).
		Returns(200, "OK", draft.ModelInfo{}).
		Returns(404, "Model Not Found", middleware.ErrorResponse{}))

	container.Add(ws)

	root := new(restful.WebService)
	root.Path("/api").Produces(restful.MIME_JSON)
	root.Route(root.GET("").
		To(handler.Root).
		Doc("API overview").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(RootResponse{}).
		Returns(200, "OK", RootResponse{}))
	container.Add(root)
}
