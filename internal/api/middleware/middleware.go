// Package middleware holds go-restful filters and error helpers shared by the HTTP API.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleError writes err as an ErrorResponse with the given status
func HandleError(resp *restful.Response, err error, status int) {
	HandleMessage(resp, err.Error(), status)
}

// HandleMessage writes msg as an ErrorResponse with the given status
func HandleMessage(resp *restful.Response, msg string, status int) {
	if status >= http.StatusInternalServerError {
		log.Error().Int("status", status).Str("error", msg).Msg("request failed")
	}
	_ = resp.WriteHeaderAndEntity(status, ErrorResponse{Error: msg})
}

// Logger logs every request after it completes
func Logger(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)

	status := resp.StatusCode()
	event := log.Info()
	if status >= http.StatusInternalServerError {
		event = log.Warn()
	}
	event.
		Str("method", req.Request.Method).
		Str("path", req.Request.URL.Path).
		Int("status", status).
		Dur("duration", time.Since(start)).
		Msg("http request")
}

// RecoverPanic turns a handler panic into a 500 response
func RecoverPanic(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("path", req.Request.URL.Path).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("handler panic")
			HandleMessage(resp, "internal server error", http.StatusInternalServerError)
		}
	}()
	chain.ProcessFilter(req, resp)
}
