// SPDX-License-Identifier: MPL-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cmdtree/cmdtree/internal/dispatch"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

type (
	dispatchRequest struct {
		Input string `json:"input"`
		Level int    `json:"level"`
	}

	errorResponse struct {
		Error  string `json:"error"`
		Result string `json:"result,omitempty"`
		// Cursor locates syntax errors in the submitted input.
		Cursor *int `json:"cursor,omitempty"`
		// Diagnostics lists every problem of a rejected reload.
		Diagnostics []diagnosticView `json:"diagnostics,omitempty"`
	}
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/tree", s.handleTree)
	r.Get("/tree/*", s.handleNode)
	r.Get("/suggest", s.handleSuggest)
	r.Post("/dispatch", s.handleDispatch)
	r.Post("/reload", s.handleReload)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"generation": s.trees.Current().Generation(),
	})
}

func (s *Server) handleTree(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newTreeView(s.trees.Current()))
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	n, ok := s.trees.Current().Lookup(path)
	if !ok || n.IsRoot() {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no node at " + strconv.Quote(path)})
		return
	}
	writeJSON(w, http.StatusOK, newNodeView(n))
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	level, err := queryLevel(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	suggestions := s.dispatcher.Suggest(dispatch.Level(level), r.URL.Query().Get("input"))
	if suggestions == nil {
		suggestions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	res, err := s.dispatcher.Execute(r.Context(), dispatch.Level(req.Level), req.Input)
	if err != nil {
		result := dispatch.Classify(err)
		body := errorResponse{Error: err.Error(), Result: result}
		var se *dispatch.SyntaxError
		if errors.As(err, &se) {
			body.Cursor = &se.Cursor
		}
		writeJSON(w, dispatchStatus(result), body)
		return
	}
	writeJSON(w, http.StatusOK, newResultView(res))
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	report, err := s.trees.Reload(r.Context())
	if err != nil {
		diags := cmdtree.Diagnostics(err)
		status := http.StatusInternalServerError
		if len(diags) > 0 {
			status = http.StatusUnprocessableEntity
		}
		body := errorResponse{Error: err.Error(), Diagnostics: newDiagnosticViews(diags)}
		if report != nil {
			body.Result = report.Result()
		}
		s.logger.Warn("reload via http failed", "error", err, "diagnostics", len(diags))
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, newReportView(report))
}

func dispatchStatus(result string) int {
	switch result {
	case dispatch.ResultUnknown, dispatch.ResultIncomplete, dispatch.ResultInvalid:
		return http.StatusBadRequest
	case dispatch.ResultDenied:
		return http.StatusForbidden
	case dispatch.ResultUnbound:
		return http.StatusNotImplemented
	case dispatch.ResultRedirect:
		return http.StatusUnprocessableEntity
	case dispatch.ResultCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func queryLevel(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("level")
	if raw == "" {
		return 0, nil
	}
	level, err := strconv.Atoi(raw)
	if err != nil || level < 0 {
		return 0, errors.New("level must be a non-negative integer")
	}
	return level, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
