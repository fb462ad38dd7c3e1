package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/sift/internal/app"
	"github.com/raysh454/sift/internal/logging"
	"github.com/raysh454/sift/internal/metrics"
	"github.com/raysh454/sift/internal/model"
	"github.com/raysh454/sift/internal/progress"

	_ "github.com/raysh454/sift/internal/server/docs" // registers the swagger spec
)

const maxRequestBody = 1 << 20

// Server is the HTTP + WebSocket API surface for Sift.
type Server struct {
	cfg          Config
	orchestrator *app.Orchestrator
	auth         app.Authenticator
	hub          *progress.Hub
	metrics      *metrics.Metrics
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer wires the routes over deps.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Orchestrator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	if deps.Auth == nil {
		return nil, errors.New("server: authenticator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("server")
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	s := &Server{
		cfg:          cfg,
		orchestrator: deps.Orchestrator,
		auth:         deps.Auth,
		hub:          deps.Hub,
		metrics:      deps.Metrics,
		router:       r,
		logger:       logger.With(logging.Field{Key: "component", Value: "server"}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *app.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scans/multi-tool", s.optionsHandler("POST"))
	r.Options("/scans/{scanID}", s.optionsHandler("GET, DELETE"))
	r.Options("/scans/{baseID}/diff/{headID}", s.optionsHandler("GET"))
	r.Options("/workspaces/{workspaceID}/scans", s.optionsHandler("GET"))
	r.Options("/tools", s.optionsHandler("GET"))

	// Scans
	r.Post("/scans/multi-tool", s.handleMultiToolScan)
	r.Get("/scans/{scanID}", s.handleGetScan)
	r.Delete("/scans/{scanID}", s.handleCancelScan)
	r.Get("/scans/{baseID}/diff/{headID}", s.handleCompareScans)
	r.Get("/workspaces/{workspaceID}/scans", s.handleListScans)

	// Catalog and operations
	r.Get("/tools", s.handleListTools)
	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics && s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// WebSocket for scan progress
	if s.hub != nil {
		r.Get("/ws/scans/{scanID}", s.handleScanProgressWS)
	}
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch origin := r.Header.Get("Origin"); {
		case slices.Contains(s.cfg.AllowedOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && s.originAllowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		if q.Has("token") {
			q.Set("token", "[REDACTED]")
		}
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1)); err == nil {
			fields = append(fields, logging.Field{Key: "body_bytes", Value: len(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // scans and websockets stream for minutes
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// internalErrors are the sentinels whose text is safe to show for a 500.
var internalErrors = []error{
	app.ErrPersistence,
	app.ErrLedgerUnavailable,
	app.ErrAuthorizationUnavailable,
}

// writeAppError maps the orchestrator's error taxonomy onto HTTP.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	var quota *app.QuotaError
	switch {
	case errors.As(err, &quota):
		resp := ErrorResponse{Error: "Insufficient credits", Required: &quota.Required}
		if quota.Available >= 0 {
			resp.Available = &quota.Available
		}
		writeJSON(w, http.StatusPaymentRequired, resp)
	case errors.Is(err, app.ErrQuotaExceeded):
		writeError(w, http.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, app.ErrMalformedRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrScanNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrDuplicateScan):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", logging.Err(err))
		msg := "internal server error"
		for _, sentinel := range internalErrors {
			if errors.Is(err, sentinel) {
				msg = sentinel.Error()
				break
			}
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// --- Authentication ---

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket upgrades, so the token query parameter is accepted there.
func bearerToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// identify resolves the caller. A missing or unknown token yields the zero
// Identity, which the orchestrator rejects as unauthenticated.
func (s *Server) identify(ctx context.Context, r *http.Request, allowQuery bool) (model.Identity, error) {
	token := bearerToken(r, allowQuery)
	if token == "" {
		return model.Identity{}, nil
	}
	userID, ok, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", app.ErrAuthorizationUnavailable, err)
	}
	if !ok {
		return model.Identity{}, nil
	}
	return model.Identity{UserID: userID}, nil
}

// --- HTTP handlers ---

// Scans

// handleMultiToolScan runs a scan synchronously and returns its results.
//
// @Summary Run a multi-tool scan
// @Tags scans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MultiToolScanRequest true "scan request"
// @Success 200 {object} MultiToolScanResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scans/multi-tool [post]
func (s *Server) handleMultiToolScan(w http.ResponseWriter, r *http.Request) {
	var body MultiToolScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		s.logger.Warn("decoding scan request", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller, err := s.identify(r.Context(), r, false)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	run, err := s.orchestrator.RunScan(r.Context(), model.ScanRequest{
		Target:      body.Target,
		TargetType:  model.TargetType(body.TargetType),
		Tools:       body.Tools,
		WorkspaceID: body.WorkspaceID,
		ScanID:      body.ScanID,
	}, caller)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MultiToolScanResponse{
		Success:      true,
		ScanID:       run.ScanID,
		Status:       run.Status,
		Results:      run.Results,
		TotalCost:    run.TotalCost,
		Correlations: run.Correlations,
	})
}

// handleGetScan returns the stored scan record.
//
// @Summary Get a scan run
// @Tags scans
// @Produce json
// @Security BearerAuth
// @Param scanID path string true "scan id"
// @Success 200 {object} model.ScanRun
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{scanID} [get]
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")
	caller, err := s.identify(r.Context(), r, false)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	raw, err := s.orchestrator.GetScanRaw(r.Context(), scanID, caller)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// handleCancelScan stops a running scan. Outstanding tools settle as failed.
//
// @Summary Cancel a running scan
// @Tags scans
// @Security BearerAuth
// @Param scanID path string true "scan id"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /scans/{scanID} [delete]
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")
	caller, err := s.identify(r.Context(), r, false)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if err := s.orchestrator.StopScan(r.Context(), scanID, caller); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.logger.Info("canceled scan", logging.Field{Key: "scan_id", Value: scanID})
	w.WriteHeader(http.StatusNoContent)
}

// handleCompareScans diffs two runs of the same target.
//
// @Summary Compare two scan runs
// @Tags scans
// @Produce json
// @Security BearerAuth
// @Param baseID path string true "older scan id"
// @Param headID path string true "newer scan id"
// @Success 200 {object} compare.Comparison
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{baseID}/diff/{headID} [get]
func (s *Server) handleCompareScans(w http.ResponseWriter, r *http.Request) {
	caller, err := s.identify(r.Context(), r, false)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	cmp, err := s.orchestrator.CompareScans(r.Context(), chi.URLParam(r, "baseID"), chi.URLParam(r, "headID"), caller)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

// handleListScans lists a workspace's runs, newest first.
//
// @Summary List scans of a workspace
// @Tags scans
// @Produce json
// @Security BearerAuth
// @Param workspaceID path string true "workspace id"
// @Param limit query int false "maximum number of runs"
// @Success 200 {array} model.ScanSummary
// @Router /workspaces/{workspaceID}/scans [get]
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	limit := 0
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}

	caller, err := s.identify(r.Context(), r, false)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	list, err := s.orchestrator.ListScans(r.Context(), workspaceID, limit, caller)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Catalog

// handleListTools lists every registered tool with its price.
//
// @Summary List tools
// @Tags tools
// @Produce json
// @Success 200 {array} ToolInfo
// @Router /tools [get]
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	infos := s.orchestrator.Tools().Describe()
	out := make([]ToolInfo, 0, len(infos))
	for _, info := range infos {
		targets := make([]string, len(info.Targets))
		for i, t := range info.Targets {
			targets[i] = string(t)
		}
		out = append(out, ToolInfo{
			Name:       info.Name,
			Price:      info.Price,
			Targets:    targets,
			Configured: info.Configured,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// @Summary Liveness probe
// @Tags ops
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Version:     app.Version,
		ActiveScans: len(s.orchestrator.ActiveScans()),
	})
}
