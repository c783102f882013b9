// Package api exposes the profiling pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/source"
	"github.com/qupid/dq-suggestions/internal/store"
	"github.com/qupid/dq-suggestions/internal/suggest"
)

// Sampler reads from the profiled source database.
type Sampler interface {
	TableSample(ctx context.Context, schema, table string, limit int) (*source.Sample, error)
	TableRowCount(ctx context.Context, schema, table string) (int64, error)
}

// Runs persists and reads back pipeline output, profiling payloads,
// and discovery data.
type Runs interface {
	SaveRun(ctx context.Context, run *suggest.Run) error
	ListRuns(ctx context.Context, sourceKey, tableName string) ([]store.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*suggest.Run, error)
	SaveProfilingRun(ctx context.Context, run *store.ProfilingRun) error
	ListProfilingRuns(ctx context.Context, schemaName, tableName string) ([]store.ProfilingRun, error)
	QueryDiscoveryData(ctx context.Context, schemaFilter, sourceID string) ([]store.DiscoveryRecord, error)
}

// Suggester runs the suggestion pipeline.
type Suggester interface {
	Generate(ctx context.Context, req suggest.Request) (*suggest.Run, error)
}

// Server wires the handlers to their dependencies.
type Server struct {
	logger    *zap.Logger
	sampler   Sampler
	runs      Runs
	suggester Suggester
	sourceKey string
}

// NewServer builds a Server. sourceKey labels which configured source
// the sampler reads from; it is recorded on every run.
func NewServer(logger *zap.Logger, sampler Sampler, runs Runs, suggester Suggester, sourceKey string) *Server {
	return &Server{
		logger:    logger,
		sampler:   sampler,
		runs:      runs,
		suggester: suggester,
		sourceKey: sourceKey,
	}
}

// Routes assembles the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/profiling", func(r chi.Router) {
		r.Get("/discovery", s.handleDiscovery)
		r.Get("/source/table/sample", s.handleTableSample)
		r.Get("/source/table/count", s.handleTableCount)
		r.Get("/source/tables/from-discovery", s.handleTablesFromDiscovery)
		r.Get("/source/tables/sample-all", s.handleSampleAllTables)
		r.Post("/llm/suggestions", s.handleSuggestions)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Post("/profiling-runs", s.handleSaveProfilingRun)
		r.Get("/profiling-runs", s.handleListProfilingRuns)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encoding response", zap.Error(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
