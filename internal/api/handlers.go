package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/analyzer"
	"github.com/qupid/dq-suggestions/internal/discovery"
	"github.com/qupid/dq-suggestions/internal/source"
	"github.com/qupid/dq-suggestions/internal/store"
	"github.com/qupid/dq-suggestions/internal/suggest"
)

const defaultSampleLimit = 100

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	records, err := s.runs.QueryDiscoveryData(r.Context(),
		r.URL.Query().Get("schema"),
		r.URL.Query().Get("source_id"))
	if err != nil {
		s.logger.Error("discovery query failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to query discovery data")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleTableSample(w http.ResponseWriter, r *http.Request) {
	schema := r.URL.Query().Get("schema_name")
	table := r.URL.Query().Get("table_name")
	if table == "" {
		s.writeError(w, http.StatusBadRequest, "table_name is required")
		return
	}
	limit := queryInt(r, "limit", defaultSampleLimit)

	sample, err := s.sampler.TableSample(r.Context(), schema, table, limit)
	if err != nil {
		s.logger.Error("table sample failed",
			zap.String("table", table), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to sample table")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"schema_name": schema,
		"table_name":  table,
		"row_count":   len(sample.Rows),
		"columns":     sample.Columns,
		"rows":        sample.Rows,
	})
}

func (s *Server) handleTableCount(w http.ResponseWriter, r *http.Request) {
	schema := r.URL.Query().Get("schema_name")
	table := r.URL.Query().Get("table_name")
	if table == "" {
		s.writeError(w, http.StatusBadRequest, "table_name is required")
		return
	}

	count, err := s.sampler.TableRowCount(r.Context(), schema, table)
	if err != nil {
		s.logger.Error("row count failed",
			zap.String("table", table), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to count rows")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"schema_name": schema,
		"table_name":  table,
		"row_count":   count,
	})
}

func (s *Server) handleTablesFromDiscovery(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		s.writeError(w, http.StatusBadRequest, "source_id is required")
		return
	}
	schemaFilter := r.URL.Query().Get("schema_filter")
	tableFilter := r.URL.Query().Get("table_filter")

	records, err := s.runs.QueryDiscoveryData(r.Context(), schemaFilter, sourceID)
	if err != nil {
		s.logger.Error("discovery query failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to query discovery data")
		return
	}

	tables, err := discovery.TablesFromRecords(records, schemaFilter, tableFilter, s.logger)
	if err != nil {
		s.logger.Error("discovery payload parse failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to parse discovery data")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(tables),
		"tables": tables,
	})
}

// handleSuggestions samples the table, runs the pipeline, stores the
// run, and returns it. Upstream faults (source database, generation
// backend, store) map to 502; a response the parser rejects maps to
// 500 because the fault is in the payload, not the transport.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	schema := r.URL.Query().Get("schema_name")
	table := r.URL.Query().Get("table_name")
	if table == "" {
		s.writeError(w, http.StatusBadRequest, "table_name is required")
		return
	}
	limit := queryInt(r, "limit", defaultSampleLimit)

	sample, err := s.sampler.TableSample(r.Context(), schema, table, limit)
	if err != nil {
		s.logger.Error("table sample failed",
			zap.String("table", table), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to sample table")
		return
	}

	run, err := s.suggester.Generate(r.Context(), suggest.Request{
		SourceKey:  s.sourceKey,
		SchemaName: schema,
		TableName:  table,
		Columns:    toAnalyzerColumns(sample.Columns),
		Rows:       toAnalyzerRows(sample.Rows),
	})
	if err != nil {
		s.logger.Error("suggestion pipeline failed",
			zap.String("table", table), zap.Error(err))

		var invalid *suggest.ErrInvalidInput
		var malformed *suggest.ErrMalformedResponse
		switch {
		case errors.As(err, &invalid):
			s.writeError(w, http.StatusBadRequest, invalid.Error())
		case errors.As(err, &malformed):
			s.writeError(w, http.StatusInternalServerError, "generation returned an unusable response")
		default:
			s.writeError(w, http.StatusBadGateway, "generation backend unavailable")
		}
		return
	}

	// The pipeline emits identity-free runs; the id is minted here,
	// where the run gains a persisted existence.
	run.ID = uuid.NewString()
	if err := s.runs.SaveRun(r.Context(), run); err != nil {
		s.logger.Error("saving run failed",
			zap.String("run_id", run.ID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to store suggestion run")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

// handleSampleAllTables samples every table the discovery catalog knows
// for a source. A table that fails to sample is logged and skipped so
// one broken table does not sink the whole sweep.
func (s *Server) handleSampleAllTables(w http.ResponseWriter, r *http.Request) {
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		s.writeError(w, http.StatusBadRequest, "source_id is required")
		return
	}
	schemaFilter := r.URL.Query().Get("schema_filter")
	limit := queryInt(r, "limit", defaultSampleLimit)

	records, err := s.runs.QueryDiscoveryData(r.Context(), schemaFilter, sourceID)
	if err != nil {
		s.logger.Error("discovery query failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to query discovery data")
		return
	}

	tables, err := discovery.TablesFromRecords(records, schemaFilter, "", s.logger)
	if err != nil {
		s.logger.Error("discovery payload parse failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to parse discovery data")
		return
	}

	results := make([]map[string]interface{}, 0, len(tables))
	for _, tbl := range tables {
		sample, err := s.sampler.TableSample(r.Context(), tbl.SchemaName, tbl.TableName, limit)
		if err != nil {
			s.logger.Warn("skipping table that failed to sample",
				zap.String("schema", tbl.SchemaName),
				zap.String("table", tbl.TableName),
				zap.Error(err))
			continue
		}
		results = append(results, map[string]interface{}{
			"schema_name": tbl.SchemaName,
			"table_name":  tbl.TableName,
			"row_count":   len(sample.Rows),
			"columns":     sample.Columns,
			"rows":        sample.Rows,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"discovered": len(tables),
		"count":      len(results),
		"tables":     results,
	})
}

func (s *Server) handleSaveProfilingRun(w http.ResponseWriter, r *http.Request) {
	var run store.ProfilingRun
	if err := json.NewDecoder(r.Body).Decode(&run); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid profiling run payload")
		return
	}
	if run.TableName == "" {
		s.writeError(w, http.StatusBadRequest, "table_name is required")
		return
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	if err := s.runs.SaveProfilingRun(r.Context(), &run); err != nil {
		s.logger.Error("saving profiling run failed",
			zap.String("table", run.TableName), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to store profiling run")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": run.ID})
}

func (s *Server) handleListProfilingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.ListProfilingRuns(r.Context(),
		r.URL.Query().Get("schema_name"),
		r.URL.Query().Get("table_name"))
	if err != nil {
		s.logger.Error("listing profiling runs failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to list profiling runs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.runs.ListRuns(r.Context(),
		r.URL.Query().Get("source_key"),
		r.URL.Query().Get("table_name"))
	if err != nil {
		s.logger.Error("listing runs failed", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(summaries),
		"runs":  summaries,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := s.runs.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("fetching run failed",
			zap.String("run_id", runID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "failed to fetch run")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func toAnalyzerColumns(cols []source.ColumnInfo) []analyzer.Column {
	out := make([]analyzer.Column, len(cols))
	for i, c := range cols {
		out[i] = analyzer.Column{Name: c.Name, Type: c.DataType}
	}
	return out
}

func toAnalyzerRows(rows []map[string]interface{}) []analyzer.Row {
	out := make([]analyzer.Row, len(rows))
	for i, r := range rows {
		out[i] = analyzer.Row(r)
	}
	return out
}
