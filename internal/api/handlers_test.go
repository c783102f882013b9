package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qupid/dq-suggestions/internal/source"
	"github.com/qupid/dq-suggestions/internal/store"
	"github.com/qupid/dq-suggestions/internal/suggest"
)

type stubSampler struct {
	sample *source.Sample
	count  int64
	err    error

	// sampleFn, when set, decides per table.
	sampleFn func(schema, table string) (*source.Sample, error)
}

func (s *stubSampler) TableSample(_ context.Context, schema, table string, _ int) (*source.Sample, error) {
	if s.sampleFn != nil {
		return s.sampleFn(schema, table)
	}
	return s.sample, s.err
}

func (s *stubSampler) TableRowCount(context.Context, string, string) (int64, error) {
	return s.count, s.err
}

type stubRuns struct {
	saved   []*suggest.Run
	saveErr error

	summaries []store.RunSummary
	listErr   error

	run    *suggest.Run
	getErr error

	records  []store.DiscoveryRecord
	queryErr error

	profilingSaved []*store.ProfilingRun
	profilingRuns  []store.ProfilingRun
	profilingErr   error
}

func (s *stubRuns) SaveRun(_ context.Context, run *suggest.Run) error {
	s.saved = append(s.saved, run)
	return s.saveErr
}

func (s *stubRuns) ListRuns(context.Context, string, string) ([]store.RunSummary, error) {
	return s.summaries, s.listErr
}

func (s *stubRuns) GetRun(context.Context, string) (*suggest.Run, error) {
	return s.run, s.getErr
}

func (s *stubRuns) SaveProfilingRun(_ context.Context, run *store.ProfilingRun) error {
	s.profilingSaved = append(s.profilingSaved, run)
	return s.profilingErr
}

func (s *stubRuns) ListProfilingRuns(context.Context, string, string) ([]store.ProfilingRun, error) {
	return s.profilingRuns, s.profilingErr
}

func (s *stubRuns) QueryDiscoveryData(context.Context, string, string) ([]store.DiscoveryRecord, error) {
	return s.records, s.queryErr
}

type stubSuggester struct {
	run *suggest.Run
	err error
}

func (s *stubSuggester) Generate(context.Context, suggest.Request) (*suggest.Run, error) {
	return s.run, s.err
}

func defaultSample() *source.Sample {
	return &source.Sample{
		Columns: []source.ColumnInfo{{Name: "id", DataType: "bigint"}},
		Rows: []map[string]interface{}{
			{"id": int64(1)}, {"id": int64(2)}, {"id": int64(3)},
			{"id": int64(4)}, {"id": int64(5)},
		},
	}
}

func newTestServer(sampler *stubSampler, runs *stubRuns, suggester *stubSuggester) http.Handler {
	return NewServer(zap.NewNop(), sampler, runs, suggester, "billing").Routes()
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(&stubSampler{}, &stubRuns{}, &stubSuggester{})
	rec := doRequest(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestSuggestionsSuccess(t *testing.T) {
	runs := &stubRuns{}
	run := &suggest.Run{
		TableName: "transactions",
		Findings: []suggest.Finding{
			{Column: "email", Issues: []string{"invalid"}, Recommendation: "fix", Severity: suggest.SeverityHigh},
		},
	}
	h := newTestServer(&stubSampler{sample: defaultSample()}, runs, &stubSuggester{run: run})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/profiling/llm/suggestions?schema_name=billing&table_name=transactions")
	require.Equal(t, http.StatusOK, rec.Code)

	var got suggest.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Findings, 1)

	// The handler mints the run id and persists the run under it.
	assert.NotEmpty(t, got.ID)
	require.Len(t, runs.saved, 1)
	assert.Equal(t, got.ID, runs.saved[0].ID)
}

func TestSuggestionsMissingTableName(t *testing.T) {
	h := newTestServer(&stubSampler{sample: defaultSample()}, &stubRuns{}, &stubSuggester{})
	rec := doRequest(t, h, http.MethodPost, "/api/v1/profiling/llm/suggestions")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestionsErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		sampler    *stubSampler
		suggester  *stubSuggester
		runs       *stubRuns
		wantStatus int
	}{
		{
			name:       "sample failure is upstream",
			sampler:    &stubSampler{err: errors.New("connection refused")},
			suggester:  &stubSuggester{},
			runs:       &stubRuns{},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "generation failure is upstream",
			sampler:    &stubSampler{sample: defaultSample()},
			suggester:  &stubSuggester{err: &suggest.ErrGeneration{Msg: "backend down", Err: errors.New("503")}},
			runs:       &stubRuns{},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "malformed response is internal",
			sampler:    &stubSampler{sample: defaultSample()},
			suggester:  &stubSuggester{err: &suggest.ErrMalformedResponse{Msg: "not an array"}},
			runs:       &stubRuns{},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "invalid input is client error",
			sampler:    &stubSampler{sample: defaultSample()},
			suggester:  &stubSuggester{err: &suggest.ErrInvalidInput{Msg: "no columns"}},
			runs:       &stubRuns{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure is upstream",
			sampler:    &stubSampler{sample: defaultSample()},
			suggester:  &stubSuggester{run: &suggest.Run{ID: "r1"}},
			runs:       &stubRuns{saveErr: errors.New("db down")},
			wantStatus: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(tt.sampler, tt.runs, tt.suggester)
			rec := doRequest(t, h, http.MethodPost, "/api/v1/profiling/llm/suggestions?table_name=t")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestTableSample(t *testing.T) {
	h := newTestServer(&stubSampler{sample: defaultSample()}, &stubRuns{}, &stubSuggester{})
	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/source/table/sample?schema_name=billing&table_name=transactions&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["row_count"])
}

func TestTableCount(t *testing.T) {
	h := newTestServer(&stubSampler{count: 1234}, &stubRuns{}, &stubSuggester{})
	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/source/table/count?table_name=transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1234")
}

func TestTablesFromDiscovery(t *testing.T) {
	payload := `{"schemas": [{"schema_name": "billing", "tables": [{"table_name": "transactions", "columns": []}]}]}`
	runs := &stubRuns{records: []store.DiscoveryRecord{
		{ID: "d1", SourceID: "src-1", Schemas: json.RawMessage(payload), Timestamp: time.Now()},
	}}
	h := newTestServer(&stubSampler{}, runs, &stubSuggester{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/source/tables/from-discovery?source_id=src-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transactions")

	rec = doRequest(t, h, http.MethodGet, "/api/v1/profiling/source/tables/from-discovery")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSampleAllTablesSkipsFailures(t *testing.T) {
	payload := `{"schemas": [{"schema_name": "billing", "tables": [
		{"table_name": "transactions", "columns": []},
		{"table_name": "broken", "columns": []}
	]}]}`
	runs := &stubRuns{records: []store.DiscoveryRecord{
		{ID: "d1", SourceID: "src-1", Schemas: json.RawMessage(payload), Timestamp: time.Now()},
	}}
	sampler := &stubSampler{sampleFn: func(schema, table string) (*source.Sample, error) {
		if table == "broken" {
			return nil, errors.New("permission denied")
		}
		return defaultSample(), nil
	}}
	h := newTestServer(sampler, runs, &stubSuggester{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/source/tables/sample-all?source_id=src-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Discovered int `json:"discovered"`
		Count      int `json:"count"`
		Tables     []struct {
			TableName string `json:"table_name"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Discovered)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "transactions", body.Tables[0].TableName)
}

func TestSampleAllTablesRequiresSourceID(t *testing.T) {
	h := newTestServer(&stubSampler{}, &stubRuns{}, &stubSuggester{})
	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/source/tables/sample-all")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveProfilingRun(t *testing.T) {
	runs := &stubRuns{}
	h := newTestServer(&stubSampler{}, runs, &stubSuggester{})

	body := strings.NewReader(`{"source_id": "src-1", "schema_name": "billing", "table_name": "transactions",
		"column_profiles": [{"column_name": "amount", "metrics": {"null_pct": 0}}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiling/profiling-runs", body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, runs.profilingSaved, 1)
	assert.Equal(t, "transactions", runs.profilingSaved[0].TableName)
	assert.NotEmpty(t, runs.profilingSaved[0].ID)
}

func TestSaveProfilingRunRejectsBadPayload(t *testing.T) {
	h := newTestServer(&stubSampler{}, &stubRuns{}, &stubSuggester{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/profiling/profiling-runs", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/profiling/profiling-runs", strings.NewReader(`{"source_id": "src-1"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProfilingRuns(t *testing.T) {
	runs := &stubRuns{profilingRuns: []store.ProfilingRun{
		{ID: "p1", SourceID: "src-1", SchemaName: "billing", TableName: "transactions"},
	}}
	h := newTestServer(&stubSampler{}, runs, &stubSuggester{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/profiling-runs?table_name=transactions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"p1"`)
}

func TestDiscoveryStoreErrorIsUpstream(t *testing.T) {
	h := newTestServer(&stubSampler{}, &stubRuns{queryErr: errors.New("db down")}, &stubSuggester{})
	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/discovery")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetRunNotFound(t *testing.T) {
	runs := &stubRuns{getErr: store.ErrNotFound}
	h := newTestServer(&stubSampler{}, runs, &stubSuggester{})
	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/runs/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	runs := &stubRuns{summaries: []store.RunSummary{{ID: "r1", TableName: "transactions", FindingCount: 2}}}
	h := newTestServer(&stubSampler{}, runs, &stubSuggester{})
	rec := doRequest(t, h, http.MethodGet, "/api/v1/profiling/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"r1"`)
}

func TestQueryIntFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	assert.Equal(t, 100, queryInt(req, "limit", 100))

	req = httptest.NewRequest(http.MethodGet, "/?limit=-5", nil)
	assert.Equal(t, 100, queryInt(req, "limit", 100))

	req = httptest.NewRequest(http.MethodGet, "/?limit=25", nil)
	assert.Equal(t, 25, queryInt(req, "limit", 100))
}
