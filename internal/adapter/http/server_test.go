package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/wind-telemetry-etl/internal/adapter/http"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRuns struct {
	entries []domain.LedgerEntry
	err     error
	limit   int
}

func (m *mockRuns) List(_ context.Context, limit int) ([]domain.LedgerEntry, error) {
	m.limit = limit
	return m.entries, m.err
}

func newTestServer(readyErr error, runs httpadapter.RunLister) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, runs, slog.Default())
}

func serve(srv http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(fmt.Errorf("scheduler is not running"), nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRunsEndpoint(t *testing.T) {
	runs := &mockRuns{entries: []domain.LedgerEntry{
		{Date: "2024-04-26", Status: domain.RunSucceeded, Attempt: 2},
		{Date: "2024-04-26", Status: domain.RunFailed, Attempt: 1, Error: "source unavailable"},
	}}
	srv := newTestServer(nil, runs)

	rec := serve(srv, "/runs?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, runs.limit)

	var body struct {
		Runs []domain.LedgerEntry `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	assert.Equal(t, domain.RunSucceeded, body.Runs[0].Status)

	rec = serve(srv, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, runs.limit)

	rec = serve(srv, "/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsEndpointError(t *testing.T) {
	rec := serve(newTestServer(nil, &mockRuns{err: errors.New("badger closed")}), "/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunsEndpointAbsentWithoutLedger(t *testing.T) {
	rec := serve(newTestServer(nil, nil), "/runs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
