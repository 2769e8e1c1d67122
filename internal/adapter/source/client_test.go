package source

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/klauspost/compress/gzhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var tracked = []domain.Variable{domain.WindSpeed, domain.Power}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testWindow(t *testing.T) domain.Window {
	t.Helper()
	w, err := domain.BuildDayWindow("2024-04-26")
	require.NoError(t, err)
	return w
}

func jsonHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, err := io.WriteString(w, body)
		require.NoError(t, err)
	}
}

func TestClient_FetchSeries_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DataPath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2024-04-26T00:00:00Z", q.Get("start"))
		assert.Equal(t, "2024-04-27T00:00:00Z", q.Get("end"))
		assert.Equal(t, []string{"wind_speed", "power"}, q["variables"])

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[
			{"timestamp": "2024-04-26T03:07:00Z", "wind_speed": 6.0},
			{"timestamp": "2024-04-26T03:01:00Z", "wind_speed": 4.0, "power": null, "ambient_temperature": 21.5}
		]`)
	}))
	defer srv.Close()

	w := testWindow(t)
	series, err := testClient(srv.URL+"/").FetchSeries(context.Background(), w, tracked)
	require.NoError(t, err)

	require.Equal(t, 2, series.Len())
	first := series.Samples[0]
	assert.Equal(t, w.Start.Add(3*time.Hour+time.Minute), first.Timestamp)
	assert.Equal(t, domain.Present(4.0), first.Values[domain.WindSpeed])
	assert.Equal(t, domain.Missing, first.Values[domain.Power])
	assert.NotContains(t, first.Values, domain.AmbientTemperature)

	second := series.Samples[1]
	assert.Equal(t, domain.Present(6.0), second.Values[domain.WindSpeed])
	assert.Equal(t, domain.Missing, second.Values[domain.Power], "absent column is filled, not dropped")
}

func TestClient_FetchSeries_EmptyWindow(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `[]`))
	defer srv.Close()

	series, err := testClient(srv.URL).FetchSeries(context.Background(), testWindow(t), tracked)
	require.NoError(t, err)
	assert.Zero(t, series.Len())
	assert.Equal(t, tracked, series.Variables)
}

func TestClient_FetchSeries_NaiveTimestampsAreUTC(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(t, `[{"timestamp": "2024-04-26T10:00:00", "wind_speed": 1, "power": 2}]`))
	defer srv.Close()

	w := testWindow(t)
	series, err := testClient(srv.URL).FetchSeries(context.Background(), w, tracked)
	require.NoError(t, err)
	require.Equal(t, 1, series.Len())
	assert.Equal(t, w.Start.Add(10*time.Hour), series.Samples[0].Timestamp)
}

func TestClient_FetchSeries_GzipResponse(t *testing.T) {
	start := testWindow(t).Start
	rows := make([]map[string]any, 0, 120)
	for i := range 120 {
		s := domain.RawSample{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Values:    map[domain.Variable]domain.Reading{domain.WindSpeed: domain.Present(float64(i)), domain.Power: domain.Missing},
		}
		rows = append(rows, EncodeRow(s, tracked))
	}
	payload, err := json.Marshal(rows)
	require.NoError(t, err)

	var gzipped atomic.Bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gzipped.Store(r.Header.Get("Accept-Encoding") != "")
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write(payload)
	})
	srv := httptest.NewServer(gzhttp.GzipHandler(inner))
	defer srv.Close()

	series, err := testClient(srv.URL).FetchSeries(context.Background(), testWindow(t), tracked)
	require.NoError(t, err)
	assert.True(t, gzipped.Load(), "client should advertise compression")
	require.Equal(t, 120, series.Len())
	assert.Equal(t, domain.Present(119), series.Samples[119].Values[domain.WindSpeed])
}

func TestClient_FetchSeries_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "database is down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchSeries(context.Background(), testWindow(t), tracked)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "database is down")
}

func TestClient_FetchSeries_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.FetchSeries(context.Background(), testWindow(t), tracked)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_FetchSeries_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url).FetchSeries(context.Background(), testWindow(t), tracked)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.True(t, domain.Retryable(err))
}

func TestClient_FetchSeries_InvalidShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"object instead of array", `{"rows": []}`},
		{"missing timestamp", `[{"wind_speed": 1}]`},
		{"bad timestamp", `[{"timestamp": "yesterday", "wind_speed": 1}]`},
		{"non numeric value", `[{"timestamp": "2024-04-26T00:00:00Z", "wind_speed": "fast"}]`},
		{"outside window", `[{"timestamp": "2024-04-27T00:00:00Z", "wind_speed": 1}]`},
		{"duplicate timestamp", `[{"timestamp": "2024-04-26T00:00:00Z"}, {"timestamp": "2024-04-26T00:00:00Z"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(t, tt.body))
			defer srv.Close()

			_, err := testClient(srv.URL).FetchSeries(context.Background(), testWindow(t), tracked)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidResponseShape)
			assert.False(t, domain.Retryable(err))
		})
	}
}

func TestClient_FetchSeries_RejectsUnknownVariableBeforeCalling(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	vars := []domain.Variable{domain.WindSpeed, "rotor_rpm"}
	_, err := testClient(srv.URL).FetchSeries(context.Background(), testWindow(t), vars)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidVariable)
	assert.Zero(t, hits.Load())
}

func TestEncodeRow_MissingIsNull(t *testing.T) {
	ts := time.Date(2024, 4, 26, 3, 1, 0, 0, time.UTC)
	row := EncodeRow(domain.RawSample{
		Timestamp: ts,
		Values:    map[domain.Variable]domain.Reading{domain.WindSpeed: domain.Present(4)},
	}, tracked)

	b, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":"2024-04-26T03:01:00Z","wind_speed":4,"power":null}`, string(b))
}
