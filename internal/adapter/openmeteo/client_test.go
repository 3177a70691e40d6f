package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var (
	july1  = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	july31 = time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		timezone:   "UTC",
		metrics:    observability.NewMetricsForTesting(),
		logger:     observability.DiscardLogger(),
	}
}

func TestClient_DailyTmax_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "47.5067", q.Get("latitude"))
		assert.Equal(t, "34.5851", q.Get("longitude"))
		assert.Equal(t, "2025-07-01", q.Get("start_date"))
		assert.Equal(t, "2025-07-31", q.Get("end_date"))
		assert.Equal(t, "temperature_2m_max", q.Get("daily"))
		assert.Equal(t, "UTC", q.Get("timezone"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"daily":{"time":["2025-07-01","2025-07-02","2025-07-03"],"temperature_2m_max":[33.1,null,35.4]}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	days, err := c.DailyTmax(context.Background(), 47.5067, 34.5851, july1, july31)
	require.NoError(t, err)

	require.Len(t, days, 3)
	assert.Equal(t, july1, days[0].Date)
	assert.InDelta(t, 33.1, days[0].TmaxC.Value, 1e-9)
	assert.False(t, days[1].TmaxC.Valid)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.WeatherRequests.WithLabelValues("success")))
}

func TestClient_DailyTmax_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"daily":{"time":[],"temperature_2m_max":[]}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	days, err := c.DailyTmax(context.Background(), 0, 0, july1, july31)
	require.NoError(t, err)
	assert.Empty(t, days)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.WeatherRequests.WithLabelValues("empty")))
}

func TestClient_DailyTmax_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"bad dates"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.DailyTmax(context.Background(), 0, 0, july1, july31)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.WeatherRequests.WithLabelValues("error")))
}

func TestClient_DailyTmax_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"daily":{"time":["2025-07-01"],"temperature_2m_max":[31.0]}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	days, err := c.DailyTmax(context.Background(), 0, 0, july1, july1)
	require.NoError(t, err)
	assert.Len(t, days, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DailyTmax_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"daily":{"time":["2025-07-01"],"temperature_2m_max":[]}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).DailyTmax(context.Background(), 0, 0, july1, july1)
	require.Error(t, err)
}

func TestClient_DailyTmax_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.DailyTmax(context.Background(), 0, 0, july1, july1)
	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", "", time.Second, observability.NewMetricsForTesting(), observability.DiscardLogger())
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, "UTC", c.timezone)
}
