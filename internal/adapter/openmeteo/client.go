package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// DefaultBaseURL is the ERA5 reanalysis archive endpoint.
const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/era5"

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 4 * time.Second
)

// errRetryable marks responses worth another attempt (429 and 5xx).
var errRetryable = errors.New("retryable weather API response")

// Client implements domain.WeatherProvider using the Open-Meteo archive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timezone   string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive weather client.
func NewClient(baseURL, timezone string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timezone == "" {
		timezone = "UTC"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		timezone:   timezone,
		metrics:    metrics,
		logger:     logger,
	}
}

// DailyTmax returns the daily maximum 2 m air temperature for [from, to].
func (c *Client) DailyTmax(ctx context.Context, lat, lon float64, from, to time.Time) ([]domain.DailyTemp, error) {
	params := url.Values{
		"latitude":   {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude":  {strconv.FormatFloat(lon, 'f', 4, 64)},
		"start_date": {domain.FormatDay(from)},
		"end_date":   {domain.FormatDay(to)},
		"daily":      {"temperature_2m_max"},
		"timezone":   {c.timezone},
	}
	fullURL := c.baseURL + "?" + params.Encode()

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		days, err := c.doRequest(ctx, fullURL)
		if err == nil {
			outcome := "success"
			if len(days) == 0 {
				outcome = "empty"
			}
			c.metrics.WeatherRequests.WithLabelValues(outcome).Inc()
			return days, nil
		}
		lastErr = err
		if !errors.Is(err, errRetryable) || attempt == maxAttempts {
			break
		}
		c.logger.Warn("weather request failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			lastErr = ctx.Err()
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	c.metrics.WeatherRequests.WithLabelValues("error").Inc()
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.DailyTemp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("weather API error: status %d: %s", resp.StatusCode, body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %w", errRetryable, err)
		}
		return nil, err
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return r.days()
}

// Open-Meteo API response types.

type response struct {
	Daily struct {
		Time []string   `json:"time"`
		Tmax []*float64 `json:"temperature_2m_max"`
	} `json:"daily"`
}

func (r response) days() ([]domain.DailyTemp, error) {
	if len(r.Daily.Time) != len(r.Daily.Tmax) {
		return nil, fmt.Errorf("malformed response: %d dates, %d values", len(r.Daily.Time), len(r.Daily.Tmax))
	}
	out := make([]domain.DailyTemp, 0, len(r.Daily.Time))
	for i, s := range r.Daily.Time {
		d, ok := domain.ParseISODay(s)
		if !ok {
			continue
		}
		v := domain.Null
		if r.Daily.Tmax[i] != nil {
			v = domain.Float(*r.Daily.Tmax[i])
		}
		out = append(out, domain.DailyTemp{Date: d, TmaxC: v})
	}
	return out, nil
}
