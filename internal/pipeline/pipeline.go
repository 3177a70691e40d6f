package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
)

// Job names, used as metric labels and status keys.
const (
	JobThreshold         = "threshold"
	JobScore             = "score"
	JobHeatwave          = "heatwave"
	JobSummarizeFusion   = "summarize-fusion"
	JobSummarizeConstell = "summarize-constellr"
)

// ObjectStore reads and writes whole objects by key.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]string, error)
	URI(key string) string
}

// SceneSource computes the scene-level P95 minus median metric.
type SceneSource interface {
	Spread(lstPath, maskPath string) (domain.NullFloat, error)
	SpreadForDate(d time.Time) (domain.NullFloat, error)
}

// DecisionPublisher sends scored observations downstream.
type DecisionPublisher interface {
	Publish(ctx context.Context, records []domain.ScoredRecord, generatedAt time.Time) error
}

// RunStatus summarizes the latest run of one job.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

// Pipeline wires the core components to storage and the optional weather,
// raster and publishing collaborators. Optional collaborators may be nil.
type Pipeline struct {
	store     ObjectStore
	weather   domain.WeatherProvider
	scenes    SceneSource
	publisher DecisionPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool

	mu   sync.Mutex
	runs map[string]RunStatus
}

// Option sets an optional collaborator.
type Option func(*Pipeline)

// WithWeather sets the archive weather provider.
func WithWeather(w domain.WeatherProvider) Option {
	return func(p *Pipeline) { p.weather = w }
}

// WithScenes sets the raster scene source used for the scene metric.
func WithScenes(s SceneSource) Option {
	return func(p *Pipeline) { p.scenes = s }
}

// WithPublisher sets the decision publisher.
func WithPublisher(d DecisionPublisher) Option {
	return func(p *Pipeline) { p.publisher = d }
}

// New creates a Pipeline over a store with the given observability.
func New(store ObjectStore, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   store,
		logger:  logger,
		metrics: metrics,
		runs:    map[string]RunStatus{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CheckReadiness returns nil once a threshold run has succeeded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no successful threshold run yet")
	}
	return nil
}

// Status returns the latest run of every job, keyed by job name.
func (p *Pipeline) Status() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]RunStatus, len(p.runs))
	for k, v := range p.runs {
		out[k] = v
	}
	return out
}

// Jobs lists the jobs that have run, in name order.
func (p *Pipeline) Jobs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.runs))
	for k := range p.runs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// track records the outcome and duration of one job run.
func (p *Pipeline) track(job, runID string, fn func() error) error {
	start := domain.Now()
	err := fn()
	elapsed := domain.Now().Sub(start)

	outcome := "success"
	st := RunStatus{RunID: runID, StartedAt: start, Duration: elapsed.String(), OK: err == nil}
	if err != nil {
		outcome = "error"
		st.Error = err.Error()
		p.logger.Error("job failed", "job", job, "run_id", runID, "error", err)
	} else {
		p.logger.Info("job finished", "job", job, "run_id", runID, "duration", elapsed)
	}
	p.metrics.JobRuns.WithLabelValues(job, outcome).Inc()
	p.metrics.JobDuration.WithLabelValues(job).Observe(elapsed.Seconds())

	p.mu.Lock()
	p.runs[job] = st
	p.mu.Unlock()
	return err
}
