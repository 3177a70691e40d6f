package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/tabular"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Source names one sensor table in the store.
type Source struct {
	Sensor domain.Sensor
	Key    string
}

// loadResult holds the series that loaded, keyed by sensor.
type loadResult struct {
	series map[domain.Sensor]domain.Series
	failed map[domain.Sensor]error
}

func (r loadResult) get(s domain.Sensor) (domain.Series, bool) {
	v, ok := r.series[s]
	return v, ok
}

// loadSources fetches, decodes and normalizes the sources concurrently. A
// source that fails is logged and skipped; only all sources failing is an
// error.
func (p *Pipeline) loadSources(ctx context.Context, sources []Source) (loadResult, error) {
	res := loadResult{
		series: make(map[domain.Sensor]domain.Series, len(sources)),
		failed: map[domain.Sensor]error{},
	}
	if len(sources) == 0 {
		return res, domain.ErrNoInput
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			s, err := p.loadSource(gctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res.failed[src.Sensor] = err
				p.metrics.LoadErrors.WithLabelValues(string(src.Sensor), loadReason(err)).Inc()
				p.logger.Warn("source skipped", "sensor", src.Sensor, "key", src.Key, "error", err)
				return nil
			}
			res.series[src.Sensor] = s
			p.metrics.RowsLoaded.WithLabelValues(string(src.Sensor)).Add(float64(len(s.Observations)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if len(res.series) == 0 {
		return res, fmt.Errorf("%w: every source failed to load", domain.ErrNoInput)
	}
	return res, nil
}

func (p *Pipeline) loadSource(ctx context.Context, src Source) (domain.Series, error) {
	schema, ok := domain.SchemaFor(src.Sensor)
	if !ok {
		return domain.Series{}, fmt.Errorf("no schema for sensor %q", src.Sensor)
	}
	tbl, err := p.readTable(ctx, src.Key)
	if err != nil {
		return domain.Series{}, err
	}
	s, err := domain.Normalize(tbl, schema)
	if err != nil {
		return domain.Series{}, err
	}
	s.Source = p.store.URI(src.Key)
	for _, col := range s.UnparseableDates {
		p.logger.Warn("date column unparseable", "sensor", src.Sensor, "column", col, "error", domain.ErrUnparseableDate)
	}
	p.logger.Debug("source loaded", "sensor", src.Sensor, "key", src.Key, "rows", len(s.Observations))
	return s, nil
}

func (p *Pipeline) readTable(ctx context.Context, key string) (domain.RawTable, error) {
	data, err := p.store.Get(ctx, key)
	if err != nil {
		return domain.RawTable{}, err
	}
	return tabular.Decode(key, data)
}

func loadReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingColumn):
		return "missing_column"
	case errors.Is(err, domain.ErrNoInput):
		return "empty"
	default:
		return "read"
	}
}
