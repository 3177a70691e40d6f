package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNoWeather is returned by jobs that need a weather provider when none is
// configured.
var ErrNoWeather = errors.New("no weather provider configured")

// HeatwaveOptions configures a heatwave check. The baseline range supplies
// the climatology; the window range is the period under test.
type HeatwaveOptions struct {
	Lat          float64
	Lon          float64
	BaselineFrom time.Time
	BaselineTo   time.Time
	WindowFrom   time.Time
	WindowTo     time.Time
	Config       domain.HeatwaveConfig
	OutPrefix    string
}

// RunHeatwave fetches both ranges from the weather provider, runs the
// heatwave rule and writes the per-day table.
func (p *Pipeline) RunHeatwave(ctx context.Context, opts HeatwaveOptions) (domain.HeatwaveReport, error) {
	runID := uuid.NewString()
	var rep domain.HeatwaveReport
	err := p.track(JobHeatwave, runID, func() error {
		var err error
		rep, err = p.runHeatwave(ctx, opts)
		return err
	})
	return rep, err
}

func (p *Pipeline) runHeatwave(ctx context.Context, opts HeatwaveOptions) (domain.HeatwaveReport, error) {
	if p.weather == nil {
		return domain.HeatwaveReport{}, ErrNoWeather
	}
	if opts.WindowTo.Before(opts.WindowFrom) || opts.BaselineTo.Before(opts.BaselineFrom) {
		return domain.HeatwaveReport{}, errors.New("heatwave range ends before it starts")
	}

	var baseline, window []domain.DailyTemp
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseline, err = p.weather.DailyTmax(gctx, opts.Lat, opts.Lon, opts.BaselineFrom, opts.BaselineTo)
		if err != nil {
			return fmt.Errorf("baseline weather: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		window, err = p.weather.DailyTmax(gctx, opts.Lat, opts.Lon, opts.WindowFrom, opts.WindowTo)
		if err != nil {
			return fmt.Errorf("window weather: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.HeatwaveReport{}, err
	}

	rep := domain.CheckHeatwave(baseline, window, opts.Config)
	if !rep.Climatology.PXX.Valid {
		p.logger.Warn("heatwave climatology undefined", "month", rep.Climatology.Month, "baseline_days", len(baseline))
	}
	if _, err := p.putTable(ctx, objectstore.Join(opts.OutPrefix, domain.KeyHeatwave),
		domain.HeatwaveHeader, domain.HeatwaveRecords(rep.Days), false); err != nil {
		return rep, err
	}
	p.logger.Info("heatwave checked",
		"month", rep.Climatology.Month,
		"pxx", rep.Climatology.PXX,
		"max_run", rep.MaxRun,
		"detected", rep.Detected(),
	)
	return rep, nil
}
