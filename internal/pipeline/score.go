package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/google/uuid"
)

// Scene path columns carried through from the Constellr table.
const (
	extraLSTPath  = "lst_path"
	extraMaskPath = "cloudmask_path"
)

// ScoreOptions configures a scoring run.
type ScoreOptions struct {
	Landsat    string
	Downscaled string
	Constellr  string
	// WeatherKey names an optional table with air_tmax_c columns. When it is
	// empty or unreadable the weather provider is queried instead.
	WeatherKey string
	Lat        float64
	Lon        float64
	OutPrefix  string
	Config     domain.ScoreConfig
	WriteXLSX  bool
}

func (o ScoreOptions) sources() []Source {
	var out []Source
	for _, s := range []Source{
		{domain.SensorLandsat, o.Landsat},
		{domain.SensorDownscaled, o.Downscaled},
		{domain.SensorConstellr, o.Constellr},
	} {
		if s.Key != "" {
			out = append(out, s)
		}
	}
	return out
}

// RunScore scores every observation against its (group, month) baseline and
// writes the full and evaluation-only decision tables. Evaluation decisions
// are published when a publisher is configured.
func (p *Pipeline) RunScore(ctx context.Context, opts ScoreOptions) (domain.ScoreResult, error) {
	runID := uuid.NewString()
	var res domain.ScoreResult
	err := p.track(JobScore, runID, func() error {
		var err error
		res, err = p.runScore(ctx, opts)
		return err
	})
	return res, err
}

func (p *Pipeline) runScore(ctx context.Context, opts ScoreOptions) (domain.ScoreResult, error) {
	if err := opts.Config.Validate(); err != nil {
		return domain.ScoreResult{}, err
	}
	loaded, err := p.loadSources(ctx, opts.sources())
	if err != nil {
		return domain.ScoreResult{}, err
	}
	var series []domain.Series
	for _, sensor := range []domain.Sensor{domain.SensorLandsat, domain.SensorDownscaled, domain.SensorConstellr} {
		if s, ok := loaded.get(sensor); ok {
			series = append(series, s)
		}
	}

	records := domain.RecordsFromSeries(series...)
	p.attachSceneMetrics(records)
	weather := p.weatherFor(ctx, opts, records)

	res := domain.Score(records, weather, opts.Config)
	for _, b := range res.Buckets {
		if b.TailErr != nil && !errors.Is(b.TailErr, domain.ErrInsufficientTailData) {
			p.logger.Warn("tail fit failed", "group", b.Group, "month", b.Month, "error", b.TailErr)
		}
	}

	eval := res.EvalOnly()
	if _, err := p.putTable(ctx, objectstore.Join(opts.OutPrefix, domain.KeyScoreFull),
		domain.DecisionHeader, domain.DecisionRecords(res.Records), opts.WriteXLSX); err != nil {
		return res, err
	}
	if _, err := p.putTable(ctx, objectstore.Join(opts.OutPrefix, domain.KeyScoreEval),
		domain.DecisionHeader, domain.DecisionRecords(eval), opts.WriteXLSX); err != nil {
		return res, err
	}

	for sensor, counts := range domain.DecisionCounts(eval) {
		for decision, n := range counts {
			p.metrics.Decisions.WithLabelValues(string(sensor), string(decision)).Add(float64(n))
		}
		p.logger.Info("decisions",
			"sensor", sensor,
			"ignore", counts[domain.DecisionIgnore],
			"low_interest", counts[domain.DecisionLowInterest],
			"investigate", counts[domain.DecisionInvestigate],
		)
	}

	if p.publisher != nil && len(eval) > 0 {
		if err := p.publisher.Publish(ctx, eval, domain.Now()); err != nil {
			return res, fmt.Errorf("publish decisions: %w", err)
		}
	}
	return res, nil
}

// attachSceneMetrics replaces the baseline metric of Constellr records with
// the scene spread when the raster can be read. Records whose scene is
// unavailable keep their table metric.
func (p *Pipeline) attachSceneMetrics(records []domain.ScoreRecord) {
	if p.scenes == nil {
		return
	}
	for i := range records {
		r := &records[i]
		if r.Sensor != domain.SensorConstellr {
			continue
		}
		var (
			v   domain.NullFloat
			err error
		)
		if lst := r.Extras[extraLSTPath]; lst != "" {
			v, err = p.scenes.Spread(lst, r.Extras[extraMaskPath])
		} else {
			v, err = p.scenes.SpreadForDate(r.ObsDate)
		}
		if err != nil || !v.Valid {
			p.metrics.SceneMetrics.WithLabelValues("unavailable").Inc()
			p.logger.Debug("scene metric unavailable", "date", domain.FormatDay(r.ObsDate), "error", err)
			continue
		}
		p.metrics.SceneMetrics.WithLabelValues("ok").Inc()
		r.Metric, r.MetricSource = v, domain.MetricScene
	}
}

// weatherFor resolves air temperatures from the weather table, then from the
// provider. It returns nil when neither yields data, which disables the
// weather vote.
func (p *Pipeline) weatherFor(ctx context.Context, opts ScoreOptions, records []domain.ScoreRecord) *domain.WeatherSeries {
	if opts.WeatherKey != "" {
		tbl, err := p.readTable(ctx, opts.WeatherKey)
		if err == nil {
			w := domain.WeatherFromTable(tbl)
			if len(w.Primary)+len(w.Secondary) > 0 {
				return w
			}
			p.logger.Warn("weather table has no usable rows", "key", opts.WeatherKey)
		} else {
			p.logger.Warn("weather table unreadable", "key", opts.WeatherKey, "error", err)
		}
	}
	if p.weather == nil {
		return nil
	}
	from, to, ok := dateRange(records)
	if !ok {
		return nil
	}
	days, err := p.weather.DailyTmax(ctx, opts.Lat, opts.Lon, from, to)
	if err != nil {
		p.logger.Warn("weather unavailable, weather vote disabled", "error", err)
		return nil
	}
	if len(days) == 0 {
		return nil
	}
	return domain.WeatherFromDaily(days)
}

// dateRange spans every primary and secondary date of the records.
func dateRange(records []domain.ScoreRecord) (from, to time.Time, ok bool) {
	see := func(d time.Time) {
		if d.IsZero() {
			return
		}
		if !ok || d.Before(from) {
			from = d
		}
		if !ok || d.After(to) {
			to = d
		}
		ok = true
	}
	for _, r := range records {
		see(r.ObsDate)
		see(r.SecondaryDate)
	}
	return from, to, ok
}
