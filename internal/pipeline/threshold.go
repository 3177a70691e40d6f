package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/google/uuid"
)

// ThresholdOptions configures a threshold run.
type ThresholdOptions struct {
	Landsat    string
	Downscaled string
	Constellr  string
	Fusion     string
	OutPrefix  string
	Location   string
	Override   *float64
	Percentile float64
	Duplicates domain.DuplicatePolicy
	WriteXLSX  bool
}

func (o ThresholdOptions) sources() []Source {
	var out []Source
	for _, s := range []Source{
		{domain.SensorLandsat, o.Landsat},
		{domain.SensorDownscaled, o.Downscaled},
		{domain.SensorConstellr, o.Constellr},
		{domain.SensorFusion, o.Fusion},
	} {
		if s.Key != "" {
			out = append(out, s)
		}
	}
	return out
}

// ThresholdResult is what a threshold run produced.
type ThresholdResult struct {
	Report    domain.ThresholdReport
	Merged    domain.Frame
	Anomalies domain.Frame
	Stats     domain.MergeStats
}

// RunThreshold merges the sensor tables by date, estimates the ΔT threshold
// from the Landsat baseline and writes the comparison table, the anomaly
// table and the threshold report.
func (p *Pipeline) RunThreshold(ctx context.Context, opts ThresholdOptions) (ThresholdResult, error) {
	runID := uuid.NewString()
	var res ThresholdResult
	err := p.track(JobThreshold, runID, func() error {
		var err error
		res, err = p.runThreshold(ctx, runID, opts)
		return err
	})
	if err == nil {
		p.ready.Store(true)
	}
	return res, err
}

func (p *Pipeline) runThreshold(ctx context.Context, runID string, opts ThresholdOptions) (ThresholdResult, error) {
	loaded, err := p.loadSources(ctx, opts.sources())
	if err != nil {
		return ThresholdResult{}, err
	}

	var (
		frames   []domain.Frame
		fallback []float64
	)
	for _, sensor := range []domain.Sensor{domain.SensorLandsat, domain.SensorDownscaled, domain.SensorConstellr, domain.SensorFusion} {
		s, ok := loaded.get(sensor)
		if !ok {
			continue
		}
		frames = append(frames, s.Project(domain.ProjectionFor(sensor)))
		if sensor != domain.SensorLandsat {
			fallback = append(fallback, domain.Values(s.DeltaTs())...)
		}
	}

	merged, stats, err := domain.Merge(frames, domain.MergeOptions{
		Order:      domain.MergedColumnOrder,
		Duplicates: opts.Duplicates,
	})
	if err != nil {
		return ThresholdResult{}, fmt.Errorf("merge: %w", err)
	}
	p.metrics.RowsMerged.Set(float64(stats.Rows))
	p.metrics.RowsDropped.Add(float64(stats.DroppedNoDate))
	if stats.DroppedNoDate > 0 {
		p.logger.Warn("undated rows dropped", "count", stats.DroppedNoDate)
	}

	var baseline []float64
	if s, ok := loaded.get(domain.SensorLandsat); ok {
		baseline = domain.Values(s.DeltaTs())
	}
	thr := domain.EstimateWithFallback(baseline, fallback, domain.EstimateOptions{
		Override:   opts.Override,
		Percentile: opts.Percentile,
	})
	if !thr.Defined() {
		p.logger.Warn("anomaly detector disabled", "error", domain.ErrNoValidBaseline)
	} else if thr.Method != domain.MethodOverride && countFinite(baseline) == 0 {
		p.logger.Warn("baseline unavailable, threshold from current-window sensors", "method", thr.Method, "samples", thr.BaselineCount)
	}
	p.metrics.ThresholdValue.WithLabelValues(string(thr.Method)).Set(thr.Value)

	anomalies := domain.FilterAnomalies(merged, thr, domain.AnomalyColumns)
	p.metrics.AnomaliesFound.Set(float64(len(anomalies.Rows)))

	allKey := objectstore.Join(opts.OutPrefix, domain.KeyAllComparison)
	anomKey := objectstore.Join(opts.OutPrefix, domain.KeyOnlyAnomalies)
	allURI, err := p.putTable(ctx, allKey, merged.Header(), merged.Records(), opts.WriteXLSX)
	if err != nil {
		return ThresholdResult{}, err
	}
	anomURI, err := p.putTable(ctx, anomKey, anomalies.Header(), anomalies.Records(), opts.WriteXLSX)
	if err != nil {
		return ThresholdResult{}, err
	}

	report := domain.ThresholdReport{
		Threshold:  thr.Value,
		Method:     thr.Method,
		Percentile: thr.Percentile,
		Inputs: domain.ReportInputs{
			LandsatURI:    p.uriIf(opts.Landsat),
			DownscaledURI: p.uriIf(opts.Downscaled),
			ConstellrURI:  p.uriIf(opts.Constellr),
			FusionURI:     p.uriIf(opts.Fusion),
		},
		Outputs:       domain.ReportOutputs{All: allURI, Anomalies: anomURI},
		RunID:         runID,
		GeneratedAt:   domain.Now(),
		BaselineCount: thr.BaselineCount,
		Location:      opts.Location,
		Rows:          len(merged.Rows),
		AnomalyRows:   len(anomalies.Rows),
	}
	if _, err := p.putJSON(ctx, objectstore.Join(opts.OutPrefix, domain.KeyThresholdReport), report); err != nil {
		return ThresholdResult{}, err
	}

	p.logger.Info("threshold computed",
		"run_id", runID,
		"threshold", thr.Value,
		"method", thr.Method,
		"baseline_count", thr.BaselineCount,
		"rows", len(merged.Rows),
		"anomalies", len(anomalies.Rows),
	)
	return ThresholdResult{Report: report, Merged: merged, Anomalies: anomalies, Stats: stats}, nil
}

func (p *Pipeline) uriIf(key string) string {
	if key == "" {
		return ""
	}
	return p.store.URI(key)
}

func countFinite(xs []float64) int {
	n := 0
	for _, v := range xs {
		if domain.Float(v).Valid {
			n++
		}
	}
	return n
}
