package domain

import (
	"math"

	"github.com/couchcryptid/lst-anomaly-etl/internal/stats"
)

// Method tags how a threshold was obtained.
type Method string

const (
	MethodOverride        Method = "override"
	MethodLognormal99     Method = "lognormal_99"
	MethodEmpirical99     Method = "empirical_99"
	MethodNoValidBaseline Method = "no_valid_baseline"
)

const (
	// DefaultPercentile is the tail percentile the threshold targets.
	DefaultPercentile = 99.0
	minPositiveForFit = 5
	minLogSigma       = 1e-12
)

// Threshold is a ΔT cut-off in °C with the method that produced it.
// Value is NaN when Method is MethodNoValidBaseline. The method tag names the
// tier; Percentile records the cut-off the lognormal and empirical tiers
// targeted and is zero for the others.
type Threshold struct {
	Value      float64
	Method     Method
	Percentile float64
	// BaselineCount is the number of finite values the estimate used.
	BaselineCount int
}

// Defined reports whether the threshold can be compared against.
func (t Threshold) Defined() bool {
	return !math.IsNaN(t.Value) && !math.IsInf(t.Value, 0)
}

// EstimateOptions tunes EstimateThreshold. The zero value estimates the 99th
// percentile with no override.
type EstimateOptions struct {
	Override   *float64
	Percentile float64
}

func (o EstimateOptions) percentile() float64 {
	if o.Percentile <= 0 || o.Percentile > 100 {
		return DefaultPercentile
	}
	return o.Percentile
}

// EstimateThreshold derives a ΔT threshold from a baseline sample. Tiers are
// tried in order: explicit override, lognormal fit of the strictly positive
// values, empirical percentile. An empty sample yields NaN tagged
// MethodNoValidBaseline. It never fails.
func EstimateThreshold(sample []float64, opts EstimateOptions) Threshold {
	finite := stats.Finite(sample)
	if opts.Override != nil {
		return Threshold{Value: *opts.Override, Method: MethodOverride, BaselineCount: len(finite)}
	}
	if len(finite) == 0 {
		return Threshold{Value: math.NaN(), Method: MethodNoValidBaseline}
	}

	q := opts.percentile()
	emp := stats.Percentile(finite, q)
	empirical := Threshold{Value: emp, Method: MethodEmpirical99, Percentile: q, BaselineCount: len(finite)}

	mu, sigma, n := stats.LogMoments(finite)
	if n < minPositiveForFit {
		return empirical
	}
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) || sigma <= minLogSigma {
		return empirical
	}
	fitted := stats.LogNormalQuantile(mu, sigma, q/100)
	if math.IsNaN(fitted) || math.IsInf(fitted, 0) {
		return empirical
	}
	return Threshold{Value: fitted, Method: MethodLognormal99, Percentile: q, BaselineCount: len(finite)}
}

// EstimateWithFallback applies the degraded-mode policy on top of
// EstimateThreshold: when the baseline has no valid values the empirical
// percentile of the fallback sample is used instead. If that is empty too the
// result stays MethodNoValidBaseline and the detector is disabled.
func EstimateWithFallback(baseline, fallback []float64, opts EstimateOptions) Threshold {
	t := EstimateThreshold(baseline, opts)
	if t.Method != MethodNoValidBaseline {
		return t
	}
	finite := stats.Finite(fallback)
	if len(finite) == 0 {
		return t
	}
	q := opts.percentile()
	return Threshold{
		Value:         stats.Percentile(finite, q),
		Method:        MethodEmpirical99,
		Percentile:    q,
		BaselineCount: len(finite),
	}
}

// FilterAnomalies keeps the rows where at least one of cols is present and
// strictly greater than the threshold. An undefined threshold keeps nothing.
func FilterAnomalies(f Frame, t Threshold, cols []string) Frame {
	out := Frame{Columns: f.Columns, Rows: []Row{}}
	if !t.Defined() {
		return out
	}
	var present []string
	for _, c := range cols {
		if f.Has(c) {
			present = append(present, c)
		}
	}
	for _, r := range f.Rows {
		for _, c := range present {
			if r.Num(c).Greater(t.Value) {
				out.Rows = append(out.Rows, r)
				break
			}
		}
	}
	return out
}
