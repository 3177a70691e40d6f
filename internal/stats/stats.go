// Package stats holds the numeric primitives used by the anomaly engine:
// interpolated percentiles, robust spread estimators, the lognormal tail
// quantile, and a generalized Pareto fit for exceedances.
//
// All functions ignore NaN and ±Inf inputs and return NaN when no finite
// value remains, so callers can treat NaN as "undefined".
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Finite returns a sorted copy of the finite values in xs.
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

// Percentile returns the q-th percentile (0..100) of the finite values in xs
// using linear interpolation between closest ranks, the same rule numpy's
// default percentile uses.
func Percentile(xs []float64, q float64) float64 {
	return percentileSorted(Finite(xs), q)
}

// Quantile is Percentile with p expressed as a fraction in [0, 1].
func Quantile(xs []float64, p float64) float64 {
	return Percentile(xs, p*100)
}

func percentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 || math.IsNaN(q) {
		return math.NaN()
	}
	q = math.Max(0, math.Min(100, q))
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q / 100
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// Median of the finite values in xs.
func Median(xs []float64) float64 {
	return Percentile(xs, 50)
}

// MAD returns the unscaled median absolute deviation around the median.
func MAD(xs []float64) float64 {
	finite := Finite(xs)
	if len(finite) == 0 {
		return math.NaN()
	}
	med := percentileSorted(finite, 50)
	dev := make([]float64, len(finite))
	for i, x := range finite {
		dev[i] = math.Abs(x - med)
	}
	sort.Float64s(dev)
	return percentileSorted(dev, 50)
}

// MedianMAD returns both the median and the MAD of xs.
func MedianMAD(xs []float64) (median, mad float64) {
	return Median(xs), MAD(xs)
}

// LogMoments returns the mean and population standard deviation of ln(x)
// over the strictly positive finite values of xs, along with how many values
// contributed.
func LogMoments(xs []float64) (mu, sigma float64, n int) {
	logs := make([]float64, 0, len(xs))
	for _, x := range Finite(xs) {
		if x > 0 {
			logs = append(logs, math.Log(x))
		}
	}
	if len(logs) == 0 {
		return math.NaN(), math.NaN(), 0
	}
	mu, sigma = stat.PopMeanStdDev(logs, nil)
	return mu, sigma, len(logs)
}

// LogNormalQuantile returns the p quantile of a lognormal distribution with
// log-space mean mu and standard deviation sigma.
func LogNormalQuantile(mu, sigma, p float64) float64 {
	if math.IsNaN(mu) || math.IsNaN(sigma) || sigma <= 0 {
		return math.NaN()
	}
	return distuv.LogNormal{Mu: mu, Sigma: sigma}.Quantile(p)
}
