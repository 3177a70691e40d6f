package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// shapeEpsilon is the |ξ| below which the exponential limit of the GPD is used.
const shapeEpsilon = 1e-6

// ErrGPDFit is returned when the maximum likelihood search does not produce
// a usable shape/scale pair.
var ErrGPDFit = errors.New("generalized pareto fit failed")

// GPD is a generalized Pareto distribution with location fixed at zero.
type GPD struct {
	Shape float64 // ξ
	Scale float64 // σ
}

// Quantile returns the excess y with P(Y <= y) = p.
func (g GPD) Quantile(p float64) float64 {
	if p < 0 || p >= 1 || !(g.Scale > 0) {
		return math.NaN()
	}
	if math.Abs(g.Shape) < shapeEpsilon {
		return -g.Scale * math.Log(1-p)
	}
	return g.Scale / g.Shape * (math.Pow(1-p, -g.Shape) - 1)
}

// FitGPD fits a zero-location GPD to positive excesses by maximum likelihood.
// The search runs Nelder-Mead over (ξ, ln σ) starting from the method of
// moments estimate.
func FitGPD(excesses []float64) (GPD, error) {
	x := Finite(excesses)
	if len(x) < 2 {
		return GPD{}, ErrGPDFit
	}
	for _, v := range x {
		if v < 0 {
			return GPD{}, ErrGPDFit
		}
	}

	mean, variance := stat.MeanVariance(x, nil)
	if !(mean > 0) {
		return GPD{}, ErrGPDFit
	}
	xi0, sigma0 := 0.0, mean
	if variance > 0 {
		r := mean * mean / variance
		xi0 = 0.5 * (1 - r)
		sigma0 = 0.5 * mean * (r + 1)
	}
	if !(sigma0 > 0) {
		sigma0 = mean
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			return gpdNegLogLik(x, p[0], math.Exp(p[1]))
		},
	}
	res, err := optimize.Minimize(problem, []float64{xi0, math.Log(sigma0)}, nil, &optimize.NelderMead{})
	if res == nil {
		if err == nil {
			err = ErrGPDFit
		}
		return GPD{}, err
	}
	fit := GPD{Shape: res.X[0], Scale: math.Exp(res.X[1])}
	if math.IsInf(res.F, 0) || math.IsNaN(res.F) || math.IsNaN(fit.Shape) || !(fit.Scale > 0) {
		return GPD{}, ErrGPDFit
	}
	return fit, nil
}

func gpdNegLogLik(x []float64, xi, sigma float64) float64 {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return math.Inf(1)
	}
	n := float64(len(x))
	if math.Abs(xi) < shapeEpsilon {
		var sum float64
		for _, y := range x {
			sum += y
		}
		return n*math.Log(sigma) + sum/sigma
	}
	var sumLog float64
	for _, y := range x {
		t := 1 + xi*y/sigma
		if t <= 0 {
			return math.Inf(1)
		}
		sumLog += math.Log(t)
	}
	return n*math.Log(sigma) + (1+1/xi)*sumLog
}
