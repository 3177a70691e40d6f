package domain

import (
	"sort"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/stats"
)

// DailyTemp is one day's maximum air temperature in °C.
type DailyTemp struct {
	Date  time.Time
	TmaxC NullFloat
}

// HeatwaveConfig defines the heatwave rule. A zero Month means the month of
// the first window day.
type HeatwaveConfig struct {
	Month              time.Month
	Percentile         float64
	MinConsecutiveDays int
}

// DefaultHeatwaveConfig flags three or more consecutive days above the
// monthly 95th percentile.
func DefaultHeatwaveConfig() HeatwaveConfig {
	return HeatwaveConfig{Percentile: 95, MinConsecutiveDays: 3}
}

// Climatology is the baseline statistics of one calendar month.
type Climatology struct {
	Month      time.Month
	Percentile float64
	Days       int
	Mean       NullFloat
	PXX        NullFloat
}

// HeatwaveDay is the verdict for one window day.
type HeatwaveDay struct {
	Date          time.Time
	TmaxC         NullFloat
	MonthMean     NullFloat
	MonthPXX      NullFloat
	AnomalyVsMean NullFloat
	AbovePXX      bool
	// RunLength is the length of the above-percentile run the day belongs
	// to; every day of a run carries the full length.
	RunLength int
	Heatwave  bool
}

// HeatwaveReport is the result of CheckHeatwave.
type HeatwaveReport struct {
	Climatology Climatology
	Days        []HeatwaveDay
	MaxRun      int
}

// Detected reports whether any day is part of a heatwave.
func (r HeatwaveReport) Detected() bool {
	for _, d := range r.Days {
		if d.Heatwave {
			return true
		}
	}
	return false
}

// CheckHeatwave compares window days against the baseline climatology of a
// calendar month and marks runs of consecutive days above its percentile.
// Missing temperatures never count as above.
func CheckHeatwave(baseline, window []DailyTemp, cfg HeatwaveConfig) HeatwaveReport {
	if cfg.Percentile <= 0 || cfg.Percentile > 100 {
		cfg.Percentile = 95
	}
	if cfg.MinConsecutiveDays <= 0 {
		cfg.MinConsecutiveDays = 3
	}

	days := append([]DailyTemp(nil), window...)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	month := cfg.Month
	if month == 0 && len(days) > 0 {
		month = days[0].Date.Month()
	}

	clim := Climatology{Month: month, Percentile: cfg.Percentile}
	var vals []float64
	for _, d := range baseline {
		if d.Date.Month() == month && d.TmaxC.Valid {
			vals = append(vals, d.TmaxC.Value)
		}
	}
	clim.Days = len(vals)
	if len(vals) > 0 {
		var sum float64
		for _, v := range vals {
			sum += v
		}
		clim.Mean = Float(sum / float64(len(vals)))
		clim.PXX = Float(stats.Percentile(vals, cfg.Percentile))
	}

	out := HeatwaveReport{Climatology: clim, Days: make([]HeatwaveDay, len(days))}
	above := make([]bool, len(days))
	for i, d := range days {
		above[i] = clim.PXX.Valid && d.TmaxC.Greater(clim.PXX.Value)
		out.Days[i] = HeatwaveDay{
			Date:          d.Date,
			TmaxC:         d.TmaxC,
			MonthMean:     clim.Mean,
			MonthPXX:      clim.PXX,
			AnomalyVsMean: d.TmaxC.Sub(clim.Mean),
			AbovePXX:      above[i],
		}
	}

	for i, n := range RunLengths(above) {
		out.Days[i].RunLength = n
		out.Days[i].Heatwave = clim.PXX.Valid && n >= cfg.MinConsecutiveDays
		if n > out.MaxRun {
			out.MaxRun = n
		}
	}
	return out
}

// RunLengths labels every true element with the length of the consecutive
// run of true values it belongs to; false elements get 0.
func RunLengths(mask []bool) []int {
	out := make([]int, len(mask))
	for i := 0; i < len(mask); {
		if !mask[i] {
			i++
			continue
		}
		j := i
		for j < len(mask) && mask[j] {
			j++
		}
		for k := i; k < j; k++ {
			out[k] = j - i
		}
		i = j
	}
	return out
}
