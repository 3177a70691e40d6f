package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/stats"
)

// Decision is the triage label derived from the anomaly score.
type Decision string

const (
	DecisionInvestigate Decision = "investigate"
	DecisionLowInterest Decision = "low_interest"
	DecisionIgnore      Decision = "ignore"
)

// Decide maps a vote count to a decision.
func Decide(score int) Decision {
	switch {
	case score >= 2:
		return DecisionInvestigate
	case score == 1:
		return DecisionLowInterest
	default:
		return DecisionIgnore
	}
}

// MetricSource records where a record's baseline metric came from.
type MetricSource string

const (
	MetricScene        MetricSource = "scene_p95_minus_median"
	MetricDiffFromMean MetricSource = "diff_from_mean"
	MetricDeltaT       MetricSource = "delta_t"
	MetricNone         MetricSource = ""
)

// Split is a sensor's temporal partition. A zero TrainEnd means the sensor
// never contributes training rows; a zero EvalFrom means it is never scored
// as evaluation.
type Split struct {
	TrainEnd time.Time
	EvalFrom time.Time
}

// ScoreConfig holds every tunable of the ensemble scorer.
type ScoreConfig struct {
	ZThreshold    float64
	ZGapThreshold float64
	UseEVT        bool
	PBody         float64
	TargetQ       float64
	MinExcesses   int
	Epsilon       float64
	MADScale      float64

	Splits map[Sensor]Split
	// BaselineGroups pools sensors under a shared label. Sensors without an
	// entry pool under their own name.
	BaselineGroups map[Sensor]string
	// PreferSecondaryWeather selects the secondary-date air temperature
	// first for the listed sensors.
	PreferSecondaryWeather map[Sensor]bool
}

func mustDay(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultScoreConfig returns the reference configuration: Landsat trains up
// to 2022, downscaled up to 2024, Constellr never trains and shares the
// downscaled "hires" baseline, and both high-resolution sensors are evaluated
// from 2025 on.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		ZThreshold:    3.0,
		ZGapThreshold: 3.0,
		UseEVT:        true,
		PBody:         0.95,
		TargetQ:       0.99,
		MinExcesses:   30,
		Epsilon:       1e-9,
		MADScale:      1.4826,
		Splits: map[Sensor]Split{
			SensorLandsat:    {TrainEnd: mustDay("2022-12-31")},
			SensorDownscaled: {TrainEnd: mustDay("2024-12-31"), EvalFrom: mustDay("2025-01-01")},
			SensorConstellr:  {TrainEnd: mustDay("1900-01-01"), EvalFrom: mustDay("2025-01-01")},
		},
		BaselineGroups: map[Sensor]string{
			SensorLandsat:    "landsat",
			SensorDownscaled: "hires",
			SensorConstellr:  "hires",
		},
		PreferSecondaryWeather: map[Sensor]bool{
			SensorDownscaled: true,
		},
	}
}

// Validate checks the numeric tunables.
func (c ScoreConfig) Validate() error {
	if !(c.PBody > 0 && c.PBody < 1) {
		return fmt.Errorf("p_body must be in (0,1), got %v", c.PBody)
	}
	if !(c.TargetQ > c.PBody && c.TargetQ < 1) {
		return fmt.Errorf("target_q must be in (p_body,1), got %v", c.TargetQ)
	}
	if c.MinExcesses < 2 {
		return fmt.Errorf("min_excesses must be at least 2, got %d", c.MinExcesses)
	}
	if !(c.MADScale > 0) {
		return fmt.Errorf("mad_scale must be positive, got %v", c.MADScale)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("epsilon must not be negative, got %v", c.Epsilon)
	}
	return nil
}

// GroupFor returns the baseline group of a sensor.
func (c ScoreConfig) GroupFor(s Sensor) string {
	if g, ok := c.BaselineGroups[s]; ok && g != "" {
		return g
	}
	return string(s)
}

// IsTrain reports whether an observation on day d trains its sensor's baseline.
func (c ScoreConfig) IsTrain(s Sensor, d time.Time) bool {
	sp, ok := c.Splits[s]
	if !ok || sp.TrainEnd.IsZero() || d.IsZero() {
		return false
	}
	return !d.After(sp.TrainEnd)
}

// IsEval reports whether an observation on day d is in the evaluation window.
func (c ScoreConfig) IsEval(s Sensor, d time.Time) bool {
	sp, ok := c.Splits[s]
	if !ok || sp.EvalFrom.IsZero() || d.IsZero() {
		return false
	}
	return !d.Before(sp.EvalFrom)
}

// ScoreRecord is one observation as seen by the scorer.
type ScoreRecord struct {
	Sensor        Sensor
	ObsDate       time.Time
	SecondaryDate time.Time
	LSTMax        NullFloat
	LSTMean       NullFloat
	DeltaT        NullFloat
	Metric        NullFloat
	MetricSource  MetricSource
	Extras        map[string]string
}

// RecordsFromSeries flattens series into score records. The baseline metric
// starts as diff_from_mean, falling back to ΔT; callers may replace it with a
// scene-level raster metric.
func RecordsFromSeries(series ...Series) []ScoreRecord {
	var out []ScoreRecord
	for _, s := range series {
		for _, o := range s.Observations {
			obs := o.Date
			if obs.IsZero() {
				obs = o.SecondaryDate
			}
			r := ScoreRecord{
				Sensor:        o.Sensor,
				ObsDate:       obs,
				SecondaryDate: o.SecondaryDate,
				LSTMax:        o.LSTMax,
				LSTMean:       o.LSTMean,
				DeltaT:        o.DeltaT,
				Extras:        o.Extras,
			}
			switch {
			case o.DiffFromMean.Valid:
				r.Metric, r.MetricSource = o.DiffFromMean, MetricDiffFromMean
			case o.DeltaT.Valid:
				r.Metric, r.MetricSource = o.DeltaT, MetricDeltaT
			}
			out = append(out, r)
		}
	}
	return out
}

// WeatherSeries holds daily air Tmax under two date roles: the primary
// (Landsat) acquisition date and the secondary (Sentinel-2) date.
type WeatherSeries struct {
	Primary   map[time.Time]NullFloat
	Secondary map[time.Time]NullFloat
}

// airFor picks the air temperature used for a record's weather gap.
func (w *WeatherSeries) airFor(r ScoreRecord, preferSecondary bool) NullFloat {
	if w == nil {
		return Null
	}
	primary := w.Primary[r.ObsDate]
	if preferSecondary {
		return w.Secondary[r.ObsDate].Or(primary)
	}
	return primary
}

// ScoredRecord is a record with its baseline diagnostics and votes.
type ScoredRecord struct {
	ScoreRecord
	Month   time.Month
	Group   string
	IsTrain bool
	IsEval  bool

	Median NullFloat
	MAD    NullFloat
	Z      NullFloat

	AirTmax   NullFloat
	Gap       NullFloat
	GapMedian NullFloat
	GapMAD    NullFloat
	ZGap      NullFloat

	TailU        NullFloat
	TailQuantile NullFloat

	RobustZFlag     bool
	WeatherNormFlag bool
	EVTTailFlag     bool
	Score           int
	Decision        Decision
}

// BucketKey identifies a baseline pool.
type BucketKey struct {
	Group string
	Month time.Month
}

// Bucket holds the statistics fitted from a pool's training rows.
type Bucket struct {
	BucketKey
	TrainCount int
	Median     NullFloat
	MAD        NullFloat
	GapMedian  NullFloat
	GapMAD     NullFloat
	U          NullFloat
	Excesses   int
	Tail       stats.GPD
	Quantile   NullFloat
	// TailErr is ErrInsufficientTailData or a fit failure when Quantile is
	// absent.
	TailErr error
}

// ScoreResult is the scorer output: records sorted by (date, sensor) and the
// fitted buckets sorted by (group, month).
type ScoreResult struct {
	Records []ScoredRecord
	Buckets []Bucket
}

// Score runs the ensemble: robust z on the baseline metric, robust z on the
// LST minus air temperature gap, and a generalized Pareto tail flag, each
// fitted per (baseline group, month) from training rows only. weather may be
// nil, in which case the weather vote is never cast.
func Score(records []ScoreRecord, weather *WeatherSeries, cfg ScoreConfig) ScoreResult {
	scored := make([]ScoredRecord, len(records))
	for i, r := range records {
		s := ScoredRecord{
			ScoreRecord: r,
			Group:       cfg.GroupFor(r.Sensor),
			IsTrain:     cfg.IsTrain(r.Sensor, r.ObsDate),
			IsEval:      cfg.IsEval(r.Sensor, r.ObsDate),
		}
		if !r.ObsDate.IsZero() {
			s.Month = r.ObsDate.Month()
		}
		if weather != nil {
			s.AirTmax = weather.airFor(r, cfg.PreferSecondaryWeather[r.Sensor])
			s.Gap = r.LSTMax.Sub(s.AirTmax)
		}
		scored[i] = s
	}

	buckets := fitBuckets(scored, weather != nil, cfg)

	for i := range scored {
		s := &scored[i]
		b, ok := buckets[BucketKey{Group: s.Group, Month: s.Month}]
		if ok && s.Month != 0 {
			s.Median, s.MAD = b.Median, b.MAD
			s.Z = robustZ(s.Metric, b.Median, b.MAD, cfg)
			s.RobustZFlag = s.Z.AtLeast(cfg.ZThreshold)

			if weather != nil {
				s.GapMedian, s.GapMAD = b.GapMedian, b.GapMAD
				s.ZGap = robustZ(s.Gap, b.GapMedian, b.GapMAD, cfg)
				s.WeatherNormFlag = s.ZGap.AtLeast(cfg.ZGapThreshold)
			}

			if cfg.UseEVT {
				s.TailU, s.TailQuantile = b.U, b.Quantile
				s.EVTTailFlag = b.Quantile.Valid && s.Metric.Greater(b.Quantile.Value)
			}
		}
		s.Score = boolToInt(s.RobustZFlag) + boolToInt(s.WeatherNormFlag) + boolToInt(s.EVTTailFlag)
		s.Decision = Decide(s.Score)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if !a.ObsDate.Equal(b.ObsDate) {
			return a.ObsDate.Before(b.ObsDate)
		}
		return a.Sensor < b.Sensor
	})

	out := ScoreResult{Records: scored, Buckets: make([]Bucket, 0, len(buckets))}
	for _, b := range buckets {
		out.Buckets = append(out.Buckets, *b)
	}
	sort.Slice(out.Buckets, func(i, j int) bool {
		if out.Buckets[i].Group != out.Buckets[j].Group {
			return out.Buckets[i].Group < out.Buckets[j].Group
		}
		return out.Buckets[i].Month < out.Buckets[j].Month
	})
	return out
}

// EvalOnly returns the evaluation-window records.
func (r ScoreResult) EvalOnly() []ScoredRecord {
	var out []ScoredRecord
	for _, s := range r.Records {
		if s.IsEval {
			out = append(out, s)
		}
	}
	return out
}

// DecisionCounts tallies decisions per sensor.
func DecisionCounts(records []ScoredRecord) map[Sensor]map[Decision]int {
	out := map[Sensor]map[Decision]int{}
	for _, r := range records {
		m, ok := out[r.Sensor]
		if !ok {
			m = map[Decision]int{}
			out[r.Sensor] = m
		}
		m[r.Decision]++
	}
	return out
}

func fitBuckets(scored []ScoredRecord, withWeather bool, cfg ScoreConfig) map[BucketKey]*Bucket {
	metric := map[BucketKey][]float64{}
	gap := map[BucketKey][]float64{}
	buckets := map[BucketKey]*Bucket{}

	for _, s := range scored {
		if !s.IsTrain || s.Month == 0 {
			continue
		}
		k := BucketKey{Group: s.Group, Month: s.Month}
		b, ok := buckets[k]
		if !ok {
			b = &Bucket{BucketKey: k}
			buckets[k] = b
		}
		b.TrainCount++
		if s.Metric.Valid {
			metric[k] = append(metric[k], s.Metric.Value)
		}
		if withWeather && s.Gap.Valid {
			gap[k] = append(gap[k], s.Gap.Value)
		}
	}

	for k, b := range buckets {
		med, mad := stats.MedianMAD(metric[k])
		b.Median, b.MAD = Float(med), Float(mad)
		if withWeather {
			gmed, gmad := stats.MedianMAD(gap[k])
			b.GapMedian, b.GapMAD = Float(gmed), Float(gmad)
		}
		if cfg.UseEVT {
			fitTail(b, metric[k], cfg)
		}
	}
	return buckets
}

func fitTail(b *Bucket, values []float64, cfg ScoreConfig) {
	u := stats.Quantile(values, cfg.PBody)
	b.U = Float(u)
	if !b.U.Valid {
		b.TailErr = ErrInsufficientTailData
		return
	}
	var excesses []float64
	for _, v := range values {
		if v > u {
			excesses = append(excesses, v-u)
		}
	}
	b.Excesses = len(excesses)
	if len(excesses) < cfg.MinExcesses {
		b.TailErr = ErrInsufficientTailData
		return
	}
	g, err := stats.FitGPD(excesses)
	if err != nil {
		b.TailErr = err
		return
	}
	b.Tail = g
	p := (cfg.TargetQ - cfg.PBody) / (1 - cfg.PBody)
	b.Quantile = Float(u + g.Quantile(p))
}

func robustZ(v, median, mad NullFloat, cfg ScoreConfig) NullFloat {
	if !v.Valid || !median.Valid || !mad.Valid {
		return Null
	}
	den := cfg.MADScale * (mad.Value + cfg.Epsilon)
	if den == 0 {
		return Null
	}
	z := (v.Value - median.Value) / den
	if math.IsNaN(z) {
		return Null
	}
	return Float(z)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
