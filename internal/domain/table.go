package domain

import (
	"strings"
	"time"
)

// Sensor identifies the instrument a series was produced by.
type Sensor string

const (
	SensorLandsat    Sensor = "landsat"
	SensorDownscaled Sensor = "downscaled"
	SensorConstellr  Sensor = "constellr"
	SensorFusion     Sensor = "fusion"
)

// RawTable is a decoded source table before normalization: a header row and
// string cells, row-aligned with the header.
type RawTable struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Cell returns row i's value for column j, or "" when the row is short.
func (t RawTable) Cell(i, j int) string {
	if j < 0 || i < 0 || i >= len(t.Rows) || j >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][j]
}

// Column returns every value of column j.
func (t RawTable) Column(j int) []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, j)
	}
	return out
}

// Observation is one sensor's reading for one calendar day.
type Observation struct {
	Sensor Sensor
	// Date is the observation date (the Sentinel-2 date for downscaled rows).
	Date time.Time
	// SecondaryDate is the paired acquisition date when the source has one
	// (the Landsat scene a downscaled product was derived from).
	SecondaryDate time.Time
	LSTMin        NullFloat
	LSTMax        NullFloat
	LSTMean       NullFloat
	DeltaT        NullFloat
	DiffFromMean  NullFloat
	// Extras holds pass-through columns keyed by their source header.
	Extras map[string]string
}

// HasDate reports whether the observation's date parsed.
func (o Observation) HasDate() bool { return !o.Date.IsZero() }

// Series is one sensor's normalized observations.
type Series struct {
	Sensor       Sensor
	Source       string
	Observations []Observation
	// Extras lists the pass-through columns present in the source, in
	// schema order.
	Extras []string
	// UnparseableDates names date fields whose every value failed to parse.
	UnparseableDates []string
}

// DeltaTs returns the ΔT of every observation, absent values included.
func (s Series) DeltaTs() []NullFloat {
	out := make([]NullFloat, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = o.DeltaT
	}
	return out
}

// canonicalName folds a header the way column aliases are compared as a
// second pass: trimmed, lower-cased, spaces as underscores.
func canonicalName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
