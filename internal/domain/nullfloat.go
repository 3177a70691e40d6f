package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NullFloat is a float64 that may be absent. The zero value is absent.
type NullFloat struct {
	Value float64
	Valid bool
}

// Null is the absent value.
var Null = NullFloat{}

// Float wraps v, treating NaN and ±Inf as absent.
func Float(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Null
	}
	return NullFloat{Value: v, Valid: true}
}

// ParseFloat coerces a cell to a number; anything unparseable is absent.
func ParseFloat(s string) NullFloat {
	s = strings.TrimSpace(s)
	if s == "" {
		return Null
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null
	}
	return Float(v)
}

// Sub returns f − o, absent if either side is absent.
func (f NullFloat) Sub(o NullFloat) NullFloat {
	if !f.Valid || !o.Valid {
		return Null
	}
	return Float(f.Value - o.Value)
}

// Or returns f when present, otherwise o.
func (f NullFloat) Or(o NullFloat) NullFloat {
	if f.Valid {
		return f
	}
	return o
}

// Greater reports f > t. Absent values and a NaN threshold are never greater.
func (f NullFloat) Greater(t float64) bool {
	return f.Valid && !math.IsNaN(t) && f.Value > t
}

// AtLeast reports f >= t with the same absent semantics as Greater.
func (f NullFloat) AtLeast(t float64) bool {
	return f.Valid && !math.IsNaN(t) && f.Value >= t
}

// Float64 returns the value or NaN when absent.
func (f NullFloat) Float64() float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Value
}

// String formats the value for tabular output; absent is the empty string.
func (f NullFloat) String() string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// MarshalJSON encodes absent values as null.
func (f NullFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON accepts a number or null.
func (f *NullFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Null
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Values returns the present values of xs.
func Values(xs []NullFloat) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x.Valid {
			out = append(out, x.Value)
		}
	}
	return out
}
