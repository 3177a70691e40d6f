// Package fusion summarizes the per-scene metadata documents of the fusion
// LST product into the tabular form the normalizer reads.
package fusion

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
)

const kelvinToC = 273.15

// Header is the column layout of the metadata summary table.
var Header = []string{"Date", "lst_min", "lst_max", "lst_mean", "std_min", "std_max", "std_mean", "SourceFile"}

// Record is one scene of the summary. LST values are in degrees Celsius;
// standard deviations are passed through unchanged.
type Record struct {
	Date       time.Time
	LSTMin     domain.NullFloat
	LSTMax     domain.NullFloat
	LSTMean    domain.NullFloat
	StdMin     domain.NullFloat
	StdMax     domain.NullFloat
	StdMean    domain.NullFloat
	SourceFile string
}

type metadata struct {
	SceneDatetime   string          `json:"scene_datetime"`
	SceneStatistics *sceneStatistic `json:"scene_statistics"`
}

type sceneStatistic struct {
	LSTMin  *float64 `json:"lst_min"`
	LSTMax  *float64 `json:"lst_max"`
	LSTMean *float64 `json:"lst_mean"`
	StdMin  *float64 `json:"std_min"`
	StdMax  *float64 `json:"std_max"`
	StdMean *float64 `json:"std_mean"`
}

// IsMetadataKey reports whether key names a scene metadata document.
func IsMetadataKey(key string) bool {
	name := path.Base(key)
	return strings.HasSuffix(name, ".json") && strings.Contains(strings.ToLower(name), "metadata")
}

// Parse reads one metadata document. A missing or unparseable
// scene_datetime leaves Date zero.
func Parse(key string, data []byte) (Record, error) {
	var m metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	rec := Record{SourceFile: path.Base(key)}
	if m.SceneDatetime != "" {
		if t, ok := parseTimestamp(m.SceneDatetime); ok {
			rec.Date = t
		}
	}
	if st := m.SceneStatistics; st != nil {
		rec.LSTMin = kelvin(st.LSTMin)
		rec.LSTMax = kelvin(st.LSTMax)
		rec.LSTMean = kelvin(st.LSTMean)
		rec.StdMin = ptr(st.StdMin)
		rec.StdMax = ptr(st.StdMax)
		rec.StdMean = ptr(st.StdMean)
	}
	return rec, nil
}

// Sort orders records by date; undated records go last.
func Sort(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].Date, recs[j].Date
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.Before(b)
	})
}

// Records renders records aligned with Header.
func Records(recs []Record) [][]string {
	out := make([][]string, len(recs))
	for i, r := range recs {
		date := ""
		if !r.Date.IsZero() {
			date = r.Date.UTC().Format(time.RFC3339)
		}
		out[i] = []string{
			date, r.LSTMin.String(), r.LSTMax.String(), r.LSTMean.String(),
			r.StdMin.String(), r.StdMax.String(), r.StdMean.String(), r.SourceFile,
		}
	}
	return out
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func kelvin(v *float64) domain.NullFloat {
	if v == nil {
		return domain.Null
	}
	return domain.Float(*v - kelvinToC)
}

func ptr(v *float64) domain.NullFloat {
	if v == nil {
		return domain.Null
	}
	return domain.Float(*v)
}
