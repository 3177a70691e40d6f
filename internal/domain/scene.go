package domain

import (
	"fmt"
	"math"

	"github.com/couchcryptid/lst-anomaly-etl/internal/stats"
)

// DefaultNodata is the Constellr LST raster fill value.
const DefaultNodata = 65535

// SceneSpread returns P95 minus the median of the valid pixels of a scene.
// A pixel is valid when it is finite, not the nodata value, and its cloud
// mask entry (when a mask is given) is zero. mask must be nil or the same
// length as lst.
func SceneSpread(lst, mask []float64, nodata float64) (NullFloat, error) {
	if mask != nil && len(mask) != len(lst) {
		return Null, fmt.Errorf("%w: mask has %d pixels, lst has %d", ErrRasterUnavailable, len(mask), len(lst))
	}
	valid := make([]float64, 0, len(lst))
	for i, v := range lst {
		if math.IsNaN(v) || math.IsInf(v, 0) || v == nodata {
			continue
		}
		if mask != nil && mask[i] != 0 {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		return Null, fmt.Errorf("%w: no valid pixels", ErrRasterUnavailable)
	}
	return Float(stats.Percentile(valid, 95) - stats.Median(valid)), nil
}
