// Package raster reads single-band scene rasters (GeoTIFF LST products and
// their cloud masks) and locates them in the per-date folder layout.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // cloud masks
	_ "image/png"  // cloud masks
	"math"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"golang.org/x/image/tiff"
)

// Kelvin scale of the Constellr LST product: value*0.01 K.
const (
	lstScale    = 0.01
	kelvinToC   = 273.15
	tiffMagicLE = "II*\x00"
	tiffMagicBE = "MM\x00*"
)

// Band is the first band of a raster as samples in row-major order.
type Band struct {
	Width  int
	Height int
	Values []float64
}

// Decode reads a TIFF, PNG or JPEG image and returns its first band.
// 16-bit grayscale samples keep their raw values.
func Decode(data []byte) (Band, error) {
	var (
		img image.Image
		err error
	)
	if bytes.HasPrefix(data, []byte(tiffMagicLE)) || bytes.HasPrefix(data, []byte(tiffMagicBE)) {
		img, err = tiff.Decode(bytes.NewReader(data))
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return Band{}, fmt.Errorf("%w: decode: %v", domain.ErrRasterUnavailable, err)
	}
	return bandOf(img), nil
}

func bandOf(img image.Image) Band {
	r := img.Bounds()
	b := Band{Width: r.Dx(), Height: r.Dy(), Values: make([]float64, 0, r.Dx()*r.Dy())}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			b.Values = append(b.Values, sample(img, x, y))
		}
	}
	return b
}

func sample(img image.Image, x, y int) float64 {
	switch m := img.(type) {
	case *image.Gray16:
		return float64(m.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(m.GrayAt(x, y).Y)
	}
	return float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
}

// Celsius converts raw LST samples to degrees Celsius. Nodata and
// non-finite samples become NaN.
func (b Band) Celsius(nodata float64) []float64 {
	out := make([]float64, len(b.Values))
	for i, v := range b.Values {
		if v == nodata || math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v*lstScale - kelvinToC
	}
	return out
}

// Summary is the min, max and mean of a scene in degrees Celsius.
type Summary struct {
	Min  domain.NullFloat
	Max  domain.NullFloat
	Mean domain.NullFloat
}

// Summarize computes the scene summary over the valid samples.
func (b Band) Summarize(nodata float64) Summary {
	var (
		s   Summary
		sum float64
		n   int
	)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range b.Celsius(nodata) {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if n == 0 {
		return s
	}
	s.Min = domain.Float(lo)
	s.Max = domain.Float(hi)
	s.Mean = domain.Float(sum / float64(n))
	return s
}
