package raster

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/spf13/afero"
)

// FolderLayout is the per-acquisition folder name, DD-MM-YYYY.
const FolderLayout = "02-01-2006"

var (
	lstPatterns  = []string{"*lst.tif", "*lst.tiff", "*_lst.tif*"}
	maskPatterns = []string{
		"*cloud_mask.tif", "*cloud_mask.tiff", "*cloud_mask*.tif*",
		"*cloud_mask.png", "*cloud_mask.jpg", "*cloud_mask.jpeg",
	}
)

// FolderName returns the folder that holds the scene of day d.
func FolderName(d time.Time) string {
	return d.Format(FolderLayout)
}

// SceneReader computes scene metrics from rasters on a filesystem.
type SceneReader struct {
	fs     afero.Fs
	root   string
	nodata float64
	logger *slog.Logger
}

// NewSceneReader creates a reader. root is the folder holding the per-date
// scene folders; it may be empty when every record carries explicit paths.
func NewSceneReader(fs afero.Fs, root string, nodata float64, logger *slog.Logger) *SceneReader {
	return &SceneReader{fs: fs, root: root, nodata: nodata, logger: logger}
}

// Locate finds the LST raster and cloud mask of day d. Either may be empty.
func (r *SceneReader) Locate(d time.Time) (lstPath, maskPath string) {
	if r.root == "" || d.IsZero() {
		return "", ""
	}
	folder := filepath.Join(r.root, FolderName(d))
	if ok, _ := afero.DirExists(r.fs, folder); !ok {
		return "", ""
	}
	return r.firstMatch(folder, lstPatterns), r.firstMatch(folder, maskPatterns)
}

func (r *SceneReader) firstMatch(folder string, patterns []string) string {
	for _, p := range patterns {
		hits, err := afero.Glob(r.fs, filepath.Join(folder, p))
		if err != nil || len(hits) == 0 {
			continue
		}
		sort.Strings(hits)
		return hits[0]
	}
	return ""
}

// Spread returns P95 minus median of the valid pixels of a scene. An
// unreadable mask is ignored; a mask of a different size makes the scene
// unavailable.
func (r *SceneReader) Spread(lstPath, maskPath string) (domain.NullFloat, error) {
	if lstPath == "" {
		return domain.Null, fmt.Errorf("%w: no lst raster", domain.ErrRasterUnavailable)
	}
	lst, err := r.read(lstPath)
	if err != nil {
		return domain.Null, err
	}
	var mask []float64
	if maskPath != "" {
		m, err := r.read(maskPath)
		if err != nil {
			r.logger.Debug("cloud mask ignored", "path", maskPath, "error", err)
		} else {
			mask = m.Values
		}
	}
	return domain.SceneSpread(lst.Values, mask, r.nodata)
}

// SpreadForDate resolves the scene of day d and returns its spread.
func (r *SceneReader) SpreadForDate(d time.Time) (domain.NullFloat, error) {
	lst, mask := r.Locate(d)
	return r.Spread(lst, mask)
}

func (r *SceneReader) read(path string) (Band, error) {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return Band{}, fmt.Errorf("%w: %v", domain.ErrRasterUnavailable, err)
	}
	return Decode(data)
}
