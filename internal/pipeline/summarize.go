package pipeline

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/fusion"
	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/raster"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/google/uuid"
)

// ConstellrSummaryHeader is the column layout of the Constellr scene summary.
var ConstellrSummaryHeader = []string{
	"Date Folder", "Filename", "Min Temp", "Max Temp", "Mean Temp", "Error",
}

// SummarizeOptions configures a summarizer run: every object under Prefix is
// considered and the table is written to OutKey.
type SummarizeOptions struct {
	Prefix string
	OutKey string
	Nodata float64
}

// SummarizeFusion turns the fusion product's metadata documents into a
// table sorted by scene date. Unreadable documents are skipped.
func (p *Pipeline) SummarizeFusion(ctx context.Context, opts SummarizeOptions) (int, error) {
	var rows int
	err := p.track(JobSummarizeFusion, uuid.NewString(), func() error {
		keys, err := p.store.List(ctx, opts.Prefix)
		if err != nil {
			return err
		}
		var recs []fusion.Record
		for _, key := range keys {
			if !fusion.IsMetadataKey(key) {
				continue
			}
			data, err := p.store.Get(ctx, key)
			if err != nil {
				p.logger.Warn("metadata unreadable", "key", key, "error", err)
				continue
			}
			rec, err := fusion.Parse(key, data)
			if err != nil {
				p.logger.Warn("metadata skipped", "key", key, "error", err)
				continue
			}
			recs = append(recs, rec)
		}
		if len(recs) == 0 {
			return fmt.Errorf("%w: no metadata documents under %q", domain.ErrNoInput, opts.Prefix)
		}
		fusion.Sort(recs)
		rows = len(recs)
		_, err = p.putTable(ctx, opts.OutKey, fusion.Header, fusion.Records(recs), false)
		return err
	})
	return rows, err
}

type sceneSummary struct {
	date   time.Time
	folder string
	file   string
	sum    raster.Summary
	err    error
}

// SummarizeConstellr summarizes every Constellr LST raster found in the
// DD-MM-YYYY folders under the prefix. A raster that fails to decode keeps
// its row with the error text. Rows are sorted by folder date.
func (p *Pipeline) SummarizeConstellr(ctx context.Context, opts SummarizeOptions) (int, error) {
	var rows int
	err := p.track(JobSummarizeConstell, uuid.NewString(), func() error {
		keys, err := p.store.List(ctx, opts.Prefix)
		if err != nil {
			return err
		}
		var scenes []sceneSummary
		for _, key := range keys {
			if !isConstellrLST(key) {
				continue
			}
			folder := path.Base(path.Dir(key))
			d, err := time.Parse(raster.FolderLayout, folder)
			if err != nil {
				p.logger.Debug("scene outside a dated folder", "key", key)
				continue
			}
			s := sceneSummary{date: d, folder: folder, file: path.Base(key)}
			data, err := p.store.Get(ctx, key)
			if err == nil {
				var band raster.Band
				band, err = raster.Decode(data)
				if err == nil {
					s.sum = band.Summarize(opts.Nodata)
				}
			}
			if err != nil {
				s.err = err
				p.metrics.SceneMetrics.WithLabelValues("unavailable").Inc()
				p.logger.Warn("scene unreadable", "key", key, "error", err)
			} else {
				p.metrics.SceneMetrics.WithLabelValues("ok").Inc()
			}
			scenes = append(scenes, s)
		}
		if len(scenes) == 0 {
			return fmt.Errorf("%w: no LST rasters under %q", domain.ErrNoInput, opts.Prefix)
		}
		sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].date.Before(scenes[j].date) })

		records := make([][]string, len(scenes))
		for i, s := range scenes {
			msg := ""
			if s.err != nil {
				msg = s.err.Error()
			}
			records[i] = []string{s.folder, s.file, s.sum.Min.String(), s.sum.Max.String(), s.sum.Mean.String(), msg}
		}
		rows = len(records)
		_, err = p.putTable(ctx, opts.OutKey, ConstellrSummaryHeader, records, false)
		return err
	})
	return rows, err
}

func isConstellrLST(key string) bool {
	name := strings.ToLower(path.Base(key))
	if !strings.HasSuffix(name, ".tif") && !strings.HasSuffix(name, ".tiff") {
		return false
	}
	return strings.Contains(name, "z_lst")
}
