package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/tabular"
)

// putTable writes a CSV table and, when xlsx is set, its workbook twin.
// It returns the URI of the CSV object.
func (p *Pipeline) putTable(ctx context.Context, key string, header []string, records [][]string, xlsx bool) (string, error) {
	data, err := tabular.WriteCSV(header, records)
	if err != nil {
		return "", err
	}
	if err := p.store.Put(ctx, key, data, objectstore.ContentTypeCSV); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if xlsx {
		book, err := tabular.WriteXLSX(sheetName(key), header, records)
		if err != nil {
			return "", err
		}
		wkey := tabular.XLSXKey(key)
		if err := p.store.Put(ctx, wkey, book, objectstore.ContentTypeXLSX); err != nil {
			return "", fmt.Errorf("write %s: %w", wkey, err)
		}
	}
	p.logger.Info("table written", "uri", p.store.URI(key), "rows", len(records))
	return p.store.URI(key), nil
}

func (p *Pipeline) putJSON(ctx context.Context, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	if err := p.store.Put(ctx, key, data, objectstore.ContentTypeJSON); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return p.store.URI(key), nil
}

// sheetName derives a worksheet name from a key. Excel caps names at 31
// characters.
func sheetName(key string) string {
	name := strings.TrimSuffix(path.Base(key), path.Ext(key))
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
