// Package tabular converts between stored tables (CSV, XLSX) and raw string
// tables.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// Decode parses a table, choosing the codec by the key extension.
func Decode(key string, data []byte) (domain.RawTable, error) {
	if IsXLSX(key) {
		return ReadXLSX(key, data)
	}
	return ReadCSV(key, data)
}

// IsXLSX reports whether key names a workbook.
func IsXLSX(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// XLSXKey returns the workbook twin of a CSV key.
func XLSXKey(key string) string {
	return strings.TrimSuffix(key, path.Ext(key)) + ".xlsx"
}

// ReadCSV parses CSV bytes. The first record is the header; short rows are
// padded with empty cells.
func ReadCSV(name string, data []byte) (domain.RawTable, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte(utf8BOM))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawTable{}, fmt.Errorf("%s: %w: empty table", name, domain.ErrNoInput)
	}
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read %s header: %w", name, err)
	}
	t := domain.RawTable{Name: name, Header: header}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.RawTable{}, fmt.Errorf("read %s: %w", name, err)
		}
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, pad(rec, len(header)))
	}
	return t, nil
}

// WriteCSV renders a header and records as CSV.
func WriteCSV(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadXLSX parses the first sheet of a workbook.
func ReadXLSX(name string, data []byte) (domain.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.RawTable{}, fmt.Errorf("%s: %w: no sheets", name, domain.ErrNoInput)
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read %s sheet %s: %w", name, sheet, err)
	}
	if len(rows) == 0 {
		return domain.RawTable{}, fmt.Errorf("%s: %w: empty table", name, domain.ErrNoInput)
	}
	t := domain.RawTable{Name: name, Header: rows[0]}
	dates := dateStyles{f: f, known: map[int]bool{}}
	for i, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		for j, v := range rec {
			if rec[j], err = dates.render(sheet, j+1, i+2, v); err != nil {
				return domain.RawTable{}, fmt.Errorf("read %s: %w", name, err)
			}
		}
		t.Rows = append(t.Rows, pad(rec, len(t.Header)))
	}
	return t, nil
}

// Built-in number formats that display a date.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 57: true, 58: true,
}

// dateStyles turns date-formatted serial numbers back into ISO dates. Raw
// cell values keep Excel's locale display out of the date parser.
type dateStyles struct {
	f     *excelize.File
	known map[int]bool
}

func (d dateStyles) render(sheet string, col, row int, v string) (string, error) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return v, nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return v, err
	}
	idx, err := d.f.GetCellStyle(sheet, cell)
	if err != nil {
		return v, fmt.Errorf("style of %s: %w", cell, err)
	}
	isDate, ok := d.known[idx]
	if !ok {
		style, err := d.f.GetStyle(idx)
		if err != nil {
			return v, fmt.Errorf("style %d: %w", idx, err)
		}
		isDate = isDateFormat(style)
		d.known[idx] = isDate
	}
	if !isDate {
		return v, nil
	}
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return v, nil
	}
	ts = ts.Round(time.Second)
	if ts.Equal(domain.Day(ts)) {
		return domain.FormatDay(ts), nil
	}
	return ts.Format("2006-01-02T15:04:05"), nil
}

func isDateFormat(s *excelize.Style) bool {
	if s == nil {
		return false
	}
	if s.CustomNumFmt == nil {
		return builtinDateFormats[s.NumFmt]
	}
	code := strings.ToLower(*s.CustomNumFmt)
	var plain strings.Builder
	quoted, bracket := false, false
	for _, r := range code {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			plain.WriteRune(r)
		}
	}
	return strings.ContainsAny(plain.String(), "yd")
}

// WriteXLSX renders a header and records as a single-sheet workbook.
// Cells that parse as numbers are written as numbers.
func WriteXLSX(sheet string, header []string, records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("open sheet writer: %w", err)
	}
	if err := sw.SetRow("A1", toCells(header, false)); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, toCells(rec, true)); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func toCells(rec []string, numeric bool) []interface{} {
	out := make([]interface{}, len(rec))
	for i, v := range rec {
		out[i] = v
		if !numeric || v == "" {
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[i] = f
		}
	}
	return out
}

func pad(rec []string, n int) []string {
	if len(rec) >= n {
		return rec
	}
	out := make([]string, n)
	copy(out, rec)
	return out
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
