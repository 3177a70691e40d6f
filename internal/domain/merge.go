package domain

import (
	"fmt"
	"sort"
	"time"
)

// DuplicatePolicy decides what happens when one input has several rows for
// the same date.
type DuplicatePolicy int

const (
	// DuplicateReject fails the merge with ErrDuplicateDate.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateKeepFirst keeps the first row seen for a date.
	DuplicateKeepFirst
	// DuplicateKeepLast keeps the last row seen for a date.
	DuplicateKeepLast
	// DuplicateMean averages numeric cells and keeps the first text and
	// date cells.
	DuplicateMean
)

// ParseDuplicatePolicy maps a configuration string to a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "reject":
		return DuplicateReject, nil
	case "first":
		return DuplicateKeepFirst, nil
	case "last":
		return DuplicateKeepLast, nil
	case "mean":
		return DuplicateMean, nil
	}
	return DuplicateReject, fmt.Errorf("unknown duplicate policy %q", s)
}

// MergeOptions controls column order and duplicate handling.
type MergeOptions struct {
	// Order lists preferred column positions. Columns not listed follow in
	// first-seen order. Listed columns that no input carries are skipped.
	Order      []string
	Duplicates DuplicatePolicy
}

// MergeStats counts what the merge did.
type MergeStats struct {
	Inputs         int
	Rows           int
	DroppedNoDate  int
	DuplicateDates int
}

// Merge outer-joins frames on their date. The result holds one row per date
// present in any input, sorted ascending; a frame's cells are absent on dates
// it has no row for. Rows with no date cannot be joined and are dropped.
func Merge(frames []Frame, opts MergeOptions) (Frame, MergeStats, error) {
	stats := MergeStats{Inputs: len(frames)}
	if len(frames) == 0 {
		return Frame{}, stats, ErrNoInput
	}

	var columns []Column
	seen := map[string]bool{}
	byDate := map[time.Time]map[string]Cell{}

	for fi, f := range frames {
		for _, c := range f.Columns {
			if !seen[c.Name] {
				seen[c.Name] = true
				columns = append(columns, c)
			}
		}

		rows, dropped, dups, err := dedupe(f, opts.Duplicates)
		if err != nil {
			return Frame{}, stats, fmt.Errorf("input %d: %w", fi, err)
		}
		stats.DroppedNoDate += dropped
		stats.DuplicateDates += dups

		for _, r := range rows {
			cells, ok := byDate[r.Date]
			if !ok {
				cells = map[string]Cell{}
				byDate[r.Date] = cells
			}
			for k, v := range r.Cells {
				cells[k] = v
			}
		}
	}

	out := Frame{Columns: orderColumns(columns, opts.Order)}
	out.Rows = make([]Row, 0, len(byDate))
	for d, cells := range byDate {
		out.Rows = append(out.Rows, Row{Date: d, Cells: cells})
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Date.Before(out.Rows[j].Date) })
	stats.Rows = len(out.Rows)
	return out, stats, nil
}

func dedupe(f Frame, policy DuplicatePolicy) (rows []Row, dropped, dups int, err error) {
	index := map[time.Time]int{}
	// per-row numeric sums and counts for DuplicateMean
	var sums []map[string]float64
	var counts []map[string]int

	for _, r := range f.Rows {
		if r.Date.IsZero() {
			dropped++
			continue
		}
		i, ok := index[r.Date]
		if !ok {
			index[r.Date] = len(rows)
			rows = append(rows, copyRow(r))
			if policy == DuplicateMean {
				sums = append(sums, map[string]float64{})
				counts = append(counts, map[string]int{})
				accumulate(f.Columns, r, sums[len(sums)-1], counts[len(counts)-1])
			}
			continue
		}
		dups++
		switch policy {
		case DuplicateReject:
			return nil, dropped, dups, fmt.Errorf("%w: %s", ErrDuplicateDate, FormatDay(r.Date))
		case DuplicateKeepLast:
			rows[i] = copyRow(r)
		case DuplicateMean:
			accumulate(f.Columns, r, sums[i], counts[i])
		}
	}

	if policy == DuplicateMean {
		for i, r := range rows {
			for _, c := range f.Columns {
				if c.Kind != KindNumber {
					continue
				}
				if n := counts[i][c.Name]; n > 0 {
					r.Cells[c.Name] = Cell{Num: Float(sums[i][c.Name] / float64(n))}
				}
			}
		}
	}
	return rows, dropped, dups, nil
}

func accumulate(columns []Column, r Row, sums map[string]float64, counts map[string]int) {
	for _, c := range columns {
		if c.Kind != KindNumber {
			continue
		}
		if v := r.Cells[c.Name].Num; v.Valid {
			sums[c.Name] += v.Value
			counts[c.Name]++
		}
	}
}

func copyRow(r Row) Row {
	cells := make(map[string]Cell, len(r.Cells))
	for k, v := range r.Cells {
		cells[k] = v
	}
	return Row{Date: r.Date, Cells: cells}
}

func orderColumns(columns []Column, order []string) []Column {
	if len(order) == 0 {
		return columns
	}
	byName := make(map[string]Column, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}
	out := make([]Column, 0, len(columns))
	placed := map[string]bool{}
	for _, name := range order {
		if c, ok := byName[name]; ok && !placed[name] {
			out = append(out, c)
			placed[name] = true
		}
	}
	for _, c := range columns {
		if !placed[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
