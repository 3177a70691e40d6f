package domain

import (
	"time"
)

// CellKind is the type of a frame column.
type CellKind int

const (
	KindNumber CellKind = iota
	KindText
	KindDate
)

// Column describes one frame column.
type Column struct {
	Name string
	Kind CellKind
}

// Cell holds one value; only the field matching the column kind is used.
type Cell struct {
	Num  NullFloat
	Text string
	Date time.Time
}

// String formats the cell for tabular output.
func (c Cell) String(kind CellKind) string {
	switch kind {
	case KindNumber:
		return c.Num.String()
	case KindDate:
		return FormatDay(c.Date)
	default:
		return c.Text
	}
}

// Row is one date-keyed record. A column with no entry in Cells is absent.
type Row struct {
	Date  time.Time
	Cells map[string]Cell
}

// Frame is a date-keyed table with an ordered column list. The date is the
// implicit first column.
type Frame struct {
	Columns []Column
	Rows    []Row
}

// Has reports whether the frame carries the named column.
func (f Frame) Has(name string) bool {
	_, ok := f.column(name)
	return ok
}

func (f Frame) column(name string) (Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Num returns a numeric cell of row r.
func (r Row) Num(name string) NullFloat {
	return r.Cells[name].Num
}

// Dates returns the row dates in order.
func (f Frame) Dates() []time.Time {
	out := make([]time.Time, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Date
	}
	return out
}

// Header returns the column names with the date first.
func (f Frame) Header() []string {
	out := make([]string, 0, len(f.Columns)+1)
	out = append(out, ColDate)
	for _, c := range f.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Records renders the frame as string rows aligned with Header.
func (f Frame) Records() [][]string {
	out := make([][]string, len(f.Rows))
	for i, r := range f.Rows {
		rec := make([]string, 0, len(f.Columns)+1)
		rec = append(rec, FormatDay(r.Date))
		for _, c := range f.Columns {
			rec = append(rec, r.Cells[c.Name].String(c.Kind))
		}
		out[i] = rec
	}
	return out
}

// Projection selects the columns a series contributes to a merge.
type Projection struct {
	DeltaT        string
	SecondaryDate string
	DaysDiff      string
	Extras        []string
}

// Project turns a series into a frame keyed on the observation date.
func (s Series) Project(p Projection) Frame {
	var f Frame
	if p.DeltaT != "" {
		f.Columns = append(f.Columns, Column{Name: p.DeltaT, Kind: KindNumber})
	}
	if p.SecondaryDate != "" {
		f.Columns = append(f.Columns, Column{Name: p.SecondaryDate, Kind: KindDate})
	}
	if p.DaysDiff != "" {
		f.Columns = append(f.Columns, Column{Name: p.DaysDiff, Kind: KindNumber})
	}
	present := map[string]bool{}
	for _, name := range s.Extras {
		present[name] = true
	}
	var extras []string
	for _, name := range p.Extras {
		if present[name] {
			extras = append(extras, name)
			f.Columns = append(f.Columns, Column{Name: name, Kind: KindText})
		}
	}

	f.Rows = make([]Row, len(s.Observations))
	for i, o := range s.Observations {
		cells := make(map[string]Cell, len(f.Columns))
		if p.DeltaT != "" {
			cells[p.DeltaT] = Cell{Num: o.DeltaT}
		}
		if p.SecondaryDate != "" && !o.SecondaryDate.IsZero() {
			cells[p.SecondaryDate] = Cell{Date: o.SecondaryDate}
		}
		if p.DaysDiff != "" {
			cells[p.DaysDiff] = Cell{Num: DaysBetween(o.Date, o.SecondaryDate)}
		}
		for _, name := range extras {
			cells[name] = Cell{Text: o.Extras[name]}
		}
		f.Rows[i] = Row{Date: o.Date, Cells: cells}
	}
	return f
}
