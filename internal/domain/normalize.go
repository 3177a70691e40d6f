package domain

import "time"

// Normalize resolves schema fields against a raw table and builds the
// sensor's series. A required field with no matching alias returns a
// *MissingColumnError. Cell-level problems never fail: unparseable numbers
// are absent, unparseable dates are the zero time and are reported in
// Series.UnparseableDates.
func Normalize(t RawTable, s Schema) (Series, error) {
	idx := map[string]int{}
	for _, f := range []Field{s.Date, s.SecondaryDate, s.Max, s.Mean, s.Min, s.DiffFromMean} {
		if !f.Used() {
			continue
		}
		j := f.resolve(t.Header)
		if j < 0 && f.Required {
			return Series{}, &MissingColumnError{
				Table:     t.Name,
				Field:     f.Name,
				Aliases:   f.Aliases,
				Available: t.Header,
			}
		}
		idx[f.Name] = j
	}

	out := Series{Sensor: s.Sensor, Source: t.Name}

	dates := dateColumn(t, s.Date, s.DateMode, idx, &out)
	secondary := dateColumn(t, s.SecondaryDate, DateCalendar, idx, &out)

	extras := map[string]int{}
	for _, name := range s.Passthrough {
		for j, h := range t.Header {
			if h == name {
				extras[name] = j
				out.Extras = append(out.Extras, name)
				break
			}
		}
	}

	out.Observations = make([]Observation, len(t.Rows))
	for i := range t.Rows {
		o := Observation{
			Sensor:        s.Sensor,
			Date:          dates[i],
			SecondaryDate: secondary[i],
			LSTMin:        numberAt(t, i, s.Min, idx),
			LSTMax:        numberAt(t, i, s.Max, idx),
			LSTMean:       numberAt(t, i, s.Mean, idx),
			DiffFromMean:  numberAt(t, i, s.DiffFromMean, idx),
		}
		o.DeltaT = o.LSTMax.Sub(o.LSTMean)
		if len(extras) > 0 {
			o.Extras = make(map[string]string, len(extras))
			for name, j := range extras {
				o.Extras[name] = t.Cell(i, j)
			}
		}
		out.Observations[i] = o
	}
	return out, nil
}

func dateColumn(t RawTable, f Field, mode DateMode, idx map[string]int, out *Series) []time.Time {
	j, ok := idx[f.Name]
	if !f.Used() || !ok || j < 0 {
		return make([]time.Time, len(t.Rows))
	}
	dates, ok := ParseDateColumn(t.Column(j), mode)
	if !ok {
		out.UnparseableDates = append(out.UnparseableDates, t.Header[j])
	}
	return dates
}

func numberAt(t RawTable, i int, f Field, idx map[string]int) NullFloat {
	j, ok := idx[f.Name]
	if !f.Used() || !ok || j < 0 {
		return Null
	}
	return ParseFloat(t.Cell(i, j))
}
