package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deltaFrame(col string, rows map[string]float64) Frame {
	f := Frame{Columns: []Column{{Name: col, Kind: KindNumber}}}
	for d, v := range rows {
		f.Rows = append(f.Rows, Row{Date: day(d), Cells: map[string]Cell{col: {Num: Float(v)}}})
	}
	return f
}

func TestMerge_OuterJoin(t *testing.T) {
	a := deltaFrame("A", map[string]float64{"2024-01-01": 1, "2024-01-03": 3})
	b := deltaFrame("B", map[string]float64{"2024-01-02": 20, "2024-01-03": 30})

	merged, st, err := Merge([]Frame{a, b}, MergeOptions{})
	require.NoError(t, err)
	require.Len(t, merged.Rows, 3)
	assert.Equal(t, 3, st.Rows)

	assert.Equal(t, []time.Time{day("2024-01-01"), day("2024-01-02"), day("2024-01-03")}, merged.Dates())

	assert.Equal(t, Float(1), merged.Rows[0].Num("A"))
	assert.False(t, merged.Rows[0].Num("B").Valid)
	assert.False(t, merged.Rows[1].Num("A").Valid)
	assert.Equal(t, Float(20), merged.Rows[1].Num("B"))
	assert.Equal(t, Float(3), merged.Rows[2].Num("A"))
	assert.Equal(t, Float(30), merged.Rows[2].Num("B"))
}

func TestMerge_DateUnion(t *testing.T) {
	inputs := []Frame{
		deltaFrame("A", map[string]float64{"2023-05-01": 1, "2023-06-01": 1, "2024-01-01": 1}),
		deltaFrame("B", map[string]float64{"2022-01-01": 2, "2023-06-01": 2}),
		deltaFrame("C", map[string]float64{}),
		deltaFrame("D", map[string]float64{"2025-02-02": 4, "2022-01-01": 4}),
	}
	want := map[time.Time]bool{}
	for _, f := range inputs {
		for _, d := range f.Dates() {
			want[d] = true
		}
	}

	merged, _, err := Merge(inputs, MergeOptions{})
	require.NoError(t, err)

	got := map[time.Time]bool{}
	for i, d := range merged.Dates() {
		got[d] = true
		if i > 0 {
			assert.True(t, merged.Rows[i-1].Date.Before(d), "sorted ascending")
		}
	}
	assert.Equal(t, want, got)
}

func TestMerge_Idempotent(t *testing.T) {
	inputs := []Frame{
		deltaFrame(ColDeltaTGEE, map[string]float64{"2024-07-01": 1.5, "2024-07-09": 2}),
		deltaFrame(ColDeltaTFusion, map[string]float64{"2024-07-09": 8, "2024-07-11": 9}),
	}
	first, _, err := Merge(inputs, MergeOptions{Order: MergedColumnOrder})
	require.NoError(t, err)
	second, _, err := Merge(inputs, MergeOptions{Order: MergedColumnOrder})
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("merge not idempotent (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Records(), second.Records())
}

func TestMerge_ColumnOrder(t *testing.T) {
	inputs := []Frame{
		deltaFrame("extra", map[string]float64{"2024-01-01": 1}),
		deltaFrame(ColDeltaTFusion, map[string]float64{"2024-01-01": 1}),
		deltaFrame(ColDeltaTGEE, map[string]float64{"2024-01-01": 1}),
	}
	merged, _, err := Merge(inputs, MergeOptions{Order: MergedColumnOrder})
	require.NoError(t, err)
	assert.Equal(t, []string{ColDate, ColDeltaTGEE, ColDeltaTFusion, "extra"}, merged.Header())
}

func TestMerge_Duplicates(t *testing.T) {
	dup := Frame{
		Columns: []Column{{Name: "A", Kind: KindNumber}, {Name: "id", Kind: KindText}},
		Rows: []Row{
			{Date: day("2024-01-01"), Cells: map[string]Cell{"A": {Num: Float(2)}, "id": {Text: "first"}}},
			{Date: day("2024-01-01"), Cells: map[string]Cell{"A": {Num: Float(4)}, "id": {Text: "last"}}},
			{Date: day("2024-01-02"), Cells: map[string]Cell{"A": {Num: Float(7)}, "id": {Text: "x"}}},
		},
	}

	t.Run("reject", func(t *testing.T) {
		_, _, err := Merge([]Frame{dup}, MergeOptions{})
		require.ErrorIs(t, err, ErrDuplicateDate)
		assert.Contains(t, err.Error(), "2024-01-01")
	})

	t.Run("keep first", func(t *testing.T) {
		m, st, err := Merge([]Frame{dup}, MergeOptions{Duplicates: DuplicateKeepFirst})
		require.NoError(t, err)
		assert.Equal(t, 1, st.DuplicateDates)
		assert.Len(t, m.Rows, 2)
		assert.Equal(t, Float(2), m.Rows[0].Num("A"))
		assert.Equal(t, "first", m.Rows[0].Cells["id"].Text)
	})

	t.Run("keep last", func(t *testing.T) {
		m, _, err := Merge([]Frame{dup}, MergeOptions{Duplicates: DuplicateKeepLast})
		require.NoError(t, err)
		assert.Equal(t, Float(4), m.Rows[0].Num("A"))
		assert.Equal(t, "last", m.Rows[0].Cells["id"].Text)
	})

	t.Run("mean", func(t *testing.T) {
		m, _, err := Merge([]Frame{dup}, MergeOptions{Duplicates: DuplicateMean})
		require.NoError(t, err)
		assert.Equal(t, Float(3), m.Rows[0].Num("A"))
		assert.Equal(t, "first", m.Rows[0].Cells["id"].Text)
		assert.Equal(t, Float(7), m.Rows[1].Num("A"))
	})
}

func TestMerge_DropsUndatedRows(t *testing.T) {
	f := deltaFrame("A", map[string]float64{"2024-01-01": 1})
	f.Rows = append(f.Rows, Row{Cells: map[string]Cell{"A": {Num: Float(9)}}})

	m, st, err := Merge([]Frame{f}, MergeOptions{})
	require.NoError(t, err)
	assert.Len(t, m.Rows, 1)
	assert.Equal(t, 1, st.DroppedNoDate)
}

func TestMerge_NoInput(t *testing.T) {
	_, _, err := Merge(nil, MergeOptions{})
	require.ErrorIs(t, err, ErrNoInput)
}

func TestParseDuplicatePolicy(t *testing.T) {
	for in, want := range map[string]DuplicatePolicy{
		"": DuplicateReject, "reject": DuplicateReject, "first": DuplicateKeepFirst,
		"last": DuplicateKeepLast, "mean": DuplicateMean,
	} {
		got, err := ParseDuplicatePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDuplicatePolicy("sum")
	require.Error(t, err)
}
