package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	doc := []byte(`{
		"scene_datetime": "2024-06-18T09:12:34+02:00",
		"scene_statistics": {"lst_min": 300.15, "lst_max": 318.65, "lst_mean": 310.15, "std_min": 0.4, "std_max": null}
	}`)

	rec, err := Parse("lst-fusion/2024/scene_metadata.json", doc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 6, 18, 7, 12, 34, 0, time.UTC), rec.Date)
	assert.InDelta(t, 27.0, rec.LSTMin.Value, 1e-9)
	assert.InDelta(t, 45.5, rec.LSTMax.Value, 1e-9)
	assert.InDelta(t, 37.0, rec.LSTMean.Value, 1e-9)
	assert.InDelta(t, 0.4, rec.StdMin.Value, 1e-12)
	assert.False(t, rec.StdMax.Valid)
	assert.False(t, rec.StdMean.Valid)
	assert.Equal(t, "scene_metadata.json", rec.SourceFile)
}

func TestParse_MissingFields(t *testing.T) {
	rec, err := Parse("a_metadata.json", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, rec.Date.IsZero())
	assert.False(t, rec.LSTMax.Valid)

	_, err = Parse("bad_metadata.json", []byte(`{`))
	require.Error(t, err)
}

func TestSortAndRecords(t *testing.T) {
	recs := []Record{
		{SourceFile: "undated"},
		{Date: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC), SourceFile: "b"},
		{Date: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), SourceFile: "a"},
	}
	Sort(recs)

	rows := Records(recs)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-06-01T10:00:00Z", rows[0][0])
	assert.Equal(t, "a", rows[0][7])
	assert.Equal(t, "b", rows[1][7])
	assert.Equal(t, "", rows[2][0])
	assert.Len(t, rows[0], len(Header))
}

func TestIsMetadataKey(t *testing.T) {
	assert.True(t, IsMetadataKey("p/2024/x_Metadata.json"))
	assert.False(t, IsMetadataKey("p/2024/x_metadata.tif"))
	assert.False(t, IsMetadataKey("p/2024/stats.json"))
}
