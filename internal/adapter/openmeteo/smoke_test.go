//go:build openmeteo

package openmeteo

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real archive API.
// Run with: go test -tags=openmeteo ./internal/adapter/openmeteo/ -v -count=1

func TestSmoke_DailyTmax(t *testing.T) {
	c := NewClient(DefaultBaseURL, "Europe/Kyiv", 30*time.Second, observability.NewMetricsForTesting(), observability.DiscardLogger())

	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC)
	days, err := c.DailyTmax(context.Background(), 47.5067, 34.5851, from, to)
	require.NoError(t, err)

	require.Len(t, days, 7)
	for _, d := range days {
		if d.TmaxC.Valid {
			assert.Greater(t, d.TmaxC.Value, 10.0, "July Tmax in the steppe")
			assert.Less(t, d.TmaxC.Value, 50.0)
		}
	}
}
