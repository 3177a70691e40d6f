package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscardLogger(t *testing.T) {
	l := DiscardLogger()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.Decisions.WithLabelValues("constellr", "investigate").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Decisions.WithLabelValues("constellr", "investigate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Decisions.WithLabelValues("constellr", "investigate")))
}
