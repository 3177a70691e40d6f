package main

import (
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/config"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp() *app {
	override := 4.0
	return &app{
		cfg: &config.Config{
			Location:          "fordo",
			InputPrefix:       "lst",
			OutPrefix:         "anomalies/",
			LandsatKey:        "lst/fordo/l.csv",
			DownscaledKey:     "lst/fordo/d.csv",
			DuplicatePolicy:   "last",
			OverrideThreshold: &override,
		},
		profile: &config.Profile{},
	}
}

func TestThresholdOptions(t *testing.T) {
	a := testApp()

	opts, err := a.thresholdOptions(thresholdFlags{percentile: 95})
	require.NoError(t, err)
	assert.Equal(t, domain.DuplicateKeepLast, opts.Duplicates)
	require.NotNil(t, opts.Override)
	assert.Equal(t, 4.0, *opts.Override)
	assert.Equal(t, 95.0, opts.Percentile)
	assert.Equal(t, "lst/fordo/l.csv", opts.Landsat)

	opts, err = a.thresholdOptions(thresholdFlags{override: "6.5"})
	require.NoError(t, err)
	assert.Equal(t, 6.5, *opts.Override)

	_, err = a.thresholdOptions(thresholdFlags{override: "hot"})
	require.Error(t, err)
}

func TestHeatwaveOptions(t *testing.T) {
	a := testApp()

	opts, err := a.heatwaveOptions(heatwaveFlags{
		baselineFrom: "1991-01-01", baselineTo: "2020-12-31",
		from: "2025-07-01", to: "2025-07-31",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC), opts.WindowTo)
	assert.Equal(t, domain.DefaultHeatwaveConfig(), opts.Config)

	_, err = a.heatwaveOptions(heatwaveFlags{baselineFrom: "1991-01-01", baselineTo: "2020-12-31", from: "July", to: "2025-07-31"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"July"`)
}

func TestSensorPrefix(t *testing.T) {
	assert.Equal(t, "lst/fordo/constellr/", testApp().sensorPrefix("constellr"))
	assert.Equal(t, "x", orDefault("x", "y"))
	assert.Equal(t, "y", orDefault("  ", "y"))
}

func TestRootCommandWiring(t *testing.T) {
	root := rootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{
		"threshold", "score", "heatwave", "summarize-fusion", "summarize-constellr", "serve",
	}, names)
}
