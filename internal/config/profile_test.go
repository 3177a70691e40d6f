package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfile = `
z_threshold: 2.5
use_evt: false
min_excesses: 40
sensors:
  landsat:
    baseline_group: landsat
    train_end: 2021-12-31
  downscaled:
    baseline_group: hires
    train_end: 2024-06-30
    eval_from: 2024-07-01
    prefer_secondary_weather: true
  constellr:
    baseline_group: hires
    eval_from: 2024-07-01
heatwave:
  month: 7
  percentile: 90
`

func TestLoadProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/lst/profile.yaml", []byte(testProfile), 0o644))

	p, err := LoadProfile(fs, "/etc/lst/profile.yaml")
	require.NoError(t, err)

	cfg, err := p.ScoreConfig()
	require.NoError(t, err)

	assert.Equal(t, 2.5, cfg.ZThreshold)
	assert.Equal(t, 3.0, cfg.ZGapThreshold, "unset keeps default")
	assert.False(t, cfg.UseEVT)
	assert.Equal(t, 40, cfg.MinExcesses)
	assert.Equal(t, "hires", cfg.GroupFor(domain.SensorConstellr))
	assert.True(t, cfg.PreferSecondaryWeather[domain.SensorDownscaled])
	assert.False(t, cfg.PreferSecondaryWeather[domain.SensorLandsat])

	assert.True(t, cfg.IsTrain(domain.SensorLandsat, time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, cfg.IsTrain(domain.SensorLandsat, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, cfg.IsTrain(domain.SensorConstellr, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)), "no train_end means test-only")
	assert.True(t, cfg.IsEval(domain.SensorDownscaled, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))

	hw, err := p.HeatwaveConfig()
	require.NoError(t, err)
	assert.Equal(t, time.July, hw.Month)
	assert.Equal(t, 90.0, hw.Percentile)
	assert.Equal(t, 3, hw.MinConsecutiveDays)
}

func TestLoadProfile_EmptyPathIsDefault(t *testing.T) {
	p, err := LoadProfile(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	cfg, err := p.ScoreConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultScoreConfig(), cfg)

	hw, err := p.HeatwaveConfig()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultHeatwaveConfig(), hw)
}

func TestLoadProfile_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := LoadProfile(fs, "/missing.yaml")
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("z_threshold: [1, 2"), 0o644))
	_, err = LoadProfile(fs, "/bad.yaml")
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/date.yaml", []byte("sensors:\n  landsat:\n    train_end: someday\n"), 0o644))
	p, err := LoadProfile(fs, "/date.yaml")
	require.NoError(t, err)
	_, err = p.ScoreConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sensors.landsat.train_end")

	require.NoError(t, afero.WriteFile(fs, "/q.yaml", []byte("p_body: 0.99\ntarget_q: 0.95\n"), 0o644))
	p, err = LoadProfile(fs, "/q.yaml")
	require.NoError(t, err)
	_, err = p.ScoreConfig()
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/hw.yaml", []byte("heatwave:\n  month: 13\n"), 0o644))
	p, err = LoadProfile(fs, "/hw.yaml")
	require.NoError(t, err)
	_, err = p.HeatwaveConfig()
	require.Error(t, err)
}
