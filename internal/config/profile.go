package config

import (
	"fmt"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Profile is the YAML scoring profile. Every field is optional; unset fields
// keep the defaults of domain.DefaultScoreConfig.
type Profile struct {
	ZThreshold    *float64                 `yaml:"z_threshold"`
	ZGapThreshold *float64                 `yaml:"z_gap_threshold"`
	UseEVT        *bool                    `yaml:"use_evt"`
	PBody         *float64                 `yaml:"p_body"`
	TargetQ       *float64                 `yaml:"target_q"`
	MinExcesses   *int                     `yaml:"min_excesses"`
	Epsilon       *float64                 `yaml:"epsilon"`
	MADScale      *float64                 `yaml:"mad_scale"`
	Sensors       map[string]SensorProfile `yaml:"sensors"`
	Heatwave      *HeatwaveProfile         `yaml:"heatwave"`
}

// SensorProfile configures one sensor's split and baseline pooling. Setting
// sensors in a profile replaces the default sensor table entirely.
type SensorProfile struct {
	BaselineGroup          string `yaml:"baseline_group"`
	TrainEnd               string `yaml:"train_end"`
	EvalFrom               string `yaml:"eval_from"`
	PreferSecondaryWeather bool   `yaml:"prefer_secondary_weather"`
}

// HeatwaveProfile configures the heatwave check.
type HeatwaveProfile struct {
	Month              int     `yaml:"month"`
	Percentile         float64 `yaml:"percentile"`
	MinConsecutiveDays int     `yaml:"min_consecutive_days"`
}

// LoadProfile reads a YAML profile from fs. An empty path yields the zero
// profile, which resolves to the defaults.
func LoadProfile(fs afero.Fs, path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return &p, nil
}

// ScoreConfig resolves the profile into a validated scorer configuration.
func (p *Profile) ScoreConfig() (domain.ScoreConfig, error) {
	cfg := domain.DefaultScoreConfig()
	setFloat(&cfg.ZThreshold, p.ZThreshold)
	setFloat(&cfg.ZGapThreshold, p.ZGapThreshold)
	setFloat(&cfg.PBody, p.PBody)
	setFloat(&cfg.TargetQ, p.TargetQ)
	setFloat(&cfg.Epsilon, p.Epsilon)
	setFloat(&cfg.MADScale, p.MADScale)
	if p.UseEVT != nil {
		cfg.UseEVT = *p.UseEVT
	}
	if p.MinExcesses != nil {
		cfg.MinExcesses = *p.MinExcesses
	}

	if len(p.Sensors) > 0 {
		cfg.Splits = map[domain.Sensor]domain.Split{}
		cfg.BaselineGroups = map[domain.Sensor]string{}
		cfg.PreferSecondaryWeather = map[domain.Sensor]bool{}
		for name, sp := range p.Sensors {
			s := domain.Sensor(name)
			trainEnd, err := optionalDay(sp.TrainEnd)
			if err != nil {
				return cfg, fmt.Errorf("sensors.%s.train_end: %w", name, err)
			}
			evalFrom, err := optionalDay(sp.EvalFrom)
			if err != nil {
				return cfg, fmt.Errorf("sensors.%s.eval_from: %w", name, err)
			}
			cfg.Splits[s] = domain.Split{TrainEnd: trainEnd, EvalFrom: evalFrom}
			if sp.BaselineGroup != "" {
				cfg.BaselineGroups[s] = sp.BaselineGroup
			}
			if sp.PreferSecondaryWeather {
				cfg.PreferSecondaryWeather[s] = true
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// HeatwaveConfig resolves the heatwave section.
func (p *Profile) HeatwaveConfig() (domain.HeatwaveConfig, error) {
	cfg := domain.DefaultHeatwaveConfig()
	if p.Heatwave == nil {
		return cfg, nil
	}
	h := p.Heatwave
	if h.Month < 0 || h.Month > 12 {
		return cfg, fmt.Errorf("heatwave.month must be 1-12, got %d", h.Month)
	}
	cfg.Month = time.Month(h.Month)
	if h.Percentile != 0 {
		if h.Percentile < 0 || h.Percentile > 100 {
			return cfg, fmt.Errorf("heatwave.percentile must be in (0,100], got %v", h.Percentile)
		}
		cfg.Percentile = h.Percentile
	}
	if h.MinConsecutiveDays != 0 {
		if h.MinConsecutiveDays < 1 {
			return cfg, fmt.Errorf("heatwave.min_consecutive_days must be positive, got %d", h.MinConsecutiveDays)
		}
		cfg.MinConsecutiveDays = h.MinConsecutiveDays
	}
	return cfg, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func optionalDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := domain.ParseISODay(s)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
