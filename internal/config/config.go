package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Site and run window.
	Location       string
	Lat            float64
	Lon            float64
	NormalYear     string
	DownscaledYear string

	// Object storage.
	Backend     string
	LocalRoot   string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	// Object keys. Empty source keys are derived from the location layout.
	InputPrefix   string
	OutPrefix     string
	LandsatKey    string
	DownscaledKey string
	ConstellrKey  string
	FusionKey     string
	WeatherKey    string

	OverrideThreshold *float64
	DuplicatePolicy   string
	WriteXLSX         bool

	// Scoring.
	ProfilePath  string
	RasterRoot   string
	RasterNodata float64

	// Decision publishing. Empty brokers disable the publisher.
	KafkaBrokers []string
	KafkaTopic   string

	// Scheduler.
	Schedule string

	// Weather archive.
	WeatherEnabled   bool
	WeatherBaseURL   string
	WeatherTimezone  string
	WeatherTimeout   time.Duration
	WeatherCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("WEATHER_TIMEOUT", "60s"))
	if err != nil || weatherTimeout <= 0 {
		return nil, errors.New("invalid WEATHER_TIMEOUT")
	}

	lat, err := parseFloatEnv("SITE_LAT", "47.5067")
	if err != nil {
		return nil, err
	}
	lon, err := parseFloatEnv("SITE_LON", "34.5851")
	if err != nil {
		return nil, err
	}
	nodata, err := parseFloatEnv("RASTER_NODATA", "65535")
	if err != nil {
		return nil, err
	}

	override, err := parseOverride()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Location:       sharedcfg.EnvOrDefault("SITE_LOCATION", "fordo"),
		Lat:            lat,
		Lon:            lon,
		NormalYear:     sharedcfg.EnvOrDefault("NORMAL_YEAR", "2015_2022"),
		DownscaledYear: sharedcfg.EnvOrDefault("DOWNSCALED_YEAR", "2023_2025"),

		Backend:     strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", BackendLocal)),
		LocalRoot:   sharedcfg.EnvOrDefault("STORE_LOCAL_ROOT", "./data"),
		S3Endpoint:  sharedcfg.EnvOrDefault("S3_ENDPOINT", "s3.amazonaws.com"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3Region:    sharedcfg.EnvOrDefault("S3_REGION", "eu-west-2"),
		S3UseSSL:    sharedcfg.EnvOrDefault("S3_USE_SSL", "true") == "true",

		InputPrefix:   strings.Trim(sharedcfg.EnvOrDefault("INPUT_PREFIX", "lst"), "/"),
		OutPrefix:     strings.TrimRight(sharedcfg.EnvOrDefault("OUT_PREFIX", "anomalies"), "/") + "/",
		LandsatKey:    os.Getenv("LANDSAT_KEY"),
		DownscaledKey: os.Getenv("DOWNSCALED_KEY"),
		ConstellrKey:  os.Getenv("CONSTELLR_KEY"),
		FusionKey:     os.Getenv("FUSION_KEY"),
		WeatherKey:    os.Getenv("WEATHER_KEY"),

		OverrideThreshold: override,
		DuplicatePolicy:   sharedcfg.EnvOrDefault("DUPLICATE_POLICY", "reject"),
		WriteXLSX:         os.Getenv("WRITE_XLSX") == "true",

		ProfilePath:  os.Getenv("SCORE_PROFILE"),
		RasterRoot:   os.Getenv("CONSTELLR_RASTER_DIR"),
		RasterNodata: nodata,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_DECISION_TOPIC", "lst-anomaly-decisions"),

		Schedule: sharedcfg.EnvOrDefault("SCHEDULE", "@daily"),

		WeatherEnabled:   os.Getenv("WEATHER_ENABLED") == "true",
		WeatherBaseURL:   sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://archive-api.open-meteo.com/v1/era5"),
		WeatherTimezone:  sharedcfg.EnvOrDefault("WEATHER_TIMEZONE", "UTC"),
		WeatherTimeout:   weatherTimeout,
		WeatherCacheSize: parseCacheSize(),
	}
	cfg.fillDefaultKeys()

	if cfg.Location == "" {
		return nil, errors.New("SITE_LOCATION is required")
	}
	switch cfg.Backend {
	case BackendLocal:
		if cfg.LocalRoot == "" {
			return nil, errors.New("STORE_LOCAL_ROOT is required for the local backend")
		}
	case BackendS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required for the s3 backend")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.Backend)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_DECISION_TOPIC is required when KAFKA_BROKERS is set")
	}
	switch cfg.DuplicatePolicy {
	case "reject", "first", "last", "mean":
	default:
		return nil, fmt.Errorf("invalid DUPLICATE_POLICY %q", cfg.DuplicatePolicy)
	}

	return cfg, nil
}

// fillDefaultKeys derives the source keys from the per-location layout.
func (c *Config) fillDefaultKeys() {
	dir := c.Location
	if c.InputPrefix != "" {
		dir = c.InputPrefix + "/" + c.Location
	}
	if c.LandsatKey == "" {
		c.LandsatKey = fmt.Sprintf("%s/%s_stats_normal_%s_merged.csv", dir, c.Location, c.NormalYear)
	}
	if c.DownscaledKey == "" {
		c.DownscaledKey = fmt.Sprintf("%s/%s_stats_downscale_%s_merged.csv", dir, c.Location, c.DownscaledYear)
	}
	if c.ConstellrKey == "" {
		c.ConstellrKey = fmt.Sprintf("%s/%s_LST_summary.csv", dir, c.Location)
	}
	if c.FusionKey == "" {
		c.FusionKey = fmt.Sprintf("%s/lst-fusion_%s_metadata_summary.csv", dir, strings.ToLower(c.Location))
	}
}

// Validate checks the settings the serve command needs beyond Load.
func (c *Config) Validate() error {
	if c.Schedule == "" {
		return errors.New("SCHEDULE is required")
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	return nil
}

func parseFloatEnv(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseOverride() (*float64, error) {
	s := os.Getenv("THRESHOLD_OVERRIDE")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid THRESHOLD_OVERRIDE")
	}
	return &v, nil
}

func parseCacheSize() int {
	if s := os.Getenv("WEATHER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
