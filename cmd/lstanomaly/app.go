package main

import (
	"log/slog"

	kafkaadapter "github.com/couchcryptid/lst-anomaly-etl/internal/adapter/kafka"
	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/raster"
	"github.com/couchcryptid/lst-anomaly-etl/internal/config"
	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/couchcryptid/lst-anomaly-etl/internal/pipeline"
	"github.com/spf13/afero"
)

// app holds the wired collaborators shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	store     objectstore.Store
	profile   *config.Profile
	publisher *kafkaadapter.DecisionWriter
	pipeline  *pipeline.Pipeline
}

func newApp(cfg *config.Config) (*app, error) {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := objectstore.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	profile, err := config.LoadProfile(afero.NewOsFs(), cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics, store: store, profile: profile}

	var opts []pipeline.Option
	if cfg.WeatherEnabled {
		client := openmeteo.NewClient(cfg.WeatherBaseURL, cfg.WeatherTimezone, cfg.WeatherTimeout, metrics, logger)
		opts = append(opts, pipeline.WithWeather(openmeteo.NewCachedProvider(client, cfg.WeatherCacheSize, metrics)))
		logger.Info("weather archive enabled", "base_url", cfg.WeatherBaseURL, "cache_size", cfg.WeatherCacheSize)
	} else {
		logger.Info("weather archive disabled")
	}
	if cfg.RasterRoot != "" {
		opts = append(opts, pipeline.WithScenes(raster.NewSceneReader(afero.NewOsFs(), cfg.RasterRoot, cfg.RasterNodata, logger)))
	}
	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = kafkaadapter.NewDecisionWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(a.publisher))
		logger.Info("decision publishing enabled", "topic", cfg.KafkaTopic)
	}

	a.pipeline = pipeline.New(store, logger, metrics, opts...)
	return a, nil
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
}
