package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/lst-anomaly-etl/internal/config"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/couchcryptid/lst-anomaly-etl/internal/pipeline"
	"github.com/couchcryptid/lst-anomaly-etl/internal/scheduler"
	"github.com/spf13/cobra"
)

func rootCommand() *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:           "lstanomaly",
		Short:         "Land surface temperature anomaly pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a, err = newApp(cfg)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a != nil {
				a.close()
			}
		},
	}

	get := func() *app { return a }
	root.AddCommand(
		thresholdCommand(get),
		scoreCommand(get),
		heatwaveCommand(get),
		summarizeFusionCommand(get),
		summarizeConstellrCommand(get),
		serveCommand(get),
	)
	return root
}

type thresholdFlags struct {
	override   string
	percentile float64
	xlsx       bool
}

func thresholdCommand(get func() *app) *cobra.Command {
	var f thresholdFlags
	cmd := &cobra.Command{
		Use:   "threshold",
		Short: "Merge sensor tables by date and derive the ΔT anomaly threshold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			opts, err := a.thresholdOptions(f)
			if err != nil {
				return err
			}
			res, err := a.pipeline.RunThreshold(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "threshold %s (%s), %d of %d rows anomalous\n",
				formatThreshold(res.Report.Threshold), res.Report.Method, res.Report.AnomalyRows, res.Report.Rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.override, "override", "", "Fixed ΔT threshold in °C, bypassing estimation")
	cmd.Flags().Float64Var(&f.percentile, "percentile", domain.DefaultPercentile, "Tail percentile of the baseline ΔT; the report's method tag names the tier and its percentile field the cut-off")
	cmd.Flags().BoolVar(&f.xlsx, "xlsx", false, "Also write .xlsx copies of the tables")
	return cmd
}

func (a *app) thresholdOptions(f thresholdFlags) (pipeline.ThresholdOptions, error) {
	dups, err := domain.ParseDuplicatePolicy(a.cfg.DuplicatePolicy)
	if err != nil {
		return pipeline.ThresholdOptions{}, err
	}
	override := a.cfg.OverrideThreshold
	if f.override != "" {
		v, err := strconv.ParseFloat(f.override, 64)
		if err != nil {
			return pipeline.ThresholdOptions{}, fmt.Errorf("invalid --override %q", f.override)
		}
		override = &v
	}
	return pipeline.ThresholdOptions{
		Landsat:    a.cfg.LandsatKey,
		Downscaled: a.cfg.DownscaledKey,
		Constellr:  a.cfg.ConstellrKey,
		Fusion:     a.cfg.FusionKey,
		OutPrefix:  a.cfg.OutPrefix,
		Location:   a.cfg.Location,
		Override:   override,
		Percentile: f.percentile,
		Duplicates: dups,
		WriteXLSX:  f.xlsx || a.cfg.WriteXLSX,
	}, nil
}

func formatThreshold(v float64) string {
	if !domain.Float(v).Valid {
		return "undefined"
	}
	return strconv.FormatFloat(v, 'f', 3, 64) + " °C"
}

func scoreCommand(get func() *app) *cobra.Command {
	var weatherKey string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score observations against robust per-month baselines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			opts, err := a.scoreOptions(weatherKey)
			if err != nil {
				return err
			}
			res, err := a.pipeline.RunScore(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for sensor, counts := range domain.DecisionCounts(res.EvalOnly()) {
				fmt.Fprintf(out, "%-10s investigate=%d low_interest=%d ignore=%d\n", sensor,
					counts[domain.DecisionInvestigate], counts[domain.DecisionLowInterest], counts[domain.DecisionIgnore])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&weatherKey, "weather-key", "", "Object key of a table with air_tmax_c columns (default WEATHER_KEY)")
	return cmd
}

func (a *app) scoreOptions(weatherKey string) (pipeline.ScoreOptions, error) {
	cfg, err := a.profile.ScoreConfig()
	if err != nil {
		return pipeline.ScoreOptions{}, fmt.Errorf("score profile: %w", err)
	}
	if weatherKey == "" {
		weatherKey = a.cfg.WeatherKey
	}
	return pipeline.ScoreOptions{
		Landsat:    a.cfg.LandsatKey,
		Downscaled: a.cfg.DownscaledKey,
		Constellr:  a.cfg.ConstellrKey,
		WeatherKey: weatherKey,
		Lat:        a.cfg.Lat,
		Lon:        a.cfg.Lon,
		OutPrefix:  a.cfg.OutPrefix,
		Config:     cfg,
		WriteXLSX:  a.cfg.WriteXLSX,
	}, nil
}

type heatwaveFlags struct {
	baselineFrom string
	baselineTo   string
	from         string
	to           string
}

func heatwaveCommand(get func() *app) *cobra.Command {
	var f heatwaveFlags
	cmd := &cobra.Command{
		Use:   "heatwave",
		Short: "Check a window of days for a heatwave against the monthly climatology",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			opts, err := a.heatwaveOptions(f)
			if err != nil {
				return err
			}
			rep, err := a.pipeline.RunHeatwave(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "heatwave detected: %t (longest run %d days, month P%g %s °C)\n",
				rep.Detected(), rep.MaxRun, rep.Climatology.Percentile, rep.Climatology.PXX)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.baselineFrom, "baseline-from", "1991-01-01", "First day of the climatology period")
	cmd.Flags().StringVar(&f.baselineTo, "baseline-to", "2020-12-31", "Last day of the climatology period")
	cmd.Flags().StringVar(&f.from, "from", "", "First day of the window (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Last day of the window (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func (a *app) heatwaveOptions(f heatwaveFlags) (pipeline.HeatwaveOptions, error) {
	days := make([]time.Time, 4)
	for i, s := range []string{f.baselineFrom, f.baselineTo, f.from, f.to} {
		d, ok := domain.ParseISODay(s)
		if !ok {
			return pipeline.HeatwaveOptions{}, fmt.Errorf("invalid date %q", s)
		}
		days[i] = d
	}
	hw, err := a.profile.HeatwaveConfig()
	if err != nil {
		return pipeline.HeatwaveOptions{}, fmt.Errorf("heatwave profile: %w", err)
	}
	return pipeline.HeatwaveOptions{
		Lat:          a.cfg.Lat,
		Lon:          a.cfg.Lon,
		BaselineFrom: days[0],
		BaselineTo:   days[1],
		WindowFrom:   days[2],
		WindowTo:     days[3],
		Config:       hw,
		OutPrefix:    a.cfg.OutPrefix,
	}, nil
}

func summarizeFusionCommand(get func() *app) *cobra.Command {
	var prefix, out string
	cmd := &cobra.Command{
		Use:   "summarize-fusion",
		Short: "Summarize fusion scene metadata documents into a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			opts := pipeline.SummarizeOptions{
				Prefix: orDefault(prefix, a.sensorPrefix("fusion")),
				OutKey: orDefault(out, a.cfg.FusionKey),
			}
			n, err := a.pipeline.SummarizeFusion(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d scenes written to %s\n", n, a.store.URI(opts.OutKey))
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix holding the metadata documents")
	cmd.Flags().StringVar(&out, "out", "", "Output key (default FUSION_KEY)")
	return cmd
}

func summarizeConstellrCommand(get func() *app) *cobra.Command {
	var prefix, out string
	cmd := &cobra.Command{
		Use:   "summarize-constellr",
		Short: "Summarize Constellr LST rasters in dated folders into a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			opts := pipeline.SummarizeOptions{
				Prefix: orDefault(prefix, a.sensorPrefix("constellr")),
				OutKey: orDefault(out, a.cfg.ConstellrKey),
				Nodata: a.cfg.RasterNodata,
			}
			n, err := a.pipeline.SummarizeConstellr(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d scenes written to %s\n", n, a.store.URI(opts.OutKey))
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix holding the DD-MM-YYYY scene folders")
	cmd.Flags().StringVar(&out, "out", "", "Output key (default CONSTELLR_KEY)")
	return cmd
}

func (a *app) sensorPrefix(sensor string) string {
	return objectstore.Join(a.cfg.InputPrefix, a.cfg.Location, sensor) + "/"
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func serveCommand(get func() *app) *cobra.Command {
	var jobTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run threshold and score jobs on a schedule with health and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return get().serve(cmd.Context(), jobTimeout)
		},
	}
	cmd.Flags().DurationVar(&jobTimeout, "job-timeout", 30*time.Minute, "Deadline of one scheduled run")
	return cmd
}

func (a *app) serve(ctx context.Context, jobTimeout time.Duration) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	thrOpts, err := a.thresholdOptions(thresholdFlags{percentile: domain.DefaultPercentile})
	if err != nil {
		return err
	}
	scoreOpts, err := a.scoreOptions("")
	if err != nil {
		return err
	}

	sched := scheduler.New(jobTimeout, a.logger, a.metrics)
	run := func(ctx context.Context) error {
		if _, err := a.pipeline.RunThreshold(ctx, thrOpts); err != nil {
			return err
		}
		_, err := a.pipeline.RunScore(ctx, scoreOpts)
		return err
	}
	if err := sched.Add("threshold+score", a.cfg.Schedule, run); err != nil {
		return err
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.pipeline, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	sched.Start()
	// Run once at startup so readiness does not wait for the first tick.
	go func() {
		if err := sched.RunNow("threshold+score", run); err != nil {
			a.logger.Error("startup run failed", "error", err)
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler shutdown error", "error", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}
