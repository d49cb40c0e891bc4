package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quartzlabs/wikiexport/internal/config"
	"github.com/quartzlabs/wikiexport/internal/observability"
	"github.com/quartzlabs/wikiexport/internal/server"
	"github.com/quartzlabs/wikiexport/internal/telemetry"
	"github.com/quartzlabs/wikiexport/pkg/job"
	"github.com/quartzlabs/wikiexport/pkg/jobstore"
	"github.com/quartzlabs/wikiexport/pkg/notify"
	"github.com/quartzlabs/wikiexport/pkg/objectstore"
	"github.com/quartzlabs/wikiexport/pkg/objectstore/s3"
	"github.com/quartzlabs/wikiexport/pkg/pipeline"
	"github.com/quartzlabs/wikiexport/pkg/render"
	"github.com/quartzlabs/wikiexport/pkg/source"
	"github.com/quartzlabs/wikiexport/pkg/streamreg"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the ops API",
	Long: `Run the export pipeline: the periodic job scheduler, the cleanup
sweep, and the HTTP management surface.

Example:
  wikiexport serve --config wikiexport.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	log := observability.CLILogger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := jobstore.Open(ctx, jobstore.Config{Path: cfg.Store.Path})
	if err != nil {
		return exitError(exitFileWriteError, "Failed to open job store", err)
	}
	defer func() { _ = store.Close() }()

	objects, err := buildObjectStore(ctx, cfg)
	if err != nil {
		return exitError(exitServiceUnavailable, "Failed to connect to object store", err)
	}

	sources, err := buildSources(cfg)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid source configuration", err)
	}

	opts := []pipeline.Option{pipeline.WithTelemetry(telemetry.Metrics{})}
	pdfEnabled := cfg.Convert.Endpoint != ""
	if pdfEnabled {
		opts = append(opts, pipeline.WithConverter(render.NewHTTPConverter(cfg.Convert.Endpoint)))
	}

	p := pipeline.New(
		pipeline.Config{
			TransientRoot: cfg.Export.TransientRoot,
			BatchSize:     cfg.Export.BatchSize,
			PartSize:      cfg.Export.PartSize,
			TTL:           cfg.Export.TTL,
			StallAfter:    cfg.Export.StallAfter,
			ListRate:      cfg.Export.ListRate,
			PollInterval:  cfg.Convert.PollInterval,
		},
		store, sources, objects, streamreg.New(),
		notify.NewLogSink(log.Named("notify")),
		log.Named("pipeline"),
		opts...,
	)

	sched := pipeline.NewScheduler(pipeline.SchedulerConfig{
		Schedule: cfg.Scheduler.Schedule,
		Cap:      cfg.Scheduler.Cap,
	}, p, log.Named("scheduler"))
	if err := sched.Start(ctx); err != nil {
		return exitError(exitInvalidArgument, "Failed to start scheduler", err)
	}
	defer sched.Stop()

	deps := server.Deps{
		Store:      store,
		PDFEnabled: pdfEnabled,
		Version: server.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		Logger: log.Named("server"),
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = telemetry.Handler()
	}
	srv := server.New(cfg.Server.Host, cfg.Server.Port, deps)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("serving", zap.String("addr", srv.Addr()))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return exitError(exitServiceUnavailable, "Server failed", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(exitSignalInt, "Shutdown incomplete", err)
	}
	return nil
}

func buildObjectStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	return s3.New(ctx, s3.Config{
		Bucket:         cfg.ObjectStore.Bucket,
		Region:         cfg.ObjectStore.Region,
		Endpoint:       cfg.ObjectStore.Endpoint,
		Profile:        cfg.ObjectStore.Profile,
		ForcePathStyle: cfg.ObjectStore.ForcePathStyle,
	})
}

func buildSources(cfg *config.Config) (source.Registry, error) {
	reg := source.Registry{}
	if cfg.Source.PagesDir != "" {
		src, err := source.NewFS(cfg.Source.PagesDir)
		if err != nil {
			return nil, err
		}
		reg[string(job.KindPages)] = src
	}
	if cfg.Source.ActivityDir != "" {
		src, err := source.NewFS(cfg.Source.ActivityDir)
		if err != nil {
			return nil, err
		}
		reg[string(job.KindActivity)] = src
	}
	return reg, nil
}
