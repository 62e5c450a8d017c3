package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"videoflix.systems/videoflix/internal/application"
	"videoflix.systems/videoflix/internal/catalog"
	"videoflix.systems/videoflix/internal/config"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/dispatch"
	"videoflix.systems/videoflix/internal/jobs"
	"videoflix.systems/videoflix/internal/media"
	"videoflix.systems/videoflix/internal/pipeline"
	"videoflix.systems/videoflix/pkg/ffmpeg"
)

const maintenanceInterval = 2 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting transcoder service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := application.InitTracing(ctx, "videoflix-transcoder")
	if err != nil {
		slog.Error("failed to initialise tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		slog.Error("failed to create database connection", "error", err)
		os.Exit(1)
	}
	defer dbc.Close()

	layout := media.Layout{Root: conf.MediaRoot}
	catalogSvc := catalog.NewService(dbc, dispatch.New(layout, jobs.NewTxEnqueuer(dbc.Queries(ctx))))
	conv := pipeline.New(
		layout,
		ffmpeg.NewInvoker(conf.FFmpegPath, conf.TranscodeTimeout),
		ffmpeg.Prober{Binary: conf.FFprobePath},
		catalogSvc,
		pipeline.Options{
			SegmentSeconds:  conf.HLSSegmentSeconds,
			ThumbnailOffset: conf.ThumbnailOffset,
			MediaBaseURL:    conf.MediaBaseURL,
		},
	)

	queue := jobs.NewQueue(dbc.Queries(ctx))
	locker := jobs.NewPgLocker(pool)

	wake := make(chan struct{}, 1)
	go jobs.ListenAndSignal(ctx, conf.DatabaseDSN, jobs.NotifyChannel, wake)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return jobs.RunMaintenance(gctx, queue, locker, jobs.MaintenanceOptions{
			StaleAfter:  conf.JobStaleAfter,
			MaxAttempts: conf.JobMaxAttempts,
			Interval:    maintenanceInterval,
		})
	})

	slog.Info("Transcoder workers started", "workers", conf.TranscoderWorkers)
	for i := 0; i < conf.TranscoderWorkers; i++ {
		w := jobs.NewWorker(workerID(i), queue, locker, conv)
		g.Go(func() error {
			return w.Run(gctx, wake)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("transcoder stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Transcoder service stopping")
}

// workerID identifies a worker in conversion_jobs.locked_by.
func workerID(n int) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "transcoder"
	}
	return fmt.Sprintf("%s-%d-%s", host, n, uuid.NewString()[:8])
}
