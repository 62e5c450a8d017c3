package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"videoflix.systems/videoflix/cmd/web/auth"
	"videoflix.systems/videoflix/cmd/web/internal/web"
	"videoflix.systems/videoflix/internal/application"
	"videoflix.systems/videoflix/internal/catalog"
	"videoflix.systems/videoflix/internal/config"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/dispatch"
	"videoflix.systems/videoflix/internal/jobs"
	"videoflix.systems/videoflix/internal/mailer"
	"videoflix.systems/videoflix/internal/media"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting web service")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := application.InitTracing(ctx, "videoflix-web")
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

	if conf.SessionSecret == "" {
		slog.Warn("SESSION_SECRET not set, sessions will not survive a restart")
	}
	sessionMgr := auth.NewSessionManager(conf.SessionSecret)

	layout := media.Layout{Root: conf.MediaRoot}
	dispatcher := dispatch.New(layout, jobs.NewTxEnqueuer(dbc.Queries(ctx)))
	catalogSvc := catalog.NewService(dbc, dispatcher)

	e, err := web.NewWebserver(ctx, *conf, dbc, sessionMgr, catalogSvc, mailer.New(*conf))
	if err != nil {
		slog.Error("failed to create webserver", "error", err)
		os.Exit(1)
	}

	addr := ":" + strconv.Itoa(conf.WebServerPort)
	server := &http.Server{
		Addr: addr,
		Handler: otelhttp.NewHandler(e, "videoflix-web",
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
			}),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
			return
		}
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
