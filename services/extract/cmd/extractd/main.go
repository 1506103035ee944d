package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vellum/pkg/bus"
	"vellum/pkg/db"
	gos3 "vellum/pkg/s3"
	"vellum/pkg/telemetry"
	"vellum/services/extract"
	"vellum/services/extract/internal/config"
)

const serviceName = "vellum-extractd"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := telemetry.NewLogger(serviceName)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	shutdownTelemetry, otelMiddleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		bootLog := telemetry.NewLogger(serviceName)
		bootLog.Fatal().Err(err).Msg("init telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	orm, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open orm")
	}
	defer func() {
		if err := db.CloseORM(orm); err != nil {
			logger.Error().Err(err).Msg("close orm")
		}
	}()

	s3Client, err := gos3.NewClientFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("init object storage")
	}

	eventBus, err := bus.New(cfg.NATSURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect nats")
	}
	defer eventBus.Close()
	if err := eventBus.EnsureStream("VELLUM", "vellum.>"); err != nil {
		logger.Fatal().Err(err).Msg("ensure stream")
	}

	worker, err := extract.NewWorker(orm, s3Client, eventBus, cfg.FileBucket, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init worker")
	}
	if err := worker.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	defer func() {
		if err := worker.Close(); err != nil {
			logger.Error().Err(err).Msg("close worker")
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           otelMiddleware(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("starting extraction worker")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
}
