package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"transcription-service/internal/api"
	"transcription-service/internal/artifact"
	"transcription-service/internal/broker"
	"transcription-service/internal/config"
	"transcription-service/internal/media"
	"transcription-service/internal/publisher"
	"transcription-service/internal/queue"
	"transcription-service/internal/ratelimit"
	"transcription-service/internal/store"
	"transcription-service/internal/telemetry"
	"transcription-service/internal/transcribe"
	"transcription-service/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	var jobStore store.JobStore
	if cfg.PostgresDSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pg.Close()
		if err := pg.RunMigrations(ctx); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		jobStore = pg
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory job store")
		jobStore = store.NewMemory()
	}

	q := queue.NewRedisQueue(cfg)
	defer q.Close()

	limiterClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter := ratelimit.NewTokenBucket(limiterClient, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	b := broker.New(cfg.SubscriptionGrace)
	go b.Run(ctx)

	pub := publisher.New(jobStore, b, logger)

	artifacts, err := artifact.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("init artifact store: %v", err)
	}

	registry := transcribe.NewRegistry(func(modelSize string) transcribe.Transcriber {
		return transcribe.NewFasterWhisper(cfg.PythonBin, modelSize)
	})

	wrk := worker.New(cfg, q, pub, media.NewConverter(cfg.FFmpegBin), registry, artifacts, logger)
	go func() {
		if err := wrk.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("worker stopped", "error", err)
		}
	}()

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	server := api.New(cfg, jobStore, q, b, limiter, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("api listening", "port", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
