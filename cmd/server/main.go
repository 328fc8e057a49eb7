package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"haven/internal/config"
	"haven/internal/database/sqlitestore"
	"haven/internal/enforcement"
	"haven/internal/identity"
	"haven/internal/metrics"
	"haven/internal/models"
	"haven/internal/notify"
	"haven/internal/refdata"
	"haven/internal/reports"
	"haven/internal/tracing"
)

func main() {
	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting Haven forum core")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is best-effort: a missing collector should not block startup
	tp, err := tracing.Init(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Tracer shutdown failed")
			}
		}()
	}

	store, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open database")
	}
	defer store.Close()
	log.Info().Str("path", cfg.DBPath).Msg("Database opened")

	cache, err := identity.Open(identity.Options{
		Path: cfg.IdentityCachePath,
		TTL:  cfg.IdentityCacheTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.IdentityCachePath).Msg("Failed to open identity cache")
	}
	defer cache.Close()

	ref, err := refdata.NewService(cfg.RefdataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load reference data")
	}

	resolver := identity.NewResolver(cache, store)
	notifier := notify.NewEngine(store, cfg.BatchWindow)
	reportEngine := reports.NewEngine(store, ref, resolver)
	sweeper := enforcement.NewSweeper(store, cfg.SweepInterval)

	// Content events and moderator actions arrive through the embedding
	// application; this process runs the background maintenance daemons.
	pending, err := reportEngine.Queue(ctx, models.ReportPending, 1000)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read report queue")
	}
	log.Info().Int("pending_reports", len(pending)).Msg("Report queue loaded")

	countRows := func(query string) func() int {
		return func() int {
			var n int
			if err := store.DB().QueryRowContext(ctx, query).Scan(&n); err != nil {
				log.Warn().Err(err).Msg("Gauge query failed")
				return -1
			}
			return n
		}
	}
	metrics.StartCollector(ctx, metrics.StatsSource{
		PendingReports:     countRows(`SELECT COUNT(*) FROM content_reports WHERE status = 'PENDING'`),
		ActiveWarnings:     countRows(`SELECT COUNT(*) FROM user_warnings WHERE is_active = 1`),
		ActiveRestrictions: countRows(`SELECT COUNT(*) FROM user_restrictions WHERE is_active = 1`),
		StagedReactions:    countRows(`SELECT COUNT(*) FROM reaction_batch_queue`),
	}, time.Minute)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		return notifier.RunFlusher(gctx)
	})
	g.Go(func() error {
		return notifier.RunCleanup(gctx, cfg.CleanupInterval)
	})

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	g.Go(func() error {
		log.Info().Str("address", cfg.MetricsAddr).Msg("Metrics endpoint listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Shutdown complete")
}
