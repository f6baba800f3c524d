package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pricelens/backend/config"
	httpDelivery "github.com/pricelens/backend/internal/delivery/http"
	"github.com/pricelens/backend/internal/infrastructure/fetch"
	"github.com/pricelens/backend/internal/infrastructure/registry"
	"github.com/pricelens/backend/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration (.env is preloaded by config.Load)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().
		Str("version", httpDelivery.Version).
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("starting pricelens backend")

	// Infrastructure
	fetcher := fetch.NewClient(fetch.Options{
		Timeout:          cfg.Fetch.Timeout,
		MaxBodyBytes:     cfg.Fetch.MaxBodyBytes,
		CloudflareBypass: cfg.Fetch.CloudflareBypass,
		UserAgents:       cfg.Fetch.UserAgents,
	})

	retailers, err := registry.Load(fetcher, cfg.Retailers.OverridesFile)
	if err != nil {
		log.Error().Err(err).Msg("retailer registry failed to load")
		os.Exit(1)
	}

	// Usecases
	preprocessor := usecase.NewQueryPreprocessor(usecase.QueryConfig{
		DefaultLimit: cfg.Search.DefaultLimit,
		MinLimit:     cfg.Search.MinLimit,
		MaxLimit:     cfg.Search.MaxLimit,
	})
	filter := usecase.NewFilterService(usecase.FilterConfig{
		CompetitorExclusions: cfg.Matching.CompetitorExclusions,
	})
	comparison := usecase.NewComparisonService(retailers, filter, usecase.ComparisonConfig{
		BroadBatchSize:    cfg.Search.BroadBatchSize,
		TargetedBatchSize: cfg.Search.TargetedBatchSize,
		BroadTimeout:      cfg.Search.BroadTimeout,
		TargetedTimeout:   cfg.Search.TargetedTimeout,
	})

	log.Info().
		Int("broadBatch", cfg.Search.BroadBatchSize).
		Int("targetedBatch", cfg.Search.TargetedBatchSize).
		Dur("broadTimeout", cfg.Search.BroadTimeout).
		Dur("targetedTimeout", cfg.Search.TargetedTimeout).
		Bool("cloudflareBypass", cfg.Fetch.CloudflareBypass).
		Msg("search configured")

	handler := httpDelivery.NewHandler(preprocessor, comparison, retailers)
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

// setupLogger configures the global zerolog logger. An explicit level wins
// over the environment default.
func setupLogger(env, level string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}

	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			zerolog.SetGlobalLevel(parsed)
		}
	}
}
