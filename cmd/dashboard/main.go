package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/excel"
	httpadapter "github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/adapter/shapefile"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/config"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/observability"
	"github.com/couchcryptid/ipress-geo-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	hospitals := excel.NewReader(cfg, logger, metrics)
	districts := shapefile.NewDistrictReader(cfg.DistrictsFile, cfg.DataDirs, logger, metrics)
	centers := shapefile.NewCenterReader(cfg.CCPPFile, cfg.DataDirs, logger, metrics)

	// District count export is feature-flagged via KAFKA_ENABLED.
	var exporter pipeline.Exporter
	var kafkaExporter *kafkaadapter.Exporter
	if cfg.KafkaEnabled {
		kafkaExporter = kafkaadapter.NewExporter(cfg, logger)
		exporter = kafkaExporter
		logger.Info("kafka export enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka export disabled")
	}

	p := pipeline.New(hospitals, districts, centers, exporter, logger, metrics, cfg.CacheTTL)

	srv := httpadapter.NewServer(httpadapter.Options{
		Addr:                 cfg.HTTPAddr,
		MarkerLimit:          cfg.MarkerLimit,
		Radius:               cfg.BufferMeters,
		ProximityDepartments: cfg.ProximityDepartments,
		CacheTTL:             cfg.CacheTTL,
	}, p, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server. /readyz reports 503 until the first load finishes.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Load the inputs in the background, retrying until the registry is found.
	go func() {
		if err := p.Run(ctx, cfg.LoadRetry); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pipeline load failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaExporter != nil {
		if err := kafkaExporter.Close(); err != nil {
			logger.Error("kafka exporter close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
