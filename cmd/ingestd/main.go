// Command ingestd is the one-shot entry point for the document ingestion
// engine: run discovery/download across every configured source (or one
// named source), run text extraction over already-downloaded documents, or
// print catalog statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/catalogstore"
	"epsteindata/internal/infra/extractor"
	"epsteindata/internal/infra/fetcher"
	"epsteindata/internal/infra/worker"
	"epsteindata/internal/observability/logging"
	"epsteindata/internal/usecase/ingest"
	"epsteindata/pkg/config"
)

func main() {
	source := flag.String("source", "", "run a single source instead of all")
	extractOnly := flag.Bool("extract-only", false, "only run text extraction on already-downloaded files")
	showStats := flag.Bool("stats", false, "show download/extraction statistics")
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	baseLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(baseLogger)

	runID := uuid.NewString()
	ctx := logging.WithRunID(context.Background(), runID)
	logger := logging.WithRequestID(ctx, baseLogger)

	cfg, err := config.LoadIngestConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.MetricsAddr = config.GetEnvString("METRICS_ADDR", "")

	var metrics *adapter.Metrics
	if cfg.MetricsAddr != "" {
		metrics = adapter.NewMetrics()
		worker.StartMetricsServer(ctx, cfg.MetricsAddr, logger)
	}

	store, err := catalogstore.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("failed to open catalog store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close catalog store", slog.Any("error", err))
		}
	}()

	extractorCfg := extractor.DefaultConfig()
	extractorCfg.MinCharsPerPage = cfg.Extraction.MinCharsPerPage
	extractorCfg.OCRDPI = cfg.Extraction.OCRDPI
	extractorCfg.TesseractLang = cfg.Extraction.TesseractLang
	ext := extractor.New(extractorCfg)

	downloadCfg, err := fetcher.LoadDownloadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load download config", slog.Any("error", err))
		os.Exit(1)
	}
	downloadCfg.UserAgent = cfg.Download.UserAgent
	downloadCfg.DefaultRateLimit = cfg.Download.DefaultRateLimit
	downloadCfg.MaxRetries = cfg.Download.MaxRetries
	downloadCfg.MaxFileSize = cfg.Download.MaxFileSize
	f := fetcher.New(downloadCfg)

	registry := ingest.NewRegistry(f, cfg)
	orchestrator := ingest.New(registry, f, store, ext, cfg).WithMetrics(metrics)

	if *showStats {
		printStats(ctx, orchestrator, logger)
		return
	}

	if *extractOnly {
		if err := orchestrator.ExtractOnly(ctx, *source); err != nil {
			logger.Error("extraction run failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	fmt.Println("Document Ingestion Engine")
	fmt.Printf("Data directory: %s\n", cfg.DataDir)
	fmt.Printf("Database: %s\n", cfg.DBPath)

	if err := orchestrator.RunSources(ctx, *source); err != nil {
		logger.Error("source run failed", slog.Any("error", err))
		os.Exit(1)
	}

	printStats(ctx, orchestrator, logger)
}

func printStats(ctx context.Context, orchestrator *ingest.Orchestrator, logger *slog.Logger) {
	report, err := orchestrator.FormatStats(ctx)
	if err != nil {
		logger.Error("failed to load stats", slog.Any("error", err))
		return
	}
	fmt.Print(report)
}
