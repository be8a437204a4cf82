// Command ingest-worker wraps the ingestion engine in a cron schedule, for
// deployments that want a long-running process rather than invoking ingestd
// from an external scheduler. It reuses the worker package's cron/health
// server plumbing, pointed at an ingest run instead of a feed crawl.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"epsteindata/internal/domain/entity"
	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/catalogstore"
	"epsteindata/internal/infra/extractor"
	"epsteindata/internal/infra/fetcher"
	workerpkg "epsteindata/internal/infra/worker"
	"epsteindata/internal/observability/logging"
	"epsteindata/internal/repository"
	"epsteindata/internal/usecase/ingest"
	"epsteindata/pkg/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configPath := envOr("INGEST_CONFIG_PATH", "config.yaml")
	cfg, err := config.LoadIngestConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	workerMetrics := workerpkg.NewWorkerMetrics()
	workerCfg, _ := workerpkg.LoadConfigFromEnv(logger, workerMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.MetricsAddr = config.GetEnvString("METRICS_ADDR", "")
	var ingestMetrics *adapter.Metrics
	if cfg.MetricsAddr != "" {
		ingestMetrics = adapter.NewMetrics()
		workerpkg.StartMetricsServer(ctx, cfg.MetricsAddr, logger)
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
	f := fetcher.New(downloadCfg)

	registry := ingest.NewRegistry(f, cfg)
	orchestrator := ingest.New(registry, f, store, ext, cfg).WithMetrics(ingestMetrics)

	healthAddr := fmt.Sprintf(":%d", workerCfg.HealthPort)
	healthServer := workerpkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	startCronIngest(logger, orchestrator, store, workerCfg, workerMetrics, healthServer)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func startCronIngest(logger *slog.Logger, orchestrator *ingest.Orchestrator, store repository.CatalogStore, cfg *workerpkg.WorkerConfig, metrics *workerpkg.WorkerMetrics, healthServer *workerpkg.HealthServer) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runIngestJob(logger, orchestrator, store, metrics, cfg.RunTimeout)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	healthServer.SetReady(true)
	logger.Info("ingest worker started", slog.String("schedule", cfg.CronSchedule), slog.String("timezone", cfg.Timezone))
	select {}
}

func runIngestJob(logger *slog.Logger, orchestrator *ingest.Orchestrator, store repository.CatalogStore, metrics *workerpkg.WorkerMetrics, timeout time.Duration) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ctx = logging.WithRunID(ctx, uuid.NewString())
	logger = logging.WithRequestID(ctx, logger)

	logger.Info("ingest run started")

	downloadedBefore, beforeErr := documentsDownloadedCount(ctx, store)

	if err := orchestrator.RunSources(ctx, ""); err != nil {
		metrics.RecordJobRun("failure")
		metrics.RecordJobDuration(time.Since(startTime).Seconds())
		logger.Error("ingest run failed", slog.Any("error", err), slog.Duration("duration", time.Since(startTime)))
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordLastSuccess()
	if downloaded, err := documentsDownloadedCount(ctx, store); err == nil && beforeErr == nil {
		metrics.RecordDocumentsProcessed(downloaded - downloadedBefore)
	}

	logger.Info("ingest run completed", slog.Duration("duration", time.Since(startTime)))
}

func documentsDownloadedCount(ctx context.Context, store repository.CatalogStore) (int, error) {
	rows, err := store.DownloadStats(ctx)
	if err != nil {
		return 0, err
	}
	var total int
	for _, row := range rows {
		if row.DownloadStatus == entity.DownloadStatusDownloaded {
			total += int(row.Count)
		}
	}
	return total, nil
}
