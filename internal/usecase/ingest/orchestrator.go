package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"epsteindata/internal/domain/entity"
	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/extractor"
	"epsteindata/internal/infra/fetcher"
	"epsteindata/internal/repository"
	"epsteindata/pkg/config"
)

// Orchestrator runs source adapters and post-hoc extraction against a
// catalog store, the engine's top-level coordination point.
type Orchestrator struct {
	registry  *Registry
	fetcher   *fetcher.Fetcher
	store     repository.CatalogStore
	extractor *extractor.Extractor
	cfg       config.IngestConfig
	metrics   *adapter.Metrics
}

func New(registry *Registry, f *fetcher.Fetcher, store repository.CatalogStore, ext *extractor.Extractor, cfg config.IngestConfig) *Orchestrator {
	return &Orchestrator{registry: registry, fetcher: f, store: store, extractor: ext, cfg: cfg}
}

// WithMetrics attaches Prometheus instrumentation, returning the same
// Orchestrator for chaining. Left unset, every recording call is a no-op
// (see adapter.Metrics' nil-receiver methods).
func (o *Orchestrator) WithMetrics(m *adapter.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// RunSources runs every registered source adapter, or a single one if name
// is non-empty, skipping any explicitly disabled in configuration.
func (o *Orchestrator) RunSources(ctx context.Context, name string) error {
	deps := adapter.Deps{
		Fetcher:           o.fetcher,
		Store:             o.store,
		Extractor:         o.extractor,
		DataDir:           o.cfg.DataDir,
		ExtractionEnabled: o.cfg.Extraction.Enabled,
		Metrics:           o.metrics,
	}

	names := o.registry.Names()
	if name != "" {
		if o.registry.Get(name) == nil {
			return fmt.Errorf("unknown source %q (known: %s)", name, strings.Join(o.registry.SortedNames(), ", "))
		}
		names = []string{name}
	}

	for _, n := range names {
		if !o.cfg.SourceEnabled(n) {
			slog.Info("source disabled in config, skipping", slog.String("source", n))
			continue
		}

		slog.Info("running source", slog.String("source", n))
		stats, err := adapter.Run(ctx, o.registry.Get(n), deps)
		if err != nil {
			slog.Error("source run failed", slog.String("source", n), slog.Any("error", err))
			continue
		}
		slog.Info("source complete", slog.String("source", n),
			slog.Int("discovered", stats.Discovered), slog.Int("downloaded", stats.Downloaded),
			slog.Int("skipped", stats.Skipped), slog.Int("failed", stats.Failed))
	}

	return nil
}

// ExtractOnly runs text extraction against already-downloaded documents
// that have no completed extraction yet, without touching any adapter. Each
// document's extraction is independent — its own PDF, its own pdftoppm/
// tesseract subprocess — so this fans out across a bounded worker pool
// instead of the adapter run path's sequential-by-default discipline; the
// catalog store's internal write mutex makes concurrent InsertExtraction
// calls safe.
func (o *Orchestrator) ExtractOnly(ctx context.Context, source string) error {
	docs, err := o.store.DownloadedWithoutExtraction(ctx, source)
	if err != nil {
		return fmt.Errorf("list downloaded documents: %w", err)
	}
	slog.Info("found documents needing text extraction", slog.Int("count", len(docs)))

	return runBounded(ctx, docs, o.cfg.Extraction.Concurrency, o.extractOne)
}

func (o *Orchestrator) extractOne(ctx context.Context, doc *entity.Document) error {
	if doc.LocalPath == "" || !strings.HasSuffix(strings.ToLower(doc.LocalPath), ".pdf") {
		return nil
	}
	if _, err := os.Stat(doc.LocalPath); err != nil {
		return nil
	}

	extDir := filepath.Join(o.cfg.DataDir, "extracted_text", doc.Source)
	base := strings.TrimSuffix(filepath.Base(doc.LocalPath), filepath.Ext(doc.LocalPath))
	outputPath := filepath.Join(extDir, base+".txt")

	result, extErr := o.extractor.Extract(ctx, doc.LocalPath, outputPath)
	if extErr != nil {
		if _, err := o.store.InsertExtraction(ctx, &entity.Extraction{
			DocumentID: doc.ID,
			Method:     entity.ExtractionMethodError,
			Status:     entity.ExtractionStatusFailed,
			Error:      extErr.Error(),
		}); err != nil {
			slog.Error("record failed extraction failed", slog.String("source", doc.Source), slog.Any("error", err))
		}
		o.metrics.RecordExtraction(doc.Source, "failed")
		slog.Error("extraction failed", slog.String("source", doc.Source), slog.String("file", base), slog.Any("error", extErr))
		return nil
	}

	if _, err := o.store.InsertExtraction(ctx, &entity.Extraction{
		DocumentID: doc.ID,
		OutputPath: outputPath,
		Method:     result.Method,
		PageCount:  result.PageCount,
		CharCount:  result.CharCount,
		OCRPages:   result.OCRPages,
		Status:     entity.ExtractionStatusCompleted,
	}); err != nil {
		slog.Error("record extraction failed", slog.String("source", doc.Source), slog.Any("error", err))
		return nil
	}
	o.metrics.RecordExtraction(doc.Source, "completed")

	slog.Info("extracted", slog.String("source", doc.Source), slog.String("file", base),
		slog.Int("pages", result.PageCount), slog.Int("chars", result.CharCount), slog.Int("ocr_pages", result.OCRPages))
	return nil
}
