package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"epsteindata/internal/domain/entity"
)

// defaultRateLimit is used when an adapter does not implement RateLimited.
const defaultRateLimit = 1.0

// Run drives one source adapter end to end: discover candidates, record
// each as a catalog document, download it, content-dedup it by SHA-256, and
// (for PDFs, when enabled) extract its text. Adapters implementing Runner
// bypass this entirely and are invoked directly instead.
func Run(ctx context.Context, a SourceAdapter, deps Deps) (Stats, error) {
	if r, ok := a.(Runner); ok {
		return r.Run(ctx, deps)
	}

	name := a.Name()
	slog.Info("starting discovery", slog.String("source", name))

	state, err := deps.Store.GetSourceState(ctx, name)
	if err != nil {
		return Stats{}, fmt.Errorf("load source state for %s: %w", name, err)
	}

	save := func(ctx context.Context, s map[string]any) error {
		return deps.Store.SaveSourceState(ctx, name, s)
	}

	rate := defaultRateLimit
	if rl, ok := a.(RateLimited); ok {
		rate = rl.RateLimit()
	}

	candidates, errs := a.Discover(ctx, state, save)

	// Drain discovery errors alongside candidates: adapters send on an
	// unbuffered error channel mid-discovery, so reading it only after the
	// candidate channel closes would block both sides.
	errsDone := make(chan struct{})
	go func() {
		defer close(errsDone)
		for err := range errs {
			slog.Warn("discovery error", slog.String("source", name), slog.Any("error", err))
		}
	}()

	var stats Stats
	for cand := range candidates {
		stats.Discovered++

		exists, err := deps.Store.URLExists(ctx, cand.URL)
		if err != nil {
			slog.Error("url_exists check failed", slog.String("source", name), slog.Any("error", err))
			continue
		}
		if exists {
			stats.Skipped++
			continue
		}

		sourceID, _ := cand.Metadata["source_id"].(string)
		filename, _ := cand.Metadata["filename"].(string)
		if filename == "" {
			filename = filenameFromURL(cand.URL)
		}
		title, _ := cand.Metadata["title"].(string)
		if title == "" {
			title = filename
		}

		doc := &entity.Document{
			URL:      cand.URL,
			Source:   name,
			SourceID: sourceID,
			Filename: filename,
			Title:    title,
			Metadata: cand.Metadata,
		}
		docID, err := deps.Store.InsertDocument(ctx, doc)
		if err != nil {
			slog.Error("insert document failed", slog.String("source", name), slog.Any("error", err))
			continue
		}

		destDir := filepath.Join(deps.DataDir, name)
		safeFilename := filename
		if sourceID != "" {
			safeFilename = sourceID + "__" + filename
		}

		fetchStart := time.Now()
		result, err := deps.Fetcher.Download(ctx, cand.URL, destDir, safeFilename, name, rate)
		deps.Metrics.ObserveFetchLatency(name, time.Since(fetchStart))
		if err != nil {
			_ = deps.Store.UpdateDownload(ctx, docID, entity.DownloadStatusFailed, "", "", 0, err.Error())
			stats.Failed++
			deps.Metrics.RecordDocument(name, "failed")
			slog.Error("download failed", slog.String("source", name), slog.String("filename", filename), slog.Any("error", err))
			continue
		}

		if existing, err := deps.Store.SHA256Exists(ctx, result.SHA256); err == nil && existing != "" {
			slog.Info("content dedup", slog.String("source", name), slog.String("filename", filename), slog.String("matches", existing))
			_ = os.Remove(result.LocalPath)
			_ = deps.Store.UpdateDownload(ctx, docID, entity.DownloadStatusSkipped, "", "", 0, fmt.Sprintf("duplicate of %s", existing))
			stats.Skipped++
			deps.Metrics.RecordDocument(name, "skipped")
			continue
		}

		if err := deps.Store.UpdateDownload(ctx, docID, entity.DownloadStatusDownloaded, result.LocalPath, result.SHA256, result.FileSize, ""); err != nil {
			slog.Error("update download failed", slog.String("source", name), slog.Any("error", err))
		}
		stats.Downloaded++
		deps.Metrics.RecordDocument(name, "downloaded")
		deps.Metrics.RecordBytes(name, result.FileSize)
		slog.Info("downloaded", slog.String("source", name), slog.String("filename", filename), slog.Int64("bytes", result.FileSize))

		if deps.ExtractionEnabled && strings.HasSuffix(strings.ToLower(result.LocalPath), ".pdf") {
			extractDocument(ctx, deps, name, docID, result.LocalPath)
		}
	}

	<-errsDone

	slog.Info("source run complete", slog.String("source", name),
		slog.Int("discovered", stats.Discovered), slog.Int("downloaded", stats.Downloaded),
		slog.Int("skipped", stats.Skipped), slog.Int("failed", stats.Failed))

	return stats, nil
}

// extractDocument runs text extraction for one downloaded PDF and records
// the outcome (success or failure) as a new extraction row.
func extractDocument(ctx context.Context, deps Deps, source string, docID int64, pdfPath string) {
	extDir := filepath.Join(deps.DataDir, "extracted_text", source)
	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	outputPath := filepath.Join(extDir, base+".txt")

	result, err := deps.Extractor.Extract(ctx, pdfPath, outputPath)
	if err != nil {
		_, insertErr := deps.Store.InsertExtraction(ctx, &entity.Extraction{
			DocumentID: docID,
			Method:     entity.ExtractionMethodError,
			Status:     entity.ExtractionStatusFailed,
			Error:      err.Error(),
		})
		if insertErr != nil {
			slog.Error("record failed extraction failed", slog.String("source", source), slog.Any("error", insertErr))
		}
		deps.Metrics.RecordExtraction(source, "failed")
		slog.Error("extraction failed", slog.String("source", source), slog.String("pdf", pdfPath), slog.Any("error", err))
		return
	}

	_, err = deps.Store.InsertExtraction(ctx, &entity.Extraction{
		DocumentID: docID,
		OutputPath: outputPath,
		Method:     result.Method,
		PageCount:  result.PageCount,
		CharCount:  result.CharCount,
		OCRPages:   result.OCRPages,
		Status:     entity.ExtractionStatusCompleted,
	})
	if err != nil {
		slog.Error("record extraction failed", slog.String("source", source), slog.Any("error", err))
		return
	}
	deps.Metrics.RecordExtraction(source, "completed")

	slog.Info("extracted", slog.String("source", source), slog.String("file", base),
		slog.Int("pages", result.PageCount), slog.Int("chars", result.CharCount), slog.Int("ocr_pages", result.OCRPages))
}

// filenameFromURL derives a filename from a URL's path component, falling
// back to a generic name when the path is empty (e.g. query-only URLs).
func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "document.pdf"
	}
	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "document.pdf"
	}
	return name
}
