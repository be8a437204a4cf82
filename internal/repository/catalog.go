package repository

import (
	"context"

	"epsteindata/internal/domain/entity"
)

// SourceStatusCount is one row of a per-source/per-status aggregate, as
// returned by CatalogStore.DownloadStats.
type SourceStatusCount struct {
	Source         string
	DownloadStatus entity.DownloadStatus
	Count          int64
	TotalBytes     int64
}

// ExtractionStatusCount is one row of a per-source/per-status aggregate, as
// returned by CatalogStore.ExtractionStats.
type ExtractionStatusCount struct {
	Source        string
	Status        entity.ExtractionStatus
	Count         int64
	TotalChars    int64
	TotalOCRPages int64
}

// CatalogStore is the durable record of every document the engine has ever
// discovered, the outcome of fetching it, any text extracted from it, and
// each source adapter's resume checkpoint. Implementations must make
// InsertDocument safe to call repeatedly for the same URL (idempotent
// discovery) and must serialize writes from concurrent adapters.
type CatalogStore interface {
	// URLExists reports whether a document with this URL has already been
	// recorded, regardless of its download status.
	URLExists(ctx context.Context, url string) (bool, error)

	// SHA256Exists returns the local path of an already-downloaded document
	// sharing this content hash, or "" if none exists. Only documents with
	// DownloadStatusDownloaded are considered.
	SHA256Exists(ctx context.Context, sha256 string) (string, error)

	// InsertDocument records a newly discovered candidate. If a document
	// with the same URL already exists its ID is returned unchanged; no
	// fields are overwritten.
	InsertDocument(ctx context.Context, doc *entity.Document) (int64, error)

	// UpdateDownload records the outcome of a fetch attempt for a document.
	UpdateDownload(ctx context.Context, docID int64, status entity.DownloadStatus, localPath, sha256 string, fileSize int64, errMsg string) error

	// InsertExtraction records the outcome of a text-extraction attempt.
	InsertExtraction(ctx context.Context, ext *entity.Extraction) (int64, error)

	// DownloadedWithoutExtraction returns documents that are downloaded but
	// have no completed extraction yet. If source is "" all sources are
	// considered.
	DownloadedWithoutExtraction(ctx context.Context, source string) ([]*entity.Document, error)

	// PendingDocuments returns documents still awaiting a download attempt
	// for the given source.
	PendingDocuments(ctx context.Context, source string) ([]*entity.Document, error)

	// DownloadStats returns per-source, per-status document counts and byte
	// totals.
	DownloadStats(ctx context.Context) ([]SourceStatusCount, error)

	// ExtractionStats returns per-source, per-status extraction counts,
	// character totals, and OCR page totals.
	ExtractionStats(ctx context.Context) ([]ExtractionStatusCount, error)

	// GetSourceState returns the saved resume checkpoint for a source, or an
	// empty map if none has been saved yet.
	GetSourceState(ctx context.Context, source string) (map[string]any, error)

	// SaveSourceState upserts the resume checkpoint for a source.
	SaveSourceState(ctx context.Context, source string, state map[string]any) error

	// Close releases any resources held by the store.
	Close() error
}
