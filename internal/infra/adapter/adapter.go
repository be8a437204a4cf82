// Package adapter defines the source adapter framework: the interface every
// document source implements, and the shared discover-download-extract
// driver that most of them run through unmodified.
package adapter

import (
	"context"

	"epsteindata/internal/infra/extractor"
	"epsteindata/internal/infra/fetcher"
	"epsteindata/internal/repository"
)

// Candidate is one document a source adapter has discovered. Metadata keys
// "source_id", "filename", and "title" are treated specially by the default
// driver (Run), mirroring the original per-document metadata dict; any
// other keys ride along unchanged into the catalog store.
type Candidate struct {
	URL      string
	Metadata map[string]any
}

// SaveState persists an adapter's resume checkpoint immediately, so a crash
// mid-discovery does not lose progress already made. Adapters that page
// through a remote API are expected to call this after every page.
type SaveState func(ctx context.Context, state map[string]any) error

// SourceAdapter is implemented by every document source. Discover returns a
// pair of channels: candidates found, and any non-fatal errors encountered
// while finding them (both channels are closed when discovery finishes).
type SourceAdapter interface {
	Name() string
	Discover(ctx context.Context, state map[string]any, save SaveState) (<-chan Candidate, <-chan error)
}

// RateLimited is implemented by adapters that need a rate limit different
// from the fetcher's default (most API-backed sources do).
type RateLimited interface {
	RateLimit() float64
}

// Runner is implemented by adapters whose workflow can't be expressed as
// plain discovery feeding the default download/extract loop — the torrent
// and graph-crawler adapters replace the whole run.
type Runner interface {
	Run(ctx context.Context, deps Deps) (Stats, error)
}

// Deps bundles everything an adapter (or the default driver) needs to turn
// discovered candidates into catalog entries.
type Deps struct {
	Fetcher           *fetcher.Fetcher
	Store             repository.CatalogStore
	Extractor         *extractor.Extractor
	DataDir           string
	ExtractionEnabled bool
	// Metrics is nil unless METRICS_ADDR is configured; every recording
	// method tolerates a nil receiver, so callers never need to check.
	Metrics *Metrics
}

// Stats summarizes one adapter run, mirroring the original's per-run log line.
type Stats struct {
	Discovered int
	Downloaded int
	Skipped    int
	Failed     int
}
