// Package ingest wires together the fetcher, extractor, and catalog store
// to drive source adapters end to end, and reports on the results — the
// orchestration layer a CLI entry point calls into.
package ingest

import (
	"sort"

	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/adapter/sources"
	"epsteindata/internal/infra/fetcher"
	"epsteindata/pkg/config"
)

// Registry holds every known source adapter, keyed by name, in the order
// they were registered.
type Registry struct {
	order    []string
	adapters map[string]adapter.SourceAdapter
}

// NewRegistry constructs every source adapter this engine knows about,
// wiring each one to the shared fetcher and its configured rate
// limit/API token. This is the Go equivalent of the original's ALL_SOURCES
// module-level dict.
func NewRegistry(f *fetcher.Fetcher, cfg config.IngestConfig) *Registry {
	r := &Registry{adapters: make(map[string]adapter.SourceAdapter)}

	r.register(&sources.DirectURLs{})
	r.register(&sources.FBIVault{})
	r.register(sources.NewDOJ(f, cfg.SourceRateLimit("doj")))
	r.register(sources.NewHouseOversight(f, cfg.SourceRateLimit("house_oversight")))
	r.register(sources.NewDocumentCloud(f, cfg.SourceRateLimit("documentcloud")))
	r.register(sources.NewInternetArchive(f, cfg.SourceRateLimit("internet_archive")))
	r.register(sources.NewCourtListener(f, cfg.SourceRateLimit("courtlistener"), cfg.SourceAPIToken("courtlistener")))
	r.register(sources.NewTorrents())
	r.register(sources.NewEpsteinGraph(f, cfg.SourceRateLimit("epsteingraph")))

	return r
}

func (r *Registry) register(a adapter.SourceAdapter) {
	r.adapters[a.Name()] = a
	r.order = append(r.order, a.Name())
}

// Names returns every registered source name in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Get returns the adapter registered under name, or nil if none is.
func (r *Registry) Get(name string) adapter.SourceAdapter {
	return r.adapters[name]
}

// SortedNames returns every registered source name alphabetically, handy
// for --help output and validation error messages.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
