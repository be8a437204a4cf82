package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"epsteindata/internal/domain/entity"
	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/fetcher"
)

// EpsteinGraph scrapes the pre-processed document database exposed by
// epsteingraph.com's public API — people profiles, connections, timelines,
// and graph snapshots — rather than raw PDFs. Its /api/people/top endpoint
// caps at 200 results and ignores offset, so beyond the first 200 people we
// run a breadth-first snowball crawl: scrape a person, extract the names of
// people they're connected to, resolve each name to a slug, and enqueue any
// slug not already known. It implements adapter.Runner because this
// discovery process is inseparable from downloading — there is no PDF to
// fetch after the fact, only JSON documents written as they're produced.
type EpsteinGraph struct {
	fetcher   *fetcher.Fetcher
	rateLimit float64
	// pageLimiter smooths the document-pagination loop in fetchPerson, which
	// issues many rapid same-source requests for a single profile. A token
	// bucket fits that burst pattern better than the fetcher's per-call
	// last-timestamp gate, which is tuned for the sparser request pattern of
	// the rest of this adapter.
	pageLimiter *rate.Limiter
}

func NewEpsteinGraph(f *fetcher.Fetcher, rateLimit float64) *EpsteinGraph {
	return &EpsteinGraph{
		fetcher:     f,
		rateLimit:   rateLimit,
		pageLimiter: rate.NewLimiter(rate.Limit(epsteinGraphPagesPerSecond), 1),
	}
}

// epsteinGraphPagesPerSecond caps the document-pagination loop independently
// of the adapter's general per-request rate, since a single person with many
// documents can otherwise issue dozens of page requests back to back.
const epsteinGraphPagesPerSecond = 2

const epsteinGraphAPIBase = "https://api.epsteingraph.com"

const epsteinGraphDocsPerPage = 100

var epsteinGraphKnownRoles = []string{
	"academic", "actor", "artist", "author", "business", "diplomat",
	"financier", "government", "judge", "lawyer", "media", "model",
	"musician", "other public figure", "philanthropist", "politician",
	"royalty", "scientist", "socialite",
}

func (s *EpsteinGraph) Name() string { return "epsteingraph" }

// Discover yields nothing: all work happens in Run.
func (s *EpsteinGraph) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate)
	errs := make(chan error)
	close(out)
	close(errs)
	return out, errs
}

type egPerson map[string]any

func (s *EpsteinGraph) Run(ctx context.Context, deps adapter.Deps) (adapter.Stats, error) {
	var stats adapter.Stats

	slog.Info("epsteingraph: starting scrape")

	outDir := filepath.Join(deps.DataDir, s.Name())
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return stats, fmt.Errorf("epsteingraph: create out dir: %w", err)
	}

	savedState, err := deps.Store.GetSourceState(ctx, s.Name())
	if err != nil {
		return stats, fmt.Errorf("epsteingraph: load state: %w", err)
	}
	if savedState == nil {
		savedState = map[string]any{}
	}

	completed := stringSetFromState(savedState["completed_slugs"])
	failed := stringSetFromState(savedState["failed_slugs"])
	lookedUp := stringSetFromState(savedState["looked_up_names"])

	s.fetchSiteMetadata(ctx, outDir)

	known := make(map[string]bool, len(completed))
	for slug := range completed {
		known[slug] = true
	}

	seedSlugs := s.seedPeople(ctx, outDir)
	var queue []string
	for _, slug := range seedSlugs {
		if !known[slug] {
			queue = append(queue, slug)
			known[slug] = true
		}
	}
	slog.Info("epsteingraph: seeded crawl", "unique_people", len(seedSlugs), "already_done", len(completed), "to_scrape", len(queue))

	s.fetchGraph(ctx, outDir)

	scrapedThisRun := 0
	totalKnown := len(known)

	for len(queue) > 0 {
		slug := queue[0]
		queue = queue[1:]

		if completed[slug] {
			continue
		}

		slog.Info("epsteingraph: scraping", "index", scrapedThisRun+1, "slug", slug, "queue", len(queue), "known", totalKnown)

		newNames, ferr := s.fetchPerson(ctx, deps, slug, outDir)
		if ferr != nil {
			failed[slug] = true
			stats.Failed++
			slog.Error("epsteingraph: failed", "slug", slug, "error", ferr)
			continue
		}
		completed[slug] = true
		scrapedThisRun++
		stats.Downloaded++

		for name := range newNames {
			if lookedUp[name] {
				continue
			}
			lookedUp[name] = true

			resolved := s.lookupPerson(ctx, name)
			if resolved != "" && !known[resolved] {
				queue = append(queue, resolved)
				known[resolved] = true
				totalKnown++
			}
		}

		if scrapedThisRun%25 == 0 {
			s.saveState(ctx, deps, savedState, completed, failed, lookedUp)
			slog.Info("epsteingraph: progress", "done", len(completed), "queued", len(queue), "known", totalKnown)
		}
	}

	savedState["completed"] = true
	s.saveState(ctx, deps, savedState, completed, failed, lookedUp)
	slog.Info("epsteingraph: done", "scraped", len(completed), "failed", len(failed), "total_known", totalKnown)

	stats.Discovered = totalKnown
	return stats, nil
}

func (s *EpsteinGraph) saveState(ctx context.Context, deps adapter.Deps, state map[string]any, completed, failed, lookedUp map[string]bool) {
	state["completed_slugs"] = stringSetToSlice(completed)
	state["failed_slugs"] = stringSetToSlice(failed)
	state["looked_up_names"] = stringSetToSlice(lookedUp)
	if err := deps.Store.SaveSourceState(ctx, s.Name(), state); err != nil {
		slog.Warn("epsteingraph: failed to save source state", "error", err)
	}
}

// apiGet issues a rate-limited GET against the epsteingraph API and decodes
// the JSON response into a generic map.
func (s *EpsteinGraph) apiGet(ctx context.Context, path string, params map[string]string) (map[string]any, error) {
	reqURL := epsteinGraphAPIBase + path
	if len(params) > 0 {
		var parts []string
		for k, v := range params {
			if v != "" {
				parts = append(parts, k+"="+v)
			}
		}
		if len(parts) > 0 {
			reqURL += "?" + strings.Join(parts, "&")
		}
	}
	var out map[string]any
	if err := s.fetcher.FetchJSON(ctx, reqURL, s.Name(), s.rateLimit, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func saveJSON(outDir string, data any, pathParts ...string) error {
	parts := append([]string{outDir}, pathParts...)
	dest := filepath.Join(parts...)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(dest, b, 0o644)
}

func (s *EpsteinGraph) seedPeople(ctx context.Context, outDir string) []string {
	seen := make(map[string]egPerson)

	s.collectTopPeople(ctx, seen, nil)
	for _, role := range epsteinGraphKnownRoles {
		s.collectTopPeople(ctx, seen, map[string]string{"role": role})
	}
	s.collectTopPeople(ctx, seen, map[string]string{"public_figures": "true"})

	for _, ms := range []string{"1", "10", "100"} {
		data, err := s.apiGet(ctx, "/api/graph", map[string]string{"limit": "200", "min_shared": ms})
		if err != nil {
			slog.Error("epsteingraph: graph seed failed", "min_shared", ms, "error", err)
			continue
		}
		nodes, _ := data["nodes"].([]any)
		for _, n := range nodes {
			node, ok := n.(map[string]any)
			if !ok {
				continue
			}
			slug, _ := node["slug"].(string)
			if slug == "" {
				continue
			}
			if _, exists := seen[slug]; !exists {
				seen[slug] = egPerson{
					"slug":     slug,
					"name":     node["name"],
					"mentions": node["mentions"],
					"count":    node["documents"],
				}
			}
		}
	}

	if data, err := s.apiGet(ctx, "/api/person-redirects", nil); err == nil {
		redirects, _ := data["redirects"].([]any)
		for _, r := range redirects {
			name, _ := r.(string)
			if name == "" {
				continue
			}
			resolved := s.lookupPerson(ctx, name)
			if resolved != "" {
				if _, exists := seen[resolved]; !exists {
					seen[resolved] = egPerson{"slug": resolved, "name": name}
				}
			}
		}
	} else {
		slog.Error("epsteingraph: redirect seed failed", "error", err)
	}

	people := make([]egPerson, 0, len(seen))
	for _, p := range seen {
		people = append(people, p)
	}
	sortPeopleByMentions(people)

	if err := saveJSON(outDir, map[string]any{"total": len(people), "people": people}, "all_people.json"); err != nil {
		slog.Warn("epsteingraph: failed to save seed list", "error", err)
	}

	slugs := make([]string, 0, len(people))
	for _, p := range people {
		if slug, _ := p["slug"].(string); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	return slugs
}

func sortPeopleByMentions(people []egPerson) {
	for i := 1; i < len(people); i++ {
		for j := i; j > 0 && mentionsOf(people[j]) > mentionsOf(people[j-1]); j-- {
			people[j], people[j-1] = people[j-1], people[j]
		}
	}
}

func mentionsOf(p egPerson) float64 {
	v, _ := p["mentions"].(float64)
	return v
}

func (s *EpsteinGraph) collectTopPeople(ctx context.Context, seen map[string]egPerson, extra map[string]string) {
	params := map[string]string{"limit": "200", "order_by": "mentions"}
	for k, v := range extra {
		params[k] = v
	}
	data, err := s.apiGet(ctx, "/api/people/top", params)
	if err != nil {
		slog.Error("epsteingraph: people/top failed", "params", extra, "error", err)
		return
	}
	people, _ := data["people"].([]any)
	for _, p := range people {
		person, ok := p.(map[string]any)
		if !ok {
			continue
		}
		slug, _ := person["slug"].(string)
		if slug == "" {
			continue
		}
		if _, exists := seen[slug]; !exists {
			seen[slug] = egPerson(person)
		}
	}
}

func (s *EpsteinGraph) lookupPerson(ctx context.Context, name string) string {
	encoded := url.QueryEscape(name)
	data, err := s.apiGet(ctx, "/api/person-lookup?q="+encoded, nil)
	if err != nil {
		return ""
	}
	if match, _ := data["match"].(bool); !match {
		return ""
	}
	slug, _ := data["slug"].(string)
	return slug
}

func (s *EpsteinGraph) fetchGraph(ctx context.Context, outDir string) {
	slog.Info("epsteingraph: fetching connection graph")
	for _, minShared := range []int{1, 10, 100, 1000} {
		data, err := s.apiGet(ctx, "/api/graph", map[string]string{
			"limit":      "200",
			"min_shared": itoaEG(minShared),
		})
		if err != nil {
			slog.Error("epsteingraph: graph fetch failed", "min_shared", minShared, "error", err)
			continue
		}
		if err := saveJSON(outDir, data, "graph", fmt.Sprintf("graph_min%d.json", minShared)); err != nil {
			slog.Warn("epsteingraph: failed to save graph snapshot", "error", err)
			continue
		}
		nodes, _ := data["nodes"].([]any)
		edges, _ := data["edges"].([]any)
		slog.Info("epsteingraph: graph snapshot", "min_shared", minShared, "nodes", len(nodes), "edges", len(edges))
	}
}

func (s *EpsteinGraph) fetchSiteMetadata(ctx context.Context, outDir string) {
	slog.Info("epsteingraph: fetching site metadata")
	endpoints := []struct{ path, filename string }{
		{"/api/stats", "stats.json"},
		{"/api/trending", "trending.json"},
		{"/api/person-redirects", "person_redirects.json"},
	}
	for _, e := range endpoints {
		data, err := s.apiGet(ctx, e.path, nil)
		if err != nil {
			slog.Error("epsteingraph: site metadata failed", "endpoint", e.path, "error", err)
			continue
		}
		if err := saveJSON(outDir, data, e.filename); err != nil {
			slog.Warn("epsteingraph: failed to save site metadata", "error", err)
			continue
		}
		slog.Info("epsteingraph: saved", "filename", e.filename)
	}
}

// fetchPerson fetches a profile, its paginated documents, and its timeline,
// returning the set of connection names discovered (for the snowball crawl).
func (s *EpsteinGraph) fetchPerson(ctx context.Context, deps adapter.Deps, slug, outDir string) (map[string]bool, error) {
	personDir := filepath.Join(outDir, "people", slug)
	newNames := make(map[string]bool)

	data, err := s.apiGet(ctx, "/api/people/"+slug, map[string]string{
		"limit":  itoaEG(epsteinGraphDocsPerPage),
		"offset": "0",
		"sort":   "doc_id",
	})
	if err != nil {
		return nil, err
	}

	totalDocs := 0
	if td, ok := data["total_documents"].(float64); ok {
		totalDocs = int(td)
	}
	firstDocs, _ := data["documents"].([]any)
	allDocuments := append([]any{}, firstDocs...)

	if conns, ok := data["connections"].([]any); ok {
		for _, c := range conns {
			conn, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if name, _ := conn["connected_person"].(string); name != "" {
				newNames[name] = true
			}
		}
	}

	profile := make(map[string]any, len(data))
	for k, v := range data {
		if k != "documents" {
			profile[k] = v
		}
	}
	if err := saveJSON(personDir, profile, "profile.json"); err != nil {
		slog.Warn("epsteingraph: failed to save profile", "slug", slug, "error", err)
	}

	offset := epsteinGraphDocsPerPage
	for offset < totalDocs {
		if werr := s.pageLimiter.Wait(ctx); werr != nil {
			return newNames, werr
		}
		pageData, perr := s.apiGet(ctx, "/api/people/"+slug, map[string]string{
			"limit":  itoaEG(epsteinGraphDocsPerPage),
			"offset": itoaEG(offset),
			"sort":   "doc_id",
		})
		if perr != nil {
			slog.Error("epsteingraph: docs page failed", "slug", slug, "offset", offset, "error", perr)
			break
		}
		docs, _ := pageData["documents"].([]any)
		if len(docs) == 0 {
			break
		}
		allDocuments = append(allDocuments, docs...)
		offset += epsteinGraphDocsPerPage
	}

	if err := saveJSON(personDir, map[string]any{
		"slug":            slug,
		"total_documents": totalDocs,
		"fetched":         len(allDocuments),
		"documents":       allDocuments,
	}, "documents.json"); err != nil {
		slog.Warn("epsteingraph: failed to save documents", "slug", slug, "error", err)
	}

	slog.Info("epsteingraph: person scraped", "slug", slug, "fetched", len(allDocuments), "total", totalDocs, "connections", len(newNames))

	if timeline, terr := s.apiGet(ctx, "/api/people/"+slug+"/timeline", nil); terr == nil {
		if err := saveJSON(personDir, timeline, "timeline.json"); err != nil {
			slog.Warn("epsteingraph: failed to save timeline", "slug", slug, "error", err)
		}
	} else {
		slog.Error("epsteingraph: timeline failed", "slug", slug, "error", terr)
	}

	apiURL := epsteinGraphAPIBase + "/api/people/" + slug
	exists, err := deps.Store.URLExists(ctx, apiURL)
	if err != nil {
		return newNames, err
	}
	if !exists {
		canonicalName := slug
		if person, ok := data["person"].(map[string]any); ok {
			if n, _ := person["canonical_name"].(string); n != "" {
				canonicalName = n
			}
		}
		doc := &entity.Document{
			URL:      apiURL,
			Source:   s.Name(),
			SourceID: slug,
			Filename: slug + ".json",
			Title:    canonicalName,
			Metadata: map[string]any{
				"total_documents":   totalDocs,
				"fetched_documents": len(allDocuments),
				"person":            data["person"],
				"person_stats":      data["person_stats"],
			},
		}
		docID, ierr := deps.Store.InsertDocument(ctx, doc)
		if ierr != nil {
			return newNames, ierr
		}
		if uerr := deps.Store.UpdateDownload(ctx, docID, entity.DownloadStatusDownloaded,
			filepath.Join(personDir, "profile.json"), "", 0, ""); uerr != nil {
			slog.Warn("epsteingraph: failed to record download", "slug", slug, "error", uerr)
		}
	}

	return newNames, nil
}

func stringSetFromState(v any) map[string]bool {
	out := make(map[string]bool)
	items, _ := v.([]any)
	for _, it := range items {
		if s, ok := it.(string); ok {
			out[s] = true
		}
	}
	return out
}

func stringSetToSlice(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func itoaEG(n int) string {
	return fmt.Sprintf("%d", n)
}
