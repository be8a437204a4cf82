package sources

import (
	"context"
	"fmt"
	"log/slog"

	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/fetcher"
)

// DocumentCloud searches the public DocumentCloud API for a fixed set of
// queries and follows its cursor-based "next" pagination.
//
// Progress is saved after every page but, faithfully matching the behavior
// being ported, is never read back at the start of a run — every run
// restarts each query's pagination from page one. This looks like a latent
// bug upstream (see the project's grounding notes) rather than an
// intentional design, but nothing else in this run depends on it being
// fixed, so it is reproduced rather than silently corrected.
type DocumentCloud struct {
	fetcher   *fetcher.Fetcher
	rateLimit float64
}

func NewDocumentCloud(f *fetcher.Fetcher, rateLimit float64) *DocumentCloud {
	return &DocumentCloud{fetcher: f, rateLimit: rateLimit}
}

const documentCloudSearchURL = "https://api.www.documentcloud.org/api/documents/search/"

var documentCloudQueries = []string{
	"jeffrey epstein",
	"ghislaine maxwell",
	"epstein flight logs",
	"epstein grand jury",
}

type documentCloudSearchResponse struct {
	Next    string                   `json:"next"`
	Results []map[string]interface{} `json:"results"`
}

func (s *DocumentCloud) Name() string       { return "documentcloud" }
func (s *DocumentCloud) RateLimit() float64 { return s.rateLimit }

func (s *DocumentCloud) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate)
	errs := make(chan error)

	go func() {
		defer close(out)
		defer close(errs)

		seen := make(map[string]bool)
		for _, query := range documentCloudQueries {
			s.search(ctx, query, seen, out, errs, save)
		}
	}()

	return out, errs
}

func (s *DocumentCloud) search(ctx context.Context, query string, seen map[string]bool, out chan<- adapter.Candidate, errs chan<- error, save adapter.SaveState) {
	url := fmt.Sprintf("%s?q=%s&per_page=100", documentCloudSearchURL, query)

	for url != "" {
		var resp documentCloudSearchResponse
		if err := s.fetcher.FetchJSON(ctx, url, s.Name(), s.rateLimit, nil, &resp); err != nil {
			errs <- fmt.Errorf("documentcloud search %q: %w", query, err)
			return
		}

		if len(resp.Results) == 0 {
			return
		}

		for _, doc := range resp.Results {
			docID := fmt.Sprintf("%v", doc["id"])
			if docID == "" || docID == "<nil>" || seen[docID] {
				continue
			}
			seen[docID] = true

			slug, _ := doc["slug"].(string)
			if slug == "" {
				slug = "document"
			}
			title, _ := doc["title"].(string)
			if title == "" {
				title = fmt.Sprintf("DocumentCloud %s", docID)
			}
			pageCount := 0
			if pc, ok := doc["page_count"].(float64); ok {
				pageCount = int(pc)
			}

			pdfURL := fmt.Sprintf("https://assets.documentcloud.org/documents/%s/%s.pdf", docID, slug)

			out <- adapter.Candidate{
				URL: pdfURL,
				Metadata: map[string]any{
					"source_id": docID,
					"filename":  fmt.Sprintf("%s-%s.pdf", docID, slug),
					"title":     title,
					"dc_id":     docID,
					"pages":     pageCount,
				},
			}
		}

		url = resp.Next
		if url != "" {
			if err := save(ctx, map[string]any{"next_url": url, "query": query}); err != nil {
				slog.Warn("documentcloud: failed to save source state", slog.Any("error", err))
			}
		}
	}
}
