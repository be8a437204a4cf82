package sources

import (
	"context"
	"fmt"
	"strings"

	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/fetcher"
)

// CourtListener queries the CourtListener REST API for docket entries on a
// fixed set of known dockets, then widens the search with a couple of
// free-text queries whose results are resolved back to docket entries. It
// requires a free API token; if none is configured the adapter logs a
// warning and yields nothing rather than failing the run.
type CourtListener struct {
	fetcher   *fetcher.Fetcher
	rateLimit float64
	apiToken  string
}

func NewCourtListener(f *fetcher.Fetcher, rateLimit float64, apiToken string) *CourtListener {
	return &CourtListener{fetcher: f, rateLimit: rateLimit, apiToken: apiToken}
}

const courtListenerAPIBase = "https://www.courtlistener.com/api/rest/v4"

// Known docket IDs for key cases.
var courtListenerDocketIDs = []string{
	"4154484",  // Giuffre v. Maxwell (SDNY 1:15-cv-07433)
	"17318376", // United States v. Maxwell (SDNY 1:20-cr-00330)
	"6302530",  // United States v. Epstein (SDFL 9:08-cr-80736)
	"67534580", // Doe v. Epstein
}

var courtListenerSearchQueries = []string{
	"jeffrey epstein",
	"ghislaine maxwell trafficking",
}

func (s *CourtListener) Name() string       { return "courtlistener" }
func (s *CourtListener) RateLimit() float64 { return s.rateLimit }

func (s *CourtListener) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate)
	errs := make(chan error)

	go func() {
		defer close(out)
		defer close(errs)

		if s.apiToken == "" {
			errs <- fmt.Errorf("courtlistener: no API token configured — skipping; " +
				"get a free token at https://www.courtlistener.com/sign-in/")
			return
		}

		headers := map[string]string{"Authorization": "Token " + s.apiToken}
		seen := make(map[string]bool)

		for _, docketID := range courtListenerDocketIDs {
			s.docketEntries(ctx, docketID, headers, seen, out, errs)
		}

		for _, query := range courtListenerSearchQueries {
			s.searchDockets(ctx, query, headers, seen, out, errs)
		}
	}()

	return out, errs
}

type courtListenerDocketEntriesResponse struct {
	Next    string `json:"next"`
	Results []struct {
		EntryNumber    int    `json:"entry_number"`
		RecapDocuments []struct {
			ID           any    `json:"id"`
			FilepathIA   string `json:"filepath_ia"`
			FilepathLocal string `json:"filepath_local"`
			Description  string `json:"description"`
		} `json:"recap_documents"`
	} `json:"results"`
}

// docketEntries walks every document entry on a single docket, paginating
// via the response's "next" link.
func (s *CourtListener) docketEntries(ctx context.Context, docketID string, headers map[string]string, seen map[string]bool, out chan<- adapter.Candidate, errs chan<- error) {
	url := fmt.Sprintf("%s/docket-entries/?docket=%s&page_size=100", courtListenerAPIBase, docketID)

	for url != "" {
		var resp courtListenerDocketEntriesResponse
		if err := s.fetcher.FetchJSON(ctx, url, s.Name(), s.rateLimit, headers, &resp); err != nil {
			errs <- fmt.Errorf("courtlistener docket %s: %w", docketID, err)
			return
		}

		for _, entry := range resp.Results {
			for _, rd := range entry.RecapDocuments {
				docID := fmt.Sprintf("%v", rd.ID)
				if docID == "" || docID == "<nil>" || seen[docID] {
					continue
				}
				seen[docID] = true

				filepath := rd.FilepathIA
				if filepath == "" {
					filepath = rd.FilepathLocal
				}
				if filepath == "" {
					continue
				}

				var pdfURL string
				if strings.HasPrefix(filepath, "http") {
					pdfURL = filepath
				} else {
					pdfURL = "https://storage.courtlistener.com/" + filepath
				}

				desc := rd.Description
				if desc == "" {
					desc = fmt.Sprintf("Entry %d", entry.EntryNumber)
				}

				out <- adapter.Candidate{
					URL: pdfURL,
					Metadata: map[string]any{
						"source_id":    docID,
						"filename":     fmt.Sprintf("cl-%s-%s.pdf", docketID, docID),
						"title":        desc,
						"docket_id":    docketID,
						"entry_number": entry.EntryNumber,
					},
				}
			}
		}

		url = resp.Next
	}
}

type courtListenerSearchResponse struct {
	Results []struct {
		DocketID any `json:"docket_id"`
	} `json:"results"`
}

// searchDockets resolves a free-text search query to additional docket IDs
// and walks each one's entries.
func (s *CourtListener) searchDockets(ctx context.Context, query string, headers map[string]string, seen map[string]bool, out chan<- adapter.Candidate, errs chan<- error) {
	url := fmt.Sprintf("%s/search/?q=%s&type=r&page_size=20", courtListenerAPIBase, query)

	var resp courtListenerSearchResponse
	if err := s.fetcher.FetchJSON(ctx, url, s.Name(), s.rateLimit, headers, &resp); err != nil {
		errs <- fmt.Errorf("courtlistener search %q: %w", query, err)
		return
	}

	for _, result := range resp.Results {
		docketID := fmt.Sprintf("%v", result.DocketID)
		if docketID == "" || docketID == "<nil>" {
			continue
		}
		s.docketEntries(ctx, docketID, headers, seen, out, errs)
	}
}
