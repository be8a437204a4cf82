package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/fetcher"
)

// flexTitle decodes archive.org's metadata.title field, which is sometimes a
// plain string and sometimes an array of strings for multi-volume items.
type flexTitle []string

func (t *flexTitle) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = flexTitle{single}
		return nil
	}
	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return err
	}
	*t = flexTitle(multi)
	return nil
}

func (t flexTitle) First() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// InternetArchive walks a short list of verified archive.org collection
// identifiers and then widens the search with a handful of free-text
// queries, cursor-paginating each query via archive.org's scrape API. Cursor
// state is keyed per query index and correctly resumed on restart, unlike
// the DocumentCloud adapter's write-only checkpoint.
type InternetArchive struct {
	fetcher   *fetcher.Fetcher
	rateLimit float64
}

func NewInternetArchive(f *fetcher.Fetcher, rateLimit float64) *InternetArchive {
	return &InternetArchive{fetcher: f, rateLimit: rateLimit}
}

const (
	iaSearchURL   = "https://archive.org/services/search/v1/scrape"
	iaMetadataURL = "https://archive.org/metadata/%s"
	iaDownloadURL = "https://archive.org/download/%s/%s"
)

var iaKnownCollections = []string{
	"epstein-documents-943-pages",
	"epstein-documents-943-pages-1",
	"j-epstein-files",
	"final-epstein-documents",
	"jeffrey-epstein-court-documents",
	"epsteindocs",
	"epstein-doj-datasets-9-11-jan2026",
	"Epstein-Data-Sets-So-Far",
}

var iaQueries = []string{
	`subject:"jeffrey epstein" AND mediatype:texts`,
	`subject:"ghislaine maxwell" AND mediatype:texts`,
	`creator:"Department of Justice" AND title:"epstein" AND mediatype:texts`,
}

var iaValidExtensions = []string{".pdf", ".txt", ".doc", ".docx", ".zip"}

func (s *InternetArchive) Name() string       { return "internet_archive" }
func (s *InternetArchive) RateLimit() float64 { return s.rateLimit }

func (s *InternetArchive) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate)
	errs := make(chan error)

	go func() {
		defer close(out)
		defer close(errs)

		seen := make(map[string]bool)

		for _, identifier := range iaKnownCollections {
			if seen[identifier] {
				continue
			}
			seen[identifier] = true
			s.collectionFiles(ctx, identifier, out, errs)
		}

		for i, query := range iaQueries {
			cursorKey := fmt.Sprintf("cursor_%d", i)
			cursor, _ := state[cursorKey].(string)
			s.searchQuery(ctx, query, cursor, state, cursorKey, seen, out, errs, save)
		}
	}()

	return out, errs
}

type iaSearchResponse struct {
	Items  []map[string]any `json:"items"`
	Cursor string           `json:"cursor"`
}

func (s *InternetArchive) searchQuery(ctx context.Context, query, cursor string, state map[string]any, cursorKey string, seen map[string]bool, out chan<- adapter.Candidate, errs chan<- error, save adapter.SaveState) {
	paramsBase := fmt.Sprintf("?q=%s&fields=identifier,title&count=100", url.QueryEscape(query))

	for {
		reqURL := iaSearchURL + paramsBase
		if cursor != "" {
			reqURL += "&cursor=" + cursor
		}

		var resp iaSearchResponse
		if err := s.fetcher.FetchJSON(ctx, reqURL, s.Name(), s.rateLimit, nil, &resp); err != nil {
			errs <- fmt.Errorf("internet_archive search %q: %w", query, err)
			return
		}

		if len(resp.Items) == 0 {
			return
		}

		for _, item := range resp.Items {
			identifier, _ := item["identifier"].(string)
			if identifier == "" || seen[identifier] {
				continue
			}
			seen[identifier] = true
			s.collectionFiles(ctx, identifier, out, errs)
		}

		if resp.Cursor == "" {
			return
		}
		cursor = resp.Cursor
		state[cursorKey] = cursor
		if err := save(ctx, state); err != nil {
			slog.Warn("internet_archive: failed to save source state", slog.Any("error", err))
		}
	}
}

type iaMetadataResponse struct {
	Files []struct {
		Name   string `json:"name"`
		Format string `json:"format"`
	} `json:"files"`
	Metadata struct {
		Title flexTitle `json:"title"`
	} `json:"metadata"`
}

func (s *InternetArchive) collectionFiles(ctx context.Context, identifier string, out chan<- adapter.Candidate, errs chan<- error) {
	var resp iaMetadataResponse
	if err := s.fetcher.FetchJSON(ctx, fmt.Sprintf(iaMetadataURL, identifier), s.Name(), s.rateLimit, nil, &resp); err != nil {
		errs <- fmt.Errorf("internet_archive metadata %s: %w", identifier, err)
		return
	}

	title := resp.Metadata.Title.First()
	if title == "" {
		title = identifier
	}

	for _, f := range resp.Files {
		lower := strings.ToLower(f.Name)
		valid := false
		for _, ext := range iaValidExtensions {
			if strings.HasSuffix(lower, ext) {
				valid = true
				break
			}
		}
		if !valid {
			continue
		}

		downloadURL := fmt.Sprintf(iaDownloadURL, identifier, f.Name)
		safeFilename := strings.ReplaceAll(fmt.Sprintf("%s__%s", identifier, f.Name), "/", "_")

		out <- adapter.Candidate{
			URL: downloadURL,
			Metadata: map[string]any{
				"source_id":     fmt.Sprintf("%s/%s", identifier, f.Name),
				"filename":      safeFilename,
				"title":         fmt.Sprintf("%s — %s", title, f.Name),
				"ia_identifier": identifier,
			},
		}
	}
}
