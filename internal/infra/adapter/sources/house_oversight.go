package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/fetcher"
)

// HouseOversight scrapes three fixed House Oversight Committee release pages
// for PDF links. Unlike DOJ, it carries no resumable pagination state — the
// page set is small and fixed, so every run simply re-scrapes all of it
// (URL dedup in the default driver skips anything already catalogued).
type HouseOversight struct {
	fetcher   *fetcher.Fetcher
	rateLimit float64
}

func NewHouseOversight(f *fetcher.Fetcher, rateLimit float64) *HouseOversight {
	return &HouseOversight{fetcher: f, rateLimit: rateLimit}
}

var houseOversightPages = []string{
	"https://oversight.house.gov/release/oversight-committee-releases-epstein-records-provided-by-the-department-of-justice/",
	"https://oversight.house.gov/release/oversight-committee-releases-additional-epstein-estate-documents/",
	"https://oversight.house.gov/release/oversight-committee-releases-records-provided-by-the-epstein-estate-chairman-comer-provides-statement/",
}

func (s *HouseOversight) Name() string       { return "house_oversight" }
func (s *HouseOversight) RateLimit() float64 { return s.rateLimit }

func (s *HouseOversight) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate)
	errs := make(chan error)

	go func() {
		defer close(out)
		defer close(errs)

		for _, pageURL := range houseOversightPages {
			html, err := s.fetcher.FetchText(ctx, pageURL, s.Name(), s.rateLimit)
			if err != nil {
				errs <- fmt.Errorf("house_oversight page %s: %w", pageURL, err)
				continue
			}

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
			if err != nil {
				errs <- fmt.Errorf("house_oversight parse %s: %w", pageURL, err)
				continue
			}
			base, err := url.Parse(pageURL)
			if err != nil {
				continue
			}

			seen := make(map[string]bool)
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				href, ok := sel.Attr("href")
				if !ok || !strings.HasSuffix(strings.ToLower(href), ".pdf") {
					return
				}
				ref, err := url.Parse(href)
				if err != nil {
					return
				}
				resolved := base.ResolveReference(ref).String()
				if seen[resolved] {
					return
				}
				seen[resolved] = true

				parts := strings.Split(resolved, "/")
				filename := parts[len(parts)-1]
				if unescaped, err := url.QueryUnescape(filename); err == nil {
					filename = unescaped
				}

				out <- adapter.Candidate{
					URL: resolved,
					Metadata: map[string]any{
						"source_id": fmt.Sprintf("house-%s", filename),
						"filename":  filename,
						"title":     fmt.Sprintf("House Oversight: %s", filename),
					},
				}
			})
			slog.Info("house_oversight: scraped page", slog.String("url", pageURL))
		}
	}()

	return out, errs
}
