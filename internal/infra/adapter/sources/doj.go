package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"epsteindata/internal/infra/adapter"
	"epsteindata/internal/infra/fetcher"
)

// DOJ crawls the Department of Justice's Epstein Files Transparency Act
// disclosures at justice.gov/epstein: twelve paginated data sets plus three
// fixed court-record pages. Pagination state is checkpointed after every
// page, per data set, so a restart resumes where it left off.
type DOJ struct {
	fetcher   *fetcher.Fetcher
	rateLimit float64
}

// NewDOJ constructs the DOJ adapter, reusing the shared document fetcher
// (which carries the age-verification and bot-mitigation cookies, scoped to
// justice.gov, that every page under this domain requires).
func NewDOJ(f *fetcher.Fetcher, rateLimit float64) *DOJ {
	return &DOJ{fetcher: f, rateLimit: rateLimit}
}

// dojRateLimit429Cooldown is how long a page fetch sleeps after a 429
// before retrying once more. justice.gov's bot-mitigation front end returns
// 429 (rather than Retry-After) under burst load; a fixed cooldown clears
// it far more often than falling straight through to the generic
// exponential backoff, which starts from a much shorter wait.
const dojRateLimit429Cooldown = 30 * time.Second

const dojDataSetBase = "https://www.justice.gov/epstein/doj-disclosures/data-set-%d-files"

// dojDataSetPages caps each data set's pagination at a page count observed
// empirically when this corpus was surveyed; it is an upper bound, not a
// promise the DOJ won't add more pages later, so discovery also stops early
// whenever a page yields no PDF links.
var dojDataSetPages = map[int]int{
	1: 62, 2: 11, 3: 1, 4: 3, 5: 2, 6: 1, 7: 1,
	8: 219, 9: 1974, 10: 10027, 11: 2595, 12: 2,
}

var dojCourtPages = []string{
	"https://www.justice.gov/epstein/court-records/giuffre-v-maxwell-no-115-cv-07433-sdny-2015",
	"https://www.justice.gov/usao-sdny/united-states-v-jeffrey-epstein",
	"https://www.justice.gov/usao-sdny/united-states-v-ghislaine-maxwell",
}

func (s *DOJ) Name() string       { return "doj" }
func (s *DOJ) RateLimit() float64 { return s.rateLimit }

func (s *DOJ) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate)
	errs := make(chan error)

	go func() {
		defer close(out)
		defer close(errs)

		for dsNum := 1; dsNum <= 12; dsNum++ {
			maxPage := dojDataSetPages[dsNum]
			if maxPage == 0 {
				maxPage = 1
			}
			stateKey := fmt.Sprintf("ds%d_page", dsNum)
			startPage := intFromState(state, stateKey, 0)

			slog.Info("doj: data set range", slog.Int("data_set", dsNum), slog.Int("start_page", startPage), slog.Int("max_page", maxPage))

			for page := startPage; page <= maxPage; page++ {
				select {
				case <-ctx.Done():
					return
				default:
				}

				base := fmt.Sprintf(dojDataSetBase, dsNum)
				pageURL := base
				if page != 0 {
					pageURL = fmt.Sprintf("%s?page=%d", base, page)
				}

				html, err := s.fetcher.FetchTextOpts(ctx, pageURL, s.Name(), s.rateLimit, fetcher.FetchOptions{Cooldown429: dojRateLimit429Cooldown})
				count := 0
				if err != nil {
					errs <- fmt.Errorf("doj data set %d page %d: %w", dsNum, page, err)
				} else {
					for _, cand := range extractPDFLinks(html, pageURL, dsNum) {
						out <- cand
						count++
					}
				}

				if count == 0 && page > 0 {
					slog.Info("doj: empty page, stopping data set", slog.Int("data_set", dsNum), slog.Int("page", page))
					state[stateKey] = page
					_ = save(ctx, state)
					break
				}

				state[stateKey] = page
				_ = save(ctx, state)
			}
		}

		for _, pageURL := range dojCourtPages {
			html, err := s.fetcher.FetchTextOpts(ctx, pageURL, s.Name(), s.rateLimit, fetcher.FetchOptions{Cooldown429: dojRateLimit429Cooldown})
			if err != nil {
				errs <- fmt.Errorf("doj court page %s: %w", pageURL, err)
				continue
			}
			for _, cand := range extractPDFLinks(html, pageURL, 0) {
				out <- cand
			}
		}
	}()

	return out, errs
}

// extractPDFLinks parses html with goquery and returns every anchor whose
// href ends in ".pdf" (case-insensitive), resolved against baseURL. dsNum
// of 0 means "not part of a numbered data set" (the fixed court pages).
func extractPDFLinks(html, baseURL string, dsNum int) []adapter.Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var out []adapter.Candidate
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

		sourceID := fmt.Sprintf("court-%s", filename)
		title := fmt.Sprintf("DOJ Court: %s", filename)
		if dsNum != 0 {
			sourceID = fmt.Sprintf("ds%d-%s", dsNum, filename)
			title = fmt.Sprintf("DOJ DataSet %d: %s", dsNum, filename)
		}

		out = append(out, adapter.Candidate{
			URL: resolved,
			Metadata: map[string]any{
				"source_id": sourceID,
				"filename":  filename,
				"title":     title,
				"dataset":   dsNum,
			},
		})
	})

	return out
}

func intFromState(state map[string]any, key string, def int) int {
	v, ok := state[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}
