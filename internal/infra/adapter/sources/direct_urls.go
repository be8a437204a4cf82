// Package sources holds the concrete document source adapters.
package sources

import (
	"context"

	"epsteindata/internal/infra/adapter"
)

// DirectURLs yields a small curated list of well-known, individually
// verified document URLs that don't belong to any larger crawlable index.
type DirectURLs struct{}

type directURLEntry struct {
	url      string
	sourceID string
	filename string
	title    string
}

var directURLDocuments = []directURLEntry{
	{
		url:      "https://www.justice.gov/usao-sdny/press-release/file/1180481/download",
		sourceID: "sdny-indictment",
		filename: "epstein-sdny-indictment-2019.pdf",
		title:    "SDNY Indictment of Jeffrey Epstein (2019)",
	},
	{
		url:      "https://www.justice.gov/usao-sdny/press-release/file/1291481/download",
		sourceID: "maxwell-indictment",
		filename: "maxwell-indictment-2020.pdf",
		title:    "Indictment of Ghislaine Maxwell (2020)",
	},
	{
		url:      "https://www.justice.gov/usao-sdny/press-release/file/1380016/download",
		sourceID: "maxwell-superseding",
		filename: "maxwell-superseding-indictment-2021.pdf",
		title:    "Superseding Indictment of Ghislaine Maxwell (2021)",
	},
	{
		url:      "https://oig.justice.gov/sites/default/files/reports/24-043.pdf",
		sourceID: "bop-death-report",
		filename: "doj-oig-epstein-death-report.pdf",
		title:    "DOJ OIG Report on Epstein Death at MCC",
	},
	{
		url:      "https://assets.documentcloud.org/documents/1507315/epstein-flight-manifests.pdf",
		sourceID: "flight-logs",
		filename: "epstein-flight-manifests.pdf",
		title:    "Epstein Flight Manifests / Logs",
	},
	{
		url:      "https://assets.documentcloud.org/documents/1508273/jeffrey-epsteins-little-black-book-redacted.pdf",
		sourceID: "black-book",
		filename: "epstein-little-black-book-redacted.pdf",
		title:    "Jeffrey Epstein's Little Black Book (Redacted)",
	},
	{
		url:      "https://assets.documentcloud.org/documents/6250552/Epstein-Police-Report.pdf",
		sourceID: "pb-police-report",
		filename: "epstein-palm-beach-police-report.pdf",
		title:    "Palm Beach Police Report — Jeffrey Epstein",
	},
	{
		url:      "https://assets.documentcloud.org/documents/1508967/non-prosecution-agreement.pdf",
		sourceID: "npa-2007",
		filename: "epstein-non-prosecution-agreement-2007.pdf",
		title:    "Epstein Non-Prosecution Agreement (2007)",
	},
}

func (s *DirectURLs) Name() string { return "direct_urls" }

func (s *DirectURLs) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate, len(directURLDocuments))
	errs := make(chan error)

	for _, doc := range directURLDocuments {
		out <- adapter.Candidate{
			URL: doc.url,
			Metadata: map[string]any{
				"source_id": doc.sourceID,
				"filename":  doc.filename,
				"title":     doc.title,
			},
		}
	}
	close(out)
	close(errs)
	return out, errs
}
