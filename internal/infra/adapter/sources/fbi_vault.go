package sources

import (
	"context"
	"fmt"

	"epsteindata/internal/infra/adapter"
)

// FBIVault yields the 22-part FBI Vault FOIA release. Part 22 carries a
// "(Final)" suffix in its URL that the other 21 parts don't.
type FBIVault struct{}

const fbiVaultTotalParts = 22

func fbiVaultURL(part int) string {
	if part == 22 {
		return "https://vault.fbi.gov/jeffrey-epstein/Jeffrey%20Epstein%20Part%2022%20(Final)/at_download/file"
	}
	return fmt.Sprintf("https://vault.fbi.gov/jeffrey-epstein/Jeffrey%%20Epstein%%20Part%%20%02d/at_download/file", part)
}

func (s *FBIVault) Name() string { return "fbi_vault" }

func (s *FBIVault) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate, fbiVaultTotalParts)
	errs := make(chan error)

	for part := 1; part <= fbiVaultTotalParts; part++ {
		out <- adapter.Candidate{
			URL: fbiVaultURL(part),
			Metadata: map[string]any{
				"source_id": fmt.Sprintf("part-%02d", part),
				"filename":  fmt.Sprintf("jeffrey-epstein-fbi-vault-part-%02d.pdf", part),
				"title":     fmt.Sprintf("Jeffrey Epstein FBI Vault Part %d of 22", part),
				"part":      part,
			},
		}
	}
	close(out)
	close(errs)
	return out, errs
}
