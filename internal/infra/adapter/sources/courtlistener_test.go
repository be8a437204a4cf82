package sources_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epsteindata/internal/infra/adapter/sources"
	"epsteindata/internal/infra/fetcher"
)

func TestCourtListener_Discover_NoTokenSkipsWithError(t *testing.T) {
	f := fetcher.New(fetcher.DefaultDownloadConfig())
	s := sources.NewCourtListener(f, 1.0, "")

	out, errs := s.Discover(context.Background(), nil, func(ctx context.Context, state map[string]any) error { return nil })

	select {
	case cand, ok := <-out:
		t.Fatalf("expected no candidates when no token is configured, got %+v (ok=%v)", cand, ok)
	case err, ok := <-errs:
		require.True(t, ok)
		assert.Contains(t, err.Error(), "no API token configured")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for discover to report the missing-token error")
	}
}

func TestCourtListener_NameAndRateLimit(t *testing.T) {
	f := fetcher.New(fetcher.DefaultDownloadConfig())
	s := sources.NewCourtListener(f, 0.75, "tok")

	assert.Equal(t, "courtlistener", s.Name())
	assert.Equal(t, 0.75, s.RateLimit())
}
