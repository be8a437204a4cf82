package sources_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"epsteindata/internal/infra/adapter/sources"
	"epsteindata/internal/infra/fetcher"
)

func TestEpsteinGraph_Discover_YieldsNothing(t *testing.T) {
	f := fetcher.New(fetcher.DefaultDownloadConfig())
	s := sources.NewEpsteinGraph(f, 2.0)

	out, errs := s.Discover(context.Background(), nil, func(ctx context.Context, state map[string]any) error { return nil })

	_, outOpen := <-out
	_, errsOpen := <-errs

	assert.False(t, outOpen, "candidate channel should be closed immediately")
	assert.False(t, errsOpen, "error channel should be closed immediately")
}

func TestEpsteinGraph_Name(t *testing.T) {
	f := fetcher.New(fetcher.DefaultDownloadConfig())
	s := sources.NewEpsteinGraph(f, 2.0)
	assert.Equal(t, "epsteingraph", s.Name())
}
