package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epsteindata/internal/infra/fetcher"
	"epsteindata/internal/usecase/ingest"
	"epsteindata/pkg/config"
)

func TestNewRegistry_RegistersEveryKnownSource(t *testing.T) {
	cfg := config.DefaultIngestConfig()
	f := fetcher.New(fetcher.DefaultDownloadConfig())

	r := ingest.NewRegistry(f, cfg)

	want := []string{
		"direct_urls", "fbi_vault", "doj", "house_oversight",
		"documentcloud", "internet_archive", "courtlistener", "torrents", "epsteingraph",
	}
	for _, name := range want {
		assert.NotNil(t, r.Get(name), "expected source %q to be registered", name)
	}
	assert.Len(t, r.Names(), len(want))
}

func TestRegistry_Get_UnknownReturnsNil(t *testing.T) {
	cfg := config.DefaultIngestConfig()
	f := fetcher.New(fetcher.DefaultDownloadConfig())
	r := ingest.NewRegistry(f, cfg)

	assert.Nil(t, r.Get("does-not-exist"))
}

func TestRegistry_SortedNames(t *testing.T) {
	cfg := config.DefaultIngestConfig()
	f := fetcher.New(fetcher.DefaultDownloadConfig())
	r := ingest.NewRegistry(f, cfg)

	names := r.SortedNames()
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i], "SortedNames must be alphabetically ordered")
	}
}
