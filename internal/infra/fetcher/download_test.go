package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDownloadConfig() DownloadConfig {
	cfg := DefaultDownloadConfig()
	cfg.DenyPrivateIPs = false // httptest servers bind loopback addresses
	cfg.MaxRetries = 1
	return cfg
}

func TestFetcher_Download_StreamsAndHashes(t *testing.T) {
	payload := []byte("%PDF-1.4 fake pdf body for hashing")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	f := New(testDownloadConfig())
	destDir := t.TempDir()

	result, err := f.Download(context.Background(), server.URL, destDir, "doc.pdf", "testsource", 0)
	require.NoError(t, err)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), result.SHA256)
	assert.Equal(t, int64(len(payload)), result.FileSize)
	assert.Equal(t, filepath.Join(destDir, "doc.pdf"), result.LocalPath)

	onDisk, err := os.ReadFile(result.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)
}

func TestFetcher_Download_RejectsHTMLMasqueradingAsPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not found</html>"))
	}))
	defer server.Close()

	f := New(testDownloadConfig())
	_, err := f.Download(context.Background(), server.URL+"/file.pdf", t.TempDir(), "file.pdf", "testsource", 0)
	assert.Error(t, err)
}

func TestFetcher_Download_RejectsOversizedFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "999999999999")
		_, _ = w.Write([]byte("small body"))
	}))
	defer server.Close()

	cfg := testDownloadConfig()
	cfg.MaxFileSize = 1024
	f := New(cfg)

	_, err := f.Download(context.Background(), server.URL, t.TempDir(), "big.zip", "testsource", 0)
	assert.Error(t, err)
}

func TestFetcher_Download_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testDownloadConfig()
	f := New(cfg)

	_, err := f.Download(context.Background(), server.URL, t.TempDir(), "missing.pdf", "testsource", 0)
	assert.Error(t, err)
}

func TestFetcher_FetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"id": 1}, {"id": 2}]}`))
	}))
	defer server.Close()

	f := New(testDownloadConfig())

	var out struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	require.NoError(t, f.FetchJSON(context.Background(), server.URL, "testsource", 0, nil, &out))
	assert.Len(t, out.Results, 2)
	assert.Equal(t, 1, out.Results[0].ID)
}

func TestFetcher_FetchJSON_SendsHeaders(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	f := New(testDownloadConfig())
	var out map[string]any
	headers := map[string]string{"Authorization": "Token abc123"}
	require.NoError(t, f.FetchJSON(context.Background(), server.URL, "testsource", 0, headers, &out))
	assert.Equal(t, "Token abc123", gotAuth)
}

func TestFetcher_FetchText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain text body"))
	}))
	defer server.Close()

	f := New(testDownloadConfig())
	text, err := f.FetchText(context.Background(), server.URL, "testsource", 0)
	require.NoError(t, err)
	assert.Equal(t, "plain text body", text)
}

func TestFetcher_FetchTextOpts_CooldownRetriesOnceOn429(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("cleared"))
	}))
	defer server.Close()

	f := New(testDownloadConfig())
	text, err := f.FetchTextOpts(context.Background(), server.URL, "testsource", 0, FetchOptions{Cooldown429: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "cleared", text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&requests))
}

func TestStaticCookieJar_ScopesCookiesToHostSuffix(t *testing.T) {
	jar := &staticCookieJar{hostSuffix: "justice.gov", cookies: map[string]string{"justiceGovAgeVerified": "true"}}

	justiceURL, _ := url.Parse("https://www.justice.gov/epstein")
	otherURL, _ := url.Parse("https://www.courtlistener.com/docket/1")

	assert.NotEmpty(t, jar.Cookies(justiceURL))
	assert.Empty(t, jar.Cookies(otherURL))
}
