package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"epsteindata/internal/resilience/circuitbreaker"
	"epsteindata/internal/resilience/retry"
)

const streamChunkSize = 64 * 1024

// Fetcher is the rate-limited, retrying, resumable HTTP client used by every
// source adapter to both probe discovery endpoints and pull down documents.
// A single Fetcher is shared across all adapters in a run; per-source rate
// limiting and circuit breaking are keyed internally.
type Fetcher struct {
	client *http.Client
	cfg    DownloadConfig

	mu              sync.Mutex
	lastRequestTime map[string]time.Time

	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.CircuitBreaker
}

// dojCookieHostSuffix scopes the age-gate and bot-mitigation cookies below
// to justice.gov and its subdomains, so they never leak into requests
// against unrelated sources sharing this Fetcher (courtlistener,
// documentcloud, internet_archive, ...).
const dojCookieHostSuffix = "justice.gov"

// New constructs a Fetcher. The returned http.Client follows up to 10
// redirects and refuses any https->http redirect. It carries the justiceGovAgeVerified
// cookie (plus any configured Akamai/Queue-It bot-mitigation cookies),
// scoped to justice.gov hosts only.
func New(cfg DownloadConfig) *Fetcher {
	cookies := map[string]string{"justiceGovAgeVerified": "true"}
	for k, v := range cfg.ExtraCookies {
		cookies[k] = v
	}
	jar := &staticCookieJar{hostSuffix: dojCookieHostSuffix, cookies: cookies}

	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > 0 && via[0].URL.Scheme == "https" && req.URL.Scheme == "http" {
					return fmt.Errorf("refusing to follow https->http redirect to %s", req.URL)
				}
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		cfg:             cfg,
		lastRequestTime: make(map[string]time.Time),
		breakers:        make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// rateLimit blocks, if necessary, so that at least `rate` seconds have
// elapsed since the last request issued for this source.
func (f *Fetcher) rateLimit(source string, rate float64) {
	if rate <= 0 {
		return
	}
	f.mu.Lock()
	last, ok := f.lastRequestTime[source]
	f.mu.Unlock()

	if ok {
		elapsed := time.Since(last)
		wait := time.Duration(rate*float64(time.Second)) - elapsed
		if wait > 0 {
			time.Sleep(wait)
		}
	}

	f.mu.Lock()
	f.lastRequestTime[source] = time.Now()
	f.mu.Unlock()
}

func (f *Fetcher) breakerFor(source string) *circuitbreaker.CircuitBreaker {
	f.breakersMu.Lock()
	defer f.breakersMu.Unlock()
	cb, ok := f.breakers[source]
	if !ok {
		cb = circuitbreaker.New(circuitbreaker.PerSourceDownloadConfig(source))
		f.breakers[source] = cb
	}
	return cb
}

// Result describes the outcome of a successful streamed download.
type Result struct {
	LocalPath string
	SHA256    string
	FileSize  int64
}

// Download fetches url, rate-limiting and retrying per the fetcher's
// configuration, and streams the body to destDir/filename while computing a
// running SHA-256. It guards against HTML error pages masquerading as the
// expected binary payload and against responses exceeding MaxFileSize.
func (f *Fetcher) Download(ctx context.Context, rawURL, destDir, filename, source string, rate float64) (Result, error) {
	if err := validateURL(rawURL, f.cfg.DenyPrivateIPs); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create dest dir: %w", err)
	}
	localPath := filepath.Join(destDir, filename)

	var result Result
	cb := f.breakerFor(source)

	rc := retry.DocumentDownloadConfig()
	if f.cfg.MaxRetries > 0 {
		rc.MaxAttempts = f.cfg.MaxRetries
	}
	if f.cfg.BackoffFactor > 0 {
		rc.Multiplier = f.cfg.BackoffFactor
	}

	err := retry.WithBackoff(ctx, rc, func() error {
		f.rateLimit(source, rate)

		v, err := cb.Execute(func() (interface{}, error) {
			return f.streamDownload(ctx, rawURL, localPath)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState {
				slog.Warn("download circuit breaker open, skipping attempt",
					slog.String("source", source), slog.String("url", rawURL))
			}
			return err
		}
		result = v.(Result)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (f *Fetcher) streamDownload(ctx context.Context, rawURL, localPath string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, &retry.HTTPError{StatusCode: resp.StatusCode, Message: rawURL}
	}

	contentType := resp.Header.Get("Content-Type")
	lowerPath := strings.ToLower(localPath)
	if strings.Contains(contentType, "text/html") &&
		(strings.HasSuffix(lowerPath, ".pdf") || strings.HasSuffix(lowerPath, ".zip")) {
		return Result{}, fmt.Errorf("expected binary but got HTML (content-type: %s)", contentType)
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > f.cfg.MaxFileSize {
			return Result{}, fmt.Errorf("file too large: %d bytes", n)
		}
	}

	out, err := os.Create(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("create file: %w", err)
	}
	complete := false
	defer func() {
		out.Close()
		if !complete {
			os.Remove(localPath)
		}
	}()

	hasher := sha256.New()
	writer := io.MultiWriter(out, hasher)

	buf := make([]byte, streamChunkSize)
	var size int64
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := writer.Write(buf[:n]); werr != nil {
				return Result{}, fmt.Errorf("write chunk: %w", werr)
			}
			size += int64(n)
			if size > f.cfg.MaxFileSize {
				return Result{}, fmt.Errorf("file exceeded max size during download: %d bytes", size)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, readErr
		}
	}

	complete = true
	return Result{LocalPath: localPath, SHA256: hex.EncodeToString(hasher.Sum(nil)), FileSize: size}, nil
}

// FetchJSON issues a rate-limited GET and decodes the JSON response into out.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL, source string, rate float64, headers map[string]string, out any) error {
	body, err := f.fetchBody(ctx, rawURL, source, rate, FetchOptions{Headers: headers})
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode json from %s: %w", rawURL, err)
	}
	return nil
}

// FetchText issues a rate-limited GET and returns the response body as text.
func (f *Fetcher) FetchText(ctx context.Context, rawURL, source string, rate float64) (string, error) {
	return f.FetchTextOpts(ctx, rawURL, source, rate, FetchOptions{})
}

// FetchOptions carries per-call overrides for FetchTextOpts beyond the basic
// source/rate parameters: extra headers, and (for front ends that 429
// automated clients instead of responding normally) a fixed cooldown-then-
// retry-once policy applied before the request falls through to the
// Fetcher's regular exponential backoff.
type FetchOptions struct {
	Headers map[string]string
	// Cooldown429, if nonzero, sleeps this long and retries the request
	// exactly once more on an HTTP 429 before treating it as a normal
	// retryable error.
	Cooldown429 time.Duration
}

// FetchTextOpts is FetchText with per-call headers and 429-cooldown
// handling, used by sources whose front end needs custom headers or
// cooldown-then-retry handling (DOJ's Akamai/Queue-It bot mitigation needs
// both).
func (f *Fetcher) FetchTextOpts(ctx context.Context, rawURL, source string, rate float64, opts FetchOptions) (string, error) {
	body, err := f.fetchBody(ctx, rawURL, source, rate, opts)
	if err != nil {
		return "", err
	}
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body from %s: %w", rawURL, err)
	}
	return string(b), nil
}

func (f *Fetcher) fetchBody(ctx context.Context, rawURL, source string, rate float64, opts FetchOptions) (io.ReadCloser, error) {
	if err := validateURL(rawURL, f.cfg.DenyPrivateIPs); err != nil {
		return nil, err
	}
	if rate <= 0 {
		rate = f.cfg.DefaultRateLimit
	}

	cb := f.breakerFor(source)
	var body io.ReadCloser

	err := retry.WithBackoff(ctx, retry.WebScraperConfig(), func() error {
		f.rateLimit(source, rate)

		v, err := cb.Execute(func() (interface{}, error) {
			resp, err := f.doRequest(ctx, rawURL, opts.Headers)
			if err != nil {
				return nil, err
			}

			if resp.StatusCode == http.StatusTooManyRequests && opts.Cooldown429 > 0 {
				resp.Body.Close()
				slog.Warn("429 received, cooling down before single retry",
					slog.String("source", source), slog.String("url", rawURL), slog.Duration("cooldown", opts.Cooldown429))
				time.Sleep(opts.Cooldown429)
				resp, err = f.doRequest(ctx, rawURL, opts.Headers)
				if err != nil {
					return nil, err
				}
			}

			if resp.StatusCode >= 400 {
				resp.Body.Close()
				return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: rawURL}
			}
			return resp.Body, nil
		})
		if err != nil {
			return err
		}
		body = v.(io.ReadCloser)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// doRequest issues a single GET, applying the standard User-Agent plus any
// per-call header overrides.
func (f *Fetcher) doRequest(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	return f.client.Do(req)
}

// staticCookieJar is a minimal http.CookieJar that attaches a fixed set of
// cookies to requests whose host matches hostSuffix, matching the age-gate
// bypass used by the original scraper's HTTP client without leaking those
// cookies to every other source sharing this Fetcher's client.
type staticCookieJar struct {
	hostSuffix string
	cookies    map[string]string
}

func (j *staticCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {}

func (j *staticCookieJar) Cookies(u *url.URL) []*http.Cookie {
	host := u.Hostname()
	if host != j.hostSuffix && !strings.HasSuffix(host, "."+j.hostSuffix) {
		return nil
	}
	out := make([]*http.Cookie, 0, len(j.cookies))
	for name, value := range j.cookies {
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	return out
}
