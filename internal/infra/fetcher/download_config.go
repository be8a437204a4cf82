package fetcher

import (
	"fmt"
	"time"

	"epsteindata/pkg/config"
)

// DownloadConfig holds the configuration for the document fetcher: rate
// limiting, retry behavior, and the guards applied to every streamed
// download.
type DownloadConfig struct {
	// UserAgent is sent on every request.
	UserAgent string

	// Timeout bounds a single HTTP request/response cycle.
	Timeout time.Duration

	// DefaultRateLimit is the minimum number of seconds between two
	// requests to the same source, used when a source doesn't set its own.
	DefaultRateLimit float64

	// MaxRetries is the number of download attempts before giving up.
	MaxRetries int

	// BackoffFactor is the multiplier of the exponential backoff between
	// download retries: waits start at 1s and grow by this factor, capped at
	// 8s, each with up to 20% added jitter.
	BackoffFactor float64

	// MaxFileSize rejects downloads whose Content-Length (or observed
	// streamed size) exceeds this many bytes.
	MaxFileSize int64

	// DenyPrivateIPs blocks requests to loopback/private/link-local hosts.
	DenyPrivateIPs bool

	// ExtraCookies are sent, together with the built-in
	// justiceGovAgeVerified age-gate cookie, on requests to justice.gov hosts only. DOJ's bot-mitigation
	// front end (Akamai's ak_bmsc, and a Queue-It waiting-room token) will
	// otherwise bounce automated clients to a human-verification page; a
	// browser session's cookie values can be supplied here to pass through.
	ExtraCookies map[string]string
}

// DefaultDownloadConfig returns the fetcher's built-in defaults. Its Timeout
// (60s) and DefaultRateLimit (1.0s) differ from the ingestion config file
// defaults in pkg/config (120s and 2.0s).
func DefaultDownloadConfig() DownloadConfig {
	return DownloadConfig{
		UserAgent:        "Mozilla/5.0 (compatible; document-ingest-bot/1.0)",
		Timeout:          60 * time.Second,
		DefaultRateLimit: 1.0,
		MaxRetries:       3,
		BackoffFactor:    2.0,
		MaxFileSize:      500 * 1024 * 1024, // 500MB
		DenyPrivateIPs:   true,
	}
}

// Validate checks that the configuration is internally consistent.
func (c *DownloadConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.DefaultRateLimit < 0 {
		return fmt.Errorf("default rate limit must be non-negative, got %v", c.DefaultRateLimit)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", c.MaxFileSize)
	}
	return nil
}

// LoadDownloadConfigFromEnv loads fetcher configuration from environment
// variables, falling back to DefaultDownloadConfig for anything unset.
func LoadDownloadConfigFromEnv() (DownloadConfig, error) {
	cfg := DefaultDownloadConfig()

	cfg.UserAgent = config.GetEnvString("DOWNLOAD_USER_AGENT", cfg.UserAgent)
	cfg.Timeout = config.GetEnvDuration("DOWNLOAD_TIMEOUT", cfg.Timeout)
	cfg.MaxRetries = config.GetEnvInt("DOWNLOAD_MAX_RETRIES", cfg.MaxRetries)
	cfg.MaxFileSize = int64(config.GetEnvInt("DOWNLOAD_MAX_FILE_SIZE", int(cfg.MaxFileSize)))
	cfg.DenyPrivateIPs = config.GetEnvBool("DOWNLOAD_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs)

	cfg.ExtraCookies = map[string]string{}
	if v := config.GetEnvString("DOJ_COOKIE_AK_BMSC", ""); v != "" {
		cfg.ExtraCookies["ak_bmsc"] = v
	}
	if v := config.GetEnvString("DOJ_COOKIE_QUEUE_IT", ""); v != "" {
		cfg.ExtraCookies["QueueITAccepted-SDFrts345E-V3_usdojfiles"] = v
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("download configuration validation failed: %w", err)
	}
	return cfg, nil
}
