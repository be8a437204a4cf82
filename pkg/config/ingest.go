package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceSettings is the per-source override block in an ingestion config
// file: whether the source runs at all, its rate limit, and (for sources
// that need one) an API token.
type SourceSettings struct {
	// Enabled is a pointer so a source entry that omits the key still
	// defaults to enabled, matching the dataclass default it's ported from.
	Enabled     *bool   `yaml:"enabled"`
	RateLimit   float64 `yaml:"rate_limit"`
	Description string  `yaml:"description"`
	APIToken    string  `yaml:"api_token"`
}

// DownloadSettings mirrors fetcher.DownloadConfig's tunables as they appear
// in the config file, before being converted to fetcher.DownloadConfig.
type DownloadSettings struct {
	Timeout          int     `yaml:"timeout"`
	MaxRetries       int     `yaml:"max_retries"`
	BackoffFactor    float64 `yaml:"backoff_factor"`
	DefaultRateLimit float64 `yaml:"default_rate_limit"`
	UserAgent        string  `yaml:"user_agent"`
	MaxFileSize      int64   `yaml:"max_file_size"`
}

// ExtractionSettings mirrors extractor.Config as it appears in the config
// file.
type ExtractionSettings struct {
	Enabled         bool   `yaml:"enabled"`
	MinCharsPerPage int    `yaml:"min_chars_per_page"`
	OCRDPI          int    `yaml:"ocr_dpi"`
	TesseractLang   string `yaml:"tesseract_lang"`
	// Concurrency bounds how many documents --extract-only processes at
	// once. Each extraction is independent (own PDF, own subprocess), so
	// this is safe to raise above 1 unlike the sequential-by-default
	// adapter run path.
	Concurrency int `yaml:"concurrency"`
}

// IngestConfig is the root ingestion engine configuration: where documents
// and the catalog database live, and the per-concern settings blocks above.
// Unknown top-level and nested keys are ignored rather than rejected, so a
// config file written for a newer version of the engine still loads.
type IngestConfig struct {
	DataDir string `yaml:"data_dir"`
	DBPath  string `yaml:"db_path"`
	LogDir  string `yaml:"log_dir"`

	Download   DownloadSettings          `yaml:"download"`
	Sources    map[string]SourceSettings `yaml:"sources"`
	Extraction ExtractionSettings        `yaml:"extraction"`

	// MetricsAddr, when non-empty, is the listen address for the optional
	// Prometheus /metrics endpoint. It is never set from the config file
	// itself (there is no metrics.addr key); it is populated purely from
	// the METRICS_ADDR environment variable by the cmd/ entry points, so a
	// bare CLI run pays no cost for the metrics server unless asked for it.
	MetricsAddr string `yaml:"-"`
}

// DefaultIngestConfig returns the ingestion engine's baked-in defaults,
// used for any field a config file leaves unset.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		DataDir: "data",
		DBPath:  "ingest.db",
		LogDir:  "logs",
		Download: DownloadSettings{
			Timeout:          120,
			MaxRetries:       3,
			BackoffFactor:    2.0,
			DefaultRateLimit: 2.0,
			UserAgent:        "document-ingest-bot/1.0 (Academic Research)",
			MaxFileSize:      524288000,
		},
		Sources: map[string]SourceSettings{},
		Extraction: ExtractionSettings{
			Enabled:         true,
			MinCharsPerPage: 50,
			OCRDPI:          300,
			TesseractLang:   "eng",
			Concurrency:     4,
		},
	}
}

// LoadIngestConfig reads and parses a YAML config file at path, filling in
// DefaultIngestConfig for anything the file doesn't set. A missing file is
// not an error: the engine runs on defaults alone.
func LoadIngestConfig(path string) (IngestConfig, error) {
	cfg := DefaultIngestConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceSettings{}
	}

	return cfg, nil
}

// SourceRateLimit returns the configured rate limit for a source, falling
// back to the download block's default when the source has no override.
func (c *IngestConfig) SourceRateLimit(name string) float64 {
	if s, ok := c.Sources[name]; ok && s.RateLimit > 0 {
		return s.RateLimit
	}
	return c.Download.DefaultRateLimit
}

// SourceEnabled reports whether a source should run. Sources with no entry
// in the config file are enabled by default.
func (c *IngestConfig) SourceEnabled(name string) bool {
	s, ok := c.Sources[name]
	if !ok || s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// SourceAPIToken returns the configured API token for a source, or "" if
// none is set.
func (c *IngestConfig) SourceAPIToken(name string) string {
	return c.Sources[name].APIToken
}
