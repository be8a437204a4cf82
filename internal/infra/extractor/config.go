package extractor

import (
	"fmt"

	"epsteindata/pkg/config"
)

// maxOCRPages bounds how many pages of a single document will be rasterized
// and OCR'd, so one huge scanned PDF cannot block the whole extraction pass.
const maxOCRPages = 50

// Config controls the extractor's native-vs-OCR decision and the OCR
// toolchain's parameters.
type Config struct {
	// MinCharsPerPage is the native-text length below which a page is
	// considered "probably scanned" and a candidate for OCR.
	MinCharsPerPage int

	// OCRDPI is the resolution pdftoppm renders pages at before tesseract
	// runs against them.
	OCRDPI int

	// TesseractLang is the -l language code passed to tesseract.
	TesseractLang string
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		MinCharsPerPage: 50,
		OCRDPI:          300,
		TesseractLang:   "eng",
	}
}

// Validate checks the configuration's ranges.
func (c *Config) Validate() error {
	if c.MinCharsPerPage < 0 {
		return fmt.Errorf("min chars per page must be non-negative, got %d", c.MinCharsPerPage)
	}
	if c.OCRDPI < 72 || c.OCRDPI > 1200 {
		return fmt.Errorf("ocr dpi must be between 72 and 1200, got %d", c.OCRDPI)
	}
	if c.TesseractLang == "" {
		return fmt.Errorf("tesseract lang must not be empty")
	}
	return nil
}

// LoadConfigFromEnv loads extractor configuration from environment
// variables, falling back to DefaultConfig for anything unset.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	cfg.MinCharsPerPage = config.GetEnvInt("EXTRACT_MIN_CHARS_PER_PAGE", cfg.MinCharsPerPage)
	cfg.OCRDPI = config.GetEnvInt("EXTRACT_OCR_DPI", cfg.OCRDPI)
	cfg.TesseractLang = config.GetEnvString("EXTRACT_TESSERACT_LANG", cfg.TesseractLang)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("extractor configuration validation failed: %w", err)
	}
	return cfg, nil
}
