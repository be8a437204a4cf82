package retry

import "time"

// DocumentDownloadConfig returns retry configuration for document fetches.
// File hosts in this domain are often flaky government/FOIA servers behind
// bot-mitigation proxies; a few short, jittered retries recover most
// transient failures without holding a source's rate limit slot for long.
func DocumentDownloadConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}
