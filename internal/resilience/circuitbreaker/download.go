package circuitbreaker

import "time"

// PerSourceDownloadConfig returns a circuit breaker configuration scoped to
// a single source adapter's downloads. Each source gets its own breaker so a
// single struggling host cannot starve the others out of retry budget.
func PerSourceDownloadConfig(source string) Config {
	return Config{
		Name:             "download:" + source,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          120 * time.Second,
		FailureThreshold: 0.7,
		MinRequests:      5,
	}
}
