// Package circuitbreaker provides circuit breaker implementations for database operations.
// This file implements the configuration used by the catalog store's write path.
package circuitbreaker

import (
	"time"
)

// DBConfig returns configuration optimized for database circuit breakers.
// Opens once at least 5 requests in the current 1-minute interval have all
// failed; stays open for 30 seconds.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3, // Allow 3 test requests in half-open state
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0, // Open only when every request in the interval failed
		MinRequests:      5,   // Require 5 failures before tripping
	}
}
