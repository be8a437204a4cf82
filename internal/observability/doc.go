// Package observability provides structured logging for the ingestion engine.
//
// Subpackages:
//   - logging: Structured logging utilities with slog, including run ID propagation.
//
// Example usage:
//
//	import "epsteindata/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("ingest run started")
//	}
package observability
