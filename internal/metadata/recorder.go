package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/crawlkit/docscrawler/internal/logging"
)

// Recorder writes observational facts through a structured logger. It is
// the only place in the engine allowed to read an ErrorCause; everywhere
// else treats causes as opaque. Recorder itself must never be consulted
// by control flow — callers record after a decision has already been
// made, not before.
type Recorder struct {
	log zerolog.Logger
}

// NewRecorder builds a Recorder backed by a structured logger tagged
// with name (typically the worker or job identifier).
func NewRecorder(name string) Recorder {
	return Recorder{
		log: logging.New(nil, "info").With().Str("component", name).Logger(),
	}
}

// RecordFetch logs a completed page fetch attempt.
func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.log.Info().
		Str("url", fetchUrl).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int("crawl_depth", crawlDepth).
		Msg("fetch completed")
}

// RecordAssetFetch logs a completed asset fetch attempt.
func (r *Recorder) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
	r.log.Info().
		Str("url", fetchUrl).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Int("retry_count", retryCount).
		Msg("asset fetch completed")
}

// RecordError logs a classified failure under its ErrorCause. cause is
// observational only: it shapes the log line, nothing more.
func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute) {
	event := r.log.Warn().
		Str("package", packageName).
		Str("action", action).
		Str("cause", cause.String()).
		Str("error", details).
		Time("observed_at", observedAt)

	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	event.Msg("recoverable failure")
}

// RecordArtifact logs a successfully written output file.
func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	event := r.log.Info().
		Str("kind", string(kind)).
		Str("path", path)

	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	event.Msg("artifact written")
}

// RecordFinalCrawlStats logs a terminal crawl summary exactly once.
func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.log.Info().
		Int("total_pages", totalPages).
		Int("total_errors", totalErrors).
		Int("total_assets", totalAssets).
		Dur("duration", duration).
		Msg("crawl finished")
}
