package metadata

import (
	"time"
)

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause is for observability only.
	 - It must never be used to derive retry, continuation, or abort decisions.
	 - Any use of metadata.ErrorCause outside logging, metrics, or reporting is a design violation.
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry, continuation, or abort decisions.
	 - ErrorCause values MUST have stable, package-agnostic semantics.
	 - Pipeline packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.
	Non-goals:
	 - ErrorCause does not encode severity.
	 - ErrorCause does not imply retryability.
	 - ErrorCause does not imply crawl termination.
	 - ErrorCause does not imply correctness of downstream behavior.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

Meaning:
  - The failure does not map cleanly to any known category.
  - Used as a safe fallback.

# CauseNetworkFailure

Meaning:
  - Failure caused by network transport or remote availability.

# CausePolicyDisallow

Meaning:
  - Crawling was disallowed by an explicit policy or rule.

# CauseContentInvalid

Meaning:
  - Content was fetched but could not be processed meaningfully.

# CauseStorageFailure

Meaning:
  - Failure while persisting crawl artifacts.

# CauseInvariantViolation

Meaning:
  - A system-level invariant was violated.

# CauseRetryFailure

Meaning:
  - An operation exhausted its retry budget without succeeding.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseInvariantViolation
	CauseRetryFailure
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

// ArtifactKind classifies what RecordArtifact wrote: a converted markdown
// page, or a downloaded asset referenced by one.
type ArtifactKind string

const (
	ArtifactMarkdown ArtifactKind = "markdown"
	ArtifactAsset    ArtifactKind = "asset"
)

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime       AttributeKey = "time"
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrPath       AttributeKey = "path"
	AttrDepth      AttributeKey = "depth"
	AttrField      AttributeKey = "field"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrAssetURL   AttributeKey = "asset_url"
	AttrWritePath  AttributeKey = "write_path"
	AttrMessage    AttributeKey = "message"
)

// MetadataSink is the single observability port every pipeline stage
// writes through. It accepts only primitive values, timestamps,
// durations, and identifiers — never live objects — so that recording
// an event can never hold a reference that outlives the event itself.
type MetadataSink interface {
	// RecordFetch logs a completed page fetch attempt.
	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
		crawlDepth int,
	)

	// RecordAssetFetch logs a completed asset (image, etc.) fetch attempt.
	RecordAssetFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		retryCount int,
	)

	// RecordError logs a classified, recoverable-or-fatal failure. cause
	// is observational only: it shapes the log line, nothing more.
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	// RecordArtifact logs a successfully written output file.
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// CrawlFinalizer records the terminal, derived summary of a completed
// crawl. It is computed by the scheduler after crawl termination and
// recorded exactly once; it must not influence scheduling, retries, or
// crawl termination, and must be constructed without reading metadata.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(
		totalPages int,
		totalErrors int,
		totalAssets int,
		duration time.Duration,
	)
}

// NoopSink discards every event. Embed it in a test double to get
// default no-op behavior for methods the test doesn't care about.
type NoopSink struct{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)    {}
func (NoopSink) RecordAssetFetch(string, int, time.Duration, int)            {}
func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}
func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute)            {}
func (NoopSink) RecordFinalCrawlStats(int, int, int, time.Duration)          {}
