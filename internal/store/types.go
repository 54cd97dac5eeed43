// Package store defines the crawl engine's durable domain model: jobs,
// crawled pages, content chunks, the cross-job URL cache entry shape,
// and event log entries. It is a data-shape package; persistence
// engines (memory, Badger) live alongside it and satisfy the Store
// interface in store.go.
package store

import (
	"fmt"
	"time"
)

// JobStatus is one of the five terminal/non-terminal states a Job can
// occupy. Transitions are monotone: see JobStatus.CanTransitionTo.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the state machine's DAG: pending can only
// start processing or die before it ever admits a URL; processing is
// the only state that can reach a terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobProcessing || next == JobFailed || next == JobCancelled
	case JobProcessing:
		return next == JobCompleted || next == JobFailed || next == JobCancelled
	default:
		return false
	}
}

// PageStatus classifies the outcome of fetching a single URL.
type PageStatus string

const (
	PageCrawled PageStatus = "crawled"
	PageError   PageStatus = "error"
	PageSkipped PageStatus = "skipped"
)

// ProgressSummary is a Job's denormalized counters, advanced by atomic
// increments as workers finish tasks. total_words only counts words
// from pages that cleared the quality threshold.
type ProgressSummary struct {
	Processed  int `json:"processed"`
	Discovered int `json:"discovered"`
	Failed     int `json:"failed"`
	TotalWords int `json:"total_words"`
}

// JobConfig is the subset of config.Config that varies per job and
// must be frozen at submit time so a later config reload can't change
// a running job's admission rules mid-crawl.
type JobConfig struct {
	MaxPages         int  `json:"max_pages"`
	MaxDepth         int  `json:"max_depth"`
	QualityThreshold int  `json:"quality_threshold"`
	RespectRobots    bool `json:"respect_robots"`
	FollowSitemaps   bool `json:"follow_sitemaps"`
	ForceRefresh     bool `json:"force_refresh"`
}

// Job is a single crawl run. StateVersion is bumped on every write and
// is the optimistic-concurrency token callers may use to detect a
// stale read; Orchestrator additionally serializes writes with a
// per-job mutex so StateVersion here is a read-side invariant, not the
// only guard.
type Job struct {
	ID            string          `json:"id" boltholdKey:"ID"`
	UserID        string          `json:"user_id" boltholdIndex:"UserID"`
	SeedURL       string          `json:"seed_url"`
	Config        JobConfig       `json:"config"`
	Status        JobStatus       `json:"status" boltholdIndex:"Status"`
	StatusMessage string          `json:"status_message,omitempty"`
	StateVersion  uint64          `json:"state_version"`
	Progress      ProgressSummary `json:"progress_summary"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// CrawledPage is one fetched URL of one Job. PageKey(JobID, URLHash) is
// the unique storage key that serializes at-most-one insertion for a
// racing pair of workers.
type CrawledPage struct {
	ID           string     `json:"id" boltholdKey:"ID"`
	JobID        string     `json:"job_id" boltholdIndex:"JobID"`
	URL          string     `json:"url"`
	URLHash      string     `json:"url_hash"`
	Title        string     `json:"title"`
	Depth        int        `json:"depth"`
	HTTPStatus   int        `json:"http_status,omitempty"`
	Status       PageStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	QualityScore int        `json:"quality_score"`
	WordCount    int        `json:"word_count"`
	FromCache    bool       `json:"from_cache"`
	CrawledAt    time.Time  `json:"crawled_at"`
}

// PageKey is the unique (job_id, url_hash) storage key. It is used as
// the record key itself (rather than a separate uniqueness index) so
// the backing store's own insert-if-absent primitive is the
// serialization point the spec requires.
func PageKey(jobID, urlHash string) string {
	return jobID + ":" + urlHash
}

// PageContentChunk is the single content blob for a page. The schema
// allows future multi-chunk pages; this core always writes chunk 0.
type PageContentChunk struct {
	PageID      string `json:"page_id" boltholdKey:"PageID"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	ChunkIndex  int    `json:"chunk_index"`
	Method      string `json:"extraction_method"`
}

// UrlCacheEntry is the cross-job, per-user content cache value keyed by
// (user_id, url_hash). It is marshaled to JSON and stored through the
// generic cache.Cache port rather than given its own storage engine —
// the cache's TTL mechanics are identical regardless of payload shape.
type UrlCacheEntry struct {
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	Links        []string      `json:"links"`
	QualityScore int           `json:"quality_score"`
	WordCount    int           `json:"word_count"`
	CachedAt     time.Time     `json:"cached_at"`
	TTL          time.Duration `json:"ttl"`
}

// CacheKey is the (user_id, url_hash) key a UrlCacheEntry is stored
// under in the shared cache.Cache port.
func CacheKey(userID, urlHash string) string {
	return userID + ":" + urlHash
}

// QueueTask is one admission unit: a URL discovered or seeded for a
// job at a given depth, FIFO within the job.
type QueueTask struct {
	JobID      string    `json:"job_id"`
	URL        string    `json:"url"`
	Depth      int       `json:"depth"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// EventLogEntry is one append-only progress event. Payload is a sum
// type — exactly one field set, matching Type — rather than a
// free-form map: SPEC_FULL §4.6 names a concrete shape per event type,
// and a map loses that at compile time.
type EventLogEntry struct {
	EventID   uint64       `json:"event_id"`
	JobID     string       `json:"job_id" boltholdIndex:"JobID"`
	UserID    string       `json:"user_id"`
	Type      string       `json:"type"`
	Payload   EventPayload `json:"payload"`
	CreatedAt time.Time    `json:"created_at"`
}

// EventPayload holds the typed payload for exactly one event type per
// entry; every Append call sets only the field matching its eventType,
// the rest stay nil and drop out of the JSON encoding.
type EventPayload struct {
	DiscoveryStarted *DiscoveryStartedPayload `json:"discovery_started,omitempty"`
	URLsDiscovered   *URLsDiscoveredPayload   `json:"urls_discovered,omitempty"`
	URLCrawled       *URLCrawledPayload       `json:"url_crawled,omitempty"`
	BatchProgress    *BatchProgressPayload    `json:"batch_progress,omitempty"`
	Progress         *ProgressPayload         `json:"progress,omitempty"`
	BatchError       *BatchErrorPayload       `json:"batch_error,omitempty"`
	JobFailed        *JobFailedPayload        `json:"job_failed,omitempty"`
	JobCompleted     *JobCompletedPayload     `json:"job_completed,omitempty"`
}

// DiscoveryStartedPayload carries no fields; discovery_started exists
// only to mark the start of the discovery phase in the stream.
type DiscoveryStartedPayload struct{}

// URLsDiscoveredPayload is emitted per §4.7 step 5 whenever a
// non-empty batch of links clears link admission.
type URLsDiscoveredPayload struct {
	Count           int `json:"count"`
	Depth           int `json:"depth"`
	TotalDiscovered int `json:"total_discovered"`
}

// URLCrawledPayload reports the outcome of a single fetch attempt.
type URLCrawledPayload struct {
	URL           string `json:"url"`
	Success       bool   `json:"success"`
	HTTPStatus    int    `json:"http_status,omitempty"`
	ContentLength int    `json:"content_length,omitempty"`
	QualityScore  int    `json:"quality_score,omitempty"`
	FromCache     bool   `json:"from_cache"`
}

// BatchProgressPayload is the batched form of url_crawled a worker
// emits once per drained batch instead of once per URL.
type BatchProgressPayload struct {
	URLs []string `json:"urls"`
}

// ProgressPayload is a generic counter tick, reserved for callers that
// want a lighter-weight progress signal than url_crawled/batch_progress.
type ProgressPayload struct {
	Processed int `json:"processed"`
}

// BatchErrorPayload reports a non-fatal, batch-level failure (e.g. a
// queue op timeout) that does not fail the job.
type BatchErrorPayload struct {
	Error string `json:"error"`
}

// JobFailedPayload is emitted on every fatal transition to failed.
type JobFailedPayload struct {
	Error           string `json:"error"`
	TotalProcessed  int    `json:"totalProcessed"`
	TotalDiscovered int    `json:"totalDiscovered"`
}

// JobCompletedPayload is emitted once, on the pending/processing →
// completed transition.
type JobCompletedPayload struct {
	TotalProcessed  int `json:"totalProcessed"`
	TotalDiscovered int `json:"totalDiscovered"`
	TotalWords      int `json:"totalWords"`
}

// EventKey is the storage key for an event log entry: event_id is only
// monotonic per job, so the record key must be qualified by job id to
// stay globally unique across jobs sharing one store.
func EventKey(jobID string, eventID uint64) string {
	return fmt.Sprintf("%s:%020d", jobID, eventID)
}
