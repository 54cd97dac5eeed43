// Package eventlog implements C6: the durable, ordered, append-only log
// of per-job progress events that the subscription bridge (C9) streams
// to clients. It follows internal/store's storage-port shape — an
// interface with a Badger-backed and an in-memory adapter — the same
// pattern internal/cache and internal/store already use.
package eventlog

import "github.com/crawlkit/docscrawler/internal/store"

// Event type constants, the closed set SPEC_FULL §4.6 enumerates.
const (
	TypeStreamConnected  = "stream_connected"
	TypeDiscoveryStarted = "discovery_started"
	TypeURLsDiscovered   = "urls_discovered"
	TypeURLCrawled       = "url_crawled"
	TypeBatchProgress    = "batch_progress"
	TypeProgress         = "progress"
	TypeBatchError       = "batch_error"
	TypeJobFailed        = "job_failed"
	TypeJobCompleted     = "job_completed"
)

// terminalTypes mark the end of a job's event stream; a subscriber
// that has delivered one of these never needs to wait for more.
var terminalTypes = map[string]struct{}{
	TypeJobFailed:    {},
	TypeJobCompleted: {},
}

// IsTerminal reports whether eventType ends a job's event stream.
func IsTerminal(eventType string) bool {
	_, ok := terminalTypes[eventType]
	return ok
}

// Log is the append/read-since port the orchestrator and worker pool
// write through and the subscription bridge reads from.
type Log interface {
	// Append assigns the next per-job monotonic event id, persists the
	// entry, and returns it durably written — callers may rely on the
	// event being readable by any subsequent ReadSince once Append
	// returns, per §4.6's durable-before-return requirement.
	Append(jobID, userID, eventType string, payload store.EventPayload) (store.EventLogEntry, error)

	// ReadSince returns jobID's events with EventID > afterEventID, in
	// ascending order. A nil afterEventID replays the entire log from
	// the start, per the spec's reconnect-without-last-id decision.
	ReadSince(jobID string, afterEventID *uint64) ([]store.EventLogEntry, error)

	Close() error
}
