package eventlog

import (
	"sync"
	"time"

	"github.com/crawlkit/docscrawler/internal/store"
)

// MemoryLog is an in-process Log backed by a mutex-protected slice per
// job, grounded on internal/frontier.CrawlFrontier's map-of-mutex shape.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string][]store.EventLogEntry
	nextID  map[string]uint64
}

// NewMemoryLog constructs an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		entries: make(map[string][]store.EventLogEntry),
		nextID:  make(map[string]uint64),
	}
}

func (l *MemoryLog) Append(jobID, userID, eventType string, payload store.EventPayload) (store.EventLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID[jobID]++
	entry := store.EventLogEntry{
		EventID:   l.nextID[jobID],
		JobID:     jobID,
		UserID:    userID,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	l.entries[jobID] = append(l.entries[jobID], entry)
	return entry, nil
}

func (l *MemoryLog) ReadSince(jobID string, afterEventID *uint64) ([]store.EventLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := l.entries[jobID]
	if afterEventID == nil {
		out := make([]store.EventLogEntry, len(all))
		copy(out, all)
		return out, nil
	}

	var out []store.EventLogEntry
	for _, e := range all {
		if e.EventID > *afterEventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *MemoryLog) Close() error { return nil }
