package eventlog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/crawlkit/docscrawler/internal/store"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerLog is the durable Log adapter. Entries are keyed by
// store.EventKey(jobID, eventID), the same zero-padded composite key
// internal/store.EventLogEntry documents, so a range scan over a
// job's keys returns events in order without a secondary index.
type BadgerLog struct {
	db *badgerhold.Store

	mu     sync.Mutex
	nextID map[string]uint64
}

// NewBadgerLog opens (creating if necessary) a badgerhold store at dir.
func NewBadgerLog(dir string) (*BadgerLog, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Options = options.Options.WithLogger(nil)

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, err
	}
	return &BadgerLog{db: db, nextID: make(map[string]uint64)}, nil
}

func (l *BadgerLog) Append(jobID, userID, eventType string, payload store.EventPayload) (store.EventLogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id, err := l.nextEventID(jobID)
	if err != nil {
		return store.EventLogEntry{}, err
	}

	entry := store.EventLogEntry{
		EventID: id,
		JobID:   jobID,
		UserID:  userID,
		Type:    eventType,
		Payload: payload,
	}
	entry.CreatedAt = time.Now()

	key := store.EventKey(jobID, entry.EventID)
	if err := l.db.Insert(key, entry); err != nil {
		return store.EventLogEntry{}, err
	}
	l.nextID[jobID] = id
	return entry, nil
}

// nextEventID returns jobID's next monotonic id, seeding the in-memory
// counter from the highest persisted EventID on first use so a process
// restart doesn't reissue an id already durably written.
func (l *BadgerLog) nextEventID(jobID string) (uint64, error) {
	if last, ok := l.nextID[jobID]; ok {
		return last + 1, nil
	}

	var existing []store.EventLogEntry
	if err := l.db.Find(&existing, badgerhold.Where("JobID").Eq(jobID).SortBy("EventID").Reverse().Limit(1)); err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 1, nil
	}
	return existing[0].EventID + 1, nil
}

func (l *BadgerLog) ReadSince(jobID string, afterEventID *uint64) ([]store.EventLogEntry, error) {
	query := badgerhold.Where("JobID").Eq(jobID)
	if afterEventID != nil {
		query = query.And("EventID").Gt(*afterEventID)
	}

	var entries []store.EventLogEntry
	if err := l.db.Find(&entries, query.SortBy("EventID")); err != nil {
		return nil, err
	}
	return entries, nil
}

func (l *BadgerLog) Close() error {
	return l.db.Close()
}
