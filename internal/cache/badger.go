package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// badgerRecord is the persisted shape of a cache entry. ExpireAt is a
// zero time.Time for entries that never expire.
type badgerRecord struct {
	Key      string `boltholdKey:"Key"`
	Value    string
	ExpireAt time.Time
}

// BadgerCache is a durable Cache adapter backed by an embedded BadgerDB
// store via badgerhold, for caches that must survive a process restart
// (e.g. the sitemap origin cache across crawler redeploys).
type BadgerCache struct {
	store *badgerhold.Store
}

// NewBadgerCache opens (creating if necessary) a badgerhold store at
// dir and returns a Cache backed by it.
func NewBadgerCache(dir string) (*BadgerCache, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, err
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Options = options.Options.WithLogger(nil)

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, err
	}

	return &BadgerCache{store: store}, nil
}

func (c *BadgerCache) Get(key string) (string, bool) {
	var record badgerRecord
	if err := c.store.Get(key, &record); err != nil {
		return "", false
	}

	if !record.ExpireAt.IsZero() && time.Now().After(record.ExpireAt) {
		_ = c.store.Delete(key, &badgerRecord{})
		return "", false
	}
	return record.Value, true
}

func (c *BadgerCache) Put(key string, value string, ttl time.Duration) {
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	record := badgerRecord{Key: key, Value: value, ExpireAt: expireAt}
	_ = c.store.Upsert(key, &record)
}

func (c *BadgerCache) Close() error {
	return c.store.Close()
}

// IsNotFound reports whether err is the store's not-found sentinel,
// exposed for callers that want to distinguish a cold cache from a
// genuine I/O failure.
func IsNotFound(err error) bool {
	return err == badgerhold.ErrNotFound || err == badger.ErrKeyNotFound
}
