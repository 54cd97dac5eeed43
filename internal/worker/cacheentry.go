package worker

import (
	"encoding/json"

	"github.com/crawlkit/docscrawler/internal/store"
)

// encodeCacheEntry/decodeCacheEntry serialize a UrlCacheEntry for the
// cache.Cache string-valued port, the same JSON-over-string approach
// internal/robots.RobotsFetcher uses for its own cached results.
func encodeCacheEntry(entry store.UrlCacheEntry) string {
	data, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeCacheEntry(raw string) (store.UrlCacheEntry, bool) {
	var entry store.UrlCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return store.UrlCacheEntry{}, false
	}
	return entry, true
}
