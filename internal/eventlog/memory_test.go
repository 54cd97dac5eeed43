package eventlog_test

import (
	"testing"

	"github.com/crawlkit/docscrawler/internal/eventlog"
	"github.com/crawlkit/docscrawler/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLog_AppendAssignsMonotonicIDsPerJob(t *testing.T) {
	log := eventlog.NewMemoryLog()

	first, err := log.Append("job-1", "user-1", eventlog.TypeDiscoveryStarted, store.EventPayload{})
	require.NoError(t, err)
	second, err := log.Append("job-1", "user-1", eventlog.TypeProgress, store.EventPayload{Progress: &store.ProgressPayload{Processed: 1}})
	require.NoError(t, err)
	otherJobFirst, err := log.Append("job-2", "user-1", eventlog.TypeDiscoveryStarted, store.EventPayload{})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.EventID)
	assert.Equal(t, uint64(2), second.EventID)
	assert.Equal(t, uint64(1), otherJobFirst.EventID)
}

func TestMemoryLog_ReadSinceNilReplaysFromStart(t *testing.T) {
	log := eventlog.NewMemoryLog()
	log.Append("job-1", "user-1", eventlog.TypeDiscoveryStarted, store.EventPayload{})
	log.Append("job-1", "user-1", eventlog.TypeProgress, store.EventPayload{})

	all, err := log.ReadSince("job-1", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestMemoryLog_ReadSinceExcludesDeliveredEvents(t *testing.T) {
	log := eventlog.NewMemoryLog()
	first, _ := log.Append("job-1", "user-1", eventlog.TypeDiscoveryStarted, store.EventPayload{})
	log.Append("job-1", "user-1", eventlog.TypeProgress, store.EventPayload{})
	log.Append("job-1", "user-1", eventlog.TypeJobCompleted, store.EventPayload{})

	remaining, err := log.ReadSince("job-1", &first.EventID)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.True(t, eventlog.IsTerminal(remaining[len(remaining)-1].Type))
}
