package subscribe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/docscrawler/internal/eventlog"
	"github.com/crawlkit/docscrawler/internal/store"
)

func TestBridge_ReplaysFromStartWhenLastEventIDNil(t *testing.T) {
	log := eventlog.NewMemoryLog()
	_, err := log.Append("job-1", "user-1", eventlog.TypeDiscoveryStarted, store.EventPayload{})
	require.NoError(t, err)
	_, err = log.Append("job-1", "user-1", eventlog.TypeURLsDiscovered, store.EventPayload{URLsDiscovered: &store.URLsDiscoveredPayload{Count: 3, Depth: 1, TotalDiscovered: 3}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := Bridge(ctx, log, "job-1", nil)

	first := <-frames
	require.NotNil(t, first.Event)
	assert.Equal(t, eventlog.TypeDiscoveryStarted, first.Event.Type)

	second := <-frames
	require.NotNil(t, second.Event)
	assert.Equal(t, eventlog.TypeURLsDiscovered, second.Event.Type)
}

func TestBridge_ClosesAfterTerminalEvent(t *testing.T) {
	log := eventlog.NewMemoryLog()
	_, err := log.Append("job-1", "user-1", eventlog.TypeJobCompleted, store.EventPayload{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := Bridge(ctx, log, "job-1", nil)

	frame := <-frames
	require.NotNil(t, frame.Event)
	assert.Equal(t, eventlog.TypeJobCompleted, frame.Event.Type)

	_, open := <-frames
	assert.False(t, open, "channel should close once a terminal event is delivered")
}

func TestBridge_ClosesOnContextCancel(t *testing.T) {
	log := eventlog.NewMemoryLog()
	ctx, cancel := context.WithCancel(context.Background())

	frames := Bridge(ctx, log, "job-empty", nil)
	cancel()

	select {
	case _, open := <-frames:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not close after context cancellation")
	}
}
