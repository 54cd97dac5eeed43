// Package subscribe implements C9: the bridge between internal/eventlog's
// durable per-job log and a long-lived subscriber (an SSE response
// writer, a CLI tail command). It owns only the polling/heartbeat loop;
// framing onto a concrete transport is the caller's concern, the same
// separation internal/robots keeps between fetching robots.txt and
// deciding admission.
package subscribe

import (
	"context"
	"time"

	"github.com/crawlkit/docscrawler/internal/eventlog"
	"github.com/crawlkit/docscrawler/internal/store"
)

// DefaultHeartbeatInterval is the spec's "≤15s of silence" ceiling.
const DefaultHeartbeatInterval = 15 * time.Second

// DefaultPollInterval is how often the bridge checks the log for new
// events between heartbeats.
const DefaultPollInterval = 250 * time.Millisecond

// Frame is one unit a subscriber receives: either an event, read off
// the log in event_id order, or a heartbeat sent after idle silence.
type Frame struct {
	Event     *store.EventLogEntry
	Heartbeat bool
}

// Bridge polls log for jobID's events after lastEventID (nil replays
// from the start, per §4.9's reconnect-without-last-id decision) and
// streams them on the returned channel, interleaved with heartbeats
// when idle. The channel is closed when a terminal event has been
// delivered, when ctx is cancelled (subscriber disconnect), or on a
// backend read error — in every case the caller simply reconnects with
// the last event_id it saw, per the spec's no-lost-events guarantee.
func Bridge(ctx context.Context, log eventlog.Log, jobID string, lastEventID *uint64) <-chan Frame {
	frames := make(chan Frame)

	go func() {
		defer close(frames)

		cursor := lastEventID
		heartbeat := time.NewTicker(DefaultHeartbeatInterval)
		poll := time.NewTicker(DefaultPollInterval)
		defer heartbeat.Stop()
		defer poll.Stop()

		lastActivity := time.Now()

		deliverPending := func() (terminal, ok bool) {
			events, err := log.ReadSince(jobID, cursor)
			if err != nil {
				return false, false
			}
			for i := range events {
				entry := events[i]
				select {
				case frames <- Frame{Event: &entry}:
				case <-ctx.Done():
					return false, false
				}
				id := entry.EventID
				cursor = &id
				lastActivity = time.Now()
				if eventlog.IsTerminal(entry.Type) {
					return true, true
				}
			}
			return false, true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				terminal, ok := deliverPending()
				if !ok || terminal {
					return
				}
			case <-heartbeat.C:
				if time.Since(lastActivity) < DefaultHeartbeatInterval {
					continue
				}
				select {
				case frames <- Frame{Heartbeat: true}:
					lastActivity = time.Now()
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return frames
}
