// Package queue implements C5: the FIFO admission queue and per-job
// dedup set that sit between URL discovery and the worker pool. It is
// grounded on internal/frontier.CrawlFrontier's mutex-protected,
// map-based shape, generalized to multiplex many jobs' queues in one
// process and to expose the add-if-absent primitive the spec requires
// as its own atomic operation rather than bundling it into Submit.
package queue

import (
	"sync"
	"time"

	"github.com/crawlkit/docscrawler/internal/store"
)

// JobQueue is a FIFO work queue plus seen-fingerprint set, multiplexed
// across jobs. Each job gets its own lock so one job's admission
// traffic never blocks another's.
type JobQueue struct {
	mu   sync.Mutex
	jobs map[string]*jobState
}

type jobState struct {
	mu    sync.Mutex
	tasks []store.QueueTask
	seen  map[string]struct{}
}

// New constructs an empty, multi-job queue.
func New() *JobQueue {
	return &JobQueue{jobs: make(map[string]*jobState)}
}

func (q *JobQueue) stateFor(jobID string) *jobState {
	q.mu.Lock()
	defer q.mu.Unlock()

	js, ok := q.jobs[jobID]
	if !ok {
		js = &jobState{seen: make(map[string]struct{})}
		q.jobs[jobID] = js
	}
	return js
}

// Enqueue atomically adds fingerprint to the job's seen-set; if it was
// already present, it returns false and does not push a task. This is
// the "conditional add-if-absent" primitive §4.5 requires: the commit
// to the seen-set and the push onto the FIFO happen under the same
// per-job lock, so no concurrent Enqueue can observe a partial state.
func (q *JobQueue) Enqueue(jobID, fingerprint, url string, depth int) bool {
	js := q.stateFor(jobID)

	js.mu.Lock()
	defer js.mu.Unlock()

	if _, exists := js.seen[fingerprint]; exists {
		return false
	}
	js.seen[fingerprint] = struct{}{}
	js.tasks = append(js.tasks, store.QueueTask{
		JobID:      jobID,
		URL:        url,
		Depth:      depth,
		EnqueuedAt: time.Now(),
	})
	return true
}

// MarkSeen records fingerprint as already admitted (or already served
// from cache) without pushing a task — used when a cache hit supplies
// a result directly and must still block re-admission of the same URL.
func (q *JobQueue) MarkSeen(jobID, fingerprint string) {
	js := q.stateFor(jobID)
	js.mu.Lock()
	defer js.mu.Unlock()
	js.seen[fingerprint] = struct{}{}
}

// Dequeue pops up to maxN tasks for jobID, FIFO.
func (q *JobQueue) Dequeue(jobID string, maxN int) []store.QueueTask {
	js := q.stateFor(jobID)

	js.mu.Lock()
	defer js.mu.Unlock()

	if maxN <= 0 || len(js.tasks) == 0 {
		return nil
	}
	n := maxN
	if n > len(js.tasks) {
		n = len(js.tasks)
	}
	popped := make([]store.QueueTask, n)
	copy(popped, js.tasks[:n])
	js.tasks = js.tasks[n:]
	return popped
}

// QueueDepth reports the number of pending (not yet dequeued) tasks.
func (q *JobQueue) QueueDepth(jobID string) int {
	js := q.stateFor(jobID)
	js.mu.Lock()
	defer js.mu.Unlock()
	return len(js.tasks)
}

// SeenSize reports the number of distinct fingerprints admitted or
// cache-served for jobID so far.
func (q *JobQueue) SeenSize(jobID string) int {
	js := q.stateFor(jobID)
	js.mu.Lock()
	defer js.mu.Unlock()
	return len(js.seen)
}

// Forget releases a job's queue state. Orchestrator.Cancel calls it; the
// queue state of a job that ends any other way is kept.
func (q *JobQueue) Forget(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, jobID)
}
