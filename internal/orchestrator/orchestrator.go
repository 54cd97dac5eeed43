// Package orchestrator implements C8: the job state machine that
// drives a submitted crawl from pending through discovery, worker-pool
// processing, and finalization, and that external callers (the CLI,
// the event subscription bridge) observe through a small set of plain
// Go methods. It generalizes internal/scheduler.Scheduler's single-job
// "submit, run to completion" flow into a multi-job engine where each
// job's transitions are serialized behind its own lock rather than the
// whole process blocking on one crawl.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crawlkit/docscrawler/internal/eventlog"
	"github.com/crawlkit/docscrawler/internal/metrics"
	"github.com/crawlkit/docscrawler/internal/queue"
	"github.com/crawlkit/docscrawler/internal/sitemap"
	"github.com/crawlkit/docscrawler/internal/store"
	"github.com/crawlkit/docscrawler/internal/subscribe"
	"github.com/crawlkit/docscrawler/internal/urlnorm"
	"github.com/crawlkit/docscrawler/internal/worker"
)

// quiescenceWindow is how long a worker's "queue looks drained" signal
// must hold before the orchestrator trusts it enough to finalize — a
// guard against racing with another worker that is mid-admission.
const quiescenceWindow = 500 * time.Millisecond

// Defaults mirrors the subset of config.Config an Orchestrator needs
// to admit a job that didn't specify every field.
type Defaults struct {
	MaxPages         int
	MaxDepth         int
	QualityThreshold int
	RespectRobots    bool
	FollowSitemaps   bool
	MaxWorkersPerJob int
	BatchSize        int
	JobTimeout       time.Duration
	CacheTTL         time.Duration
	OutputDir        string
}

// Orchestrator owns the job state machine. One Orchestrator serves all
// jobs of all users in the process; per-job serialization is a mutex
// keyed by job id, the same style internal/queue.JobQueue uses for its
// per-job frontier state.
type Orchestrator struct {
	store    store.Store
	events   eventlog.Log
	jobQueue *queue.JobQueue
	sitemap  *sitemap.Resolver
	pool     *worker.Pool
	defaults Defaults
	log      zerolog.Logger
	metrics  *metrics.Registry

	mu       sync.Mutex
	jobLocks map[string]*sync.Mutex
	timers   map[string]*time.Timer
}

// SetMetrics attaches a metrics registry the orchestrator bumps a
// jobs-by-status counter through on every terminal transition. Optional;
// a nil registry is a no-op.
func (o *Orchestrator) SetMetrics(m *metrics.Registry) {
	o.metrics = m
}

// New builds an Orchestrator. pool must already be constructed against
// the same store, events, and jobQueue given here.
func New(st store.Store, events eventlog.Log, jobQueue *queue.JobQueue, resolver *sitemap.Resolver, pool *worker.Pool, defaults Defaults, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		events:   events,
		jobQueue: jobQueue,
		sitemap:  resolver,
		pool:     pool,
		defaults: defaults,
		log:      logger,
		jobLocks: make(map[string]*sync.Mutex),
		timers:   make(map[string]*time.Timer),
	}
}

func (o *Orchestrator) lockFor(jobID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.jobLocks[jobID]
	if !ok {
		l = &sync.Mutex{}
		o.jobLocks[jobID] = l
	}
	return l
}

// fillDefaults applies o.defaults to any zero-valued field of cfg.
func (o *Orchestrator) fillDefaults(cfg store.JobConfig) store.JobConfig {
	if cfg.MaxPages == 0 {
		cfg.MaxPages = o.defaults.MaxPages
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = o.defaults.MaxDepth
	}
	if cfg.QualityThreshold == 0 {
		cfg.QualityThreshold = o.defaults.QualityThreshold
	}
	return cfg
}

// Submit validates seedURL and creates a pending Job row. It does not
// itself start the crawl: per §4.8, the pending→processing transition
// is triggered by a separate "start-crawl task", which callers (the
// CLI's submit command) dispatch by calling StartCrawl, typically in
// its own goroutine, right after Submit returns.
func (o *Orchestrator) Submit(ctx context.Context, userID, seedURL string, cfg store.JobConfig) (store.Job, error) {
	parsed, err := url.Parse(seedURL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return store.Job{}, fmt.Errorf("invalid seed url %q: must be an absolute http(s) URL", seedURL)
	}

	now := time.Now()
	job := store.Job{
		ID:           uuid.NewString(),
		UserID:       userID,
		SeedURL:      parsed.String(),
		Config:       o.fillDefaults(cfg),
		Status:       store.JobPending,
		StateVersion: 1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.store.SaveJob(job); err != nil {
		return store.Job{}, err
	}

	return job, nil
}

// StartCrawl transitions a pending job to processing and runs its
// discovery phase, then hands the admitted queue to the worker pool.
// A retry against an already-started job observes status != pending
// and is a no-op, per the spec's idempotency requirement.
func (o *Orchestrator) StartCrawl(ctx context.Context, jobID string) error {
	lock := o.lockFor(jobID)
	lock.Lock()

	job, err := o.store.GetJob(jobID)
	if err != nil {
		lock.Unlock()
		return err
	}
	if job.Status != store.JobPending {
		lock.Unlock()
		return nil
	}

	job.Status = store.JobProcessing
	job.StateVersion++
	job.UpdatedAt = time.Now()
	if err := o.store.SaveJob(job); err != nil {
		lock.Unlock()
		return err
	}
	lock.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, o.jobTimeout())
	o.mu.Lock()
	o.timers[jobID] = time.AfterFunc(o.jobTimeout(), func() {
		o.timeoutJob(jobID)
		cancel()
	})
	o.mu.Unlock()

	o.runDiscovery(jobCtx, job)

	workers := o.defaults.MaxWorkersPerJob
	if workers <= 0 {
		workers = 5
	}
	batch := o.defaults.BatchSize
	if batch <= 0 {
		batch = 20
	}
	o.pool.RunJob(jobCtx, job, workers, batch, o)
	return nil
}

func (o *Orchestrator) jobTimeout() time.Duration {
	if o.defaults.JobTimeout <= 0 {
		return 30 * time.Minute
	}
	return o.defaults.JobTimeout
}

// runDiscovery resolves the seed's sitemap and admits the seed plus
// sitemap URLs at depth=1, at most max_pages URLs in all (the seed
// counts toward the limit). Sitemap failures degrade to
// seed-only admission rather than failing the job outright — the
// spec's "discovery errors degrade to seed-only" propagation rule.
func (o *Orchestrator) runDiscovery(ctx context.Context, job store.Job) {
	o.appendEvent(job, eventlog.TypeDiscoveryStarted, store.EventPayload{DiscoveryStarted: &store.DiscoveryStartedPayload{}})

	seed, err := url.Parse(job.SeedURL)
	if err != nil {
		return
	}
	seedFingerprint, _ := urlnorm.Fingerprint(*seed, urlnorm.FingerprintOptions{})
	o.jobQueue.Enqueue(job.ID, seedFingerprint, seed.String(), 0)
	admitted := 1

	if job.Config.FollowSitemaps && o.sitemap != nil {
		result, sitemapErr := o.sitemap.Resolve(ctx, *seed, job.Config.MaxPages)
		if sitemapErr == nil {
			for _, raw := range result.URLs {
				if admitted >= job.Config.MaxPages {
					break
				}
				candidate, ok := urlnorm.Normalize(raw, *seed, urlnorm.Options{})
				if !ok || !urlnorm.WithinPathPrefix(candidate, *seed) || !urlnorm.IsDocumentationLike(candidate) {
					continue
				}
				fp, ferr := urlnorm.Fingerprint(candidate, urlnorm.FingerprintOptions{})
				if ferr != nil {
					continue
				}
				if o.jobQueue.Enqueue(job.ID, fp, candidate.String(), 1) {
					admitted++
				}
			}
		} else {
			o.log.Warn().Err(sitemapErr).Str("job_id", job.ID).Msg("sitemap resolution failed, falling back to seed-only")
		}
	}

	o.OnURLsDiscovered(job.ID, 1, admitted)
}

// OnPageCrawled implements worker.Observer: it updates the job's
// processed/failed counters and bumps state_version, which is the
// orchestrator's only write path for a running job's row once
// processing has begun. It never touches Progress.Discovered — per
// §4.7 step 5, "discovered" counts links admitted into the queue, not
// pages attempted; that counter is owned by OnURLsDiscovered.
func (o *Orchestrator) OnPageCrawled(jobID string, page store.CrawledPage) {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.store.GetJob(jobID)
	if err != nil || job.Status != store.JobProcessing {
		return
	}

	switch page.Status {
	case store.PageCrawled:
		if page.QualityScore >= job.Config.QualityThreshold {
			job.Progress.Processed++
			job.Progress.TotalWords += page.WordCount
		}
	case store.PageError:
		job.Progress.Failed++
	}
	job.StateVersion++
	job.UpdatedAt = time.Now()
	_ = o.store.SaveJob(job)
}

// OnURLsDiscovered implements worker.Observer: it is the only write
// path for Progress.Discovered, called once per non-empty admitted
// batch (both the initial seed/sitemap admission in runDiscovery and
// every per-page link-admission batch the worker pool reports).
func (o *Orchestrator) OnURLsDiscovered(jobID string, depth, count int) {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.store.GetJob(jobID)
	if err != nil || job.Status != store.JobProcessing {
		return
	}

	job.Progress.Discovered += count
	job.StateVersion++
	job.UpdatedAt = time.Now()
	if err := o.store.SaveJob(job); err != nil {
		return
	}

	o.appendEvent(job, eventlog.TypeURLsDiscovered, store.EventPayload{
		URLsDiscovered: &store.URLsDiscoveredPayload{
			Count:           count,
			Depth:           depth,
			TotalDiscovered: job.Progress.Discovered,
		},
	})
}

// OnBatchError implements worker.Observer. Per-URL failures are
// already recorded as page rows by the worker pool; a batch-level
// error (e.g. a queue op timeout) is logged and surfaced as a
// non-fatal event rather than failing the job.
func (o *Orchestrator) OnBatchError(jobID string, err error) {
	job, getErr := o.store.GetJob(jobID)
	if getErr != nil {
		return
	}
	o.appendEvent(job, eventlog.TypeBatchError, store.EventPayload{BatchError: &store.BatchErrorPayload{Error: err.Error()}})
}

// OnDrained implements worker.Observer. Every worker goroutine that
// independently observes an empty queue calls this, so finalize must
// be idempotent against repeated calls once the job is terminal.
func (o *Orchestrator) OnDrained(jobID string) {
	time.Sleep(quiescenceWindow)

	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.store.GetJob(jobID)
	if err != nil || job.Status.IsTerminal() {
		return
	}
	if o.jobQueue.QueueDepth(jobID) != 0 {
		return
	}
	o.finalizeLocked(job)
}

func (o *Orchestrator) timeoutJob(jobID string) {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.store.GetJob(jobID)
	if err != nil || job.Status.IsTerminal() {
		return
	}
	job.Status = store.JobFailed
	job.ErrorMessage = "timeout"
	job.StatusMessage = "timeout"
	job.StateVersion++
	job.UpdatedAt = time.Now()
	_ = o.store.SaveJob(job)
	o.pool.Cancel(jobID)
	o.metrics.RecordJobStatus(string(store.JobFailed))
	o.appendEvent(job, eventlog.TypeJobFailed, store.EventPayload{JobFailed: &store.JobFailedPayload{
		Error:           "timeout",
		TotalProcessed:  job.Progress.Processed,
		TotalDiscovered: job.Progress.Discovered,
	}})
}

// finalizeLocked recomputes totals from the persisted pages, builds
// the combined Markdown artifact, and transitions the job to its
// terminal state. Caller must hold jobID's lock.
func (o *Orchestrator) finalizeLocked(job store.Job) {
	pages, err := o.store.ListCrawledPages(job.ID)
	if err != nil {
		job.Status = store.JobFailed
		job.ErrorMessage = err.Error()
		job.StateVersion++
		job.UpdatedAt = time.Now()
		_ = o.store.SaveJob(job)
		o.metrics.RecordJobStatus(string(store.JobFailed))
		o.appendEvent(job, eventlog.TypeJobFailed, store.EventPayload{JobFailed: &store.JobFailedPayload{
			Error:           err.Error(),
			TotalProcessed:  job.Progress.Processed,
			TotalDiscovered: job.Progress.Discovered,
		}})
		return
	}

	successes := 0
	for _, p := range pages {
		if p.Status == store.PageCrawled {
			successes++
		}
	}

	job.UpdatedAt = time.Now()
	job.StateVersion++

	if successes == 0 {
		job.Status = store.JobFailed
		job.ErrorMessage = "No URLs were successfully crawled"
		_ = o.store.SaveJob(job)
		o.metrics.RecordJobStatus(string(store.JobFailed))
		o.appendEvent(job, eventlog.TypeJobFailed, store.EventPayload{JobFailed: &store.JobFailedPayload{
			Error:           job.ErrorMessage,
			TotalProcessed:  job.Progress.Processed,
			TotalDiscovered: job.Progress.Discovered,
		}})
		return
	}

	completedAt := job.UpdatedAt
	job.Status = store.JobCompleted
	job.CompletedAt = &completedAt
	if err := o.store.SaveJob(job); err != nil {
		return
	}

	if o.defaults.OutputDir != "" {
		if artifact, buildErr := o.buildCombinedMarkdown(job.ID); buildErr == nil {
			_ = os.WriteFile(artifactPath(o.defaults.OutputDir, job.ID), []byte(artifact), 0o644)
		}
	}

	o.metrics.RecordJobStatus(string(store.JobCompleted))
	o.appendEvent(job, eventlog.TypeJobCompleted, store.EventPayload{JobCompleted: &store.JobCompletedPayload{
		TotalProcessed:  job.Progress.Processed,
		TotalDiscovered: job.Progress.Discovered,
		TotalWords:      job.Progress.TotalWords,
	}})
}

// buildCombinedMarkdown concatenates every successfully crawled page's
// stored chunk, ordered by crawled_at, separated by "\n\n---\n\n" —
// the final artifact §6's download endpoint serves.
func (o *Orchestrator) buildCombinedMarkdown(jobID string) (string, error) {
	pages, err := o.store.ListCrawledPages(jobID)
	if err != nil {
		return "", err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].CrawledAt.Before(pages[j].CrawledAt) })

	var parts []string
	for _, p := range pages {
		if p.Status != store.PageCrawled {
			continue
		}
		chunk, chunkErr := o.store.GetChunk(p.ID)
		if chunkErr != nil {
			continue
		}
		parts = append(parts, chunk.Content)
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func artifactPath(outputDir, jobID string) string {
	return outputDir + "/" + jobID + ".md"
}

// Cancel stops a job's in-flight work and transitions it to cancelled.
// The closed event-type set has no dedicated "cancelled" event, so
// cancellation is reported through job_failed with a distinguishing
// message — the same terminal framing a subscriber already knows to
// stop on.
func (o *Orchestrator) Cancel(jobID string) error {
	lock := o.lockFor(jobID)
	lock.Lock()
	defer lock.Unlock()

	job, err := o.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}

	o.pool.Cancel(jobID)
	o.jobQueue.Forget(jobID)

	job.Status = store.JobCancelled
	job.StatusMessage = "cancelled"
	job.StateVersion++
	job.UpdatedAt = time.Now()
	if err := o.store.SaveJob(job); err != nil {
		return err
	}
	o.metrics.RecordJobStatus(string(store.JobCancelled))
	o.appendEvent(job, eventlog.TypeJobFailed, store.EventPayload{JobFailed: &store.JobFailedPayload{
		Error:           "cancelled",
		TotalProcessed:  job.Progress.Processed,
		TotalDiscovered: job.Progress.Discovered,
	}})
	return nil
}

// State is the external, read-only view of a job §6's "get job state"
// endpoint returns.
type State struct {
	Job            store.Job
	RecentActivity []store.EventLogEntry
	LastEventID    uint64
}

// GetState returns jobID's current state plus up to its 10 latest
// events, oldest first. It returns store.ErrNotFound if jobID does not
// belong to userID.
func (o *Orchestrator) GetState(jobID, userID string) (State, error) {
	job, err := o.store.GetJob(jobID)
	if err != nil {
		return State{}, err
	}
	if job.UserID != userID {
		return State{}, store.ErrNotFound
	}

	events, err := o.events.ReadSince(jobID, nil)
	if err != nil {
		return State{}, err
	}
	recent := events
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	var lastEventID uint64
	if len(events) > 0 {
		lastEventID = events[len(events)-1].EventID
	}

	return State{Job: job, RecentActivity: recent, LastEventID: lastEventID}, nil
}

// ListActive returns userID's non-terminal jobs.
func (o *Orchestrator) ListActive(userID string) ([]store.Job, error) {
	return o.store.ListJobsByUser(userID, store.JobPending, store.JobProcessing)
}

// Download returns jobID's combined Markdown artifact and the filename
// it should be served as. It returns an error for any status other
// than completed.
func (o *Orchestrator) Download(jobID, userID string) (filename string, content []byte, err error) {
	job, err := o.store.GetJob(jobID)
	if err != nil {
		return "", nil, err
	}
	if job.UserID != userID {
		return "", nil, store.ErrNotFound
	}
	if job.Status != store.JobCompleted {
		return "", nil, fmt.Errorf("job %s is not completed (status=%s)", jobID, job.Status)
	}

	markdown, err := o.buildCombinedMarkdown(jobID)
	if err != nil {
		return "", nil, err
	}

	seed, _ := url.Parse(job.SeedURL)
	host := "artifact"
	if seed != nil && seed.Host != "" {
		host = seed.Host
	}
	date := time.Now().Format("2006-01-02")
	if job.CompletedAt != nil {
		date = job.CompletedAt.Format("2006-01-02")
	}
	return fmt.Sprintf("%s-%s.md", host, date), []byte(markdown), nil
}

// Subscribe returns a live stream of jobID's events plus heartbeats,
// starting after lastEventID (nil replays from the start). It returns
// store.ErrNotFound if jobID does not belong to userID; the returned
// channel closes on its own once a terminal event is delivered or ctx
// is cancelled.
func (o *Orchestrator) Subscribe(ctx context.Context, jobID, userID string, lastEventID *uint64) (<-chan subscribe.Frame, error) {
	job, err := o.store.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, store.ErrNotFound
	}
	return subscribe.Bridge(ctx, o.events, jobID, lastEventID), nil
}

func (o *Orchestrator) appendEvent(job store.Job, eventType string, payload store.EventPayload) {
	if o.events == nil {
		return
	}
	if _, err := o.events.Append(job.ID, job.UserID, eventType, payload); err != nil {
		o.log.Warn().Err(err).Str("job_id", job.ID).Str("event", eventType).Msg("failed to append event")
	}
}
