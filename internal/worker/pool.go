package worker

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crawlkit/docscrawler/internal/cache"
	"github.com/crawlkit/docscrawler/internal/eventlog"
	"github.com/crawlkit/docscrawler/internal/extractor"
	"github.com/crawlkit/docscrawler/internal/metrics"
	"github.com/crawlkit/docscrawler/internal/queue"
	"github.com/crawlkit/docscrawler/internal/robots"
	"github.com/crawlkit/docscrawler/internal/store"
	"github.com/crawlkit/docscrawler/internal/urlnorm"
	"github.com/crawlkit/docscrawler/pkg/failure"
	"github.com/crawlkit/docscrawler/pkg/limiter"

	"golang.org/x/time/rate"
)

// Observer is the orchestrator's view into a running job's worker
// pool: a narrow callback surface so the pool never needs to know
// about job state-machine transitions, only that something happened.
type Observer interface {
	OnPageCrawled(jobID string, page store.CrawledPage)
	OnBatchError(jobID string, err error)
	OnURLsDiscovered(jobID string, depth, count int)
	OnDrained(jobID string)
}

// Pool runs a bounded number of goroutines per job, pulling batches
// off a queue.JobQueue and driving each URL through a Pipeline. It
// generalizes internal/scheduler.Scheduler's single-job, single-
// goroutine loop to many jobs, each with its own worker budget
// (JobConfig has no worker count of its own; the caller supplies one
// per RunJob call, typically config.MaxWorkersPerJob()).
type Pool struct {
	pipeline *Pipeline
	queue    *queue.JobQueue
	store    store.Store
	events   eventlog.Log
	urlCache cache.Cache
	cacheTTL time.Duration
	robot    robots.Robot
	limiter  limiter.RateLimiter
	metrics  *metrics.Registry

	hostRate  rate.Limit
	hostBurst int
	hostsMu   sync.Mutex
	hosts     map[string]*rate.Limiter

	jobsMu sync.Mutex
	jobs   map[string]*jobRun
}

// SetHostRateLimit configures the base per-host request cadence, one
// token bucket per host keyed lazily on first fetch. This is the
// baseline politeness delay; pkg/limiter's crawl-delay and
// exponential-backoff overrides are layered on top of it in
// processTask, not replaced by it. A zero rps disables the bucket
// entirely (the pool falls back to whatever pkg/limiter resolves).
func (p *Pool) SetHostRateLimit(rps rate.Limit, burst int) {
	p.hostRate = rps
	p.hostBurst = burst
}

func (p *Pool) hostLimiter(host string) *rate.Limiter {
	p.hostsMu.Lock()
	defer p.hostsMu.Unlock()
	lim, ok := p.hosts[host]
	if !ok {
		lim = rate.NewLimiter(p.hostRate, p.hostBurst)
		p.hosts[host] = lim
	}
	return lim
}

// SetMetrics attaches a metrics registry the pool reports active-worker
// and queue-depth gauges through. Optional; a nil registry is a no-op,
// like a nil robot or rate limiter already is.
func (p *Pool) SetMetrics(m *metrics.Registry) {
	p.metrics = m
}

type jobRun struct {
	cancel   context.CancelFunc
	inFlight int64
}

// NewPool constructs a Pool. robot, rateLimiter, and urlCache may be
// shared across jobs; they are keyed internally by host or cache key,
// like the former internal/scheduler.Scheduler's dependencies.
func NewPool(pipeline *Pipeline, jobQueue *queue.JobQueue, st store.Store, events eventlog.Log, urlCache cache.Cache, cacheTTL time.Duration, robot robots.Robot, rateLimiter limiter.RateLimiter) *Pool {
	return &Pool{
		pipeline: pipeline,
		queue:    jobQueue,
		store:    st,
		events:   events,
		urlCache: urlCache,
		cacheTTL: cacheTTL,
		robot:    robot,
		limiter:  rateLimiter,
		hosts:    make(map[string]*rate.Limiter),
		jobs:     make(map[string]*jobRun),
	}
}

// RunJob starts workerCount goroutines consuming job's queue until it
// drains (no pending tasks and no in-flight work) or ctx is cancelled.
// It returns immediately; completion is reported through observer.
func (p *Pool) RunJob(ctx context.Context, job store.Job, workerCount, batchSize int, observer Observer) {
	jobCtx, cancel := context.WithCancel(ctx)
	run := &jobRun{cancel: cancel}

	p.jobsMu.Lock()
	p.jobs[job.ID] = run
	p.jobsMu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(jobCtx, job, batchSize, run, observer)
		}()
	}

	go func() {
		wg.Wait()
		p.jobsMu.Lock()
		delete(p.jobs, job.ID)
		p.jobsMu.Unlock()
	}()
}

// Cancel stops a running job's workers without waiting for them to
// drain; already in-flight tasks finish, no new ones are dequeued.
func (p *Pool) Cancel(jobID string) {
	p.jobsMu.Lock()
	run, ok := p.jobs[jobID]
	p.jobsMu.Unlock()
	if ok {
		run.cancel()
	}
}

// workerLoop repeatedly pulls up to batchSize tasks and processes them
// serially within this goroutine; idle goroutines poll at a short
// interval rather than busy-spinning, and the last worker to observe
// an empty queue with zero in-flight work signals the job drained.
func (p *Pool) workerLoop(ctx context.Context, job store.Job, batchSize int, run *jobRun, observer Observer) {
	idle := time.NewTicker(200 * time.Millisecond)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		tasks := p.queue.Dequeue(job.ID, batchSize)
		if len(tasks) == 0 {
			if atomic.LoadInt64(&run.inFlight) == 0 && p.queue.QueueDepth(job.ID) == 0 {
				p.metrics.DeleteJob(job.ID)
				observer.OnDrained(job.ID)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-idle.C:
			}
			continue
		}

		var batchURLs []string
		for _, task := range tasks {
			atomic.AddInt64(&run.inFlight, 1)
			p.metrics.IncActiveWorkers()
			p.processTask(ctx, job, task, observer)
			p.metrics.DecActiveWorkers()
			atomic.AddInt64(&run.inFlight, -1)
			batchURLs = append(batchURLs, task.URL)
		}
		p.metrics.SetQueueDepth(job.ID, p.queue.QueueDepth(job.ID))
		if p.events != nil && len(batchURLs) > 0 {
			p.events.Append(job.ID, job.UserID, eventlog.TypeBatchProgress, store.EventPayload{
				BatchProgress: &store.BatchProgressPayload{URLs: batchURLs},
			})
		}
	}
}

func (p *Pool) processTask(ctx context.Context, job store.Job, task store.QueueTask, observer Observer) {
	target, parseErr := url.Parse(task.URL)
	if parseErr != nil {
		observer.OnBatchError(job.ID, parseErr)
		return
	}

	if p.robot != nil && job.Config.RespectRobots {
		decision, robotsErr := p.robot.Decide(*target)
		if robotsErr == nil && !decision.Allowed {
			return
		}
		if robotsErr == nil && decision.CrawlDelay > 0 && p.limiter != nil {
			p.limiter.SetCrawlDelay(target.Host, decision.CrawlDelay)
		}
	}

	urlHash := fingerprintFor(*target)

	if !job.Config.ForceRefresh && p.urlCache != nil {
		if entry, ok := p.lookupCache(job.UserID, urlHash); ok {
			page := store.CrawledPage{
				ID:           job.ID + ":" + urlHash,
				JobID:        job.ID,
				URL:          target.String(),
				URLHash:      urlHash,
				Title:        entry.Title,
				Depth:        task.Depth,
				Status:       store.PageCrawled,
				QualityScore: entry.QualityScore,
				WordCount:    entry.WordCount,
				FromCache:    true,
				CrawledAt:    time.Now(),
			}
			if err := p.store.InsertCrawledPage(page); err == nil {
				p.store.SaveChunk(store.PageContentChunk{
					PageID:      page.ID,
					Content:     entry.Content,
					ContentType: "markdown",
				})
				p.emitCrawled(job, page, len(entry.Content))
				observer.OnPageCrawled(job.ID, page)
			}
			if task.Depth < job.Config.MaxDepth {
				admitted := p.admitLinksFromStrings(job, task.Depth, *target, entry.Links)
				if admitted > 0 {
					observer.OnURLsDiscovered(job.ID, task.Depth+1, admitted)
				}
			}
			return
		}
	}

	if p.hostRate > 0 {
		if err := p.hostLimiter(target.Host).Wait(ctx); err != nil {
			return
		}
	}

	if p.limiter != nil {
		delay := p.limiter.ResolveDelay(target.Host)
		if delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		p.limiter.MarkLastFetchAsNow(target.Host)
	}

	result, fetchErr := p.pipeline.Process(ctx, task.Depth, *target)
	if fetchErr != nil {
		page := store.CrawledPage{
			ID:           job.ID + ":" + urlHash,
			JobID:        job.ID,
			URL:          task.URL,
			URLHash:      urlHash,
			Depth:        task.Depth,
			Status:       store.PageError,
			ErrorMessage: fetchErr.Error(),
			CrawledAt:    time.Now(),
		}
		if insertErr := p.store.InsertCrawledPage(page); insertErr == nil {
			observer.OnPageCrawled(job.ID, page)
		}
		var classified *failure.Error
		if p.limiter != nil && errors.As(fetchErr, &classified) && classified.Kind == failure.KindFetchError {
			p.limiter.Backoff(target.Host)
		}
		return
	}

	if p.limiter != nil {
		p.limiter.ResetBackoff(target.Host)
	}

	quality := extractor.ComputeQualityScore(result.Markdown)
	words := extractor.WordCount(result.Markdown)

	page := store.CrawledPage{
		ID:           job.ID + ":" + urlHash,
		JobID:        job.ID,
		URL:          target.String(),
		URLHash:      urlHash,
		Title:        result.Title,
		Depth:        task.Depth,
		HTTPStatus:   result.HTTPStatus,
		Status:       store.PageCrawled,
		QualityScore: quality,
		WordCount:    words,
		CrawledAt:    time.Now(),
	}

	if err := p.store.InsertCrawledPage(page); err != nil {
		// Another worker already stored this (job_id, url_hash) pair;
		// the race's loser silently discards its own work, per §5.
		return
	}

	p.store.SaveChunk(store.PageContentChunk{
		PageID:      page.ID,
		Content:     result.Markdown,
		ContentType: "markdown",
	})

	linkStrings := make([]string, 0, len(result.DiscoveredURLs))
	for _, u := range result.DiscoveredURLs {
		linkStrings = append(linkStrings, u.String())
	}
	if p.urlCache != nil {
		p.cacheResult(job.UserID, urlHash, result.Title, result.Markdown, linkStrings, quality, words)
	}

	p.emitCrawled(job, page, len(result.Markdown))
	observer.OnPageCrawled(job.ID, page)

	if task.Depth >= job.Config.MaxDepth {
		return
	}
	admitted := p.admitLinks(job, task.Depth, *target, result.DiscoveredURLs)
	if admitted > 0 {
		observer.OnURLsDiscovered(job.ID, task.Depth+1, admitted)
	}
}

func (p *Pool) emitCrawled(job store.Job, page store.CrawledPage, contentLength int) {
	if p.events == nil {
		return
	}
	p.events.Append(job.ID, job.UserID, eventlog.TypeURLCrawled, store.EventPayload{
		URLCrawled: &store.URLCrawledPayload{
			URL:           page.URL,
			Success:       page.Status == store.PageCrawled,
			HTTPStatus:    page.HTTPStatus,
			ContentLength: contentLength,
			QualityScore:  page.QualityScore,
			FromCache:     page.FromCache,
		},
	})
}

func (p *Pool) lookupCache(userID, urlHash string) (store.UrlCacheEntry, bool) {
	raw, ok := p.urlCache.Get(store.CacheKey(userID, urlHash))
	if !ok {
		return store.UrlCacheEntry{}, false
	}
	return decodeCacheEntry(raw)
}

func (p *Pool) cacheResult(userID, urlHash, title, content string, links []string, quality, words int) {
	entry := store.UrlCacheEntry{
		Title:        title,
		Content:      content,
		Links:        links,
		QualityScore: quality,
		WordCount:    words,
		CachedAt:     time.Now(),
		TTL:          p.cacheTTL,
	}
	p.urlCache.Put(store.CacheKey(userID, urlHash), encodeCacheEntry(entry), p.cacheTTL)
}

// admitLinks filters freshly discovered links through the C1
// classifiers and pushes admissible ones back onto the queue at
// depth+1, stopping once the job's admitted count reaches max_pages.
// It returns how many of discovered were actually admitted.
func (p *Pool) admitLinks(job store.Job, depth int, base url.URL, discovered []url.URL) int {
	seed, err := url.Parse(job.SeedURL)
	if err != nil {
		return 0
	}
	admitted := 0
	for _, raw := range discovered {
		if p.admitOne(job, depth, base, *seed, raw.String()) {
			admitted++
		}
	}
	return admitted
}

func (p *Pool) admitLinksFromStrings(job store.Job, depth int, base url.URL, discovered []string) int {
	seed, err := url.Parse(job.SeedURL)
	if err != nil {
		return 0
	}
	admitted := 0
	for _, raw := range discovered {
		if p.admitOne(job, depth, base, *seed, raw) {
			admitted++
		}
	}
	return admitted
}

// admitOne runs a single candidate link through the C1 filters and, if
// it passes, enqueues it at depth+1. It reports false — without
// enqueueing — once the job's seen-fingerprint count has already
// reached max_pages, per §4.7 step 5's admission cap.
func (p *Pool) admitOne(job store.Job, depth int, base, seed url.URL, raw string) bool {
	if job.Config.MaxPages > 0 && p.queue.SeenSize(job.ID) >= job.Config.MaxPages {
		return false
	}
	candidate, ok := urlnorm.Normalize(raw, base, urlnorm.Options{})
	if !ok {
		return false
	}
	if !urlnorm.WithinPathPrefix(candidate, seed) {
		return false
	}
	if !urlnorm.IsDocumentationLike(candidate) {
		return false
	}
	fp, err := urlnorm.Fingerprint(candidate, urlnorm.FingerprintOptions{})
	if err != nil {
		return false
	}
	return p.queue.Enqueue(job.ID, fp, candidate.String(), depth+1)
}

func fingerprintFor(u url.URL) string {
	fp, err := urlnorm.Fingerprint(u, urlnorm.FingerprintOptions{})
	if err != nil {
		return u.String()
	}
	return fp
}
