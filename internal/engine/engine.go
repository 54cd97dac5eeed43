// Package engine wires the crawler's full dependency graph — the
// teacher's construction order in internal/scheduler.ExecuteCrawling
// (robot, rate limiter, pipeline stages, storage), generalized to build
// the multi-job collaborators (queue, event log, worker pool,
// orchestrator) a CLI command or any other front end drives a crawl
// through.
package engine

import (
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/crawlkit/docscrawler/internal/assets"
	"github.com/crawlkit/docscrawler/internal/build"
	"github.com/crawlkit/docscrawler/internal/cache"
	"github.com/crawlkit/docscrawler/internal/config"
	"github.com/crawlkit/docscrawler/internal/eventlog"
	"github.com/crawlkit/docscrawler/internal/extractor"
	"github.com/crawlkit/docscrawler/internal/fetcher"
	"github.com/crawlkit/docscrawler/internal/mdconvert"
	"github.com/crawlkit/docscrawler/internal/metadata"
	"github.com/crawlkit/docscrawler/internal/metrics"
	"github.com/crawlkit/docscrawler/internal/normalize"
	"github.com/crawlkit/docscrawler/internal/orchestrator"
	"github.com/crawlkit/docscrawler/internal/queue"
	"github.com/crawlkit/docscrawler/internal/robots"
	"github.com/crawlkit/docscrawler/internal/sanitizer"
	"github.com/crawlkit/docscrawler/internal/sitemap"
	"github.com/crawlkit/docscrawler/internal/storage"
	"github.com/crawlkit/docscrawler/internal/store"
	"github.com/crawlkit/docscrawler/internal/worker"
	"github.com/crawlkit/docscrawler/pkg/hashutil"
	"github.com/crawlkit/docscrawler/pkg/limiter"
	"github.com/crawlkit/docscrawler/pkg/retry"
	"github.com/crawlkit/docscrawler/pkg/timeutil"
)

// maxAssetSize bounds a single downloaded asset, matching the teacher's
// own conservative default for embedded images in documentation pages.
const maxAssetSize = 10 << 20 // 10 MiB

// Engine bundles the constructed collaborators a crawl runs through,
// plus the handles that need an explicit shutdown.
type Engine struct {
	Orchestrator *orchestrator.Orchestrator
	Metrics      *metrics.Registry
	MetricsHTTP  http.Handler

	store    store.Store
	urlCache cache.Cache
	events   eventlog.Log
}

// Close releases every durable backend's resources. Safe to call on a
// partially built Engine return value only after checking Build's error.
func (e *Engine) Close() error {
	if err := e.store.Close(); err != nil {
		return err
	}
	if err := e.urlCache.Close(); err != nil {
		return err
	}
	return e.events.Close()
}

// Build constructs the full pipeline from an ambient ServiceConfig and a
// per-job default config.Config (§6). When svc.StoreDir is empty the
// in-memory adapters are used — the same "dry run without a real
// backend" affordance the teacher's --dry-run flag gives a single crawl.
func Build(svc config.ServiceConfig, jobCfg config.Config, logger zerolog.Logger) (*Engine, error) {
	sink := metadata.NewRecorder("engine")

	st, urlCache, eventLog, err := openBackends(svc.StoreDir)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: svc.FetchTimeout}

	robotsCache := cache.NewMemoryCache()
	robotsFetcher := robots.NewRobotsFetcherWithClient(&sink, svc.UserAgent, httpClient, robotsCache)

	robot := robots.NewRobot(&sink)
	robot.InitWithCache(svc.UserAgent, robotsCache)

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetJitter(jobCfg.Jitter())
	rateLimiter.SetRandomSeed(jobCfg.RandomSeed())

	sitemapCache := cache.NewMemoryCache()
	resolver := sitemap.NewResolver(svc.UserAgent, robotsFetcher, sitemapCache, jobCfg.SitemapOriginCacheTTL())

	htmlFetcher := fetcher.NewHtmlFetcher(&sink)
	domExtractor := extractor.NewDomExtractor(&sink)
	htmlSanitizer := sanitizer.NewHTMLSanitizer(&sink)
	convertRule := mdconvert.NewRule(&sink)
	assetResolver := assets.NewLocalResolver(&sink, httpClient, svc.UserAgent)
	markdownConstraint := normalize.NewMarkdownConstraint(&sink)
	localSink := storage.NewLocalSink(&sink)

	retryParam := retry.NewRetryParam(
		jobCfg.BaseDelay(),
		jobCfg.Jitter(),
		jobCfg.RandomSeed(),
		jobCfg.MaxAttempt(),
		timeutil.NewBackoffParam(jobCfg.BackoffInitialDuration(), jobCfg.BackoffMultiplier(), jobCfg.BackoffMaxDuration()),
	)

	pipeline := &worker.Pipeline{
		Fetcher:       &htmlFetcher,
		Extractor:     &domExtractor,
		Sanitizer:     &htmlSanitizer,
		Converter:     convertRule,
		AssetResolver: &assetResolver,
		Normalizer:    markdownConstraint,
		Storage:       &localSink,

		UserAgent:    svc.UserAgent,
		AppVersion:   build.FullVersion(),
		OutputDir:    jobCfg.OutputDir(),
		MaxAssetSize: maxAssetSize,
		HashAlgo:     hashutil.HashAlgoBLAKE3,
		FetchRetry:   retryParam,
	}

	jobQueue := queue.New()
	pool := worker.NewPool(pipeline, jobQueue, st, eventLog, urlCache, jobCfg.CacheTTL(), robot, rateLimiter)
	if baseDelay := jobCfg.BaseDelay(); baseDelay > 0 {
		pool.SetHostRateLimit(rate.Every(baseDelay), 1)
	}

	metricsRegistry, promReg := metrics.New()
	pool.SetMetrics(metricsRegistry)

	defaults := orchestrator.Defaults{
		MaxPages:         jobCfg.MaxPages(),
		MaxDepth:         jobCfg.MaxDepth(),
		QualityThreshold: jobCfg.QualityThreshold(),
		RespectRobots:    jobCfg.RespectRobots(),
		FollowSitemaps:   jobCfg.FollowSitemaps(),
		MaxWorkersPerJob: jobCfg.MaxWorkersPerJob(),
		BatchSize:        jobCfg.BatchSize(),
		JobTimeout:       jobCfg.JobTimeout(),
		CacheTTL:         jobCfg.CacheTTL(),
		OutputDir:        jobCfg.OutputDir(),
	}

	orch := orchestrator.New(st, eventLog, jobQueue, resolver, pool, defaults, logger)
	orch.SetMetrics(metricsRegistry)

	return &Engine{
		Orchestrator: orch,
		Metrics:      metricsRegistry,
		MetricsHTTP:  metrics.Handler(promReg),
		store:        st,
		urlCache:     urlCache,
		events:       eventLog,
	}, nil
}

// openBackends picks the durable BadgerHold-backed adapters when
// storeDir is set, and the in-memory adapters otherwise.
func openBackends(storeDir string) (store.Store, cache.Cache, eventlog.Log, error) {
	if storeDir == "" {
		return store.NewMemoryStore(), cache.NewMemoryCache(), eventlog.NewMemoryLog(), nil
	}

	st, err := store.NewBadgerStore(storeDir + "/jobs")
	if err != nil {
		return nil, nil, nil, err
	}
	urlCache, err := cache.NewBadgerCache(storeDir + "/cache")
	if err != nil {
		return nil, nil, nil, err
	}
	eventLog, err := eventlog.NewBadgerLog(storeDir + "/events")
	if err != nil {
		return nil, nil, nil, err
	}
	return st, urlCache, eventLog, nil
}
