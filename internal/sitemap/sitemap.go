// Package sitemap implements C3: discovering the set of URLs a site
// publishes through its sitemap files, for seeding the admission queue
// alongside whatever links in-page crawling turns up. It follows
// internal/robots.RobotsFetcher's fetch-then-parse shape and reuses
// internal/urlnorm for the dedup fingerprint, consistent with how the
// rest of the engine treats URL identity.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crawlkit/docscrawler/internal/cache"
	"github.com/crawlkit/docscrawler/internal/robots"
	"github.com/crawlkit/docscrawler/internal/urlnorm"
)

// Source reports how (or whether) a Resolve call located any URLs.
type Source string

const (
	SourceSitemap Source = "sitemap"
	SourceNone    Source = "none"
)

// Result is the outcome of resolving a seed origin's sitemaps.
type Result struct {
	URLs                  []string
	Source                Source
	DiscoveredSitemapFiles []string
}

// candidateSuffixes are probed at the origin root when robots.txt names
// no sitemap explicitly, in the order most sites are likely to use.
var candidateSuffixes = []string{
	"/sitemap.xml",
	"/sitemap_index.xml",
	"/sitemap-index.xml",
	"/sitemaps.xml",
}

// maxRecursionDepth bounds <sitemapindex> nesting; real sites rarely
// nest more than one level, but a cycle or an adversarial target must
// not be allowed to recurse forever.
const maxRecursionDepth = 3

// Resolver discovers and parses sitemap files for an origin.
type Resolver struct {
	httpClient   *http.Client
	userAgent    string
	robotsFetcher *robots.RobotsFetcher
	originCache  cache.Cache
	cacheTTL     time.Duration
}

// NewResolver builds a Resolver. originCache may be nil, in which case
// every call re-fetches. cacheTTL bounds how long a resolved URL set is
// reused for the same origin (spec default: at most one hour).
func NewResolver(userAgent string, robotsFetcher *robots.RobotsFetcher, originCache cache.Cache, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		userAgent:     userAgent,
		robotsFetcher: robotsFetcher,
		originCache:   originCache,
		cacheTTL:      cacheTTL,
	}
}

// Resolve returns the set of URLs published by seed's origin's
// sitemap(s), deduped by urlnorm.Fingerprint and bounded by maxURLs.
func (r *Resolver) Resolve(ctx context.Context, seed url.URL, maxURLs int) (Result, error) {
	origin := seed.Scheme + "://" + seed.Host

	if r.originCache != nil {
		if cached, ok := r.originCache.Get(cacheKey(origin)); ok {
			return decodeResult(cached), nil
		}
	}

	candidates := r.candidateURLs(ctx, seed)

	seen := make(map[string]struct{})
	var urls []string
	var discovered []string

	for _, candidateURL := range candidates {
		if len(urls) >= maxURLs {
			break
		}
		body, fetchErr := r.fetch(ctx, candidateURL)
		if fetchErr != nil {
			continue
		}
		discovered = append(discovered, candidateURL)
		r.walk(ctx, body, seed, maxURLs, maxRecursionDepth, seen, &urls, &discovered)
	}

	result := Result{URLs: urls, DiscoveredSitemapFiles: discovered}
	if len(urls) > 0 {
		result.Source = SourceSitemap
	} else {
		result.Source = SourceNone
	}

	if r.originCache != nil {
		r.originCache.Put(cacheKey(origin), encodeResult(result), r.cacheTTL)
	}
	return result, nil
}

// candidateURLs assembles the probe list: robots.txt-declared sitemaps
// first (most authoritative), then the well-known suffixes.
func (r *Resolver) candidateURLs(ctx context.Context, seed url.URL) []string {
	var candidates []string

	if r.robotsFetcher != nil {
		if fetched, err := r.robotsFetcher.Fetch(ctx, seed.Scheme, seed.Host); err == nil {
			candidates = append(candidates, fetched.Response.Sitemaps...)
		}
	}

	origin := seed.Scheme + "://" + seed.Host
	for _, suffix := range candidateSuffixes {
		candidates = append(candidates, origin+suffix)
	}
	return candidates
}

func (r *Resolver) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sitemap: unexpected status %d for %s", resp.StatusCode, target)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 20*1024*1024))
}

// walk parses body as either a <urlset> (leaf) or <sitemapindex>
// (recurse into each <sitemap><loc>), appending fingerprint-deduped
// URLs into urls until maxURLs is reached or depth is exhausted.
func (r *Resolver) walk(ctx context.Context, body []byte, seed url.URL, maxURLs, depth int, seen map[string]struct{}, urls *[]string, discovered *[]string) {
	if depth <= 0 {
		return
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, entry := range index.Sitemaps {
			if len(*urls) >= maxURLs {
				return
			}
			childBody, err := r.fetch(ctx, entry.Loc)
			if err != nil {
				continue
			}
			*discovered = append(*discovered, entry.Loc)
			r.walk(ctx, childBody, seed, maxURLs, depth-1, seen, urls, discovered)
		}
		return
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return
	}
	for _, entry := range set.URLs {
		if len(*urls) >= maxURLs {
			return
		}
		canonical, ok := urlnorm.Normalize(entry.Loc, seed, urlnorm.Options{})
		if !ok {
			continue
		}
		fp, err := urlnorm.Fingerprint(canonical, urlnorm.FingerprintOptions{})
		if err != nil {
			continue
		}
		if _, exists := seen[fp]; exists {
			continue
		}
		seen[fp] = struct{}{}
		*urls = append(*urls, canonical.String())
	}
}

type sitemapIndex struct {
	XMLName  xml.Name        `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

type urlSet struct {
	XMLName xml.Name    `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

func cacheKey(origin string) string {
	return "sitemap:" + origin
}

// encodeResult/decodeResult serialize a Result for the cache.Cache
// string-valued port using a plain delimited format: no third-party
// dependency earns its keep for a payload this simple.
func encodeResult(r Result) string {
	var b strings.Builder
	b.WriteString(string(r.Source))
	b.WriteByte('\n')
	b.WriteString(strings.Join(r.DiscoveredSitemapFiles, "\t"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(r.URLs, "\t"))
	return b.String()
}

func decodeResult(raw string) Result {
	lines := strings.SplitN(raw, "\n", 3)
	result := Result{}
	if len(lines) > 0 {
		result.Source = Source(lines[0])
	}
	if len(lines) > 1 && lines[1] != "" {
		result.DiscoveredSitemapFiles = strings.Split(lines[1], "\t")
	}
	if len(lines) > 2 && lines[2] != "" {
		result.URLs = strings.Split(lines[2], "\t")
	}
	return result
}
