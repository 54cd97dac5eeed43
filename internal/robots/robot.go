package robots

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/crawlkit/docscrawler/internal/cache"
	"github.com/crawlkit/docscrawler/internal/metadata"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the decision-making port the scheduler drives. It owns
// nothing about the frontier or the crawl pipeline; it answers one
// question, "may this URL be fetched", for a given user agent.
type Robot interface {
	Init(userAgent string)
	Decide(u url.URL) (Decision, *RobotsError)
}

// CachedRobot is a Robot backed by RobotsFetcher's per-origin cache. It
// re-derives the precedence ruleSet from the cached RobotsResponse on
// every Decide call (cheap, pure) rather than caching the ruleSet
// itself, so a single cache layer (the fetch result) is the only
// source of truth.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	userAgent    string
	fetcher      *RobotsFetcher
	cache        cache.Cache
}

// NewCachedRobot constructs a CachedRobot. Call Init or InitWithCache
// before using it.
func NewCachedRobot(sink metadata.MetadataSink) CachedRobot {
	return CachedRobot{metadataSink: sink}
}

// NewRobot constructs a Robot backed by a CachedRobot, as a pointer so
// it satisfies the Robot interface without the caller needing to take
// its address. Call Init before using it.
func NewRobot(sink metadata.MetadataSink) *CachedRobot {
	return &CachedRobot{metadataSink: sink}
}

// Init prepares the robot for a crawl under userAgent, using a fresh
// in-memory cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares the robot for a crawl under userAgent, using
// the given cache for fetched robots.txt results.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.userAgent = userAgent
	r.cache = c
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, c)
}

// Decide fetches (or reuses the cached fetch of) u's host's robots.txt
// and evaluates the admission decision for u under the configured
// user agent.
func (r *CachedRobot) Decide(u url.URL) (Decision, *RobotsError) {
	result, fetchErr := r.fetcher.Fetch(context.Background(), u.Scheme, u.Host)
	if fetchErr != nil {
		r.metadataSink.RecordError(
			time.Now(),
			"robots",
			"Decide",
			mapRobotsErrorToMetadataCause(fetchErr),
			fetchErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, u.String()),
				metadata.NewAttr(metadata.AttrHost, u.Host),
			},
		)
		return Decision{}, fetchErr
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)
	allowed, reason := decidePath(rs, u.Path)

	var crawlDelay time.Duration
	if delay := rs.CrawlDelay(); delay != nil {
		crawlDelay = *delay
	}

	return Decision{
		Url:        u,
		Allowed:    allowed,
		Reason:     reason,
		CrawlDelay: crawlDelay,
	}, nil
}

// decidePath evaluates a path against a ruleSet's allow/disallow
// rules. The rule with the longest matching raw pattern wins; ties
// are broken in favor of Allow, matching the precedence robots.txt
// parsers conventionally apply.
func decidePath(rs ruleSet, path string) (bool, DecisionReason) {
	if !rs.hasGroups {
		return true, EmptyRuleSet
	}
	if !rs.matchedGroup {
		return true, NoMatchingRules
	}

	bestLen := -1
	bestAllow := true
	matched := false

	for _, rule := range rs.disallowRules {
		if pathMatches(rule.prefix, path) && len(rule.prefix) > bestLen {
			bestLen = len(rule.prefix)
			bestAllow = false
			matched = true
		}
	}
	for _, rule := range rs.allowRules {
		if pathMatches(rule.prefix, path) && len(rule.prefix) >= bestLen {
			bestLen = len(rule.prefix)
			bestAllow = true
			matched = true
		}
	}

	if !matched {
		return true, NoMatchingRules
	}
	if bestAllow {
		return true, AllowedByRobots
	}
	return false, DisallowedByRobots
}

// pathMatches reports whether path satisfies a robots.txt pattern.
// "*" matches any run of characters; a trailing "$" anchors the match
// to the end of path.
func pathMatches(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = pattern[:len(pattern)-1]
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}

	cursor := len(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		idx := strings.Index(path[cursor:], part)
		if idx == -1 {
			return false
		}
		cursor += idx + len(part)
	}

	if anchored {
		return cursor == len(path)
	}
	return true
}
