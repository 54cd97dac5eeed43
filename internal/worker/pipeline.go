// Package worker implements C7: the bounded per-job pool that pulls
// admitted URLs off the queue and drives them through fetch, extract,
// sanitize, convert, and persist — the pipeline the former
// internal/scheduler.Scheduler ran for a single synchronous job,
// generalized here to run many jobs concurrently, each with its own
// worker budget. Every fetched page is stored; its quality score (C2)
// is stored with it and does not gate storage.
package worker

import (
	"context"
	"net/url"

	"github.com/crawlkit/docscrawler/internal/assets"
	"github.com/crawlkit/docscrawler/internal/extractor"
	"github.com/crawlkit/docscrawler/internal/fetcher"
	"github.com/crawlkit/docscrawler/internal/mdconvert"
	"github.com/crawlkit/docscrawler/internal/normalize"
	"github.com/crawlkit/docscrawler/internal/sanitizer"
	"github.com/crawlkit/docscrawler/internal/storage"
	"github.com/crawlkit/docscrawler/pkg/failure"
	"github.com/crawlkit/docscrawler/pkg/hashutil"
	"github.com/crawlkit/docscrawler/pkg/retry"
)

// Pipeline bundles the single-URL processing stages. One Pipeline is
// shared by every worker goroutine of every job; all its dependencies
// are themselves safe for concurrent use (the same contract the former
// internal/scheduler relied on for its single-job loop).
type Pipeline struct {
	Fetcher    fetcher.Fetcher
	Extractor  extractor.Extractor
	Sanitizer  sanitizer.Sanitizer
	Converter  mdconvert.ConvertRule
	AssetResolver assets.Resolver
	Normalizer normalize.MarkdownConstraint
	Storage    storage.Sink

	UserAgent    string
	AppVersion   string
	OutputDir    string
	MaxAssetSize int64
	HashAlgo     hashutil.HashAlgo
	FetchRetry   retry.RetryParam
}

// PageResult is what one URL fetch-through-persist pass produces.
type PageResult struct {
	Title        string
	Markdown     string
	DiscoveredURLs []url.URL
	HTTPStatus   int
	WritePath    string
}

// Process fetches target, extracts and sanitizes its content, converts
// to Markdown, normalizes, and writes the artifact. It does not touch
// the job's queue, store, or event log — those are Pool's concerns —
// so Pipeline stays unit-testable against a bare URL.
func (p *Pipeline) Process(ctx context.Context, crawlDepth int, target url.URL) (PageResult, failure.ClassifiedError) {
	fetchParam := fetcher.NewFetchParam(target, p.UserAgent)
	fetchResult, err := p.Fetcher.Fetch(ctx, crawlDepth, fetchParam, p.FetchRetry)
	if err != nil {
		return PageResult{}, err
	}

	extraction, err := p.Extractor.Extract(fetchResult.URL(), fetchResult.Body())
	if err != nil {
		return PageResult{}, err
	}

	sanitized, err := p.Sanitizer.Sanitize(extraction.ContentNode)
	if err != nil {
		return PageResult{}, err
	}

	converted, err := p.Converter.Convert(sanitized)
	if err != nil {
		return PageResult{}, err
	}

	resolveParam := assets.NewResolveParam(p.OutputDir, p.MaxAssetSize)
	assetful, err := p.AssetResolver.Resolve(ctx, fetchResult.URL(), converted, resolveParam, p.FetchRetry)
	if err != nil && err.Severity() == failure.SeverityFatal {
		return PageResult{}, err
	}

	normalizeParam := normalize.NewNormalizeParam(
		p.AppVersion,
		fetchResult.FetchedAt(),
		p.HashAlgo,
		crawlDepth,
		nil,
		extraction.Title,
	)
	normalized, normErr := p.Normalizer.Normalize(fetchResult.URL(), assetful, normalizeParam)
	if normErr != nil {
		return PageResult{}, normErr
	}

	writeResult, err := p.Storage.Write(p.OutputDir, normalized, p.HashAlgo)
	if err != nil {
		return PageResult{}, err
	}

	return PageResult{
		Title:          normalized.Frontmatter().Title(),
		Markdown:       string(normalized.Content()),
		DiscoveredURLs: sanitized.GetDiscoveredURLs(),
		HTTPStatus:     fetchResult.Code(),
		WritePath:      writeResult.Path(),
	}, nil
}
