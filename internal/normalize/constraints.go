package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/crawlkit/docscrawler/internal/assets"
	"github.com/crawlkit/docscrawler/internal/metadata"
	"github.com/crawlkit/docscrawler/pkg/failure"
	"github.com/crawlkit/docscrawler/pkg/hashutil"
	"github.com/crawlkit/docscrawler/pkg/urlutil"
)

/*
Responsibilities
- Inject frontmatter
- Enforce structural rules
- Prepare documents for RAG chunking

Frontmatter Fields
- Title
- Source URL
- Crawl depth
- Section or category
- etc

RAG-Oriented Constraints
- Logical section boundaries preserved
- Code blocks and tables are atomic
- Chunk sizes predictable
*/

type Constraint interface {
	Normalize(
		fetchUrl url.URL,
		assetfulMarkdownDoc assets.AssetfulMarkdownDoc,
		normalizeParam NormalizeParam,
	) (NormalizedMarkdownDoc, failure.ClassifiedError)
}

type MarkdownConstraint struct {
	metadataSink metadata.MetadataSink
}

func NewMarkdownConstraint(
	metadataSink metadata.MetadataSink,
) MarkdownConstraint {
	return MarkdownConstraint{
		metadataSink: metadataSink,
	}
}

func (m *MarkdownConstraint) Normalize(
	fetchUrl url.URL,
	assetfulMarkdownDoc assets.AssetfulMarkdownDoc,
	normalizeParam NormalizeParam,
) (NormalizedMarkdownDoc, failure.ClassifiedError) {
	normalizedMarkdown, err := normalize(fetchUrl, assetfulMarkdownDoc, normalizeParam)
	if err != nil {
		var normalizationError *NormalizationError
		errors.As(err, &normalizationError)
		m.metadataSink.RecordError(
			time.Now(),
			"normalize",
			"MarkdownConstraint.Normalize",
			mapNormalizationErrorToMetadataCause(*normalizationError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
			},
		)
		return NormalizedMarkdownDoc{}, normalizationError
	}
	return normalizedMarkdown, nil
}

func normalize(
	fetchUrl url.URL,
	inputDoc assets.AssetfulMarkdownDoc,
	normalizeParam NormalizeParam,
) (NormalizedMarkdownDoc, failure.ClassifiedError) {
	content := inputDoc.Content()

	// A malformed shape (no/duplicate H1, skipped heading levels, content
	// orphaned before the first H1) never fails the page: the page still
	// normalizes, just with no content body, so the caller's quality gate
	// (driven off word count) scores it zero rather than losing the crawl
	// to a hard error. Only frontmatter construction below can still fail
	// the page outright.
	if !validateStructure(content) {
		content = nil
	}

	frontmatter, err := generateFrontmatter(fetchUrl, content, normalizeParam)
	if err != nil {
		return NormalizedMarkdownDoc{}, err
	}

	return NewNormalizedMarkdownDoc(frontmatter, content), nil
}

// validateStructure reports whether content satisfies the normalization
// shape invariants N1 (exactly one H1), N3 (no skipped heading levels),
// N4 (no content before the first H1), and N6 (no heading nested inside a
// code block; this holds by construction, as the parser reads a "#" line
// inside a code block as code text, never as a Heading). It never errors — a document that fails validation is
// still a successfully normalized, merely empty-bodied, document.
func validateStructure(content []byte) bool {
	if len(bytes.TrimSpace(content)) == 0 {
		return false
	}

	p := parser.New()
	doc := markdown.Parse(content, p)

	var headings []*ast.Heading
	var hasContentBeforeH1 bool

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Heading:
			if entering {
				headings = append(headings, n)
			}

		case *ast.Text, *ast.Paragraph, *ast.List, *ast.Table:
			if entering {
				if len(headings) == 0 {
					hasContentBeforeH1 = true
				}
			}
		}

		return ast.GoToNext
	})

	h1Count := 0
	for _, h := range headings {
		if h.Level == 1 {
			h1Count++
		}
	}
	if h1Count != 1 {
		return false
	}

	if hasContentBeforeH1 {
		return false
	}

	prevLevel := 0
	for _, h := range headings {
		if h.Level > prevLevel+1 && prevLevel != 0 {
			return false
		}
		prevLevel = h.Level
	}

	return true
}

func generateFrontmatter(
	fetchUrl url.URL,
	content []byte,
	normalizeParam NormalizeParam,
) (Frontmatter, failure.ClassifiedError) {
	// The title was already resolved in C2 against the raw HTML's <title> →
	// og:title → first <h1> fallback order (spec'd ordered selection); it
	// never errors, so it is carried through rather than re-derived here.
	title := strings.TrimSpace(normalizeParam.title)

	// Get source URL
	sourceURL := fetchUrl.String()

	// Compute canonical URL
	canonicalURL := urlutil.Canonicalize(fetchUrl)

	// Derive section from canonical URL path (stripping allowedPathPrefixes first)
	section, err := deriveSection(canonicalURL, normalizeParam.allowedPathPrefixes)
	if err != nil {
		return Frontmatter{}, err
	}

	// Compute docID (hash of canonical URL)
	canonicalURLStr := canonicalURL.String()
	docIDHash, hashErr := hashutil.HashBytes([]byte(canonicalURLStr), normalizeParam.hashAlgo)
	if hashErr != nil {
		return Frontmatter{}, &NormalizationError{
			Message:   fmt.Sprintf("failed to compute doc_id: %v", hashErr),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	docID := string(normalizeParam.hashAlgo) + ":" + docIDHash

	// Compute contentHash (hash of markdown content)
	contentHashValue, hashErr := hashutil.HashBytes(content, normalizeParam.hashAlgo)
	if hashErr != nil {
		return Frontmatter{}, &NormalizationError{
			Message:   fmt.Sprintf("failed to compute content_hash: %v", hashErr),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	contentHash := string(normalizeParam.hashAlgo) + ":" + contentHashValue

	// Gather remaining fields from normalizeParam
	fetchedAt := normalizeParam.fetchedAt
	crawlerVersion := normalizeParam.appVersion
	crawlDepth := normalizeParam.crawlDepth

	// Construct immutable Frontmatter
	return NewFrontmatter(
		title,
		sourceURL,
		canonicalURLStr,
		crawlDepth,
		section,
		docID,
		contentHash,
		fetchedAt,
		crawlerVersion,
	), nil
}

// deriveSection extracts the first meaningful path segment from the URL.
// Per frontmatter.md Section 4, section is derived from the first path segment
// after stripping any matching allowedPathPrefix.
//
// Algorithm:
// 1. Check if path starts with any allowedPathPrefix (case-sensitive, exact match)
// 2. If yes, strip that prefix from path
// 3. Take the first remaining path segment as the section
// 4. If no prefix matches, use the first segment of the full path
func deriveSection(canonicalURL url.URL, allowedPathPrefixes []string) (string, failure.ClassifiedError) {
	path := canonicalURL.Path
	if path == "" || path == "/" {
		return "", &NormalizationError{
			Message:   "URL path is empty, cannot derive section",
			Retryable: false,
			Cause:     ErrCauseSectionDerivationFailed,
		}
	}

	// Try to strip matching allowedPathPrefix
	for _, prefix := range allowedPathPrefixes {
		if prefix == "" {
			continue
		}
		// Ensure prefix starts with /
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		// Check if path starts with this prefix
		if strings.HasPrefix(path, prefix) {
			// Strip the prefix
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}

	// Remove leading slash and split by /
	path = strings.TrimPrefix(path, "/")

	// If nothing remains after stripping prefix, error
	if path == "" {
		return "", &NormalizationError{
			Message:   "URL path has no segments after stripping allowedPathPrefix",
			Retryable: false,
			Cause:     ErrCauseSectionDerivationFailed,
		}
	}

	segments := strings.Split(path, "/")

	// Return first non-empty segment
	for _, segment := range segments {
		if segment != "" {
			return segment, nil
		}
	}

	return "", &NormalizationError{
		Message:   "URL path has no valid segments",
		Retryable: false,
		Cause:     ErrCauseSectionDerivationFailed,
	}
}

