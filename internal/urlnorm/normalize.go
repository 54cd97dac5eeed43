// Package urlnorm implements C1: URL canonicalization, fingerprinting, and
// the admission-time classifiers (doc-likeness, path-prefix scoping) that
// gate whether a discovered link is ever placed on the queue.
package urlnorm

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/crawlkit/docscrawler/pkg/hashutil"
	"github.com/crawlkit/docscrawler/pkg/urlutil"
)

// Normalize resolves raw against base and returns its canonical form, or
// ok=false if raw is not an admissible URL at all (empty, fragment-only,
// javascript:/mailto:, unparseable, or cross-origin when AllowExternal is
// false). Any parse error is treated as a silent drop, per the edge
// policy: a malformed link is dropped, never escalated to an error.
func Normalize(raw string, base url.URL, opts Options) (url.URL, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "#" {
		return url.URL{}, false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return url.URL{}, false
	}

	if parsed.Scheme != "" {
		if _, rejected := rejectedSchemes[strings.ToLower(parsed.Scheme)]; rejected {
			return url.URL{}, false
		}
	}

	resolved := resolveAgainst(parsed, base)

	canonical := urlutil.Canonicalize(resolved)
	if !opts.KeepFragment {
		canonical.Fragment = ""
		canonical.RawFragment = ""
	}

	if !opts.AllowExternal {
		baseCanonical := urlutil.Canonicalize(base)
		if canonical.Scheme+"://"+canonical.Host != baseCanonical.Scheme+"://"+baseCanonical.Host {
			return url.URL{}, false
		}
	}

	return canonical, true
}

// resolveAgainst implements the protocol-relative / path-absolute / bare
// resolution rules: "//host/path" adopts https, a path-absolute reference
// adopts base's origin, and a bare reference resolves relative to base.
func resolveAgainst(ref *url.URL, base url.URL) url.URL {
	if strings.HasPrefix(ref.String(), "//") {
		withScheme := *ref
		withScheme.Scheme = "https"
		return withScheme
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme == "" {
		resolved.Scheme = "https"
	}
	return *resolved
}

// Fingerprint returns the dedup key for a canonical URL: a SHA-1 digest,
// scheme-stripped by default so http and https variants of the same page
// collide. The fragment is always stripped before hashing regardless of
// whether the canonical form retained it, per the idempotence law
// fingerprint(u) == fingerprint(u with fragment stripped).
func Fingerprint(canonical url.URL, opts FingerprintOptions) (string, error) {
	key := canonical
	key.Fragment = ""
	key.RawFragment = ""

	var basis string
	if opts.IncludeScheme {
		basis = key.String()
	} else {
		schemeless := key
		schemeless.Scheme = ""
		basis = strings.TrimPrefix(schemeless.String(), "//")
	}

	return hashutil.HashBytes([]byte(basis), hashutil.HashAlgoSHA1)
}

var cleanPathSegment = regexp.MustCompile(`^[\w-]+$`)

// IsDocumentationLike applies the closed reject/accept rules of §4.1: an
// extension blocklist, a path-token blocklist, and an allowlist of root /
// doc-segment / "clean path" candidates.
func IsDocumentationLike(u url.URL) bool {
	lowerPath := strings.ToLower(u.Path)

	if ext := strings.TrimPrefix(path.Ext(lowerPath), "."); ext != "" {
		if _, rejected := rejectedExtensions[ext]; rejected {
			return false
		}
	}

	for _, token := range rejectedPathTokens {
		if strings.Contains(lowerPath, token) {
			return false
		}
	}

	if lowerPath == "" || lowerPath == "/" {
		return true
	}

	for _, token := range docPathTokens {
		if strings.Contains(lowerPath, token) {
			return true
		}
	}

	return isCleanPath(lowerPath)
}

// isCleanPath accepts paths whose every segment matches [\w-]+.
func isCleanPath(p string) bool {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if !cleanPathSegment.MatchString(seg) {
			return false
		}
	}
	return true
}

// WithinPathPrefix reports whether candidate shares seed's origin and its
// path begins with seed's directory (the seed path up to its last "/").
// This is how a job scopes itself to a subtree of the seed's site.
func WithinPathPrefix(candidate url.URL, seed url.URL) bool {
	candidateCanon := urlutil.Canonicalize(candidate)
	seedCanon := urlutil.Canonicalize(seed)

	if candidateCanon.Scheme+"://"+candidateCanon.Host != seedCanon.Scheme+"://"+seedCanon.Host {
		return false
	}

	prefix := seedDirectory(seedCanon.Path)
	return strings.HasPrefix(candidateCanon.Path, prefix)
}

// seedDirectory returns the seed path up to (and including) its last "/".
// A seed with no "/" beyond root scopes to "/".
func seedDirectory(seedPath string) string {
	if seedPath == "" {
		return "/"
	}
	idx := strings.LastIndex(seedPath, "/")
	if idx < 0 {
		return "/"
	}
	return seedPath[:idx+1]
}
