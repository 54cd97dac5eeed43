package urlnorm

// Options controls normalize's behavior for a single call. It mirrors the
// per-job configuration a caller would otherwise thread through every
// admission decision.
type Options struct {
	// AllowExternal permits a candidate whose origin differs from Base's
	// origin. The crawl engine always submits false; a future
	// collaborator config may flip this per §9 Open Questions.
	AllowExternal bool
	// KeepFragment preserves the URL fragment in the canonical form
	// returned to the caller. Fingerprinting always strips the fragment
	// regardless of this flag.
	KeepFragment bool
}

// FingerprintOptions controls fingerprint's behavior.
type FingerprintOptions struct {
	// IncludeScheme, when true, makes the digest vary by scheme. The
	// engine always calls with false so http/https are treated as the
	// same content for dedup purposes.
	IncludeScheme bool
}

var rejectedSchemes = map[string]struct{}{
	"javascript": {},
	"mailto":     {},
}

var rejectedExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "css": {}, "js": {},
	"xml": {}, "pdf": {}, "zip": {}, "tar": {}, "gz": {}, "mp4": {},
}

var rejectedPathTokens = []string{
	"/cdn-cgi/", "/__/", "/wp-admin/", "/wp-includes/",
	"/login", "/signup", "/register", "/account/",
}

var docPathTokens = []string{
	"/docs/", "/documentation/", "/guide/", "/reference/", "/manual/",
	"/learn/", "/tutorial/", "/api/", "/getting-started", "/quickstart",
	"/introduction", "/overview", "/start", "/examples", "/usage",
}
