package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
// Title is resolved once against DocumentRoot via the <title> → og:title
// → first <h1> → "" fallback order; it never errors.
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
	Title        string
}
