package extractor

import (
	"net/url"

	"github.com/crawlkit/docscrawler/pkg/failure"
)

// Extractor isolates main documentation content out of a fetched HTML
// page. DomExtractor is the only production implementation; the
// interface exists so the scheduler and worker pool can inject a test
// double, the same pattern sanitizer.Sanitizer and mdconvert.ConvertRule
// use for their own single implementations.
type Extractor interface {
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
	SetExtractParam(p ExtractParam)
}

// Compile-time interface check.
var _ Extractor = (*DomExtractor)(nil)

// ContentScoreMultiplier weights the signals used by the density-scoring
// fallback layer (layer 3) when choosing a content container.
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates whether a candidate node actually holds
// article content rather than navigation chrome or an empty shell.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// ExtractParam configures the extractor's heuristics. The zero value is
// not usable directly; NewDomExtractor seeds sane defaults, and callers
// may override via SetExtractParam.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

func defaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  0.75,
		LinkDensityThreshold: 0.80,
		ScoreMultiplier: ContentScoreMultiplier{
			NonWhitespaceDivisor: 50.0,
			Paragraphs:           5.0,
			Headings:             10.0,
			CodeBlocks:           15.0,
			ListItems:            2.0,
		},
		Threshold: MeaningfulThreshold{
			MinNonWhitespace:    50,
			MinHeadings:         0,
			MinParagraphsOrCode: 1,
			MaxLinkDensity:      0.8,
		},
	}
}

// SetExtractParam overrides the extractor's heuristic weights, typically
// from config at crawl start.
func (d *DomExtractor) SetExtractParam(p ExtractParam) {
	d.params = p
}
