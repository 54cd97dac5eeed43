package extractor

import (
	"regexp"
	"strings"
)

// qualityKeywords are the terms §4.2 rewards — each case-insensitive
// match contributes to the keyword bonus, up to the remaining headroom
// under the 100-point cap.
var qualityKeywords = []string{"api", "documentation", "guide", "tutorial"}

var (
	atxHeadingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
	fencedCodeRe  = regexp.MustCompile("(?m)^```")
	wordSplitRe   = regexp.MustCompile(`\s+`)
)

// ComputeQualityScore scores a converted Markdown document 0-100 per
// the structure/length/keyword heuristic: headings and code blocks
// indicate real documentation rather than a chrome-only scrape, length
// tiers reward substantial pages, and the keyword bonus nudges pages
// that self-identify as docs/guides/tutorials/API references.
func ComputeQualityScore(markdown string) int {
	score := 0

	if atxHeadingRe.MatchString(markdown) {
		score += 15
	}

	fences := len(fencedCodeRe.FindAllString(markdown, -1))
	codeBlocks := fences / 2
	if codeBlocks > 0 {
		score += 15
	}

	length := len(markdown)
	if length > 1000 {
		score += 10
	}
	if length > 5000 {
		score += 15
	}

	codeBonus := codeBlocks * 5
	if codeBonus > 20 {
		codeBonus = 20
	}
	score += codeBonus

	lower := strings.ToLower(markdown)
	for _, kw := range qualityKeywords {
		if score >= 100 {
			break
		}
		if strings.Contains(lower, kw) {
			score += 5
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// WordCount counts whitespace-delimited tokens, used both for a page's
// CrawledPage.WordCount and for the job's running total_words counter
// (which only accumulates words from pages clearing the quality gate).
func WordCount(markdown string) int {
	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return 0
	}
	return len(wordSplitRe.Split(trimmed, -1))
}
