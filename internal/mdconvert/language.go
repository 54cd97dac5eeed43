package mdconvert

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// recognizedLanguages is the closed set a detected language must belong
// to; anything outside it is treated as no match, per the detection
// algorithm's "unknown -> no language tag" step.
var recognizedLanguages = map[string]bool{
	"javascript": true, "js": true,
	"typescript": true, "ts": true,
	"python": true, "py": true,
	"java": true,
	"c": true, "cpp": true, "cs": true,
	"ruby": true, "rb": true,
	"php": true,
	"go": true,
	"rust": true, "rs": true,
	"html": true,
	"css": true,
	"sql": true,
	"shell": true, "bash": true, "sh": true,
	"json": true,
	"yaml": true, "yml": true,
	"xml": true,
	"markdown": true, "md": true,
}

// classPrefixes are the class-name prefixes checked, in order, against
// <code>/<pre> classes: classPrefix + knownLanguageToken.
var classPrefixes = []string{"language-", "lang-", "prism-", "highlight-", "code-"}

var languageAttrs = []string{"data-language", "data-lang", "data-code-language"}

// contentHeuristics are ordered pattern checks against code-block text,
// tried only once class/attribute detection found nothing. The first
// matching language wins.
var contentHeuristics = []struct {
	lang string
	re   *regexp.Regexp
}{
	{"python", regexp.MustCompile(`def |import |if __name__ == "__main__"`)},
	{"javascript", regexp.MustCompile(`\b(const|let|var|function|=>)\b`)},
	{"typescript", regexp.MustCompile(`\b(interface|type|namespace)\b`)},
	{"java", regexp.MustCompile(`\b(public|private|protected|class|void)\b`)},
	{"ruby", regexp.MustCompile(`\b(def|end|module|require)\b`)},
	{"php", regexp.MustCompile(`\$\w+|<\?php`)},
	{"html", regexp.MustCompile(`<\w+[^>]*>`)},
	{"css", regexp.MustCompile(`(?m)^\s*[.#][\w-]+\s*\{`)},
	{"sql", regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|FROM|WHERE)\b`)},
	{"shell", regexp.MustCompile(`(?m)^#!/|sudo|apt-get|yum|brew|chmod|chown`)},
}

// injectCodeLanguages walks doc for <pre><code> blocks and, where a
// language can be detected per the class/attribute/content heuristic
// order, rewrites the <code> element's class to the GFM
// "language-<lang>" convention html-to-markdown/v2's commonmark plugin
// already understands, so the emitted fence carries the language tag
// without needing to touch the converter itself.
func injectCodeLanguages(doc *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "pre" {
			if code := firstChildElement(n, "code"); code != nil {
				if lang := detectLanguage(code, n); lang != "" {
					setClass(code, "language-"+lang)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

// detectLanguage runs the ordered class-prefix -> data-attribute ->
// content-heuristic algorithm against a <code> element (falling back to
// its enclosing <pre> for classes/attributes, since either may carry
// them). Returns "" when nothing in the closed language set matches.
func detectLanguage(code, pre *html.Node) string {
	if lang := languageFromClasses(attrValue(code, "class")); lang != "" {
		return lang
	}
	if lang := languageFromClasses(attrValue(pre, "class")); lang != "" {
		return lang
	}

	for _, attr := range languageAttrs {
		if v := attrValue(code, attr); v != "" {
			if lang := normalizeLanguageToken(v); lang != "" {
				return lang
			}
		}
		if v := attrValue(pre, attr); v != "" {
			if lang := normalizeLanguageToken(v); lang != "" {
				return lang
			}
		}
	}

	content := textContent(code)
	for _, h := range contentHeuristics {
		if h.re.MatchString(content) {
			return h.lang
		}
	}

	return ""
}

// languageFromClasses checks a space-separated class list against each
// recognized class prefix in order, returning the first known language
// token found.
func languageFromClasses(classAttr string) string {
	if classAttr == "" {
		return ""
	}
	for _, class := range strings.Fields(classAttr) {
		for _, prefix := range classPrefixes {
			if strings.HasPrefix(class, prefix) {
				if lang := normalizeLanguageToken(strings.TrimPrefix(class, prefix)); lang != "" {
					return lang
				}
			}
		}
	}
	return ""
}

func normalizeLanguageToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if recognizedLanguages[token] {
		return token
	}
	return ""
}

func firstChildElement(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

func attrValue(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// setClass replaces whatever class the <code> element carries with the
// single detected language class. The original class (if any) was
// either already consumed to produce this detection or never carried a
// recognized token, so nothing downstream needs it preserved.
func setClass(n *html.Node, class string) {
	for i, a := range n.Attr {
		if a.Key == "class" {
			n.Attr[i].Val = class
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
