package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(script|style)>`)
	anyTagRe      = regexp.MustCompile(`<[^>]*>`)
	entityRe      = regexp.MustCompile(`&#?\w+;`)

	namedEntities = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// StripHTMLTags extracts the readable text from an HTML or XHTML
// document. Script and style elements are dropped with their content;
// every other tag boundary becomes a single space so tokens never
// concatenate across elements.
func StripHTMLTags(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return stripWithPatterns(src)
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				out.WriteString(t)
				out.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// The parser decodes &nbsp; to U+00A0, which would survive the
	// horizontal-whitespace collapse as a non-breaking token glue.
	return strings.ReplaceAll(out.String(), " ", " ")
}

// stripWithPatterns is the pattern-based fallback for markup the HTML
// parser refuses: tags become spaces, the six common named entities are
// decoded, every other entity collapses to a space.
func stripWithPatterns(src string) string {
	src = scriptStyleRe.ReplaceAllString(src, " ")
	src = anyTagRe.ReplaceAllString(src, " ")
	src = namedEntities.Replace(src)
	return entityRe.ReplaceAllString(src, " ")
}
