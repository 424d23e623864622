package epub

import (
	"encoding/xml"
	"path"
	"strings"

	"golang.org/x/net/html"
)

const ncxMediaType = "application/x-dtbncx+xml"

// NCX structures for the legacy table of contents.
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	Label    navLabel   `xml:"navLabel"`
	Content  navContent `xml:"content"`
	Children []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// chapterTitles builds a map from normalized archive path to chapter
// title. Both TOC forms are consulted; the EPUB3 nav document is
// resolved second and overwrites an NCX title for the same target.
// A missing or unparsable TOC yields fewer titles, never an error.
func chapterTitles(arc *archive, opfDir string, items []manifestItem) map[string]string {
	titles := make(map[string]string)

	for _, item := range items {
		if item.MediaType == ncxMediaType {
			titlesFromNCX(arc, resolveHref(opfDir, item.Href), titles)
			break
		}
	}
	for _, item := range items {
		if hasProperty(item.Properties, "nav") {
			titlesFromNav(arc, resolveHref(opfDir, item.Href), titles)
			break
		}
	}
	return titles
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}

// titlesFromNCX records each navPoint's first text against the path
// portion of its content src, recursing into nested points.
func titlesFromNCX(arc *archive, ncxPath string, titles map[string]string) {
	data, ok := arc.read(ncxPath)
	if !ok {
		return
	}
	var toc ncx
	if err := xml.Unmarshal(data, &toc); err != nil {
		return
	}

	baseDir := path.Dir(ncxPath)
	var walk func([]navPoint)
	walk = func(points []navPoint) {
		for _, np := range points {
			title := strings.TrimSpace(np.Label.Text)
			if title != "" && np.Content.Src != "" {
				key := resolveHref(baseDir, np.Content.Src)
				if _, exists := titles[key]; !exists {
					titles[key] = title
				}
			}
			walk(np.Children)
		}
	}
	walk(toc.NavMap.NavPoints)
}

// titlesFromNav records each anchor inside the nav element marked
// epub:type="toc", overwriting any legacy NCX title for the same path.
func titlesFromNav(arc *archive, navPath string, titles map[string]string) {
	data, ok := arc.read(navPath)
	if !ok {
		return
	}
	doc, err := html.Parse(strings.NewReader(string(data)))
	if err != nil {
		return
	}

	baseDir := path.Dir(navPath)
	var walk func(n *html.Node, inTOC bool)
	walk = func(n *html.Node, inTOC bool) {
		if n.Type == html.ElementNode {
			if n.Data == "nav" {
				inTOC = hasAttr(n, "epub:type", "toc")
			}
			if inTOC && n.Data == "a" {
				href := attrVal(n, "href")
				title := strings.TrimSpace(nodeText(n))
				if href != "" && title != "" {
					titles[resolveHref(baseDir, href)] = title
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inTOC)
		}
	}
	walk(doc, false)
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key, want string) bool {
	for _, p := range strings.Fields(attrVal(n, key)) {
		if p == want {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out.String()
}
