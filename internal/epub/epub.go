// Package epub recovers reading order, chapter text, and chapter titles
// from EPUB archives. It resolves only the structure this requires:
// container.xml, the OPF package document, and the NCX/nav tables of
// contents. It is not a general EPUB object model.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/glance-reader/glance/internal/textnorm"
)

var (
	// ErrNoContainer means META-INF/container.xml is absent or does not
	// name a package document. Unrecoverable for this format.
	ErrNoContainer = errors.New("epub: META-INF/container.xml missing or unusable")

	// ErrNoPackage means the OPF file the container points at is absent
	// or unparsable. Unrecoverable for this format.
	ErrNoPackage = errors.New("epub: package document missing or unusable")
)

// Spine entries that tokenize to fewer words than this are boilerplate
// (cover pages, colophons) and are dropped before index assignment.
const minChapterWords = 11

// Chapter marks where a chapter's first word sits in the flat word
// sequence. StartIndex values are strictly increasing and the first
// accepted chapter always starts at 0.
type Chapter struct {
	Title      string
	StartIndex int
}

// Metadata is the best-effort document metadata from the OPF.
type Metadata struct {
	Title  string
	Author string
}

// Book is the resolved document: its words in reading order and the
// chapter boundaries into them.
type Book struct {
	Metadata Metadata
	Words    []string
	Chapters []Chapter
}

// archive is read-only access to the EPUB zip entries by normalized
// path. A missing entry is a normal outcome, not an error.
type archive struct {
	files map[string]*zip.File
}

func newArchive(data []byte) (*archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("epub: not a readable archive: %w", err)
	}
	a := &archive{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		a.files[normalizePath(f.Name)] = f
	}
	return a, nil
}

func (a *archive) read(name string) ([]byte, bool) {
	f, ok := a.files[normalizePath(name)]
	if !ok {
		return nil, false
	}
	rc, err := f.Open()
	if err != nil {
		return nil, false
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false
	}
	return data, true
}

func normalizePath(p string) string {
	return path.Clean(strings.TrimPrefix(p, "/"))
}

// container.xml structure; only full-path matters here.
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath string `xml:"full-path,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// OPF package document. Element names are matched by local name so
// namespace prefixes (dc:, opf:) and attribute order never matter.
type opfPackage struct {
	Metadata struct {
		Title   []string `xml:"title"`
		Creator []string `xml:"creator"`
	} `xml:"metadata"`
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemrefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// Parse resolves an EPUB byte stream into its word sequence and chapter
// boundaries. Structural failures (no container, no package document)
// abort; a single unreadable spine entry is skipped and processing
// continues with the rest of the book.
func Parse(data []byte, opts textnorm.Options) (*Book, error) {
	arc, err := newArchive(data)
	if err != nil {
		return nil, err
	}

	containerXML, ok := arc.read("META-INF/container.xml")
	if !ok {
		return nil, ErrNoContainer
	}
	var c container
	if err := xml.Unmarshal(containerXML, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoContainer, err)
	}
	opfPath := ""
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath != "" {
			opfPath = normalizePath(rf.FullPath)
			break
		}
	}
	if opfPath == "" {
		return nil, ErrNoContainer
	}

	opfXML, ok := arc.read(opfPath)
	if !ok {
		return nil, ErrNoPackage
	}
	var pkg opfPackage
	if err := xml.Unmarshal(opfXML, &pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPackage, err)
	}
	opfDir := path.Dir(opfPath)

	book := &Book{}
	if len(pkg.Metadata.Title) > 0 {
		book.Metadata.Title = strings.TrimSpace(pkg.Metadata.Title[0])
	}
	if len(pkg.Metadata.Creator) > 0 {
		book.Metadata.Author = strings.TrimSpace(pkg.Metadata.Creator[0])
	}

	// Manifest id -> href. Duplicate ids resolve last-write-wins.
	manifest := make(map[string]manifestItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		if item.ID != "" && item.Href != "" {
			manifest[item.ID] = item
		}
	}

	titles := chapterTitles(arc, opfDir, pkg.Manifest.Items)

	// Spine order is the reading order. Processing is sequential: each
	// chapter's start index is the word count accumulated so far.
	for _, ref := range pkg.Spine.Itemrefs {
		item, ok := manifest[ref.IDRef]
		if !ok {
			continue
		}
		full := resolveHref(opfDir, item.Href)
		raw, ok := arc.read(full)
		if !ok {
			continue
		}

		text := textnorm.StripHTMLTags(string(raw))
		text = textnorm.Normalize(text, opts)
		words := textnorm.TokenizeWords(text)
		if len(words) < minChapterWords {
			continue
		}

		title := titles[full]
		if title == "" {
			title = fallbackTitle(full, len(book.Chapters)+1)
		}
		book.Chapters = append(book.Chapters, Chapter{
			Title:      title,
			StartIndex: len(book.Words),
		})
		book.Words = append(book.Words, words...)
	}

	if len(book.Chapters) == 0 && len(book.Words) > 0 {
		book.Chapters = []Chapter{{Title: "Start", StartIndex: 0}}
	}
	return book, nil
}

// resolveHref turns a manifest/TOC href into a normalized archive path,
// dropping any fragment and percent-encoding.
func resolveHref(baseDir, href string) string {
	if i := strings.Index(href, "#"); i >= 0 {
		href = href[:i]
	}
	if u, err := url.PathUnescape(href); err == nil {
		href = u
	}
	if baseDir == "." || baseDir == "" {
		return normalizePath(href)
	}
	return normalizePath(path.Join(baseDir, href))
}

// fallbackTitle derives a chapter title when no TOC entry matched: the
// filename if it names a chapter, otherwise "Chapter n" with n the
// 1-based count of chapters accepted so far.
func fallbackTitle(full string, n int) string {
	base := path.Base(full)
	base = strings.TrimSuffix(base, path.Ext(base))
	name := strings.NewReplacer("_", " ", "-", " ").Replace(base)
	lower := strings.ToLower(name)
	if strings.Contains(lower, "chap") {
		r := []rune(name)
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}
		return string(r)
	}
	return fmt.Sprintf("Chapter %d", n)
}
