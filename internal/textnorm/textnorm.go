// Package textnorm cleans raw extracted text and tokenizes it into words.
// All functions are pure; the same input always produces the same output.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// Options toggles the individual normalization stages. The zero value
// disables everything; use DefaultOptions for the usual full pipeline.
type Options struct {
	HandleHyphenation    bool `yaml:"handle_hyphenation"`
	RemovePageNumbers    bool `yaml:"remove_page_numbers"`
	RemoveChapterMarkers bool `yaml:"remove_chapter_markers"`
	RemoveHeaders        bool `yaml:"remove_headers"`
	CollapseWhitespace   bool `yaml:"collapse_whitespace"`
}

// DefaultOptions returns Options with every stage enabled.
func DefaultOptions() Options {
	return Options{
		HandleHyphenation:    true,
		RemovePageNumbers:    true,
		RemoveChapterMarkers: true,
		RemoveHeaders:        true,
		CollapseWhitespace:   true,
	}
}

var (
	// Word fragment, hyphen, line break, continuation fragment.
	hyphenBreakRe = regexp.MustCompile(`(\p{L}+)-[ \t]*\r?\n[ \t]*(\p{L}+)`)

	// Lines that are nothing but a page number, bare or decorated.
	pageNumberRe = regexp.MustCompile(`(?mi)^[ \t]*(?:\d{1,4}|page[ \t]+\d{1,4}|[—–-][ \t]*\d{1,4}[ \t]*[—–-]|\[\d{1,4}\]|\(\d{1,4}\)|p\.[ \t]*\d{1,4})[ \t]*$`)

	// Lines that are nothing but a chapter/part/section marker.
	chapterMarkerRe = regexp.MustCompile(`(?mi)^[ \t]*(?:chapter[ \t]+(?:\d{1,4}|[ivxlcdm]+)|cap[ií]tulo[ \t]+(?:\d{1,4}|[ivxlcdm]+)|cap\.[ \t]*(?:\d{1,4}|[ivxlcdm]+)|part[ \t]+(?:\d{1,4}|[ivxlcdm]+)|section[ \t]+(?:\d{1,4}|[ivxlcdm]+))[ \t]*$`)

	// A bare Roman numeral on its own line. Matched case-sensitively in
	// both alphabets so mixed-case words never qualify.
	romanLineRe = regexp.MustCompile(`(?m)^[ \t]*(?:[ivxlcdm]+|[IVXLCDM]+)[ \t]*$`)

	// Boilerplate header/footer lines.
	headerLineRe = regexp.MustCompile(`(?mi)^[ \t]*(?:copyright\b|©|all rights reserved|isbn[ \t:]*[\d-]+).*$`)

	lineEndingRe     = regexp.MustCompile(`\r\n?`)
	horizontalWsRe   = regexp.MustCompile(`[ \t\x{00a0}]+`)
	spaceAtNewlineRe = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)

	digitsOnlyRe = regexp.MustCompile(`^\d+$`)
)

// Normalize applies the enabled cleanup stages in a fixed order:
// hyphenation repair, page-number removal, chapter-marker removal,
// header removal, whitespace collapse. Hyphenation repair must run
// first because the later stages destroy the line breaks it anchors on.
func Normalize(text string, opts Options) string {
	if opts.HandleHyphenation {
		text = hyphenBreakRe.ReplaceAllString(text, "$1$2")
	}
	if opts.RemovePageNumbers {
		text = pageNumberRe.ReplaceAllString(text, "")
	}
	if opts.RemoveChapterMarkers {
		text = chapterMarkerRe.ReplaceAllString(text, "")
		text = romanLineRe.ReplaceAllString(text, "")
	}
	if opts.RemoveHeaders {
		text = headerLineRe.ReplaceAllString(text, "")
	}
	if opts.CollapseWhitespace {
		text = lineEndingRe.ReplaceAllString(text, "\n")
		text = horizontalWsRe.ReplaceAllString(text, " ")
		text = spaceAtNewlineRe.ReplaceAllString(text, "\n")
		text = blankRunRe.ReplaceAllString(text, "\n\n")
		text = strings.TrimSpace(text)
	}
	return text
}

// TokenizeWords splits normalized text into reading-order tokens.
// Empty tokens and residual bare numerals are dropped.
func TokenizeWords(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if digitsOnlyRe.MatchString(f) {
			continue
		}
		words = append(words, f)
	}
	return words
}

var junkLineRe = regexp.MustCompile(`^[\d\[\]()—–.\s-]+$`)

// ExtractTitle returns the first line that looks like a real title:
// at least 3 characters, not digits/brackets/dashes only, and not a
// page/chapter/copyright header. Longer titles are truncated to
// maxLength with an ellipsis; a maxLength too small to hold one
// hard-truncates instead. Returns "Untitled" when nothing qualifies.
func ExtractTitle(text string, maxLength int) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		if junkLineRe.MatchString(line) {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "page") ||
			strings.HasPrefix(lower, "chapter") ||
			strings.HasPrefix(lower, "copyright") {
			continue
		}
		runes := []rune(line)
		if len(runes) > maxLength {
			if maxLength < 4 {
				if maxLength < 0 {
					maxLength = 0
				}
				return string(runes[:maxLength])
			}
			return string(runes[:maxLength-3]) + "..."
		}
		return line
	}
	return "Untitled"
}

// TitleCase upper-cases the first letter of every word. Used for
// filename-derived fallback titles.
func TitleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		r := []rune(f)
		r[0] = unicode.ToUpper(r[0])
		fields[i] = string(r)
	}
	return strings.Join(fields, " ")
}
