// Package pdf recovers linear reading text from PDF byte streams.
//
// This is deliberately not a PDF object-model parser. Content streams
// interleave text-showing operators with positioning and graphics
// instructions, and the text we want sits in literal and hex strings
// next to Tj/TJ operators. Scanning for those patterns directly, with a
// printability filter to suppress compressed-stream and font noise,
// recovers reading text from the common run of born-digital PDFs.
package pdf

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/glance-reader/glance/internal/textnorm"
)

// ErrLikelyScanned reports a PDF whose recoverable text is too short to
// be a real text document; it is almost certainly image-based/scanned.
var ErrLikelyScanned = errors.New("pdf: too little extractable text, likely an image-based or scanned document")

// minTextLength is the floor, in characters of normalized text, below
// which extraction is treated as failed rather than merely short.
const minTextLength = 50

const header = "%PDF-"

var (
	textBlockRe = regexp.MustCompile(`(?s)\bBT\b(.*?)\bET\b`)

	// A literal string followed by Tj, or a TJ array of literals
	// interleaved with kerning numbers. One alternation keeps the
	// operators in source order.
	showTextRe = regexp.MustCompile(`(?s)\(((?:\\.|[^\\()])*)\)\s*Tj|\[((?:\\.|[^\\\]])*)\]\s*TJ`)

	literalRe = regexp.MustCompile(`(?s)\(((?:\\.|[^\\()])*)\)`)
	hexRe     = regexp.MustCompile(`<([0-9A-Fa-f\s]{2,})>`)

	octalEscRe = regexp.MustCompile(`\\[0-7]{3}`)
)

// IsPDF reports whether data starts with the PDF file header.
func IsPDF(data []byte) bool {
	return len(data) >= len(header) && string(data[:len(header)]) == header
}

// ExtractText recovers reading text from raw PDF bytes. It returns
// ErrLikelyScanned when the result, after normalization, is under 50
// characters, so callers can explain scanned documents specifically.
func ExtractText(data []byte) (string, error) {
	stream := string(data)

	var fragments []string

	// Pass 1: text shown by Tj/TJ operators inside BT...ET blocks.
	// Operands within one block concatenate with no separator; the
	// operators already carry their own spacing.
	for _, block := range textBlockRe.FindAllStringSubmatch(stream, -1) {
		var buf strings.Builder
		for _, op := range showTextRe.FindAllStringSubmatch(block[1], -1) {
			if op[1] != "" {
				buf.WriteString(decodeLiteral(op[1]))
				continue
			}
			for _, lit := range literalRe.FindAllStringSubmatch(op[2], -1) {
				buf.WriteString(decodeLiteral(lit[1]))
			}
		}
		if buf.Len() > 0 {
			fragments = append(fragments, buf.String())
		}
	}

	// Pass 2: fallback over everything outside the consumed blocks,
	// for streams whose operators the first pass under-recovers.
	rest := textBlockRe.ReplaceAllString(stream, " ")

	var hexCandidates []string
	for _, m := range literalRe.FindAllStringSubmatch(rest, -1) {
		if s := decodeLiteral(m[1]); printable(s) {
			fragments = append(fragments, s)
		}
	}
	for _, m := range hexRe.FindAllStringSubmatch(rest, -1) {
		if s := decodeHex(m[1]); printable(s) {
			hexCandidates = append(hexCandidates, s)
		}
	}
	fragments = append(fragments, hexCandidates...)

	text := strings.Join(fragments, " ")

	normalized := textnorm.Normalize(text, textnorm.DefaultOptions())
	if utf8.RuneCountInString(normalized) < minTextLength {
		return "", ErrLikelyScanned
	}
	return text, nil
}

// decodeLiteral resolves PDF literal-string escapes: the named escapes
// \n \r \t \( \) \\ and three-digit octal byte values. Any other
// escaped character stands for itself.
func decodeLiteral(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			out.WriteByte(c)
			continue
		}
		if m := octalEscRe.FindString(s[i:]); m != "" && strings.HasPrefix(s[i:], m) {
			var b byte
			for _, d := range m[1:] {
				b = b*8 + byte(d-'0')
			}
			out.WriteByte(b)
			i += 3
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 'r':
			out.WriteByte('\r')
		case 't':
			out.WriteByte('\t')
		case '(', ')', '\\':
			out.WriteByte(s[i])
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String()
}

// decodeHex converts a hex string body two digits at a time. Decoded
// NUL bytes are dropped, not emitted.
func decodeHex(s string) string {
	var digits []byte
	for i := 0; i < len(s); i++ {
		if isHexDigit(s[i]) {
			digits = append(digits, s[i])
		}
	}
	var out strings.Builder
	for i := 0; i+1 < len(digits); i += 2 {
		b := hexVal(digits[i])<<4 | hexVal(digits[i+1])
		if b == 0 {
			continue
		}
		out.WriteByte(b)
	}
	return out.String()
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// printable reports whether a candidate fragment looks like text rather
// than binary noise: longer than 2 characters with at least 70% of its
// characters in the ASCII-printable, Latin-1, Latin-Extended, or
// Cyrillic ranges. Fragments carry raw stream bytes, so sequences that
// do not decode as UTF-8 are read byte-by-byte as Latin-1 code points
// rather than counted as decode errors; single-byte encodings such as
// Latin-1 and CP1251 land in the accepted ranges that way.
func printable(s string) bool {
	var total, ok int
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			r = rune(s[i])
		}
		i += size
		total++
		switch {
		case r >= 0x20 && r <= 0x7e,
			r == '\n' || r == '\r' || r == '\t',
			r >= 0xa0 && r <= 0xff,
			r >= 0x100 && r <= 0x24f,
			r >= 0x400 && r <= 0x4ff:
			ok++
		}
	}
	if total <= 2 {
		return false
	}
	return float64(ok)/float64(total) >= 0.7
}
