// Package importer sequences a document import: copy the source into
// durable storage, extract and tokenize its text, then persist the book
// record and word cache. It is the only caller of the format packages.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glance-reader/glance/internal/bookstore"
	"github.com/glance-reader/glance/internal/epub"
	"github.com/glance-reader/glance/internal/pdf"
	"github.com/glance-reader/glance/internal/textnorm"
)

// ErrUnsupportedFormat reports a file extension no extractor handles.
var ErrUnsupportedFormat = errors.New("importer: unsupported document format")

// Config carries the explicit per-importer settings; there is no
// ambient global state.
type Config struct {
	// DataDir is where imported source files are copied.
	DataDir string
	// Normalize selects the text-cleanup stages applied to every
	// extracted unit.
	Normalize textnorm.Options
}

// Importer runs document imports against a single store. Separate
// imports share no mutable state and may run concurrently.
type Importer struct {
	store  *bookstore.Store
	cfg    Config
	logger *zap.Logger
}

// New returns an Importer writing through store.
func New(store *bookstore.Store, cfg Config, logger *zap.Logger) *Importer {
	return &Importer{store: store, cfg: cfg, logger: logger}
}

// KindForPath maps a file name to its document kind.
func KindForPath(p string) (bookstore.Kind, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".epub":
		return bookstore.KindEPUB, nil
	case ".pdf":
		return bookstore.KindPDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(p))
	}
}

// parsed is the triple the parsing stage hands to the saving stage.
type parsed struct {
	meta     epub.Metadata
	words    []string
	chapters []epub.Chapter
}

// Import runs the whole pipeline for one document. Any failure aborts
// the import before the record write, so no partial book is ever
// persisted; an already-copied file may be left behind for the store's
// cleanup. Progress is reported as copying, parsing, saving, in order.
func (im *Importer) Import(ctx context.Context, srcPath string, onProgress ProgressFunc) (*bookstore.Record, error) {
	kind, err := KindForPath(srcPath)
	if err != nil {
		return nil, err
	}

	onProgress.emit(StageCopying, "Copying file...")
	id := uuid.NewString()
	dst := filepath.Join(im.cfg.DataDir, id+strings.ToLower(filepath.Ext(srcPath)))
	if err := copyFile(srcPath, dst); err != nil {
		return nil, fmt.Errorf("importer: copy source: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	onProgress.emit(StageParsing, "Extracting text...")
	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("importer: read copied file: %w", err)
	}

	var doc parsed
	switch kind {
	case bookstore.KindEPUB:
		doc, err = im.parseEPUB(data)
	case bookstore.KindPDF:
		doc, err = im.parsePDF(data)
	}
	if err != nil {
		im.logger.Error("import failed during parsing",
			zap.String("path", srcPath),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, err
	}

	title := doc.meta.Title
	if title == "" {
		title = titleFromFilename(srcPath)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	onProgress.emit(StageSaving, "Saving book...")
	chapters := make([]bookstore.Chapter, len(doc.chapters))
	for i, ch := range doc.chapters {
		chapters[i] = bookstore.Chapter{Title: ch.Title, StartIndex: ch.StartIndex}
	}
	rec := &bookstore.Record{
		ID:              id,
		Title:           title,
		Author:          doc.meta.Author,
		Kind:            kind,
		StorageLocation: dst,
		WordCount:       len(doc.words),
		CurrentWord:     0,
		AddedAt:         time.Now(),
		Chapters:        chapters,
	}
	if err := im.store.Put(rec, doc.words); err != nil {
		return nil, fmt.Errorf("importer: persist book: %w", err)
	}

	im.logger.Info("imported book",
		zap.String("id", rec.ID),
		zap.String("title", rec.Title),
		zap.Int("words", rec.WordCount),
		zap.Int("chapters", len(rec.Chapters)))
	return rec, nil
}

func (im *Importer) parseEPUB(data []byte) (parsed, error) {
	book, err := epub.Parse(data, im.cfg.Normalize)
	if err != nil {
		return parsed{}, err
	}
	return parsed{meta: book.Metadata, words: book.Words, chapters: book.Chapters}, nil
}

func (im *Importer) parsePDF(data []byte) (parsed, error) {
	raw, err := pdf.ExtractText(data)
	if err != nil {
		return parsed{}, err
	}
	text := textnorm.Normalize(raw, im.cfg.Normalize)
	words := textnorm.TokenizeWords(text)

	doc := parsed{words: words}
	if len(words) > 0 {
		doc.chapters = []epub.Chapter{{Title: "Start", StartIndex: 0}}
	}
	if title := textnorm.ExtractTitle(text, 50); title != "Untitled" {
		doc.meta.Title = title
	}
	return doc, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var separatorRe = regexp.MustCompile(`[_\-\s]+`)

// titleFromFilename turns "my_great-book.epub" into "My Great Book".
func titleFromFilename(p string) string {
	base := filepath.Base(p)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := separatorRe.ReplaceAllString(base, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "Untitled"
	}
	return textnorm.TitleCase(name)
}
