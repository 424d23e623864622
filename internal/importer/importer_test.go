package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/glance-reader/glance/internal/bookstore"
	"github.com/glance-reader/glance/internal/pdf"
	"github.com/glance-reader/glance/internal/textnorm"
)

func newTestImporter(t *testing.T) (*Importer, *bookstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := bookstore.Open(filepath.Join(dir, "glance.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	im := New(store, Config{
		DataDir:   filepath.Join(dir, "books"),
		Normalize: textnorm.DefaultOptions(),
	}, zap.NewNop())
	return im, store
}

// writeEPUB writes a minimal two-chapter EPUB and returns its path.
func writeEPUB(t *testing.T, dir, name string, withTitle bool) string {
	t.Helper()

	metadata := "<metadata/>"
	if withTitle {
		metadata = `<metadata><dc:title>The Adventure</dc:title><dc:creator>J. Watson</dc:creator></metadata>`
	}
	opf := `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/">
  ` + metadata + `
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="ch1"/><itemref idref="ch2"/></spine>
</package>`

	files := map[string]string{
		"META-INF/container.xml": `<container><rootfiles><rootfile full-path="content.opf"/></rootfiles></container>`,
		"content.opf":            opf,
		"ch1.xhtml":              "<html><body>" + wordRun(15) + "</body></html>",
		"ch2.xhtml":              "<html><body>" + wordRun(20) + "</body></html>",
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for n, content := range files {
		f, err := w.Create(n)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		f.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func wordRun(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%da", i+1)
	}
	return strings.Join(words, " ")
}

func TestImportEPUB(t *testing.T) {
	im, store := newTestImporter(t)
	src := writeEPUB(t, t.TempDir(), "book.epub", true)

	var stages []Stage
	rec, err := im.Import(context.Background(), src, func(p Progress) {
		stages = append(stages, p.Stage)
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	wantStages := []Stage{StageCopying, StageParsing, StageSaving}
	if len(stages) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", stages, wantStages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Errorf("stage %d = %s, want %s", i, stages[i], wantStages[i])
		}
	}

	if rec.Title != "The Adventure" {
		t.Errorf("Title = %q, want The Adventure", rec.Title)
	}
	if rec.Author != "J. Watson" {
		t.Errorf("Author = %q, want J. Watson", rec.Author)
	}
	if rec.Kind != bookstore.KindEPUB {
		t.Errorf("Kind = %s, want epub", rec.Kind)
	}
	if rec.WordCount != 35 {
		t.Errorf("WordCount = %d, want 35", rec.WordCount)
	}
	if rec.CurrentWord != 0 {
		t.Errorf("CurrentWord = %d, want 0", rec.CurrentWord)
	}
	if len(rec.Chapters) != 2 || rec.Chapters[1].StartIndex != 15 {
		t.Errorf("Chapters = %+v, want second chapter at word 15", rec.Chapters)
	}

	// Record and word cache are both persisted and addressable by id.
	stored, err := store.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.WordCount != 35 {
		t.Errorf("stored WordCount = %d, want 35", stored.WordCount)
	}
	words, err := store.Words(rec.ID)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(words) != 35 {
		t.Errorf("stored words = %d, want 35", len(words))
	}

	// The source was copied into the data directory.
	if _, err := os.Stat(rec.StorageLocation); err != nil {
		t.Errorf("copied file missing: %v", err)
	}
	if !strings.HasSuffix(rec.StorageLocation, ".epub") {
		t.Errorf("StorageLocation = %q, want .epub suffix", rec.StorageLocation)
	}
}

func TestImportTitleFromFilename(t *testing.T) {
	im, _ := newTestImporter(t)
	src := writeEPUB(t, t.TempDir(), "my_great-book.epub", false)

	rec, err := im.Import(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if rec.Title != "My Great Book" {
		t.Errorf("Title = %q, want My Great Book", rec.Title)
	}
}

func TestImportPDF(t *testing.T) {
	im, store := newTestImporter(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "paper.pdf")
	content := "%PDF-1.4\nBT (Understanding Tides\n) Tj (The gravitational pull of the moon drives the rise and fall of sea levels across every coast on earth) Tj ET"
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rec, err := im.Import(context.Background(), src, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if rec.Kind != bookstore.KindPDF {
		t.Errorf("Kind = %s, want pdf", rec.Kind)
	}
	if rec.Title != "Understanding Tides" {
		t.Errorf("Title = %q, want Understanding Tides", rec.Title)
	}
	if len(rec.Chapters) != 1 || rec.Chapters[0].Title != "Start" || rec.Chapters[0].StartIndex != 0 {
		t.Errorf("Chapters = %+v, want single Start chapter", rec.Chapters)
	}
	if rec.WordCount == 0 {
		t.Error("WordCount = 0, want words")
	}

	words, err := store.Words(rec.ID)
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(words) != rec.WordCount {
		t.Errorf("cache has %d words, record says %d", len(words), rec.WordCount)
	}
}

func TestImportScannedPDFPersistsNothing(t *testing.T) {
	im, store := newTestImporter(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "scan.pdf")
	// Extracts to 30 characters, under the content floor.
	content := "%PDF-1.4\nBT (thirty characters of text xx) Tj ET"
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := im.Import(context.Background(), src, nil)
	if !errors.Is(err, pdf.ErrLikelyScanned) {
		t.Fatalf("Import err = %v, want ErrLikelyScanned", err)
	}

	recs, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records persisted after failed import: %+v", recs)
	}
}

func TestImportUnsupportedFormat(t *testing.T) {
	im, _ := newTestImporter(t)
	_, err := im.Import(context.Background(), "notes.txt", nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Import err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path string
		want bookstore.Kind
		ok   bool
	}{
		{"a.epub", bookstore.KindEPUB, true},
		{"B.EPUB", bookstore.KindEPUB, true},
		{"doc.pdf", bookstore.KindPDF, true},
		{"doc.mobi", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, err := KindForPath(tt.path)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("KindForPath(%q) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
		if !tt.ok && err == nil {
			t.Errorf("KindForPath(%q) expected error", tt.path)
		}
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/tmp/my_great-book.epub", "My Great Book"},
		{"plain.pdf", "Plain"},
		{"already good.epub", "Already Good"},
	}
	for _, tt := range tests {
		if got := titleFromFilename(tt.in); got != tt.want {
			t.Errorf("titleFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
