// Package bookstore persists book records and their word caches in an
// embedded bolt database. Records and word caches live in separate
// buckets so position updates never rewrite a book's word cache.
package bookstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	booksBucket = []byte("books")
	wordsBucket = []byte("words")
)

// ErrNotFound reports a book id with no stored record.
var ErrNotFound = errors.New("bookstore: book not found")

// Kind is the source document format of a book.
type Kind string

const (
	KindEPUB Kind = "epub"
	KindPDF  Kind = "pdf"
)

// Chapter is a persisted chapter boundary. StartIndex is a direct
// offset into the book's word cache; readers rely on it verbatim.
type Chapter struct {
	Title      string `json:"title"`
	StartIndex int    `json:"startIndex"`
}

// Record is the persisted description of an imported book.
type Record struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author,omitempty"`
	Kind            Kind       `json:"kind"`
	StorageLocation string     `json:"storageLocation"`
	WordCount       int        `json:"wordCount"`
	CurrentWord     int        `json:"currentWord"`
	AddedAt         time.Time  `json:"addedAt"`
	LastReadAt      *time.Time `json:"lastReadAt,omitempty"`
	Chapters        []Chapter  `json:"chapters,omitempty"`
}

// Store is a bolt-backed record and word-cache store.
type Store struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open creates or opens the store at dbPath, creating parent
// directories and buckets as needed.
func Open(dbPath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("bookstore: create directory: %w", err)
	}
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("bookstore: open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{booksBucket, wordsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bookstore: create buckets: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes a record and its word cache in one transaction. Nothing is
// visible unless both writes succeed.
func (s *Store) Put(rec *Record, words []string) error {
	recData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("bookstore: encode record: %w", err)
	}
	wordData, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("bookstore: encode words: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(wordsBucket).Put([]byte(rec.ID), wordData); err != nil {
			return err
		}
		return tx.Bucket(booksBucket).Put([]byte(rec.ID), recData)
	})
}

// Get returns the record for id, or ErrNotFound.
func (s *Store) Get(id string) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(booksBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Words returns the cached word sequence for id, or ErrNotFound.
func (s *Store) Words(id string) ([]string, error) {
	var words []string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(wordsBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &words)
	})
	if err != nil {
		return nil, err
	}
	return words, nil
}

// List returns all records, most recently added first.
func (s *Store) List() ([]Record, error) {
	var recs []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(booksBucket).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].AddedAt.After(recs[j].AddedAt)
	})
	return recs, nil
}

// SetPosition updates the reading position and last-read time of a
// book. The word cache is untouched.
func (s *Store) SetPosition(id string, wordIndex int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(booksBucket)
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		now := time.Now()
		rec.CurrentWord = wordIndex
		rec.LastReadAt = &now
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

// Delete removes a book's record and word cache. The copied source file
// is removed best-effort; a failure there is logged and swallowed.
func (s *Store) Delete(id string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(wordsBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(booksBucket).Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	if rec.StorageLocation != "" {
		if err := os.Remove(rec.StorageLocation); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("could not remove stored file",
				zap.String("id", id),
				zap.String("path", rec.StorageLocation),
				zap.Error(err))
		}
	}
	return nil
}
