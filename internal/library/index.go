// Package library holds the in-memory index of ready books and its JSON
// persistence.
package library

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/util"
)

// Index is the single source of truth for ready books. The scanner replaces
// its contents at end-of-scan, the worker promotes freshly transcoded books
// into it, and HTTP handlers read it.
type Index struct {
	log  *slog.Logger
	path string

	mu    sync.RWMutex
	books map[string]*domain.Book
}

// NewIndex creates an index persisting to path.
func NewIndex(path string, log *slog.Logger) *Index {
	return &Index{
		log:   log.With("component", "library"),
		path:  path,
		books: make(map[string]*domain.Book),
	}
}

// Load reads the persisted index. A missing or unreadable file starts empty;
// added_at is not persisted and is recomputed by the next scan.
func (x *Index) Load() {
	data, err := os.ReadFile(x.path)
	if err != nil {
		if !os.IsNotExist(err) {
			x.log.Warn("unreadable library index, starting empty", "path", x.path, "error", err)
		}
		return
	}

	var books []*domain.Book
	if err := json.Unmarshal(data, &books); err != nil {
		x.log.Warn("corrupt library index, starting empty", "path", x.path, "error", err)
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, b := range books {
		if b != nil && b.ID != "" {
			x.books[b.ID] = b
		}
	}
	x.log.Debug("library index loaded", "books", len(x.books))
}

// Put inserts or replaces one book. Used by the worker to promote a finished
// transcode; persistence is a separate, explicit step.
func (x *Index) Put(book *domain.Book) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.books[book.ID] = book
}

// Find returns the book with the given id.
func (x *Index) Find(id string) (*domain.Book, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	b, ok := x.books[id]
	return b, ok
}

// Sorted returns all books ordered by added_at descending, falling back to
// published_at for books whose directory times are unknown.
func (x *Index) Sorted() []*domain.Book {
	x.mu.RLock()
	defer x.mu.RUnlock()

	books := make([]*domain.Book, 0, len(x.books))
	for _, b := range x.books {
		books = append(books, b)
	}
	sort.SliceStable(books, func(i, j int) bool {
		ti, tj := books[i].SortTime(), books[j].SortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return books[i].ID < books[j].ID
	})
	return books
}

// ReplaceAll swaps the entire index for the result of a scan, evicting books
// the scan no longer produced.
func (x *Index) ReplaceAll(books []*domain.Book) {
	next := make(map[string]*domain.Book, len(books))
	for _, b := range books {
		if b != nil && b.ID != "" {
			next[b.ID] = b
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.books = next
}

// Len returns the number of ready books.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.books)
}

// Persist writes the index whole, atomically.
func (x *Index) Persist() error {
	books := x.Sorted()

	data, err := json.Marshal(books)
	if err != nil {
		return fmt.Errorf("marshal library index: %w", err)
	}
	if err := util.WriteFileAtomic(x.path, data, 0o644); err != nil {
		return fmt.Errorf("write library index: %w", err)
	}
	return nil
}
