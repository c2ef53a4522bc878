// Package search provides full-text search over the library using Bleve.
// The index lives in memory and is rebuilt from the ready-book set after
// every scan, so it never drifts from the library index and needs no
// on-disk lifecycle.
package search

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/podibleapp/podible-server/internal/domain"
)

// document is the indexed shape of one book.
type document struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Index wraps an in-memory Bleve index. Safe for concurrent use; Rebuild
// swaps the whole index under a write lock.
type Index struct {
	log *slog.Logger

	mu    sync.RWMutex
	index bleve.Index
}

// New creates an empty search index.
func New(log *slog.Logger) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}
	return &Index{log: log.With("component", "search"), index: idx}, nil
}

// buildMapping indexes title, author, and description as English-analyzed
// text. Nothing is stored; hits carry only the book id.
func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("author", text)
	doc.AddFieldMappingsAt("description", text)

	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = keyword.Name
	m.AddDocumentMapping("_default", doc)
	return m
}

// Rebuild replaces the index contents with the given books.
func (s *Index) Rebuild(books []*domain.Book) error {
	next, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}

	batch := next.NewBatch()
	for _, b := range books {
		if err := batch.Index(b.ID, document{
			Title:       b.Title,
			Author:      b.Author,
			Description: b.Description,
		}); err != nil {
			return fmt.Errorf("index book %s: %w", b.ID, err)
		}
	}
	if err := next.Batch(batch); err != nil {
		return fmt.Errorf("apply search batch: %w", err)
	}

	s.mu.Lock()
	old := s.index
	s.index = next
	s.mu.Unlock()

	old.Close() //nolint:errcheck // Replaced in-memory index
	s.log.Debug("search index rebuilt", "books", len(books))
	return nil
}

// Search runs a match query over title, author, and description and returns
// matching book ids, best first.
func (s *Index) Search(q string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	title := bleve.NewMatchQuery(q)
	title.SetField("title")
	title.SetBoost(2)
	author := bleve.NewMatchQuery(q)
	author.SetField("author")
	author.SetBoost(2)
	description := bleve.NewMatchQuery(q)
	description.SetField("description")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(title, author, description))
	req.Size = 100

	result, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
