// Package feed renders the podcast RSS document.
package feed

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/podibleapp/podible-server/internal/config"
	"github.com/podibleapp/podible-server/internal/domain"
)

// Entry is one feed item: a ready book, or a single-container book still
// moving through normalization (shown so operators see it coming).
type Entry struct {
	Book  *domain.Book
	State domain.TranscodeState // empty for ready books
	Err   string                // failure detail, failed entries only
}

// Ready reports whether the entry may carry an enclosure.
func (e Entry) Ready() bool {
	return e.State == ""
}

// Collect merges the ready books with the not-yet-ready transcode records
// into one feed item list, newest first. Records without a metadata snapshot
// are skipped; there is nothing presentable to render.
func Collect(books []*domain.Book, statuses []domain.TranscodeStatus) []Entry {
	entries := make([]Entry, 0, len(books)+len(statuses))
	for _, b := range books {
		entries = append(entries, Entry{Book: b})
	}
	for _, st := range statuses {
		if st.State == domain.TranscodeStateDone || st.Meta == nil {
			continue
		}
		entries = append(entries, Entry{Book: st.Meta, State: st.State, Err: st.Error})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ti, tj := entries[i].Book.SortTime(), entries[j].Book.SortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return entries[i].Book.ID < entries[j].Book.ID
	})
	return entries
}

// Builder renders RSS for a channel configured once at startup.
type Builder struct {
	cfg config.FeedConfig
	key string
}

// NewBuilder creates a feed builder. Item and channel URLs embed the API key
// as a query parameter, since podcast clients cannot send headers.
func NewBuilder(cfg config.FeedConfig, apiKey string) *Builder {
	return &Builder{cfg: cfg, key: apiKey}
}

// itemURL builds an authenticated absolute URL for one endpoint of a book.
func (b *Builder) itemURL(baseURL, endpoint, bookID string) string {
	return fmt.Sprintf("%s/%s/%s?key=%s", baseURL, endpoint, url.PathEscape(bookID), b.key)
}
