package feed

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podibleapp/podible-server/internal/config"
	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/stream"
)

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{
		Title:       "Test Library",
		Description: "Books on tape",
		Language:    "en",
		Author:      "podible",
		Explicit:    "no",
		Category:    "Arts",
		Type:        "episodic",
		OwnerName:   "Op",
		OwnerEmail:  "op@example.com",
	}
}

func readyBook(id string, added time.Time) *domain.Book {
	b := domain.NewMulti(id, []domain.AudioSegment{
		{Path: "/lib/a/" + id + "/01.mp3", Name: "01.mp3", Size: 1000, DurationMS: 60000},
	})
	b.Title = strings.ToUpper(id)
	b.Author = "Jane Doe"
	b.AddedAt = added
	b.PublishedAt = added
	return b
}

func TestCollectMergesAndSortsNewestFirst(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := readyBook("older", t0)
	newer := readyBook("newer", t0.Add(time.Hour))

	pendingMeta := &domain.Book{ID: "queued", Title: "Queued", AddedAt: t0.Add(2 * time.Hour)}
	statuses := []domain.TranscodeStatus{
		{Source: "/lib/q.m4b", State: domain.TranscodeStatePending, Meta: pendingMeta},
		{Source: "/lib/done.m4b", State: domain.TranscodeStateDone, Meta: &domain.Book{ID: "dup"}},
		{Source: "/lib/bare.m4b", State: domain.TranscodeStateFailed}, // no snapshot
	}

	entries := Collect([]*domain.Book{older, newer}, statuses)

	require.Len(t, entries, 3)
	assert.Equal(t, "queued", entries[0].Book.ID)
	assert.False(t, entries[0].Ready())
	assert.Equal(t, "newer", entries[1].Book.ID)
	assert.True(t, entries[1].Ready())
	assert.Equal(t, "older", entries[2].Book.ID)
}

func TestRenderReadyItem(t *testing.T) {
	book := readyBook("my-book", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	b := NewBuilder(testFeedConfig(), "deadbeef")

	out, err := b.Render("http://host:8080", []Entry{{Book: book}})
	require.NoError(t, err)
	rss := string(out)

	assert.Contains(t, rss, `<?xml`)
	assert.Contains(t, rss, `xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"`)
	assert.Contains(t, rss, `xmlns:podcast="https://podcastindex.org/namespace/1.0"`)
	assert.Contains(t, rss, `<title>Test Library</title>`)
	assert.Contains(t, rss, `<itunes:owner>`)
	assert.Contains(t, rss, `<guid isPermaLink="false">my-book</guid>`)
	assert.Contains(t, rss, `url="http://host:8080/stream/my-book?key=deadbeef"`)
	assert.Contains(t, rss, `type="audio/mpeg"`)
	assert.Contains(t, rss, `<itunes:duration>00:01:00</itunes:duration>`)
	assert.Contains(t, rss, `<podcast:chapters`)
	assert.Contains(t, rss, "/chapters/my-book?key=deadbeef")
}

func TestRenderEnclosureLengthIncludesTagPrefix(t *testing.T) {
	book := readyBook("tagged", time.Now())
	b := NewBuilder(testFeedConfig(), "k")

	out, err := b.Render("http://h", []Entry{{Book: book}})
	require.NoError(t, err)

	want := stream.VirtualSize(book)
	require.Greater(t, want, book.TotalSize, "multi books carry a tag prefix")
	assert.Contains(t, string(out), `length="`+strconv.FormatInt(want, 10)+`"`)
}

func TestRenderPendingItemHasNoEnclosure(t *testing.T) {
	meta := &domain.Book{ID: "soon", Title: "Soon", Description: "A book.", AddedAt: time.Now()}
	b := NewBuilder(testFeedConfig(), "k")

	out, err := b.Render("http://h", []Entry{
		{Book: meta, State: domain.TranscodeStateFailed, Err: "ffmpeg exited with status 1"},
	})
	require.NoError(t, err)
	rss := string(out)

	assert.NotContains(t, rss, "<enclosure")
	assert.Contains(t, rss, "[failed] ffmpeg exited with status 1 A book.")
}

func TestRenderEmptyFeedIsValid(t *testing.T) {
	b := NewBuilder(testFeedConfig(), "k")
	out, err := b.Render("http://h", nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<channel>")
	assert.NotContains(t, string(out), "<item>")
}
