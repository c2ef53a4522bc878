package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMulti_OffsetsAndChapters(t *testing.T) {
	book := NewMulti("author-book", []AudioSegment{
		{Path: "/lib/a/b/01.mp3", Name: "01.mp3", Size: 100, DurationMS: 5000},
		{Path: "/lib/a/b/02.mp3", Name: "02.mp3", Size: 200, DurationMS: 10000, Title: "The Middle"},
		{Path: "/lib/a/b/03.mp3", Name: "03.mp3", Size: 50, DurationMS: 2500},
	})

	require.Equal(t, KindMulti, book.Kind)
	assert.Equal(t, int64(350), book.TotalSize)
	assert.Equal(t, "audio/mpeg", book.MIME)
	assert.InDelta(t, 17.5, book.DurationSeconds, 0.001)

	// files[i].start == sum of sizes before it, end inclusive.
	require.Len(t, book.Files, 3)
	assert.Equal(t, int64(0), book.Files[0].Start)
	assert.Equal(t, int64(99), book.Files[0].End)
	assert.Equal(t, int64(100), book.Files[1].Start)
	assert.Equal(t, int64(299), book.Files[1].End)
	assert.Equal(t, int64(300), book.Files[2].Start)
	assert.Equal(t, int64(349), book.Files[2].End)

	// One chapter per part, cumulative timings.
	require.Len(t, book.Chapters, 3)
	assert.Equal(t, "ch0", book.Chapters[0].ID)
	assert.Equal(t, "Chapter 1", book.Chapters[0].Title)
	assert.Equal(t, int64(0), book.Chapters[0].StartMS)
	assert.Equal(t, int64(5000), book.Chapters[0].EndMS)
	assert.Equal(t, "The Middle", book.Chapters[1].Title)
	assert.Equal(t, int64(5000), book.Chapters[1].StartMS)
	assert.Equal(t, int64(15000), book.Chapters[1].EndMS)
	assert.Equal(t, "ch2", book.Chapters[2].ID)
	assert.Equal(t, int64(15000), book.Chapters[2].StartMS)
	assert.Equal(t, int64(17500), book.Chapters[2].EndMS)

	assert.NoError(t, book.Validate())
}

func TestNewMulti_SinglePart(t *testing.T) {
	book := NewMulti("a-b", []AudioSegment{
		{Path: "/lib/a/b/only.mp3", Name: "only.mp3", Size: 42, DurationMS: 1000},
	})

	require.Len(t, book.Chapters, 1)
	assert.Equal(t, int64(42), book.TotalSize)
	assert.True(t, book.Streamable())
}

func TestNewSingle(t *testing.T) {
	book := NewSingle("a-b", AudioSegment{Path: "/data/a-b-xyz.mp3", Name: "a-b-xyz.mp3", Size: 1234, DurationMS: 60000})

	assert.Equal(t, KindSingle, book.Kind)
	assert.Equal(t, "audio/mpeg", book.MIME)
	assert.Equal(t, int64(1234), book.TotalSize)
	require.NotNil(t, book.Primary)
	assert.Equal(t, int64(0), book.Primary.Start)
	assert.Equal(t, int64(1233), book.Primary.End)
	assert.Nil(t, book.Files)
	assert.NoError(t, book.Validate())
}

func TestBook_Streamable(t *testing.T) {
	single := NewSingle("s", AudioSegment{Path: "x.m4b", Size: 10})
	assert.True(t, single.Streamable())

	emptySingle := NewSingle("s", AudioSegment{Path: "x.m4b", Size: 0})
	assert.False(t, emptySingle.Streamable())

	multi := NewMulti("m", []AudioSegment{{Path: "1.mp3", Size: 5}})
	assert.True(t, multi.Streamable())

	noParts := &Book{ID: "m", Kind: KindMulti}
	assert.False(t, noParts.Streamable())
}

func TestBook_Validate_Violations(t *testing.T) {
	both := &Book{ID: "x", Kind: KindSingle, Primary: &AudioSegment{}, Files: []AudioSegment{{}}}
	assert.Error(t, both.Validate())

	gap := &Book{
		ID:        "y",
		Kind:      KindMulti,
		TotalSize: 30,
		Files: []AudioSegment{
			{Size: 10, Start: 0, End: 9},
			{Size: 10, Start: 15, End: 24},
		},
	}
	assert.Error(t, gap.Validate())
}

func TestBook_SortTime(t *testing.T) {
	added := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	published := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	b := &Book{AddedAt: added, PublishedAt: published}
	assert.Equal(t, added, b.SortTime())

	b.AddedAt = time.Time{}
	assert.Equal(t, published, b.SortTime())
}

func TestMIMEForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"book.mp3", "audio/mpeg"},
		{"Book.MP3", "audio/mpeg"},
		{"book.m4b", "audio/mp4"},
		{"book.m4a", "audio/mp4"},
		{"book.mp4", "audio/mp4"},
		{"book.unknown", "audio/mpeg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MIMEForPath(tt.path), tt.path)
	}
}
