// Package domain contains the core types shared across the server.
package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind distinguishes the two book shapes.
type Kind string

const (
	// KindSingle is one normalized container file on disk.
	KindSingle Kind = "single"
	// KindMulti is an ordered set of part files stitched virtually.
	KindMulti Kind = "multi"
)

// AudioSegment describes one audio file and its extent within the virtual
// concatenation. For a single-container book the offsets are zero-based over
// just that file.
type AudioSegment struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	DurationMS int64  `json:"duration_ms"`
	Title      string `json:"title,omitempty"`
}

// ChapterTiming is one entry of a book's chapter table, in milliseconds.
type ChapterTiming struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// Book is one streamable audiobook as presented by the server.
// Exactly one of Primary (single) or Files (multi) is set; use NewSingle and
// NewMulti so the variant constraint holds by construction.
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Kind   Kind   `json:"kind"`
	MIME   string `json:"mime"`

	// TotalSize counts audio bytes only; the synthesized tag prefix of a
	// multi book is not included.
	TotalSize int64 `json:"total_size"`

	Primary *AudioSegment  `json:"primary_file,omitempty"`
	Files   []AudioSegment `json:"files,omitempty"`

	CoverPath     string `json:"cover_path,omitempty"`
	CoverBlurhash string `json:"cover_blurhash,omitempty"`
	EpubPath      string `json:"epub_path,omitempty"`

	DurationSeconds float64 `json:"duration_seconds,omitempty"`

	PublishedAt time.Time `json:"published_at,omitzero"`
	// AddedAt seeds feed ordering. Recomputed from filesystem times on every
	// scan, never persisted.
	AddedAt time.Time `json:"-"`

	Description     string            `json:"description,omitempty"`
	DescriptionHTML string            `json:"description_html,omitempty"`
	Language        string            `json:"language,omitempty"`
	ISBN            string            `json:"isbn,omitempty"`
	Identifiers     map[string]string `json:"identifiers,omitempty"`

	Chapters []ChapterTiming `json:"chapters,omitempty"`
}

// NewSingle constructs a single-container book over one file.
func NewSingle(id string, primary AudioSegment) *Book {
	primary.Start = 0
	primary.End = primary.Size - 1
	return &Book{
		ID:        id,
		Kind:      KindSingle,
		MIME:      MIMEForPath(primary.Path),
		TotalSize: primary.Size,
		Primary:   &primary,
	}
}

// NewMulti constructs a multi-part book. Byte offsets, total size, duration,
// and the per-part chapter table are derived from the segments in order:
// files[i].start is the sum of the sizes before it, chapter timings are the
// cumulative part durations, and a part without a title gets "Chapter {n}".
func NewMulti(id string, files []AudioSegment) *Book {
	var offset, durMS int64
	chapters := make([]ChapterTiming, 0, len(files))
	for i := range files {
		files[i].Start = offset
		files[i].End = offset + files[i].Size - 1
		offset += files[i].Size

		title := files[i].Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		chapters = append(chapters, ChapterTiming{
			ID:      fmt.Sprintf("ch%d", i),
			Title:   title,
			StartMS: durMS,
			EndMS:   durMS + files[i].DurationMS,
		})
		durMS += files[i].DurationMS
	}

	return &Book{
		ID:              id,
		Kind:            KindMulti,
		MIME:            "audio/mpeg",
		TotalSize:       offset,
		Files:           files,
		DurationSeconds: float64(durMS) / 1000,
		Chapters:        chapters,
	}
}

// Streamable reports whether the book may be exposed for streaming:
// a single with its container present, or a multi with at least one
// non-empty part.
func (b *Book) Streamable() bool {
	switch b.Kind {
	case KindSingle:
		return b.Primary != nil && b.Primary.Size > 0
	case KindMulti:
		return len(b.Files) > 0 && b.TotalSize > 0
	default:
		return false
	}
}

// SortTime is the timestamp feed ordering uses: added_at, falling back to
// published_at.
func (b *Book) SortTime() time.Time {
	if !b.AddedAt.IsZero() {
		return b.AddedAt
	}
	return b.PublishedAt
}

// Validate checks the variant constraint and the byte-contiguity invariant.
func (b *Book) Validate() error {
	switch b.Kind {
	case KindSingle:
		if b.Primary == nil || b.Files != nil {
			return fmt.Errorf("single book %s: want exactly primary_file", b.ID)
		}
	case KindMulti:
		if b.Primary != nil || len(b.Files) == 0 {
			return fmt.Errorf("multi book %s: want exactly files", b.ID)
		}
		var offset int64
		for i, f := range b.Files {
			if f.Start != offset || f.End != offset+f.Size-1 {
				return fmt.Errorf("multi book %s: file %d not contiguous", b.ID, i)
			}
			offset += f.Size
		}
		if offset != b.TotalSize {
			return fmt.Errorf("multi book %s: total_size %d != sum of parts %d", b.ID, b.TotalSize, offset)
		}
	default:
		return fmt.Errorf("book %s: unknown kind %q", b.ID, b.Kind)
	}
	return nil
}

// MIMEForPath derives the stream content type from the file extension.
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".m4b", ".mp4":
		return "audio/mp4"
	default:
		return "audio/mpeg"
	}
}
