package stream

import (
	"os"

	"github.com/podibleapp/podible-server/internal/covers"
	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/id3"
)

// Tag materializes the chapter-tag prefix for a book. Only multi books carry
// one; a single's container already holds its own metadata. A cover that
// cannot be read is simply left off, matching TagLength's stat behavior.
func Tag(book *domain.Book) []byte {
	if book.Kind != domain.KindMulti {
		return nil
	}

	var cover *id3.Cover
	if book.CoverPath != "" {
		if data, err := os.ReadFile(book.CoverPath); err == nil && len(data) > 0 {
			cover = &id3.Cover{MIME: covers.MIMEForPath(book.CoverPath), Data: data}
		}
	}
	return id3.Encode(book.Chapters, cover)
}

// TagLength predicts len(Tag(book)) without materializing the tag or reading
// the cover image; the cover contributes its stat size. The feed uses this
// to advertise exact enclosure byte counts.
func TagLength(book *domain.Book) int64 {
	if book.Kind != domain.KindMulti {
		return 0
	}

	var coverMIME string
	var coverSize int64
	if book.CoverPath != "" {
		if info, err := os.Stat(book.CoverPath); err == nil {
			coverMIME = covers.MIMEForPath(book.CoverPath)
			coverSize = info.Size()
		}
	}
	return int64(id3.EncodedLen(book.Chapters, coverMIME, coverSize))
}

// VirtualSize is the total byte count of the object the stream endpoint
// serves: tag prefix plus audio.
func VirtualSize(book *domain.Book) int64 {
	return TagLength(book) + book.TotalSize
}
