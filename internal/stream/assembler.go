package stream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/podibleapp/podible-server/internal/domain"
)

// copyChunk bounds per-read buffers so memory use is independent of book
// size.
const copyChunk = 64 * 1024

// Assembler answers byte-range requests over a book's virtual object without
// ever materializing the concatenation.
type Assembler struct {
	log *slog.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(log *slog.Logger) *Assembler {
	return &Assembler{log: log.With("component", "stream")}
}

// Serve writes the stream response for the request's Range header. HEAD
// requests get headers only. Request cancellation aborts the copy loop at
// the next chunk boundary.
func (a *Assembler) Serve(w http.ResponseWriter, r *http.Request, book *domain.Book) {
	tag := Tag(book)
	total := int64(len(tag)) + book.TotalSize

	rng, err := ParseRange(r.Header.Get("Range"), total)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	w.Header().Set("Content-Type", book.MIME)
	w.Header().Set("Accept-Ranges", "bytes")

	if rng == nil {
		rng = &ByteRange{Start: 0, End: total - 1}
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		w.WriteHeader(http.StatusOK)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End, total))
		w.WriteHeader(http.StatusPartialContent)
	}

	if r.Method == http.MethodHead || total == 0 {
		return
	}

	if err := a.writeRange(r.Context(), w, book, tag, *rng); err != nil {
		// Headers are gone; all that is left is logging. Client aborts land
		// here too, at debug.
		if r.Context().Err() != nil {
			a.log.Debug("stream aborted by client", "book", book.ID)
		} else {
			a.log.Warn("stream write failed", "book", book.ID, "error", err)
		}
	}
}

// writeRange emits rng from tag ‖ audio: first the tag slice, if the range
// touches it, then each intersecting audio slice in order.
func (a *Assembler) writeRange(ctx context.Context, w io.Writer, book *domain.Book, tag []byte, rng ByteRange) error {
	tagLen := int64(len(tag))

	if rng.Start < tagLen {
		hi := rng.End
		if hi > tagLen-1 {
			hi = tagLen - 1
		}
		if _, err := w.Write(tag[rng.Start : hi+1]); err != nil {
			return fmt.Errorf("write tag slice: %w", err)
		}
	}

	if rng.End < tagLen {
		return nil
	}

	// Translate into audio coordinates.
	audio := ByteRange{Start: rng.Start - tagLen, End: rng.End - tagLen}
	if audio.Start < 0 {
		audio.Start = 0
	}

	if book.Kind == domain.KindSingle {
		return a.copyFileRange(ctx, w, book.Primary.Path, audio.Start, audio.Length())
	}

	for _, f := range book.Files {
		if f.End < audio.Start || f.Start > audio.End {
			continue
		}
		lo := max(audio.Start, f.Start) - f.Start
		hi := min(audio.End, f.End) - f.Start
		if err := a.copyFileRange(ctx, w, f.Path, lo, hi-lo+1); err != nil {
			return err
		}
	}
	return nil
}

// copyFileRange streams length bytes of path starting at offset, in bounded
// chunks, checking for cancellation between chunks.
func (a *Assembler) copyFileRange(ctx context.Context, w io.Writer, path string, offset, length int64) error {
	f, err := os.Open(path) //#nosec G304 -- Paths come from the scanner's own index
	if err != nil {
		return fmt.Errorf("open part: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only handle

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek part: %w", err)
	}

	buf := make([]byte, copyChunk)
	for length > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := int64(len(buf))
		if n > length {
			n = length
		}
		read, err := io.ReadFull(f, buf[:n])
		if read > 0 {
			if _, werr := w.Write(buf[:read]); werr != nil {
				return fmt.Errorf("write part slice: %w", werr)
			}
			length -= int64(read)
		}
		if err != nil {
			return fmt.Errorf("read part %s: %w", path, err)
		}
	}
	return nil
}
