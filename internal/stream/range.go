// Package stream resolves HTTP byte-range requests against the virtual
// object tag ‖ audio of a book: the synthesized chapter-tag prefix followed
// by the container or the concatenation of part files.
package stream

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnsatisfiable means the requested range starts at or past the end of
// the object. The handler answers 416.
var ErrUnsatisfiable = errors.New("range not satisfiable")

// ByteRange is an inclusive byte range within the virtual object.
type ByteRange struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ParseRange interprets a Range header against an object of the given size.
// Only single "bytes=A-B" ranges are understood. A nil range with nil error
// means serve the whole object: that covers a missing header and every
// malformed shape (bad unit, non-numeric, A > B, empty and zero-length
// suffixes). ErrUnsatisfiable is returned when the start lies at or past
// the end of the object.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, nil
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, nil
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	// Suffix form "-N": the last N bytes.
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return nil, nil
		}
		if size <= 0 {
			return nil, ErrUnsatisfiable
		}
		start := size - n
		if start < 0 {
			start = 0
		}
		return &ByteRange{Start: start, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return nil, nil
		}
		if start > end {
			return nil, nil
		}
		if end > size-1 {
			end = size - 1
		}
	}

	if start >= size {
		return nil, ErrUnsatisfiable
	}
	return &ByteRange{Start: start, End: end}, nil
}
