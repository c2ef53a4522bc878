// Package covers extracts book cover art from audio containers, e-books, and
// raw image files, and caches extracted images in the data directory.
package covers

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/simonhull/audiometa"
)

// Image is raw cover data with its mime type.
type Image struct {
	MIME string
	Data []byte
}

// Ext returns the cache filename extension for the image type.
func (i Image) Ext() string {
	if i.MIME == "image/png" {
		return ".png"
	}
	return ".jpg"
}

// Extractor pulls cover images out of audio containers and epub archives.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// FromAudio extracts the embedded cover from an audio file. Returns nil with
// no error when the file has no embedded artwork.
func (e *Extractor) FromAudio(ctx context.Context, path string) (*Image, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close() //nolint:errcheck // Read-only handle

	artworks, err := file.ExtractArtwork()
	if err != nil {
		return nil, fmt.Errorf("extract artwork: %w", err)
	}
	if len(artworks) == 0 {
		return nil, nil
	}

	// The first artwork is typically the front cover.
	art := artworks[0]
	mime := art.MIMEType
	if mime == "" {
		mime = http.DetectContentType(art.Data)
	}
	return &Image{MIME: mime, Data: art.Data}, nil
}

// FromEpub extracts a cover image from an epub archive. Entries whose name
// contains "cover" win; otherwise the first image entry is used. Returns nil
// with no error when the archive has no images.
func (e *Extractor) FromEpub(path string) (*Image, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open epub: %w", err)
	}
	defer r.Close() //nolint:errcheck // Read-only handle

	var candidates []*zip.File
	for _, f := range r.File {
		if isImageName(f.Name) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })

	chosen := candidates[0]
	for _, f := range candidates {
		if strings.Contains(strings.ToLower(filepath.Base(f.Name)), "cover") {
			chosen = f
			break
		}
	}

	rc, err := chosen.Open()
	if err != nil {
		return nil, fmt.Errorf("open epub entry %s: %w", chosen.Name, err)
	}
	defer rc.Close() //nolint:errcheck // Read-only handle

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read epub entry %s: %w", chosen.Name, err)
	}

	return &Image{MIME: MIMEForPath(chosen.Name), Data: data}, nil
}

// MIMEForPath maps a raster image filename to its mime type.
func MIMEForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func isImageName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
