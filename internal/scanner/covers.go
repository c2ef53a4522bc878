package scanner

import (
	"context"
	"log/slog"
	"os"
)

// resolveCover walks the documented resolution order: embedded art from the
// first .m4b, then from the first .mp3, then an image pulled out of an
// .epub, then the first raw .png, then the first raw .jpg. Extracted images
// are cached in the data directory keyed by source basename and mtime, so
// repeat scans reuse them. Returns empty when the book has no cover.
func (s *Scanner) resolveCover(ctx context.Context, files *bookFiles, log *slog.Logger) string {
	var audioSources []string
	if len(files.containers) > 0 {
		audioSources = append(audioSources, files.containers[0])
	}
	if len(files.parts) > 0 {
		audioSources = append(audioSources, files.parts[0])
	}

	for _, source := range audioSources {
		info, err := os.Stat(source)
		if err != nil {
			continue
		}
		if cached, ok := s.coverCache.Lookup(source, info.ModTime()); ok {
			return cached
		}
		img, err := s.extractor.FromAudio(ctx, source)
		if err != nil {
			log.Debug("embedded cover extraction failed", "file", source, "error", err)
			continue
		}
		if img == nil {
			continue
		}
		path, err := s.coverCache.Store(source, info.ModTime(), img)
		if err != nil {
			log.Warn("failed to cache extracted cover", "file", source, "error", err)
			continue
		}
		return path
	}

	for _, epub := range files.epubs {
		info, err := os.Stat(epub)
		if err != nil {
			continue
		}
		if cached, ok := s.coverCache.Lookup(epub, info.ModTime()); ok {
			return cached
		}
		img, err := s.extractor.FromEpub(epub)
		if err != nil {
			log.Debug("epub cover extraction failed", "file", epub, "error", err)
			continue
		}
		if img == nil {
			continue
		}
		path, err := s.coverCache.Store(epub, info.ModTime(), img)
		if err != nil {
			log.Warn("failed to cache epub cover", "file", epub, "error", err)
			continue
		}
		return path
	}

	if png := files.firstImage(".png"); png != "" {
		return png
	}
	return files.firstImage(".jpg", ".jpeg")
}
