package covers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/podibleapp/podible-server/internal/util"
)

// Cache stores extracted covers in the data directory under names derived
// from the source file's basename and mtime, so repeat scans reuse them
// without re-extracting.
type Cache struct {
	dir string
}

// NewCache creates a cover cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Lookup returns the cached cover path for source if one exists, checking
// both image extensions.
func (c *Cache) Lookup(source string, mtime time.Time) (string, bool) {
	for _, ext := range []string{".jpg", ".png"} {
		path := c.name(source, mtime, ext)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return path, true
		}
	}
	return "", false
}

// Store writes the extracted image for source and returns the cache path.
// An already-cached cover is reused without rewriting.
func (c *Cache) Store(source string, mtime time.Time, img *Image) (string, error) {
	path := c.name(source, mtime, img.Ext())
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}
	if err := util.WriteFileAtomic(path, img.Data, 0o644); err != nil {
		return "", fmt.Errorf("cache cover: %w", err)
	}
	return path, nil
}

func (c *Cache) name(source string, mtime time.Time, ext string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	mtime36 := strconv.FormatInt(mtime.UnixMilli(), 36)
	return filepath.Join(c.dir, "cover-"+util.Slugify(base)+"-"+mtime36+ext)
}
