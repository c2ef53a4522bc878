package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures ignore rules and the debounce window.
type Options struct {
	IgnorePatterns []string
	Debounce       time.Duration
	IgnoreHidden   bool
}

func (o *Options) setDefaults() {
	if o.Debounce == 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = []string{
			".DS_Store",
			"*.tmp",
			"*.temp",
			"*.part",
			"Thumbs.db",
		}
		o.IgnoreHidden = true
	}
}

// shouldIgnore reports whether a path is excluded from watching.
func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden {
		for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		if matched, err := filepath.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
