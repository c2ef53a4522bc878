package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// bookFiles is the classified content of one title directory. Every group is
// sorted lexicographically.
type bookFiles struct {
	containers []string // .m4b
	parts      []string // .mp3
	images     []string // .png, .jpg, .jpeg
	epubs      []string // .epub
	opf        string   // first .opf, empty when absent
}

// hasAudio reports whether the directory holds anything streamable.
func (f *bookFiles) hasAudio() bool {
	return len(f.containers) > 0 || len(f.parts) > 0
}

// firstImage returns the first raw cover candidate with one of the given
// extensions, or empty.
func (f *bookFiles) firstImage(exts ...string) string {
	for _, img := range f.images {
		ext := strings.ToLower(filepath.Ext(img))
		for _, want := range exts {
			if ext == want {
				return img
			}
		}
	}
	return ""
}

// classifyDir groups the entries of a title directory by extension,
// case-insensitively. Hidden entries and subdirectories are ignored.
func classifyDir(dir string) (*bookFiles, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read book directory: %w", err)
	}

	files := &bookFiles{}
	var opfs []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".m4b":
			files.containers = append(files.containers, path)
		case ".mp3":
			files.parts = append(files.parts, path)
		case ".png", ".jpg", ".jpeg":
			files.images = append(files.images, path)
		case ".epub":
			files.epubs = append(files.epubs, path)
		case ".opf":
			opfs = append(opfs, path)
		}
	}

	sort.Strings(files.containers)
	sort.Strings(files.parts)
	sort.Strings(files.images)
	sort.Strings(files.epubs)
	if len(opfs) > 0 {
		sort.Strings(opfs)
		files.opf = opfs[0]
	}
	return files, nil
}
