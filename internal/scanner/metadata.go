package scanner

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/opf"
)

// bookMetadata is the resolved catalog metadata for one book, merged from
// embedded audio tags, the .opf side-car, and the folder names.
type bookMetadata struct {
	Title           string
	Author          string
	Description     string
	DescriptionHTML string
	Language        string
	Published       time.Time
	ISBN            string
	Identifiers     map[string]string
}

// resolveMetadata merges the three metadata sources with the precedence the
// server documents: OPF title over folder name; audio artist over
// album-artist over OPF creator over folder name; the longer of the two
// descriptions; audio language over OPF; OPF date over audio date.
func resolveMetadata(data *domain.ProbeData, sidecar *opf.Metadata, authorFolder, titleFolder string) bookMetadata {
	md := bookMetadata{Title: titleFolder, Author: authorFolder}

	if sidecar != nil {
		if sidecar.Title != "" {
			md.Title = sidecar.Title
		}
		md.Description = sidecar.Description
		md.DescriptionHTML = sidecar.DescriptionHTML
		md.Language = sidecar.Language
		md.Published = sidecar.Published
		md.ISBN = sidecar.ISBN
		if len(sidecar.Identifiers) > 0 {
			md.Identifiers = sidecar.Identifiers
		}
	}

	author := data.Tag("artist")
	if author == "" {
		author = data.Tag("album_artist")
	}
	if author == "" && sidecar != nil && sidecar.Author != "" {
		author = sidecar.Author
	}
	if author != "" {
		md.Author = author
	}

	if desc := data.Tag("description"); len(desc) > len(md.Description) {
		if containsHTML(desc) {
			md.DescriptionHTML = desc
			md.Description = htmlToPlain(desc)
		} else {
			md.Description = desc
			md.DescriptionHTML = ""
		}
	}

	if lang := data.Tag("language"); lang != "" {
		md.Language = lang
	}

	if md.Published.IsZero() {
		md.Published = audioDate(data)
	}

	return md
}

// audioDate reads a publication date from the container's date or year tag.
func audioDate(data *domain.ProbeData) time.Time {
	for _, key := range []string{"date", "year"} {
		if t, ok := opf.ParseDate(data.Tag(key)); ok {
			return t
		}
	}
	return time.Time{}
}

// Filename shapes that carry a chapter number and an optional title.
// Capture groups: 1 = number, 2 = title.
var partTitlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)\s*[-._]\s*(.+)$`),               // "01 - Title"
	regexp.MustCompile(`^[Cc]hapter\s*(\d+)\s*[-._]?\s*(.*)$`), // "Chapter 02 - Title"
	regexp.MustCompile(`^[Tt]rack\s*(\d+)\s*[-._]?\s*(.*)$`),   // "Track03"
	regexp.MustCompile(`^[Pp]art\s*(\d+)\s*[-._]?\s*(.*)$`),    // "Part 1"
	regexp.MustCompile(`^(\d+)\s+(.+)$`),                       // "01 Title"
	regexp.MustCompile(`^(\d+)$`),                              // "03"
}

// partTitle derives a chapter title from a part filename. Empty means the
// filename carries no usable title; the book builder falls back to
// "Chapter {n}".
func partTitle(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	for _, pattern := range partTitlePatterns {
		matches := pattern.FindStringSubmatch(base)
		if matches == nil {
			continue
		}
		if len(matches) >= 3 {
			return cleanPartTitle(matches[2])
		}
		return "" // bare number
	}

	// No numbering scheme; the whole basename is the title.
	return cleanPartTitle(base)
}

// cleanPartTitle strips separator residue and normalizes underscores.
func cleanPartTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimPrefix(title, "-")
	title = strings.ReplaceAll(title, "_", " ")
	return strings.TrimSpace(title)
}
