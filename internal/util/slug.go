// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches runs of non-alphanumeric characters.
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches multiple consecutive hyphens.
	multipleHyphenRe = regexp.MustCompile(`-+`)
)

// Slugify converts a display string to a URL-safe identifier.
// Accented characters are decomposed and folded to ASCII, everything
// non-alphanumeric collapses to a single hyphen, and the result carries no
// leading or trailing hyphens. Idempotent: Slugify(Slugify(x)) == Slugify(x).
//
//	"Iain M. Banks-Consider Phlebas" → "iain-m-banks-consider-phlebas"
//	"Émile Zola"                     → "emile-zola"
func Slugify(s string) string {
	// Decompose accented characters, then drop what is still non-ASCII.
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumericRe.ReplaceAllString(s, "-")
	s = multipleHyphenRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
