// Package opf reads .opf metadata side-car files (OPF 2.0 package documents
// as written by Calibre and friends).
package opf

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"
)

// Metadata is the subset of an OPF document the scanner consumes. Fields the
// document does not carry are left zero; the scanner falls back to audio tags
// and folder names.
type Metadata struct {
	Title           string
	Author          string
	Description     string // plain-text projection
	DescriptionHTML string // original markup, when the description contains HTML
	Language        string
	Published       time.Time
	ISBN            string
	Identifiers     map[string]string // keyed by lowercased scheme (isbn, asin, goodreads, ...)
}

// Unmarshal targets. encoding/xml matches on local names, so dc: and opf:
// prefixes do not need to be spelled out.

type packageDoc struct {
	Metadata metadataDoc `xml:"metadata"`
}

type metadataDoc struct {
	Titles      []string     `xml:"title"`
	Creators    []string     `xml:"creator"`
	Description string       `xml:"description"`
	Language    string       `xml:"language"`
	Dates       []string     `xml:"date"`
	Identifiers []identifier `xml:"identifier"`
}

type identifier struct {
	Scheme string `xml:"scheme,attr"`
	Value  string `xml:",chardata"`
}

// Parse reads and parses the OPF file at path.
func Parse(path string) (*Metadata, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- Side-car path comes from directory traversal
	if err != nil {
		return nil, fmt.Errorf("read opf: %w", err)
	}

	var doc packageDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse opf: %w", err)
	}

	md := &Metadata{
		Language:    strings.TrimSpace(doc.Metadata.Language),
		Identifiers: map[string]string{},
	}

	for _, t := range doc.Metadata.Titles {
		if t = strings.TrimSpace(t); t != "" {
			md.Title = t
			break
		}
	}

	for _, c := range doc.Metadata.Creators {
		if c = strings.TrimSpace(c); c != "" {
			md.Author = c
			break
		}
	}

	if desc := strings.TrimSpace(doc.Metadata.Description); desc != "" {
		if containsHTML(desc) {
			md.DescriptionHTML = desc
			md.Description = htmlToPlain(desc)
		} else {
			md.Description = desc
		}
	}

	for _, d := range doc.Metadata.Dates {
		if t, ok := ParseDate(d); ok {
			md.Published = t
			break
		}
	}

	for _, id := range doc.Metadata.Identifiers {
		scheme := strings.ToLower(strings.TrimSpace(id.Scheme))
		value := strings.TrimSpace(id.Value)
		if value == "" {
			continue
		}
		if scheme == "" {
			scheme, value = sniffScheme(value)
			if scheme == "" {
				continue
			}
		}
		md.Identifiers[scheme] = value
	}
	if isbn, ok := md.Identifiers["isbn"]; ok {
		md.ISBN = isbn
	}

	return md, nil
}

// ParseDate accepts the date shapes found in the wild: RFC 3339, a plain
// calendar date, or a bare year.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sniffScheme recovers the scheme of identifiers written without an
// opf:scheme attribute, e.g. "urn:isbn:9781234567890".
func sniffScheme(value string) (scheme, rest string) {
	lower := strings.ToLower(value)
	for _, s := range []string{"isbn", "asin", "uuid"} {
		for _, prefix := range []string{"urn:" + s + ":", s + ":"} {
			if strings.HasPrefix(lower, prefix) {
				return s, strings.TrimSpace(value[len(prefix):])
			}
		}
	}
	return "", value
}
