package feed

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/podibleapp/podible-server/internal/stream"
)

// RSS document structs. Prefixed element names are emitted literally, with
// the namespaces declared on the root element.

type rssDoc struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	ITunesNS  string   `xml:"xmlns:itunes,attr"`
	PodcastNS string   `xml:"xmlns:podcast,attr"`
	ContentNS string   `xml:"xmlns:content,attr"`
	Channel   channel  `xml:"channel"`
}

type channel struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Language    string `xml:"language"`
	Copyright   string `xml:"copyright,omitempty"`
	Generator   string `xml:"generator"`

	ItunesAuthor   string         `xml:"itunes:author,omitempty"`
	ItunesExplicit string         `xml:"itunes:explicit"`
	ItunesType     string         `xml:"itunes:type"`
	ItunesOwner    *itunesOwner   `xml:"itunes:owner,omitempty"`
	ItunesCategory itunesCategory `xml:"itunes:category"`
	ItunesImage    *itunesImage   `xml:"itunes:image,omitempty"`

	Items []item `xml:"item"`
}

type itunesOwner struct {
	Name  string `xml:"itunes:name,omitempty"`
	Email string `xml:"itunes:email,omitempty"`
}

type itunesCategory struct {
	Text string `xml:"text,attr"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type item struct {
	Title       string     `xml:"title"`
	Description string     `xml:"description"`
	GUID        guid       `xml:"guid"`
	PubDate     string     `xml:"pubDate,omitempty"`
	Enclosure   *enclosure `xml:"enclosure,omitempty"`

	ItunesAuthor   string           `xml:"itunes:author,omitempty"`
	ItunesDuration string           `xml:"itunes:duration,omitempty"`
	ItunesImage    *itunesImage     `xml:"itunes:image,omitempty"`
	Chapters       *podcastChapters `xml:"podcast:chapters,omitempty"`
}

type guid struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type podcastChapters struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// Render produces the RSS document for the given entries. baseURL is the
// scheme and host the request arrived on, without a trailing slash.
func (b *Builder) Render(baseURL string, entries []Entry) ([]byte, error) {
	ch := channel{
		Title:          b.cfg.Title,
		Link:           baseURL + "/feed?key=" + b.key,
		Description:    b.cfg.Description,
		Language:       b.cfg.Language,
		Copyright:      b.cfg.Copyright,
		Generator:      "podible",
		ItunesAuthor:   b.cfg.Author,
		ItunesExplicit: b.cfg.Explicit,
		ItunesType:     b.cfg.Type,
		ItunesCategory: itunesCategory{Text: b.cfg.Category},
	}
	if b.cfg.OwnerName != "" || b.cfg.OwnerEmail != "" {
		ch.ItunesOwner = &itunesOwner{Name: b.cfg.OwnerName, Email: b.cfg.OwnerEmail}
	}
	if b.cfg.ImageURL != "" {
		ch.ItunesImage = &itunesImage{Href: b.cfg.ImageURL}
	}

	for _, entry := range entries {
		ch.Items = append(ch.Items, b.renderItem(baseURL, entry))
	}

	doc := rssDoc{
		Version:   "2.0",
		ITunesNS:  "http://www.itunes.com/dtds/podcast-1.0.dtd",
		PodcastNS: "https://podcastindex.org/namespace/1.0",
		ContentNS: "http://purl.org/rss/1.0/modules/content/",
		Channel:   ch,
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func (b *Builder) renderItem(baseURL string, entry Entry) item {
	book := entry.Book

	it := item{
		Title:        book.Title,
		Description:  book.Description,
		GUID:         guid{IsPermaLink: "false", Value: book.ID},
		ItunesAuthor: book.Author,
	}
	if !book.PublishedAt.IsZero() {
		it.PubDate = book.PublishedAt.Format(time.RFC1123Z)
	}
	if book.DurationSeconds > 0 {
		it.ItunesDuration = formatDuration(book.DurationSeconds)
	}
	if book.CoverPath != "" {
		it.ItunesImage = &itunesImage{Href: b.itemURL(baseURL, "cover", book.ID)}
	}

	if !entry.Ready() {
		note := "[" + string(entry.State) + "]"
		if entry.Err != "" {
			note += " " + entry.Err
		}
		if it.Description != "" {
			it.Description = note + " " + it.Description
		} else {
			it.Description = note
		}
		return it
	}

	// The enclosure length must match what the stream endpoint reports,
	// tag prefix included.
	it.Enclosure = &enclosure{
		URL:    b.itemURL(baseURL, "stream", book.ID),
		Length: stream.VirtualSize(book),
		Type:   book.MIME,
	}
	if len(book.Chapters) > 0 {
		it.Chapters = &podcastChapters{
			URL:  b.itemURL(baseURL, "chapters", book.ID),
			Type: "application/json+chapters",
		}
	}
	return it
}

// formatDuration renders seconds as HH:MM:SS.
func formatDuration(seconds float64) string {
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
