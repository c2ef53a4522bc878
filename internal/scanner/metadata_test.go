package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/opf"
)

func TestPartTitle(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"01 - Departure.mp3", "Departure"},
		{"01_Departure.mp3", "Departure"},
		{"Chapter 02 - The Road.mp3", "The Road"},
		{"chapter 02.mp3", ""},
		{"Track03.mp3", ""},
		{"Part 1 - Beginnings.mp3", "Beginnings"},
		{"03.mp3", ""},
		{"07 Some_Title.mp3", "Some Title"},
		{"Epilogue.mp3", "Epilogue"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, partTitle(tt.name), "partTitle(%q)", tt.name)
	}
}

func TestResolveMetadataFolderFallback(t *testing.T) {
	md := resolveMetadata(nil, nil, "Jane Doe", "The Book")
	assert.Equal(t, "The Book", md.Title)
	assert.Equal(t, "Jane Doe", md.Author)
	assert.Empty(t, md.Description)
}

func TestResolveMetadataPrecedence(t *testing.T) {
	data := &domain.ProbeData{Tags: map[string]string{
		"artist":      "Tagged Author",
		"description": "short",
		"language":    "de",
		"date":        "2001-05-01",
	}}
	sidecar := &opf.Metadata{
		Title:       "Sidecar Title",
		Author:      "Sidecar Author",
		Description: "a considerably longer sidecar description",
		Language:    "en",
		Published:   time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	md := resolveMetadata(data, sidecar, "Folder Author", "Folder Title")

	assert.Equal(t, "Sidecar Title", md.Title)
	// The audio artist tag outranks the sidecar creator.
	assert.Equal(t, "Tagged Author", md.Author)
	// The longer description wins.
	assert.Equal(t, "a considerably longer sidecar description", md.Description)
	// Audio language outranks the sidecar.
	assert.Equal(t, "de", md.Language)
	assert.Equal(t, 1999, md.Published.Year())
}

func TestResolveMetadataHTMLDescription(t *testing.T) {
	data := &domain.ProbeData{Tags: map[string]string{
		"description": "<p>An <b>exciting</b> tale.</p>",
	}}

	md := resolveMetadata(data, nil, "A", "B")
	assert.Equal(t, "<p>An <b>exciting</b> tale.</p>", md.DescriptionHTML)
	assert.NotContains(t, md.Description, "<")
	assert.Contains(t, md.Description, "exciting")
}

func TestResolveMetadataUnknownTagsIgnored(t *testing.T) {
	data := &domain.ProbeData{Tags: map[string]string{
		"artist":      "Unknown",
		"description": "no description",
	}}

	md := resolveMetadata(data, nil, "Folder Author", "Folder Title")
	assert.Equal(t, "Folder Author", md.Author)
	assert.Empty(t, md.Description)
}

func TestResolveMetadataAudioDateFallback(t *testing.T) {
	data := &domain.ProbeData{Tags: map[string]string{"year": "2010"}}

	md := resolveMetadata(data, nil, "A", "B")
	assert.Equal(t, 2010, md.Published.Year())
}
