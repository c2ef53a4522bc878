package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeData_Tag(t *testing.T) {
	d := &ProbeData{Tags: map[string]string{
		"artist":      "Ursula K. Le Guin",
		"album":       "  A Wizard of Earthsea  ",
		"comment":     "Unknown",
		"description": "No Description",
		"genre":       "",
	}}

	assert.Equal(t, "Ursula K. Le Guin", d.Tag("artist"))
	assert.Equal(t, "Ursula K. Le Guin", d.Tag("ARTIST"))
	assert.Equal(t, "A Wizard of Earthsea", d.Tag("album"))

	// Placeholder values count as absent.
	assert.Equal(t, "", d.Tag("comment"))
	assert.Equal(t, "", d.Tag("description"))
	assert.Equal(t, "", d.Tag("genre"))
	assert.Equal(t, "", d.Tag("missing"))
}

func TestProbeData_Tag_MixedCaseKeys(t *testing.T) {
	// ffprobe emits whatever case the container stored.
	d := &ProbeData{Tags: map[string]string{"Artist": "Someone"}}
	assert.Equal(t, "Someone", d.Tag("artist"))
}

func TestProbeData_ChapterTimings(t *testing.T) {
	d := &ProbeData{Chapters: []ProbeChapter{
		{StartTime: 0, EndTime: 12.3456, Tags: map[string]string{"title": "Opening"}},
		{StartTime: 12.3456, EndTime: 90.0004},
		{StartTime: 90.0004, EndTime: 120.5, Tags: map[string]string{"TITLE": "Finale"}},
	}}

	timings := d.ChapterTimings()
	require.Len(t, timings, 3)

	assert.Equal(t, "ch0", timings[0].ID)
	assert.Equal(t, "Opening", timings[0].Title)
	assert.Equal(t, int64(0), timings[0].StartMS)
	assert.Equal(t, int64(12346), timings[0].EndMS)

	// Untitled chapters get a numbered fallback.
	assert.Equal(t, "Chapter 2", timings[1].Title)
	assert.Equal(t, int64(12346), timings[1].StartMS)
	assert.Equal(t, int64(90000), timings[1].EndMS)

	assert.Equal(t, "Finale", timings[2].Title)
	assert.Equal(t, int64(120500), timings[2].EndMS)
}

func TestProbeData_ChapterTimings_Empty(t *testing.T) {
	d := &ProbeData{}
	assert.Empty(t, d.ChapterTimings())
}
