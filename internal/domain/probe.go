package domain

import (
	"fmt"
	"math"
	"strings"
)

// ProbeChapter is one chapter marker as reported by the probe engine,
// in seconds.
type ProbeChapter struct {
	StartTime float64           `json:"start_time"`
	EndTime   float64           `json:"end_time"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// ProbeData is what probing a file yields: format duration, the
// container-level tag dictionary, and the embedded chapter list.
type ProbeData struct {
	Duration float64           `json:"duration,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
	Chapters []ProbeChapter    `json:"chapters,omitempty"`
}

// Tag looks up a tag by case-insensitive key. The empty string means absent;
// values that trim to empty, "unknown", or "no description" count as absent.
func (d *ProbeData) Tag(key string) string {
	if d == nil || d.Tags == nil {
		return ""
	}
	v, ok := d.Tags[strings.ToLower(key)]
	if !ok {
		// Tolerate dictionaries that were not normalized on ingest.
		for k, raw := range d.Tags {
			if strings.EqualFold(k, key) {
				v = raw
				break
			}
		}
	}
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "unknown", "no description":
		return ""
	}
	return v
}

// ChapterTimings converts the probed chapter list to the book chapter table,
// with 1000x rounded millisecond conversion and "Chapter {n}" synthesized for
// untitled entries.
func (d *ProbeData) ChapterTimings() []ChapterTiming {
	if d == nil || len(d.Chapters) == 0 {
		return nil
	}
	out := make([]ChapterTiming, 0, len(d.Chapters))
	for i, ch := range d.Chapters {
		title := strings.TrimSpace(ch.Tags["title"])
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		out = append(out, ChapterTiming{
			ID:      fmt.Sprintf("ch%d", i),
			Title:   title,
			StartMS: int64(math.Round(ch.StartTime * 1000)),
			EndMS:   int64(math.Round(ch.EndTime * 1000)),
		})
	}
	return out
}

// ProbeRecord is one persisted probe-cache entry, keyed by file path.
// Failures are recorded too, so a file that failed to probe is not re-probed
// on every scan.
type ProbeRecord struct {
	File    string     `json:"file"`
	MtimeMS int64      `json:"mtime_ms"`
	Data    *ProbeData `json:"data"`
	Error   string     `json:"error,omitempty"`
}
