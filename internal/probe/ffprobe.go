// Package probe extracts media metadata through ffprobe and caches results
// keyed by file path and mtime.
package probe

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/podibleapp/podible-server/internal/domain"
)

// Engine probes a media file for duration, tags, and embedded chapters.
// Implementations run an external tool; tests inject fakes.
type Engine interface {
	Probe(ctx context.Context, path string) (*domain.ProbeData, error)
}

// FFProbe runs the ffprobe binary from PATH.
type FFProbe struct{}

// NewFFProbe creates an ffprobe-backed engine.
func NewFFProbe() *FFProbe {
	return &FFProbe{}
}

// Probe extracts metadata using ffprobe.
func (p *FFProbe) Probe(ctx context.Context, path string) (*domain.ProbeData, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_chapters",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("ffprobe failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var raw ffprobeOutput
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	data := &domain.ProbeData{
		Tags:     lowerKeys(raw.Format.Tags),
		Chapters: make([]domain.ProbeChapter, 0, len(raw.Chapters)),
	}

	// ffprobe prints numbers as strings.
	if raw.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
			data.Duration = dur
		}
	}

	for _, ch := range raw.Chapters {
		chapter := domain.ProbeChapter{Tags: lowerKeys(ch.Tags)}
		if ch.StartTime != "" {
			if start, err := strconv.ParseFloat(ch.StartTime, 64); err == nil {
				chapter.StartTime = start
			}
		}
		if ch.EndTime != "" {
			if end, err := strconv.ParseFloat(ch.EndTime, 64); err == nil {
				chapter.EndTime = end
			}
		}
		data.Chapters = append(data.Chapters, chapter)
	}

	return data, nil
}

// lowerKeys normalizes tag keys so lookups do not care whether the container
// stored "Artist" or "ARTIST".
func lowerKeys(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[strings.ToLower(k)] = v
	}
	return out
}

// ffprobeOutput represents ffprobe JSON output.
type ffprobeOutput struct {
	Format   ffprobeFormat    `json:"format"`
	Chapters []ffprobeChapter `json:"chapters"`
}

type ffprobeFormat struct {
	Tags     map[string]string `json:"tags"`
	Duration string            `json:"duration"`
}

type ffprobeChapter struct {
	Tags      map[string]string `json:"tags"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
}
