package transcode

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// ProgressFunc receives converter progress samples: output time in
// milliseconds and the encode speed relative to realtime.
type ProgressFunc func(outTimeMS int64, speed float64)

// Converter normalizes a source container into an MPEG audio file carrying
// the source's metadata and chapter marks, with cover art attached when
// supplied. Implementations report progress at one hertz or better.
type Converter interface {
	Convert(ctx context.Context, source, target, cover string, onProgress ProgressFunc) error
}

// FFmpeg converts through the ffmpeg binary.
type FFmpeg struct {
	path string
	log  *slog.Logger
}

// NewFFmpeg locates ffmpeg on PATH.
func NewFFmpeg(log *slog.Logger) (*FFmpeg, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	log.Info("using ffmpeg", "path", path)
	return &FFmpeg{path: path, log: log.With("component", "ffmpeg")}, nil
}

// Convert runs ffmpeg with machine-readable progress on stdout. The source's
// metadata and chapter atoms are carried over; a cover image, when given, is
// attached as front-cover art.
func (f *FFmpeg) Convert(ctx context.Context, source, target, cover string, onProgress ProgressFunc) error {
	args := []string{"-y", "-i", source}
	if cover != "" {
		args = append(args, "-i", cover)
	}
	args = append(args,
		"-map", "0:a",
		"-map_metadata", "0",
		"-map_chapters", "0",
	)
	if cover != "" {
		args = append(args,
			"-map", "1:v",
			"-c:v", "copy",
			"-disposition:v", "attached_pic",
		)
	}
	args = append(args,
		"-c:a", "libmp3lame",
		"-q:a", "4",
		"-id3v2_version", "4",
		"-progress", "pipe:1",
		"-nostats",
		"-v", "error",
		"-f", "mp3",
		target,
	)

	cmd := exec.CommandContext(ctx, f.path, args...) //nolint:gosec // Path comes from exec.LookPath
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Keep the tail of stderr so a failure carries ffmpeg's own diagnostic.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	parseProgress(stdout, onProgress)

	if err := cmd.Wait(); err != nil {
		if tail := stderrTail(stderr.Bytes()); tail != "" {
			return fmt.Errorf("ffmpeg failed: %s", tail)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// parseProgress reads ffmpeg's key=value progress stream until EOF. ffmpeg
// emits blocks at roughly one hertz ending in progress=continue|end;
// out_time_us carries microseconds, speed a "12.3x" multiplier.
func parseProgress(r io.Reader, onProgress ProgressFunc) {
	if onProgress == nil {
		onProgress = func(int64, float64) {}
	}

	var outTimeMS int64
	var speed float64

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms": // out_time_ms is historically microseconds too
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
				outTimeMS = us / 1000
			}
		case "speed":
			if s, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "x"), 64); err == nil {
				speed = s
			}
		case "progress":
			onProgress(outTimeMS, speed)
		}
	}
}

// stderrTail returns the last few non-empty lines of ffmpeg's stderr.
func stderrTail(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	var kept []string
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) > 3 {
		kept = kept[len(kept)-3:]
	}
	return strings.Join(kept, "; ")
}
