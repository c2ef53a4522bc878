package probe

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/util"
)

// Cache memoizes probe results keyed by path, invalidated by mtime change.
// Failures are cached too: a file that failed to probe does not re-probe on
// every scan. Every result, success or failure, is persisted immediately so
// the cache survives a crash.
type Cache struct {
	engine Engine
	log    *slog.Logger
	path   string

	mu      sync.Mutex
	records map[string]*domain.ProbeRecord
}

// NewCache creates a probe cache persisting to path.
func NewCache(path string, engine Engine, log *slog.Logger) *Cache {
	return &Cache{
		engine:  engine,
		log:     log.With("component", "probe"),
		path:    path,
		records: make(map[string]*domain.ProbeRecord),
	}
}

// Load reads the persisted cache. A missing or unreadable file starts empty.
func (c *Cache) Load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("unreadable probe cache, starting empty", "path", c.path, "error", err)
		}
		return
	}

	var records []*domain.ProbeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		c.log.Warn("corrupt probe cache, starting empty", "path", c.path, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range records {
		if rec != nil && rec.File != "" {
			c.records[rec.File] = rec
		}
	}
	c.log.Debug("probe cache loaded", "entries", len(c.records))
}

// Probe returns metadata for the file, from cache when the stored mtime
// matches, otherwise by running the engine. Returns nil when probing failed;
// the failure is recorded and visible through Failures.
func (c *Cache) Probe(ctx context.Context, path string, mtime time.Time) *domain.ProbeData {
	mtimeMS := mtime.UnixMilli()

	c.mu.Lock()
	if rec, ok := c.records[path]; ok && rec.MtimeMS == mtimeMS {
		c.mu.Unlock()
		return rec.Data
	}
	c.mu.Unlock()

	data, err := c.engine.Probe(ctx, path)
	rec := &domain.ProbeRecord{File: path, MtimeMS: mtimeMS, Data: data}
	if err != nil {
		rec.Data = nil
		rec.Error = err.Error()
		c.log.Warn("probe failed", "file", path, "error", err)
	}

	c.mu.Lock()
	c.records[path] = rec
	if perr := c.persistLocked(); perr != nil {
		c.log.Error("failed to persist probe cache", "error", perr)
	}
	c.mu.Unlock()

	return rec.Data
}

// Duration returns the probed duration in seconds, or false when the file
// failed to probe or reported no duration.
func (c *Cache) Duration(ctx context.Context, path string, mtime time.Time) (float64, bool) {
	data := c.Probe(ctx, path, mtime)
	if data == nil || data.Duration <= 0 {
		return 0, false
	}
	return data.Duration, true
}

// Chapters returns the embedded chapter list as millisecond timings, nil when
// the file failed to probe.
func (c *Cache) Chapters(ctx context.Context, path string, mtime time.Time) []domain.ChapterTiming {
	data := c.Probe(ctx, path, mtime)
	if data == nil {
		return nil
	}
	return data.ChapterTimings()
}

// Failures lists entries whose probe failed, for operator display.
func (c *Cache) Failures() []domain.ProbeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.ProbeRecord
	for _, rec := range c.records {
		if rec.Data == nil && rec.Error != "" {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}

func (c *Cache) persistLocked() error {
	records := make([]*domain.ProbeRecord, 0, len(c.records))
	for _, rec := range c.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].File < records[j].File })

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal probe cache: %w", err)
	}
	if err := util.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write probe cache: %w", err)
	}
	return nil
}
