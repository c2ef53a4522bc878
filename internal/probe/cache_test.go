package probe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls map[string]int
	data  map[string]*domain.ProbeData
	errs  map[string]error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		calls: map[string]int{},
		data:  map[string]*domain.ProbeData{},
		errs:  map[string]error{},
	}
}

func (f *fakeEngine) Probe(_ context.Context, path string) (*domain.ProbeData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	return f.data[path], nil
}

func (f *fakeEngine) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCache_ProbeCachesSuccess(t *testing.T) {
	engine := newFakeEngine()
	engine.data["/lib/a/b/book.m4b"] = &domain.ProbeData{Duration: 120.5}

	cachePath := filepath.Join(t.TempDir(), "probe-cache.json")
	cache := NewCache(cachePath, engine, testLogger())

	mtime := time.UnixMilli(1700000000000)

	got := cache.Probe(context.Background(), "/lib/a/b/book.m4b", mtime)
	require.NotNil(t, got)
	assert.Equal(t, 120.5, got.Duration)
	assert.Equal(t, 1, engine.callCount("/lib/a/b/book.m4b"))

	// Second probe with the same mtime is served from the cache.
	got = cache.Probe(context.Background(), "/lib/a/b/book.m4b", mtime)
	require.NotNil(t, got)
	assert.Equal(t, 1, engine.callCount("/lib/a/b/book.m4b"))

	// Every probe persists.
	_, err := os.Stat(cachePath)
	assert.NoError(t, err)
}

func TestCache_MtimeChangeInvalidates(t *testing.T) {
	engine := newFakeEngine()
	engine.data["/f.mp3"] = &domain.ProbeData{Duration: 10}

	cache := NewCache(filepath.Join(t.TempDir(), "probe-cache.json"), engine, testLogger())

	mtime := time.UnixMilli(1000)
	cache.Probe(context.Background(), "/f.mp3", mtime)
	cache.Probe(context.Background(), "/f.mp3", mtime.Add(time.Second))

	assert.Equal(t, 2, engine.callCount("/f.mp3"))
}

func TestCache_FailuresAreCached(t *testing.T) {
	engine := newFakeEngine()
	engine.errs["/bad.mp3"] = errors.New("ffprobe failed: invalid data")

	cache := NewCache(filepath.Join(t.TempDir(), "probe-cache.json"), engine, testLogger())

	mtime := time.UnixMilli(1000)
	assert.Nil(t, cache.Probe(context.Background(), "/bad.mp3", mtime))
	assert.Nil(t, cache.Probe(context.Background(), "/bad.mp3", mtime))

	// The failed probe ran once, not once per scan.
	assert.Equal(t, 1, engine.callCount("/bad.mp3"))

	failures := cache.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "/bad.mp3", failures[0].File)
	assert.Contains(t, failures[0].Error, "invalid data")
}

func TestCache_Duration(t *testing.T) {
	engine := newFakeEngine()
	engine.data["/ok.mp3"] = &domain.ProbeData{Duration: 33.3}
	engine.data["/nodur.mp3"] = &domain.ProbeData{}
	engine.errs["/bad.mp3"] = errors.New("boom")

	cache := NewCache(filepath.Join(t.TempDir(), "probe-cache.json"), engine, testLogger())
	mtime := time.UnixMilli(1000)

	d, ok := cache.Duration(context.Background(), "/ok.mp3", mtime)
	assert.True(t, ok)
	assert.Equal(t, 33.3, d)

	_, ok = cache.Duration(context.Background(), "/nodur.mp3", mtime)
	assert.False(t, ok)

	_, ok = cache.Duration(context.Background(), "/bad.mp3", mtime)
	assert.False(t, ok)
}

func TestCache_Chapters(t *testing.T) {
	engine := newFakeEngine()
	engine.data["/ch.m4b"] = &domain.ProbeData{
		Duration: 100,
		Chapters: []domain.ProbeChapter{
			{StartTime: 0, EndTime: 50.5, Tags: map[string]string{"title": "One"}},
			{StartTime: 50.5, EndTime: 100},
		},
	}

	cache := NewCache(filepath.Join(t.TempDir(), "probe-cache.json"), engine, testLogger())

	timings := cache.Chapters(context.Background(), "/ch.m4b", time.UnixMilli(1000))
	require.Len(t, timings, 2)
	assert.Equal(t, "One", timings[0].Title)
	assert.Equal(t, int64(50500), timings[0].EndMS)
	assert.Equal(t, "Chapter 2", timings[1].Title)
}

func TestCache_PersistenceRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "probe-cache.json")

	engine := newFakeEngine()
	engine.data["/f.mp3"] = &domain.ProbeData{Duration: 42, Tags: map[string]string{"artist": "X"}}
	engine.errs["/bad.mp3"] = errors.New("no streams")

	cache := NewCache(cachePath, engine, testLogger())
	mtime := time.UnixMilli(5000)
	cache.Probe(context.Background(), "/f.mp3", mtime)
	cache.Probe(context.Background(), "/bad.mp3", mtime)

	// A fresh process loads the same state and does not re-probe.
	engine2 := newFakeEngine()
	cache2 := NewCache(cachePath, engine2, testLogger())
	cache2.Load()

	got := cache2.Probe(context.Background(), "/f.mp3", mtime)
	require.NotNil(t, got)
	assert.Equal(t, float64(42), got.Duration)
	assert.Equal(t, "X", got.Tag("artist"))
	assert.Zero(t, engine2.callCount("/f.mp3"))

	assert.Nil(t, cache2.Probe(context.Background(), "/bad.mp3", mtime))
	assert.Zero(t, engine2.callCount("/bad.mp3"))
	assert.Len(t, cache2.Failures(), 1)
}

func TestCache_LoadMissingFile(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "probe-cache.json"), newFakeEngine(), testLogger())
	cache.Load()
	assert.Empty(t, cache.Failures())
}

func TestCache_LoadCorruptFile(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "probe-cache.json")
	require.NoError(t, os.WriteFile(cachePath, []byte(`{not json`), 0o644))

	cache := NewCache(cachePath, newFakeEngine(), testLogger())
	cache.Load()
	assert.Empty(t, cache.Failures())
}
