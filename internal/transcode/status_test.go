package transcode

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podibleapp/podible-server/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcode-status.json")

	store := NewStatusStore(path, testLogger())
	store.Set(domain.TranscodeStatus{
		Source:  "/lib/a/b/book.m4b",
		Target:  "/data/a-b-xyz.mp3",
		MtimeMS: 1234567,
		State:   domain.TranscodeStateDone,
		Meta:    &domain.Book{ID: "a-b", Title: "B", Author: "A"},
	})
	store.Set(domain.TranscodeStatus{
		Source:  "/lib/c/d/part01.mp3",
		MtimeMS: 42,
		State:   domain.TranscodeStateFailed,
		Error:   "zero-byte part",
	})
	require.NoError(t, store.Persist())

	loaded := NewStatusStore(path, testLogger())
	loaded.Load()

	done, ok := loaded.Get("/lib/a/b/book.m4b")
	require.True(t, ok)
	assert.Equal(t, domain.TranscodeStateDone, done.State)
	assert.Equal(t, int64(1234567), done.MtimeMS)
	assert.Equal(t, "/data/a-b-xyz.mp3", done.Target)
	require.NotNil(t, done.Meta)
	assert.Equal(t, "a-b", done.Meta.ID)

	failed, ok := loaded.Get("/lib/c/d/part01.mp3")
	require.True(t, ok)
	assert.Equal(t, domain.TranscodeStateFailed, failed.State)
	assert.Equal(t, "zero-byte part", failed.Error)
}

func TestStatusStoreLoadResetsWorking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcode-status.json")

	store := NewStatusStore(path, testLogger())
	store.Set(domain.TranscodeStatus{
		Source:  "/lib/x.m4b",
		MtimeMS: 1,
		State:   domain.TranscodeStateWorking,
	})
	require.NoError(t, store.Persist())

	loaded := NewStatusStore(path, testLogger())
	loaded.Load()

	rec, ok := loaded.Get("/lib/x.m4b")
	require.True(t, ok)
	assert.Equal(t, domain.TranscodeStatePending, rec.State, "crashed working record resets to pending")
}

func TestStatusStoreInFlight(t *testing.T) {
	store := NewStatusStore(filepath.Join(t.TempDir(), "s.json"), testLogger())

	assert.True(t, store.MarkInFlight("/lib/x.m4b"))
	assert.False(t, store.MarkInFlight("/lib/x.m4b"), "second mark must report already queued")
	assert.Equal(t, 1, store.InFlightCount())

	store.ClearInFlight("/lib/x.m4b")
	assert.Equal(t, 0, store.InFlightCount())
	assert.True(t, store.MarkInFlight("/lib/x.m4b"))
}

func TestStatusStorePrune(t *testing.T) {
	store := NewStatusStore(filepath.Join(t.TempDir(), "s.json"), testLogger())
	store.Set(domain.TranscodeStatus{Source: "/lib/keep.m4b", MtimeMS: 1, State: domain.TranscodeStateDone})
	store.Set(domain.TranscodeStatus{Source: "/lib/gone.m4b", MtimeMS: 1, State: domain.TranscodeStateFailed})

	store.Prune(map[string]struct{}{"/lib/keep.m4b": {}})

	_, ok := store.Get("/lib/keep.m4b")
	assert.True(t, ok)
	_, ok = store.Get("/lib/gone.m4b")
	assert.False(t, ok)
}

func TestStatusStoreCountsAndActive(t *testing.T) {
	store := NewStatusStore(filepath.Join(t.TempDir(), "s.json"), testLogger())
	store.Set(domain.TranscodeStatus{Source: "/a", MtimeMS: 1, State: domain.TranscodeStatePending})
	store.Set(domain.TranscodeStatus{Source: "/b", MtimeMS: 1, State: domain.TranscodeStateWorking, OutTimeMS: 9000})
	store.Set(domain.TranscodeStatus{Source: "/c", MtimeMS: 1, State: domain.TranscodeStateDone})

	counts := store.Counts()
	assert.Equal(t, 1, counts[domain.TranscodeStatePending])
	assert.Equal(t, 1, counts[domain.TranscodeStateWorking])
	assert.Equal(t, 1, counts[domain.TranscodeStateDone])

	active, ok := store.Active()
	require.True(t, ok)
	assert.Equal(t, "/b", active.Source)
	assert.Equal(t, int64(9000), active.OutTimeMS)
}
