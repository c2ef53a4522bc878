package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTranscodeStatus_Transitions(t *testing.T) {
	st := &TranscodeStatus{
		Source:  "/lib/a/b/book.m4b",
		Target:  "/data/a-b-1x2y3z.mp3",
		MtimeMS: 1700000000000,
		State:   TranscodeStatePending,
		Meta:    &Book{ID: "a-b", DurationSeconds: 3600},
	}

	st.MarkWorking()
	assert.Equal(t, TranscodeStateWorking, st.State)
	assert.Equal(t, int64(3600000), st.DurationMS)
	assert.Empty(t, st.Error)

	st.SetProgress(90000, 30.5)
	assert.Equal(t, int64(90000), st.OutTimeMS)
	assert.Equal(t, 30.5, st.Speed)

	st.MarkDone()
	assert.Equal(t, TranscodeStateDone, st.State)
	assert.Empty(t, st.Error)
}

func TestTranscodeStatus_MarkFailed(t *testing.T) {
	st := &TranscodeStatus{State: TranscodeStateWorking}
	st.MarkFailed("ffmpeg exited with code 1: invalid data found")

	assert.Equal(t, TranscodeStateFailed, st.State)
	assert.Contains(t, st.Error, "exited with code 1")
}

func TestTranscodeStatus_MarkWorking_ClearsPreviousRun(t *testing.T) {
	st := &TranscodeStatus{
		State:     TranscodeStateFailed,
		Error:     "disk full",
		OutTimeMS: 50000,
		Speed:     12.0,
	}

	st.MarkWorking()
	assert.Equal(t, TranscodeStateWorking, st.State)
	assert.Empty(t, st.Error)
	assert.Zero(t, st.OutTimeMS)
	assert.Zero(t, st.Speed)
}

func TestTranscodeStatus_Stale(t *testing.T) {
	mtime := time.UnixMilli(1700000000000)
	st := &TranscodeStatus{MtimeMS: mtime.UnixMilli()}

	assert.False(t, st.Stale(mtime))
	assert.True(t, st.Stale(mtime.Add(time.Second)))
}
