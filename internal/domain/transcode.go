package domain

import "time"

// TranscodeState represents the state of a source container's normalization.
type TranscodeState string

const (
	TranscodeStatePending TranscodeState = "pending"
	TranscodeStateWorking TranscodeState = "working"
	TranscodeStateDone    TranscodeState = "done"
	TranscodeStateFailed  TranscodeState = "failed"
)

// TranscodeStatus tracks one source container through normalization.
// The identity is (Source, MtimeMS): a record whose MtimeMS no longer matches
// the file on disk is stale and must be discarded.
type TranscodeStatus struct {
	Source  string         `json:"source"`
	Target  string         `json:"target"`
	MtimeMS int64          `json:"mtime_ms"`
	State   TranscodeState `json:"state"`
	Error   string         `json:"error,omitempty"`

	// Last progress sample from the converter.
	OutTimeMS int64   `json:"out_time_ms,omitempty"`
	Speed     float64 `json:"speed,omitempty"`

	DurationMS int64 `json:"duration_ms,omitempty"`

	// Meta is the snapshot of Book fields needed to promote the finished
	// output into the library index.
	Meta *Book `json:"meta,omitempty"`
}

// MarkWorking transitions to working, clearing any earlier error and progress.
func (s *TranscodeStatus) MarkWorking() {
	s.State = TranscodeStateWorking
	s.Error = ""
	s.OutTimeMS = 0
	s.Speed = 0
	if s.DurationMS == 0 && s.Meta != nil {
		s.DurationMS = int64(s.Meta.DurationSeconds * 1000)
	}
}

// MarkDone transitions to done.
func (s *TranscodeStatus) MarkDone() {
	s.State = TranscodeStateDone
	s.Error = ""
}

// MarkFailed transitions to failed with an error message.
func (s *TranscodeStatus) MarkFailed(errMsg string) {
	s.State = TranscodeStateFailed
	s.Error = errMsg
}

// SetProgress stores a progress sample.
func (s *TranscodeStatus) SetProgress(outTimeMS int64, speed float64) {
	s.OutTimeMS = outTimeMS
	s.Speed = speed
}

// Stale reports whether the record no longer describes the file on disk.
func (s *TranscodeStatus) Stale(mtime time.Time) bool {
	return s.MtimeMS != mtime.UnixMilli()
}

// TranscodeJob is one unit of work for the transcode worker.
type TranscodeJob struct {
	ID      string
	Source  string
	Target  string
	MtimeMS int64
	Meta    *Book
}
