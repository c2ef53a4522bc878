// Package transcode tracks container normalization: the persistent status
// store, the job queue, the ffmpeg converter, and the single worker that ties
// them together.
package transcode

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/util"
)

// StatusStore is the persistent map from source container path to the state
// of its normalization. The scanner creates and invalidates records, the
// worker moves them through working/done/failed, and HTTP handlers read them
// for the status page.
type StatusStore struct {
	log  *slog.Logger
	path string

	mu      sync.Mutex
	records map[string]*domain.TranscodeStatus
	// Sources currently queued or being worked. Consulted by the scanner
	// before enqueueing, cleared by the worker when a job finishes.
	inFlight map[string]struct{}
}

// NewStatusStore creates a status store persisting to path.
func NewStatusStore(path string, log *slog.Logger) *StatusStore {
	return &StatusStore{
		log:      log.With("component", "transcode"),
		path:     path,
		records:  make(map[string]*domain.TranscodeStatus),
		inFlight: make(map[string]struct{}),
	}
}

// Load reads the persisted store. A missing or unreadable file starts empty.
func (s *StatusStore) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("unreadable transcode status, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var records []*domain.TranscodeStatus
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn("corrupt transcode status, starting empty", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec == nil || rec.Source == "" {
			continue
		}
		// Nothing is running yet; a record left working by a crash goes back
		// to pending so the next scan requeues it.
		if rec.State == domain.TranscodeStateWorking {
			rec.State = domain.TranscodeStatePending
		}
		s.records[rec.Source] = rec
	}
	s.log.Debug("transcode status loaded", "records", len(s.records))
}

// Get returns a copy of the record for source.
func (s *StatusStore) Get(source string) (domain.TranscodeStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[source]
	if !ok {
		return domain.TranscodeStatus{}, false
	}
	return *rec, true
}

// Set inserts or replaces the record for status.Source.
func (s *StatusStore) Set(status domain.TranscodeStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[status.Source] = &status
}

// SetProgress stores a progress sample on the record for source without
// replacing the rest of it.
func (s *StatusStore) SetProgress(source string, outTimeMS int64, speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[source]; ok {
		rec.SetProgress(outTimeMS, speed)
	}
}

// MarkInFlight records that source has been queued. Returns false when it
// already was, so the scanner does not enqueue the same source twice.
func (s *StatusStore) MarkInFlight(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[source]; ok {
		return false
	}
	s.inFlight[source] = struct{}{}
	return true
}

// ClearInFlight removes source from the in-flight set. Called by the worker
// whether the job succeeded or failed, so a later rescan can requeue.
func (s *StatusStore) ClearInFlight(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, source)
}

// InFlightCount returns the number of sources queued or being worked.
func (s *StatusStore) InFlightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

// Prune drops records whose source a completed scan no longer references.
// Failed and done records for sources that still exist stay visible.
func (s *StatusStore) Prune(seen map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for source := range s.records {
		if _, ok := seen[source]; !ok {
			delete(s.records, source)
		}
	}
}

// Counts returns the number of records per state.
func (s *StatusStore) Counts() map[domain.TranscodeState]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.TranscodeState]int, 4)
	for _, rec := range s.records {
		counts[rec.State]++
	}
	return counts
}

// Active returns the record currently being worked, if any.
func (s *StatusStore) Active() (domain.TranscodeStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.State == domain.TranscodeStateWorking {
			return *rec, true
		}
	}
	return domain.TranscodeStatus{}, false
}

// All returns copies of every record, ordered by source path.
func (s *StatusStore) All() []domain.TranscodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TranscodeStatus, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Persist writes the store whole, atomically.
func (s *StatusStore) Persist() error {
	records := s.All()

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal transcode status: %w", err)
	}
	if err := util.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write transcode status: %w", err)
	}
	return nil
}
