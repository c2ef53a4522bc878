package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/library"
)

const (
	// How often a progress sample is persisted to disk.
	persistInterval = 2 * time.Second
	// Output time that must elapse before progress is worth logging.
	logAfterOutTime = 5 * time.Second
	// Human-readable progress log cap.
	logEvery = 1500 * time.Millisecond
)

// Worker consumes the job queue and runs one transcode at a time. The engine
// is CPU-heavy, so a single active job per process is deliberate; the worker
// runs concurrently with scanning and serving.
type Worker struct {
	queue     *Queue
	store     *StatusStore
	index     *library.Index
	converter Converter
	log       *slog.Logger

	// Called after a finished output is promoted into the index.
	onPromote func()

	ctx    context.Context //nolint:containedctx // Worker lifecycle context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a worker. onPromote may be nil.
func NewWorker(queue *Queue, store *StatusStore, index *library.Index, converter Converter, onPromote func(), log *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		queue:     queue,
		store:     store,
		index:     index,
		converter: converter,
		log:       log.With("component", "worker"),
		onPromote: onPromote,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop cancels the loop and waits for it to drain. A transcode already
// handed to the converter is interrupted by the context.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
	w.log.Info("transcode worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()
	w.log.Debug("transcode worker started")

	for {
		job, err := w.queue.Pop(w.ctx)
		if err != nil {
			return
		}
		w.process(job)
	}
}

// process runs one job end to end. Terminal state is persisted before the
// book is promoted into the index, so a crash in between re-derives the
// ready state from the done record on next startup.
func (w *Worker) process(job domain.TranscodeJob) {
	defer w.store.ClearInFlight(job.Source)

	status, ok := w.store.Get(job.Source)
	if !ok || status.MtimeMS != job.MtimeMS {
		// The source changed or vanished after enqueue; a rescan owns it now.
		w.log.Debug("dropping stale transcode job", "job_id", job.ID, "source", job.Source)
		return
	}
	if job.Meta == nil {
		w.fail(job, fmt.Errorf("job %s carries no metadata snapshot", job.ID))
		return
	}

	status.Meta = job.Meta
	status.Target = job.Target
	status.MarkWorking()
	w.store.Set(status)
	w.persist()

	log := w.log.With("job_id", job.ID, "source", job.Source)
	log.Info("starting transcode", "target", job.Target)

	cover := ""
	if job.Meta != nil {
		cover = job.Meta.CoverPath
	}

	err := w.converter.Convert(w.ctx, job.Source, job.Target, cover, w.progressFunc(job, log))
	if err != nil {
		w.fail(job, err)
		return
	}

	// Stamp the output with the source's mtime so the (source, mtime)
	// identity survives filesystem round-trips, then record done.
	sourceMtime := time.UnixMilli(job.MtimeMS)
	if err := os.Chtimes(job.Target, sourceMtime, sourceMtime); err != nil {
		w.fail(job, fmt.Errorf("stamp output mtime: %w", err))
		return
	}
	info, err := os.Stat(job.Target)
	if err != nil {
		w.fail(job, fmt.Errorf("stat output: %w", err))
		return
	}
	if info.Size() == 0 {
		w.fail(job, fmt.Errorf("output %s is empty", job.Target))
		return
	}

	status, ok = w.store.Get(job.Source)
	if !ok || status.MtimeMS != job.MtimeMS {
		return
	}
	status.MarkDone()
	w.store.Set(status)
	w.persist()

	book := promote(job, info.Size())
	w.index.Put(book)
	if err := w.index.Persist(); err != nil {
		log.Error("failed to persist library index", "error", err)
	}
	if w.onPromote != nil {
		w.onPromote()
	}

	log.Info("transcode complete", "target", job.Target, "size", info.Size())
}

func (w *Worker) fail(job domain.TranscodeJob, err error) {
	w.log.Error("transcode failed", "job_id", job.ID, "source", job.Source, "error", err)

	status, ok := w.store.Get(job.Source)
	if !ok || status.MtimeMS != job.MtimeMS {
		return
	}
	status.MarkFailed(err.Error())
	w.store.Set(status)
	w.persist()
}

// progressFunc streams converter samples into the status store. Disk writes
// are throttled, and human-readable progress appears in the log only once
// the output time is past the threshold, rate-limited.
func (w *Worker) progressFunc(job domain.TranscodeJob, log *slog.Logger) ProgressFunc {
	var lastPersist time.Time
	limiter := rate.NewLimiter(rate.Every(logEvery), 1)

	var durationMS int64
	if job.Meta != nil {
		durationMS = int64(job.Meta.DurationSeconds * 1000)
	}

	return func(outTimeMS int64, speed float64) {
		w.store.SetProgress(job.Source, outTimeMS, speed)

		if now := time.Now(); now.Sub(lastPersist) >= persistInterval {
			lastPersist = now
			w.persist()
		}

		if outTimeMS >= logAfterOutTime.Milliseconds() && limiter.Allow() {
			args := []any{"out_time_ms", outTimeMS, "speed", speed}
			if durationMS > 0 {
				args = append(args, "percent", outTimeMS*100/durationMS)
			}
			log.Info("transcode progress", args...)
		}
	}
}

func (w *Worker) persist() {
	if err := w.store.Persist(); err != nil {
		w.log.Error("failed to persist transcode status", "error", err)
	}
}

// promote builds the ready single-container book from the job's metadata
// snapshot and the finished output.
func promote(job domain.TranscodeJob, size int64) *domain.Book {
	book := *job.Meta
	book.Kind = domain.KindSingle
	book.Files = nil
	book.Primary = &domain.AudioSegment{
		Path:       job.Target,
		Name:       filepath.Base(job.Target),
		Size:       size,
		Start:      0,
		End:        size - 1,
		DurationMS: int64(book.DurationSeconds * 1000),
	}
	book.MIME = domain.MIMEForPath(job.Target)
	book.TotalSize = size
	return &book
}
