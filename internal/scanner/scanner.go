// Package scanner discovers audiobooks under the configured library roots,
// classifies book directories, resolves metadata and covers, and either
// emits ready books or enqueues transcode jobs for containers that still
// need normalization.
package scanner

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/podibleapp/podible-server/internal/covers"
	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/id"
	"github.com/podibleapp/podible-server/internal/library"
	"github.com/podibleapp/podible-server/internal/opf"
	"github.com/podibleapp/podible-server/internal/probe"
	"github.com/podibleapp/podible-server/internal/transcode"
	"github.com/podibleapp/podible-server/internal/util"
)

// Scanner walks the library roots and keeps the index, the transcode state,
// and the job queue in line with what is on disk. Scans are serialized: a
// new one waits for the previous one to finish.
type Scanner struct {
	roots      []string
	dataDir    string
	probe      *probe.Cache
	status     *transcode.StatusStore
	queue      *transcode.Queue
	index      *library.Index
	extractor  *covers.Extractor
	coverCache *covers.Cache
	log        *slog.Logger

	// Called after a scan has replaced the index, while holding no locks.
	onComplete func()

	mu sync.Mutex
}

// Config carries the scanner's dependencies.
type Config struct {
	Roots      []string
	DataDir    string
	Probe      *probe.Cache
	Status     *transcode.StatusStore
	Queue      *transcode.Queue
	Index      *library.Index
	OnComplete func()
	Logger     *slog.Logger
}

// New creates a scanner.
func New(cfg Config) *Scanner {
	return &Scanner{
		roots:      cfg.Roots,
		dataDir:    cfg.DataDir,
		probe:      cfg.Probe,
		status:     cfg.Status,
		queue:      cfg.Queue,
		index:      cfg.Index,
		extractor:  covers.NewExtractor(),
		coverCache: covers.NewCache(cfg.DataDir),
		onComplete: cfg.OnComplete,
		log:        cfg.Logger.With("component", "scanner"),
	}
}

// Scan traverses every root and rebuilds the ready-book set. Idempotent over
// an unchanged filesystem. Unreadable directories are logged and skipped;
// they never abort the scan. Index and transcode state are persisted once,
// at end of scan.
func (s *Scanner) Scan(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.With("scan_id", id.MustGenerate("scan"))
	start := time.Now()
	log.Info("scan started", "roots", len(s.roots))

	var books []*domain.Book
	// Sources the scan observed; records for anything else are pruned.
	seen := make(map[string]struct{})

	for _, root := range s.roots {
		books = append(books, s.scanRoot(ctx, root, seen, log)...)
	}

	s.index.ReplaceAll(books)
	if err := s.index.Persist(); err != nil {
		log.Error("failed to persist library index", "error", err)
	}
	s.status.Prune(seen)
	if err := s.status.Persist(); err != nil {
		log.Error("failed to persist transcode status", "error", err)
	}

	log.Info("scan complete",
		"books", len(books),
		"queue_depth", s.queue.Len(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	if s.onComplete != nil {
		s.onComplete()
	}
}

// scanRoot walks one <root>/<author>/<title> tree.
func (s *Scanner) scanRoot(ctx context.Context, root string, seen map[string]struct{}, log *slog.Logger) []*domain.Book {
	authors, err := os.ReadDir(root)
	if err != nil {
		log.Warn("unreadable library root, skipping", "root", root, "error", err)
		return nil
	}

	var books []*domain.Book
	for _, author := range authors {
		if ctx.Err() != nil {
			return books
		}
		if !author.IsDir() || strings.HasPrefix(author.Name(), ".") {
			continue
		}

		authorDir := filepath.Join(root, author.Name())
		titles, err := os.ReadDir(authorDir)
		if err != nil {
			log.Warn("unreadable author directory, skipping", "dir", authorDir, "error", err)
			continue
		}

		for _, title := range titles {
			if ctx.Err() != nil {
				return books
			}
			if !title.IsDir() || strings.HasPrefix(title.Name(), ".") {
				continue
			}
			if book := s.scanBook(ctx, filepath.Join(authorDir, title.Name()), author.Name(), title.Name(), seen, log); book != nil {
				books = append(books, book)
			}
		}
	}
	return books
}

// scanBook classifies one title directory and builds its book, when ready.
func (s *Scanner) scanBook(ctx context.Context, dir, authorFolder, titleFolder string, seen map[string]struct{}, log *slog.Logger) *domain.Book {
	files, err := classifyDir(dir)
	if err != nil {
		log.Warn("unreadable book directory, skipping", "dir", dir, "error", err)
		return nil
	}
	if !files.hasAudio() {
		return nil
	}

	// The id derives from the folder names, not the resolved display
	// strings, so tag edits do not re-home a book's URL.
	bookID := util.Slugify(authorFolder + "-" + titleFolder)
	log = log.With("book", bookID)

	var sidecar *opf.Metadata
	if files.opf != "" {
		sidecar, err = opf.Parse(files.opf)
		if err != nil {
			log.Warn("malformed opf side-car, falling back to audio tags", "file", files.opf, "error", err)
		}
	}

	if len(files.containers) > 0 {
		return s.buildSingle(ctx, bookID, dir, files, sidecar, authorFolder, titleFolder, seen, log)
	}
	return s.buildMulti(ctx, bookID, dir, files, sidecar, authorFolder, titleFolder, seen, log)
}

// buildMulti stitches the sorted .mp3 parts into a ready book. A zero-size
// part or one with unknown duration is fatal: the part gets a failed
// transcode record and the book stays hidden.
func (s *Scanner) buildMulti(ctx context.Context, bookID, dir string, files *bookFiles, sidecar *opf.Metadata, authorFolder, titleFolder string, seen map[string]struct{}, log *slog.Logger) *domain.Book {
	segments := make([]domain.AudioSegment, 0, len(files.parts))
	for _, part := range files.parts {
		info, err := os.Stat(part)
		if err != nil {
			log.Warn("unreadable part, skipping book", "part", part, "error", err)
			return nil
		}
		if info.Size() == 0 {
			s.failSource(part, info.ModTime(), "part file is empty", seen)
			log.Warn("zero-byte part, skipping book", "part", part)
			return nil
		}
		duration, ok := s.probe.Duration(ctx, part, info.ModTime())
		if !ok {
			s.failSource(part, info.ModTime(), "part duration unknown", seen)
			log.Warn("part duration unknown, skipping book", "part", part)
			return nil
		}

		segments = append(segments, domain.AudioSegment{
			Path:       part,
			Name:       filepath.Base(part),
			Size:       info.Size(),
			DurationMS: int64(math.Round(duration * 1000)),
			Title:      partTitle(part),
		})
	}
	if len(segments) == 0 {
		return nil
	}

	book := domain.NewMulti(bookID, segments)

	firstPart := files.parts[0]
	info, _ := os.Stat(firstPart)
	var data *domain.ProbeData
	if info != nil {
		data = s.probe.Probe(ctx, firstPart, info.ModTime())
	}
	s.applyMetadata(ctx, book, data, sidecar, files, dir, firstPart, authorFolder, titleFolder, log)
	return book
}

// buildSingle handles a consolidated container: reuse a finished transcode
// whose identity still matches, or record a pending state and enqueue a job.
// Returns nil while the book is not streamable yet.
func (s *Scanner) buildSingle(ctx context.Context, bookID, dir string, files *bookFiles, sidecar *opf.Metadata, authorFolder, titleFolder string, seen map[string]struct{}, log *slog.Logger) *domain.Book {
	source := files.containers[0]
	info, err := os.Stat(source)
	if err != nil {
		log.Warn("unreadable container, skipping book", "source", source, "error", err)
		return nil
	}
	mtime := info.ModTime()
	mtimeMS := mtime.UnixMilli()

	data := s.probe.Probe(ctx, source, mtime)
	if data == nil || data.Duration <= 0 {
		s.failSource(source, mtime, "probe reported no duration", seen)
		log.Warn("container duration unknown, skipping book", "source", source)
		return nil
	}
	seen[source] = struct{}{}

	meta := &domain.Book{
		ID:              bookID,
		Kind:            domain.KindSingle,
		DurationSeconds: data.Duration,
		Chapters:        data.ChapterTimings(),
	}
	s.applyMetadata(ctx, meta, data, sidecar, files, dir, source, authorFolder, titleFolder, log)

	target := filepath.Join(s.dataDir, bookID+"-"+strconv.FormatInt(mtimeMS, 36)+".mp3")

	// A done record whose identity still matches, with its output intact,
	// is reused outright.
	existing, ok := s.status.Get(source)
	if ok && existing.State == domain.TranscodeStateDone && existing.MtimeMS == mtimeMS {
		out := existing.Target
		if out == "" {
			out = target
		}
		if outInfo, err := os.Stat(out); err == nil && outInfo.Size() > 0 {
			book := *meta
			book.Primary = &domain.AudioSegment{
				Path:       out,
				Name:       filepath.Base(out),
				Size:       outInfo.Size(),
				Start:      0,
				End:        outInfo.Size() - 1,
				DurationMS: int64(math.Round(data.Duration * 1000)),
			}
			book.MIME = domain.MIMEForPath(out)
			book.TotalSize = outInfo.Size()
			return &book
		}
	}

	// The worker owns the record while the source is queued or running.
	if !s.status.MarkInFlight(source) {
		return nil
	}

	status := domain.TranscodeStatus{
		Source:     source,
		Target:     target,
		MtimeMS:    mtimeMS,
		State:      domain.TranscodeStatePending,
		DurationMS: int64(math.Round(data.Duration * 1000)),
		Meta:       meta,
	}
	// An unchanged source keeps its previous failure visible until the
	// retry settles it one way or the other.
	if ok && existing.MtimeMS == mtimeMS {
		status.Error = existing.Error
	}
	s.status.Set(status)

	s.queue.Push(domain.TranscodeJob{
		ID:      id.MustGenerate("job"),
		Source:  source,
		Target:  target,
		MtimeMS: mtimeMS,
		Meta:    meta,
	})
	log.Info("queued transcode", "source", source, "target", target)
	return nil
}

// applyMetadata fills a book's catalog fields, cover, e-book, and times.
func (s *Scanner) applyMetadata(ctx context.Context, book *domain.Book, data *domain.ProbeData, sidecar *opf.Metadata, files *bookFiles, dir, source, authorFolder, titleFolder string, log *slog.Logger) {
	md := resolveMetadata(data, sidecar, authorFolder, titleFolder)
	book.Title = md.Title
	book.Author = md.Author
	book.Description = md.Description
	book.DescriptionHTML = md.DescriptionHTML
	book.Language = md.Language
	book.ISBN = md.ISBN
	book.Identifiers = md.Identifiers

	book.PublishedAt = md.Published
	if book.PublishedAt.IsZero() {
		if info, err := os.Stat(source); err == nil {
			book.PublishedAt = info.ModTime()
		}
	}
	if info, err := os.Stat(dir); err == nil {
		book.AddedAt = info.ModTime()
	} else {
		book.AddedAt = time.Now()
	}

	if len(files.epubs) > 0 {
		book.EpubPath = files.epubs[0]
	}

	book.CoverPath = s.resolveCover(ctx, files, log)
	if book.CoverPath != "" {
		hash, err := covers.ComputeBlurHash(book.CoverPath)
		if err != nil {
			log.Debug("blurhash failed", "cover", book.CoverPath, "error", err)
		} else {
			book.CoverBlurhash = hash
		}
	}
}

// failSource records a failed transcode state for a source file so the
// problem stays visible on the status page until the file changes.
func (s *Scanner) failSource(source string, mtime time.Time, reason string, seen map[string]struct{}) {
	seen[source] = struct{}{}
	s.status.Set(domain.TranscodeStatus{
		Source:  source,
		MtimeMS: mtime.UnixMilli(),
		State:   domain.TranscodeStateFailed,
		Error:   reason,
	})
}
