package api

import (
	"encoding/json/v2"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/podibleapp/podible-server/internal/domain"
	apperrors "github.com/podibleapp/podible-server/internal/errors"
	"github.com/podibleapp/podible-server/internal/http/response"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.log)
}

// findBook resolves a path id to a ready book.
func (s *Server) findBook(r *http.Request) (*domain.Book, error) {
	id := chi.URLParam(r, "id")
	book, ok := s.index.Find(id)
	if !ok {
		return nil, apperrors.NotFoundf("no book with id %q", id)
	}
	return book, nil
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	if len(s.cfg.Roots) == 0 {
		response.InternalError(w, "no library roots configured", s.log)
		return
	}
	response.Success(w, s.index.Sorted(), s.log)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.findBook(r)
	if err != nil {
		response.HandleError(w, err, s.log)
		return
	}
	response.Success(w, book, s.log)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	book, err := s.findBook(r)
	if err != nil {
		response.HandleError(w, err, s.log)
		return
	}
	s.assembler.Serve(w, r, book)
}

// chaptersDoc is the Podcasting 2.0 chapters shape.
type chaptersDoc struct {
	Version  string        `json:"version"`
	Chapters []chapterItem `json:"chapters"`
}

type chapterItem struct {
	StartTime float64 `json:"startTime"`
	Title     string  `json:"title"`
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	book, err := s.findBook(r)
	if err != nil {
		response.HandleError(w, err, s.log)
		return
	}

	doc := chaptersDoc{Version: "1.2.0", Chapters: make([]chapterItem, 0, len(book.Chapters))}
	for _, ch := range book.Chapters {
		doc.Chapters = append(doc.Chapters, chapterItem{
			StartTime: float64(ch.StartMS) / 1000,
			Title:     ch.Title,
		})
	}

	// Podcast clients expect the raw chapters document, not the envelope.
	w.Header().Set("Content-Type", "application/json+chapters")
	if err := json.MarshalWrite(w, doc); err != nil {
		s.log.Error("failed to encode chapters", "book", book.ID, "error", err)
	}
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	book, err := s.findBook(r)
	if err != nil {
		response.HandleError(w, err, s.log)
		return
	}
	if book.CoverPath == "" {
		response.NotFound(w, "book has no cover", s.log)
		return
	}
	http.ServeFile(w, r, book.CoverPath)
}

func (s *Server) handleEpub(w http.ResponseWriter, r *http.Request) {
	book, err := s.findBook(r)
	if err != nil {
		response.HandleError(w, err, s.log)
		return
	}
	if book.EpubPath == "" {
		response.NotFound(w, "book has no companion e-book", s.log)
		return
	}
	w.Header().Set("Content-Type", "application/epub+zip")
	http.ServeFile(w, r, book.EpubPath)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		response.BadRequest(w, "query parameter q is required", s.log)
		return
	}

	ids, err := s.search.Search(q)
	if err != nil {
		s.log.Error("search failed", "query", q, "error", err)
		response.InternalError(w, "search failed", s.log)
		return
	}

	books := make([]*domain.Book, 0, len(ids))
	for _, id := range ids {
		if book, ok := s.index.Find(id); ok {
			books = append(books, book)
		}
	}
	response.Success(w, books, s.log)
}
