package api

import (
	"net/http"

	"github.com/podibleapp/podible-server/internal/feed"
)

// handleFeed renders the podcast RSS document. Errors are plain text here;
// podcast clients do not parse JSON envelopes.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if len(s.cfg.Roots) == 0 {
		http.Error(w, "no library roots configured", http.StatusInternalServerError)
		return
	}

	entries := feed.Collect(s.index.Sorted(), s.status.All())
	out, err := s.feed.Render(baseURL(r), entries)
	if err != nil {
		s.log.Error("feed rendering failed", "error", err)
		http.Error(w, "feed rendering failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write(out); err != nil {
		s.log.Debug("feed write aborted", "error", err)
	}
}
