package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/podibleapp/podible-server/internal/http/response"
)

// requireKey guards every route except /health. The key travels as a ?key=
// query parameter (podcast clients cannot send headers) or as X-Api-Key.
func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			key = r.Header.Get("X-Api-Key")
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			response.Unauthorized(w, "missing or invalid api key", s.log)
			return
		}

		next.ServeHTTP(w, r)
	})
}
