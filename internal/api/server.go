// Package api provides the HTTP server and handlers for the podcast feed.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/podibleapp/podible-server/internal/config"
	"github.com/podibleapp/podible-server/internal/feed"
	"github.com/podibleapp/podible-server/internal/library"
	"github.com/podibleapp/podible-server/internal/probe"
	"github.com/podibleapp/podible-server/internal/search"
	"github.com/podibleapp/podible-server/internal/stream"
	"github.com/podibleapp/podible-server/internal/transcode"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg       *config.Config
	index     *library.Index
	status    *transcode.StatusStore
	queue     *transcode.Queue
	probes    *probe.Cache
	search    *search.Index
	assembler *stream.Assembler
	feed      *feed.Builder
	apiKey    string
	router    *chi.Mux
	log       *slog.Logger
}

// Deps bundles the constructor arguments.
type Deps struct {
	Config *config.Config
	Index  *library.Index
	Status *transcode.StatusStore
	Queue  *transcode.Queue
	Probes *probe.Cache
	Search *search.Index
	APIKey string
	Logger *slog.Logger
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		index:     d.Index,
		status:    d.Status,
		queue:     d.Queue,
		probes:    d.Probes,
		search:    d.Search,
		assembler: stream.NewAssembler(d.Logger),
		feed:      feed.NewBuilder(d.Config.Feed, d.APIKey),
		apiKey:    d.APIKey,
		router:    chi.NewRouter(),
		log:       d.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"X-Api-Key", "Range"},
		ExposedHeaders: []string{"Content-Range", "Accept-Ranges", "Content-Length"},
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check is the only public route.
	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireKey)

		r.Get("/feed", s.handleFeed)

		r.Get("/books", s.handleListBooks)
		r.Get("/books/{id}", s.handleGetBook)

		r.Get("/stream/{id}", s.handleStream)
		r.Head("/stream/{id}", s.handleStream)

		r.Get("/chapters/{id}", s.handleChapters)
		r.Get("/cover/{id}", s.handleCover)
		r.Get("/epub/{id}", s.handleEpub)

		r.Get("/search", s.handleSearch)

		r.Get("/status", s.handleStatusPage)
		r.Get("/status.json", s.handleStatusJSON)
	})
}

// baseURL reconstructs the scheme and host the request arrived on, so feed
// URLs point back at whatever address the client used.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host
}
