package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"confcal/internal/agenda"
	appLog "confcal/internal/log"
	"confcal/internal/model"
)

const defaultCacheTTL = time.Minute

// Provider renders the agenda. *agenda.Service satisfies it.
type Provider interface {
	Render(ctx context.Context) (agenda.Feed, error)
}

// Server exposes the agenda as an iCalendar feed and a JSON API.
type Server struct {
	provider Provider
	ttl      time.Duration
	mux      *http.ServeMux

	// In-memory cache shared by /ical/v1 and /api/sessions so that repeated
	// subscriptions within the TTL do not re-fetch the agenda page.
	cacheMu sync.RWMutex
	cache   *feedCache

	// fillMu serializes cache misses so concurrent requests share one fetch.
	fillMu sync.Mutex

	now func() time.Time
}

// feedCache holds one rendering of the agenda and its timestamp.
type feedCache struct {
	calendar  string
	sessions  []model.Session
	updatedAt time.Time
}

// Options configures NewServer.
type Options struct {
	// CacheTTL is how long a rendered feed is served before re-fetching.
	// Zero selects the default of one minute; negative disables caching.
	CacheTTL time.Duration
}

//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(provider Provider, opts Options) *Server {
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	s := &Server{
		provider: provider,
		ttl:      ttl,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server, CORS included.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ical/v1", s.handleCalendar)
	s.mux.HandleFunc("/api/sessions", s.handleSessions)

	// Embedded landing page. All other paths fall back to this handler.
	s.mux.Handle("/", s.staticFileServer())
}

// corsMiddleware lets calendar clients and browser pages on any origin read
// the feed. Preflight requests are answered directly.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
			h.Set("Access-Control-Allow-Headers", req)
		}

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// Warm refreshes the cache regardless of its age. It is used by the
// background refresh schedule.
func (s *Server) Warm(ctx context.Context) error {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	_, err := s.fill(ctx)
	return err
}

// snapshot returns a fresh cache entry, filling it when missing or stale.
func (s *Server) snapshot(ctx context.Context) (*feedCache, error) {
	if fc := s.cached(); fc != nil {
		return fc, nil
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()

	// Another request may have filled the cache while we waited.
	if fc := s.cached(); fc != nil {
		return fc, nil
	}
	return s.fill(ctx)
}

func (s *Server) cached() *feedCache {
	if s.ttl < 0 {
		return nil
	}
	s.cacheMu.RLock()
	fc := s.cache
	s.cacheMu.RUnlock()
	if fc != nil && s.now().Sub(fc.updatedAt) < s.ttl {
		return fc
	}
	return nil
}

// fill must be called with fillMu held.
func (s *Server) fill(ctx context.Context) (*feedCache, error) {
	feed, err := s.provider.Render(ctx)
	if err != nil {
		return nil, err
	}

	fc := &feedCache{
		calendar:  feed.Calendar,
		sessions:  feed.Sessions,
		updatedAt: s.now(),
	}
	s.cacheMu.Lock()
	s.cache = fc
	s.cacheMu.Unlock()
	return fc, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves the agenda as text/calendar.
//
// GET /ical/v1
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	fc, err := s.snapshot(r.Context())
	if err != nil {
		s.writeFailure(w, "calendar", err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/calendar; charset=utf-8")
	h.Set("Content-Disposition", "inline; filename=agenda.ics")
	h.Set("Cache-Control", s.cacheControl())
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(fc.calendar))
}

// sessionsResponse is the JSON response shape for /api/sessions.
type sessionsResponse struct {
	Sessions  []model.Session `json:"sessions"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// handleSessions returns the normalized sessions as JSON.
//
// GET /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	fc, err := s.snapshot(r.Context())
	if err != nil {
		s.writeFailure(w, "sessions", err)
		return
	}

	sessions := fc.sessions
	if sessions == nil {
		sessions = []model.Session{}
	}
	w.Header().Set("Cache-Control", s.cacheControl())
	writeJSON(w, http.StatusOK, sessionsResponse{
		Sessions:  sessions,
		UpdatedAt: fc.updatedAt.UTC(),
	})
}

func (s *Server) cacheControl() string {
	if s.ttl <= 0 {
		return "no-cache"
	}
	return "public, max-age=" + strconv.Itoa(int(s.ttl/time.Second))
}

// writeFailure maps pipeline errors onto status codes. Upstream fetch
// problems are a bad gateway; everything else is on our side.
func (s *Server) writeFailure(w http.ResponseWriter, what string, err error) {
	status := http.StatusInternalServerError
	msg := "failed to build " + what
	if errors.Is(err, agenda.ErrFetchFailed) {
		status = http.StatusBadGateway
		msg = "failed to fetch agenda"
	}
	appLog.Error("request failed", err, "resource", what, "status", status)
	writeError(w, status, msg)
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD, OPTIONS")
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// staticFileServer serves the embedded landing page from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Unknown API paths must 404 as JSON, never fall through to HTML.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
