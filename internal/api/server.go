// Package api provides the HTTP control surface for the morning news bot.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/RobinCoderZhao/morning-news/internal/morningnews/bot"
	"github.com/RobinCoderZhao/morning-news/internal/morningnews/publisher"
)

// NewsBot is the part of *bot.Bot the API drives.
type NewsBot interface {
	Snapshot(now time.Time) bot.StatusInfo
	Prepare(ctx context.Context, withText bool) (*bot.Edition, error)
	Push(ctx context.Context) (publisher.Report, error)
	SendTest(ctx context.Context) (string, error)
}

// Server holds the dependencies for the API.
type Server struct {
	bot       NewsBot
	jwtSecret []byte
	now       func() time.Time
	mounts    map[string]http.Handler
	logger    *slog.Logger

	// preview caches the public image for the current day.
	preview struct {
		sync.Mutex
		day  string
		png  []byte
		etag string
	}
}

// NewServer creates a new API Server instance. An empty jwtSecret disables
// the protected routes.
func NewServer(b NewsBot, jwtSecret string) *Server {
	return &Server{
		bot:       b,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
		mounts:    make(map[string]http.Handler),
		logger:    slog.Default(),
	}
}

// MountProtected serves h at pattern behind the same token check as the
// push routes.
func (s *Server) MountProtected(pattern string, h http.Handler) {
	s.mounts[pattern] = h
}

// Routes returns the configured http.Handler (ServeMux) for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /healthz", s.handleHealth())
	mux.HandleFunc("GET /api/status", s.handleStatus())
	mux.HandleFunc("GET /api/news/image.png", s.handleImage())
	mux.HandleFunc("GET /api/config-help", s.handleConfigHelp())

	// Protected routes (Require JWT)
	mux.Handle("POST /api/push", s.requireAuthHandler(http.HandlerFunc(s.handlePush())))
	mux.Handle("POST /api/test", s.requireAuthHandler(http.HandlerFunc(s.handleSendTest())))
	for pattern, h := range s.mounts {
		mux.Handle(pattern, s.requireAuthHandler(h))
	}

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("api request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
