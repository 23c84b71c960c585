// Package server exposes stories and their continuation over HTTP and
// WebSocket.
//
// Routes:
//
//	POST /api/story/create       create an empty story
//	GET  /api/story/{id}         list the turns of a story
//	POST /api/story/continue     append a human turn and its AI continuation
//	GET  /api/ws/story/{id}      stream continuations over a WebSocket
//
// Every new turn is scored, appended to the store and only then returned or
// sent, so clients never see a turn that was not persisted.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hua914255/media/pkg/continuation"
	"github.com/Hua914255/media/pkg/genx"
	"github.com/Hua914255/media/pkg/story"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

type Config struct {
	Stories *story.Store

	// Continuation configures every run. Its Context field is replaced per
	// run by a builder over the story history.
	Continuation continuation.Config

	// Params are the sampling parameters sent upstream.
	Params *genx.ModelParams

	// Scorer defaults to story.NopScorer.
	Scorer story.Scorer

	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string

	Logger *slog.Logger
}

type Server struct {
	stories  *story.Store
	cont     continuation.Config
	params   *genx.ModelParams
	scorer   story.Scorer
	origins  []string
	logger   *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

func New(cfg Config) *Server {
	s := &Server{
		stories: cfg.Stories,
		cont:    cfg.Continuation,
		params:  cfg.Params,
		scorer:  cfg.Scorer,
		origins: cfg.CORSOrigins,
		logger:  cfg.Logger,
		mux:     http.NewServeMux(),
	}
	if s.scorer == nil {
		s.scorer = story.NopScorer{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cont.Logger == nil {
		s.cont.Logger = s.logger
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.allowOrigin(origin)
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /api/story/create", s.handleCreate)
	s.mux.HandleFunc("GET /api/story/{id}", s.handleGet)
	s.mux.HandleFunc("POST /api/story/continue", s.handleContinue)
	s.mux.HandleFunc("GET /api/ws/story/{id}", s.handleWS)
	// Paths used by the browser client, with and without the /api/ws mount.
	s.mux.HandleFunc("GET /ws/story/{id}", s.handleWS)
	s.mux.HandleFunc("GET /api/ws/ws/story/{id}", s.handleWS)
}

// Handler returns the routes wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.cors(s.mux))
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Open WebSocket sessions are cancelled with ctx.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "server: listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// controller returns a controller whose context is built from history.
func (s *Server) controller(history []story.Turn) *continuation.Controller {
	cfg := s.cont
	cfg.Context = &story.ContextBuilder{History: story.Snapshot(history), Params: s.params}
	return continuation.New(cfg)
}

// save scores turns and appends them to the story.
func (s *Server) save(ctx context.Context, id string, turns ...story.Turn) ([]story.Turn, error) {
	scored, err := s.scorer.Score(ctx, id, turns)
	if err != nil {
		return nil, fmt.Errorf("server: score: %w", err)
	}
	return s.stories.Append(ctx, id, scored...)
}

func (s *Server) allowOrigin(origin string) bool {
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	detail := "internal error"
	switch {
	case errors.Is(err, story.ErrNotFound):
		status, detail = http.StatusNotFound, "story not found"
	case errors.Is(err, continuation.ErrInvalidRequest), errors.Is(err, errBadRequest):
		status, detail = http.StatusBadRequest, err.Error()
	default:
		s.logger.ErrorContext(r.Context(), "server: request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}
