// Package web is the orchestrator's HTTP surface: health and metrics
// endpoints, chat and settings CRUD for the UI, and the websocket channel the
// UI talks to the agent through.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Beykus-Y/mcp-agent/internal/agent"
	"github.com/Beykus-Y/mcp-agent/internal/chat"
	"github.com/Beykus-Y/mcp-agent/internal/health"
	"github.com/Beykus-Y/mcp-agent/internal/observe"
	"github.com/Beykus-Y/mcp-agent/internal/settings"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// Runner executes one orchestrator run over a conversation. The notifier
// receives progress callbacks while tools execute; it may be nil.
type Runner interface {
	Run(ctx context.Context, history []types.Message, n agent.Notifier) (agent.Result, error)
}

// RunnerFunc adapts a function to the [Runner] interface.
type RunnerFunc func(ctx context.Context, history []types.Message, n agent.Notifier) (agent.Result, error)

// Run implements [Runner].
func (f RunnerFunc) Run(ctx context.Context, history []types.Message, n agent.Notifier) (agent.Result, error) {
	return f(ctx, history, n)
}

// Config holds the web server's dependencies.
type Config struct {
	// Chats is the chat session store. Required.
	Chats *chat.Store

	// Settings is the runtime settings file. Required.
	Settings *settings.File

	// Runner executes agent runs for the websocket channel. Required.
	Runner Runner

	// Health serves /healthz and /readyz. Required.
	Health *health.Handler

	// MetricsHandler serves GET /metrics (promhttp). Optional; when nil the
	// route is absent.
	MetricsHandler http.Handler

	// Metrics instruments HTTP requests. Defaults to the process-wide set.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the orchestrator's HTTP surface.
type Server struct {
	chats    *chat.Store
	settings *settings.File
	runner   Runner
	health   *health.Handler
	promh    http.Handler
	metrics  *observe.Metrics
	log      *slog.Logger
}

// New validates cfg and builds a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Chats == nil {
		return nil, errors.New("web: Chats must not be nil")
	}
	if cfg.Settings == nil {
		return nil, errors.New("web: Settings must not be nil")
	}
	if cfg.Runner == nil {
		return nil, errors.New("web: Runner must not be nil")
	}
	if cfg.Health == nil {
		return nil, errors.New("web: Health must not be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		chats:    cfg.Chats,
		settings: cfg.Settings,
		runner:   cfg.Runner,
		health:   cfg.Health,
		promh:    cfg.MetricsHandler,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
	}, nil
}

// Handler builds the route table. The websocket endpoint is mounted outside
// the observability middleware: the status-recording wrapper does not forward
// http.Hijacker, which the websocket upgrade needs.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	s.health.Register(api)
	if s.promh != nil {
		api.Handle("GET /metrics", s.promh)
	}
	api.HandleFunc("GET /api/chats", s.listChats)
	api.HandleFunc("POST /api/chats", s.createChat)
	api.HandleFunc("GET /api/chats/{id}", s.getChat)
	api.HandleFunc("DELETE /api/chats/{id}", s.deleteChat)
	api.HandleFunc("GET /api/settings", s.getSettings)
	api.HandleFunc("PUT /api/settings", s.putSettings)

	root := http.NewServeMux()
	root.Handle("/", observe.Middleware(s.metrics)(api))
	root.HandleFunc("GET /ws", s.serveWS)
	return root
}

// Run serves the surface on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("web surface serving", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web: shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return fmt.Errorf("web: serve: %w", err)
	}
}

func (s *Server) listChats(w http.ResponseWriter, _ *http.Request) {
	list, err := s.chats.List()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []chat.Summary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createChat(w http.ResponseWriter, _ *http.Request) {
	c, err := s.chats.Create()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	c, err := s.chats.Get(r.PathValue("id"))
	if err != nil {
		s.failChat(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.Delete(r.PathValue("id")); err != nil {
		s.failChat(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var in settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("web: decode settings: %w", err))
		return
	}
	if err := s.settings.Put(in); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.settings.Get())
}

// failChat maps chat store errors onto HTTP statuses.
func (s *Server) failChat(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrNotFound) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	// Invalid ids are caller faults.
	s.fail(w, http.StatusBadRequest, err)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.log.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
