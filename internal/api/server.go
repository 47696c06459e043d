// Package api exposes run history, schedules and a run trigger over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /runs?limit=N
//	GET  /runs/{id}/events
//	GET  /stats
//	POST /runs
//	GET  /schedules
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"genoetl/internal/pipeline"
	"genoetl/internal/scheduler"
	"genoetl/internal/storage"
)

// Trigger starts one pipeline run with the server's configured directories.
type Trigger func(ctx context.Context) (*pipeline.Result, error)

// Server serves the API. The scheduler and trigger are optional.
type Server struct {
	log     logrus.FieldLogger
	history storage.History
	sched   *scheduler.Registry
	trigger Trigger

	mu      sync.Mutex
	running bool
}

// New builds a server over h.
func New(log logrus.FieldLogger, h storage.History, sched *scheduler.Registry, trigger Trigger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{log: log.WithField("component", "api"), history: h, sched: sched, trigger: trigger}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/schedules", s.handleSchedules)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Post("/", s.handleTrigger)
		r.Get("/{id}/events", s.handleEvents)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("api listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		s.log.WithError(err).Warn("api shutdown error")
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
