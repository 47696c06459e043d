package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"genoetl/internal/pipeline"
	"genoetl/internal/scheduler"
	"genoetl/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := storage.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("list runs")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	events, err := s.history.Events(r.Context(), id)
	if err != nil {
		s.log.WithError(err).Error("list events")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []storage.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.history.Stats(r.Context())
	if err != nil {
		s.log.WithError(err).Error("stats")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSchedules(w http.ResponseWriter, _ *http.Request) {
	jobs := []scheduler.Job{}
	if s.sched != nil {
		jobs = append(jobs, s.sched.Jobs()...)
	}
	type job struct {
		Name string `json:"name"`
		scheduler.Job
	}
	out := make([]job, len(jobs))
	for i, j := range jobs {
		out[i] = job{Name: j.Name, Job: j}
	}
	writeJSON(w, http.StatusOK, out)
}

type runResponse struct {
	*pipeline.Result
	Errors []string `json:"errors,omitempty"`
}

// handleTrigger runs the pipeline synchronously. Only one triggered run may
// be in flight.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "run trigger not configured")
		return
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	res, err := s.trigger(r.Context())
	if res == nil {
		msg := "run failed"
		if err != nil {
			msg = err.Error()
		}
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	body := runResponse{Result: res, Errors: res.ErrorMessages(pipeline.DefaultErrorLimit)}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, body)
	case errors.Is(err, pipeline.ErrValidationFailed), errors.Is(err, pipeline.ErrMissingTable):
		writeJSON(w, http.StatusUnprocessableEntity, body)
	default:
		writeJSON(w, http.StatusInternalServerError, body)
	}
}
