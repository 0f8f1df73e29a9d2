// Package httpserver exposes the history view model as a small JSON API.
package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"nestling/internal/cache"
	"nestling/internal/history"
	"nestling/internal/metrics"
	"nestling/internal/models"
)

type Server struct {
	vm     *history.ViewModel
	logger *zap.Logger
}

type Options struct {
	MetricsEnabled bool
	Logger         *zap.Logger
}

// NewRouter wires all routes for one view model.
func NewRouter(vm *history.ViewModel, opts Options) http.Handler {
	s := &Server{vm: vm, logger: opts.Logger}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.MetricsEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Route("/history", func(r chi.Router) {
		r.Get("/", s.snapshot)
		r.Post("/range", s.selectRange)
		r.Post("/refresh", s.refresh)
		r.Post("/more", s.loadMore)
		r.Put("/search", s.setSearch)
		r.Put("/filter", s.setFilter)
		r.Put("/preload", s.setPreload)
		r.Get("/months/{month}", s.month)
		r.Get("/months/{month}/counts", s.monthCounts)
	})
	r.Delete("/events/{id}", s.deleteEvent)
	r.Post("/events/{id}/duplicate", s.duplicateEvent)
	r.Post("/undo", s.undo)

	return r
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) selectRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Range string `json:"range"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	rng, err := models.ParseRange(req.Range)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	if err := s.vm.SelectRange(r.Context(), rng); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.vm.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) loadMore(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.vm.LoadMore(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Loaded   bool             `json:"loaded"`
		Snapshot history.Snapshot `json:"snapshot"`
	}{loaded, s.vm.Snapshot()})
}

func (s *Server) setSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.vm.SetSearchText(req.Text)
	writeJSON(w, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) setFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filter string `json:"filter"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	filter, err := models.ParseTypeFilter(req.Filter)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	s.vm.SetFilter(filter)
	writeJSON(w, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) setPreload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decode(r, &req); err != nil {
		s.badRequest(w, r, err)
		return
	}
	if req.Enabled == nil {
		s.badRequest(w, r, errors.New("missing enabled flag"))
		return
	}
	s.vm.SetPreloadEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, s.vm.Snapshot())
}

func (s *Server) month(w http.ResponseWriter, r *http.Request) {
	start, err := cache.KeyToMonth(chi.URLParam(r, "month"), s.vm.Location())
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	days, ok := s.vm.GetCachedMonth(start)
	if !ok {
		s.notFound(w, r, "month not cached")
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) monthCounts(w http.ResponseWriter, r *http.Request) {
	start, err := cache.KeyToMonth(chi.URLParam(r, "month"), s.vm.Location())
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	counts, ok := s.vm.MonthCounts(start)
	if !ok {
		s.notFound(w, r, "month not cached")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := s.loadedEvent(w, r)
	if !ok {
		return
	}
	if err := s.vm.DeleteEvent(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Deleted    models.Event `json:"deleted"`
		UndoWindow string       `json:"undoWindow"`
	}{e, s.vm.UndoWindow().String()})
}

func (s *Server) duplicateEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := s.loadedEvent(w, r)
	if !ok {
		return
	}
	created, err := s.vm.DuplicateEvent(r.Context(), e)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	restored, err := s.vm.UndoLastDeletion(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, restored)
}

func (s *Server) loadedEvent(w http.ResponseWriter, r *http.Request) (models.Event, bool) {
	id := chi.URLParam(r, "id")
	e, ok := s.vm.FindEvent(id)
	if !ok {
		s.notFound(w, r, "event not loaded")
	}
	return e, ok
}

func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	return nil
}
