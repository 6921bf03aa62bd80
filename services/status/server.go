package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
)

// Server exposes worker health and the last run over HTTP
type Server struct {
	router  *chi.Mux
	tracker *Tracker
	started time.Time
	http    *http.Server
}

// NewServer creates a status server listening on addr
func NewServer(addr string, tracker *Tracker) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		tracker: tracker,
		started: time.Now(),
	}
	s.setupRoutes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/runs/last", func(r chi.Router) {
		r.Get("/", s.handleLastRun)
		r.Get("/jobs", s.handleLastRunJobs)
	})
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.ForStatus().Info().Str("addr", s.http.Addr).Msg("Status server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"runs":   s.tracker.Runs(),
	})
}

func (s *Server) handleLastRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.tracker.Last()
	if !ok {
		respondError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleLastRunJobs(w http.ResponseWriter, r *http.Request) {
	run, ok := s.tracker.Last()
	if !ok {
		respondError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	jobs := run.NewJobs
	if jobs == nil {
		jobs = []crawler.Job{}
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filtered := make([]crawler.Job, 0, len(jobs))
		for _, j := range jobs {
			if string(j.Category) == category {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	respondJSON(w, http.StatusOK, jobs)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.ForStatus().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("Request")
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
