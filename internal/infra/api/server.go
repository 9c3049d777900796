package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// Server exposes liveness, readiness and Prometheus metrics.
type Server struct {
	checks  map[string]Check
	timeout time.Duration
	log     *zerolog.Logger
}

func NewServer(logger *zerolog.Logger) *Server {
	return &Server{checks: make(map[string]Check), timeout: 2 * time.Second, log: logger}
}

// AddCheck registers a readiness probe under name. Not safe after Register.
func (s *Server) AddCheck(name string, c Check) *Server {
	s.checks[name] = c
	return s
}

func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for n := range s.checks {
		names = append(names, n)
	}
	sort.Strings(names)

	resp := readyResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, n := range names {
		if err := s.checks[n](ctx); err != nil {
			s.log.Warn().Err(err).Str("check", n).Msg("readiness check failed")
			resp.Checks[n] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[n] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
