// Package target implements a small stand-in for the weather-station API that
// the built-in scenarios browse. It backs the stampede-target command and the
// end-to-end tests.
package target

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures the server.
type Options struct {
	// Username and Password accepted by /auth/login
	Username string
	Password string

	// Token returned on login; generated when empty
	Token string

	// RequireAuth rejects API calls without the bearer token
	RequireAuth bool

	// Latency is added to every API response
	Latency time.Duration

	Logger *zap.Logger
}

// Server serves the read endpoints and /auth/login.
type Server struct {
	opts   Options
	mux    *http.ServeMux
	logger *zap.Logger

	logins   atomic.Int64
	requests atomic.Int64
	rejected atomic.Int64
}

// NewServer creates the handler.
func NewServer(opts Options) *Server {
	if opts.Token == "" {
		opts.Token = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		opts:   opts,
		mux:    http.NewServeMux(),
		logger: opts.Logger,
	}

	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	})

	s.mux.Handle("GET /alert_type", s.api(list("alert_type")))
	s.mux.Handle("GET /alert_type/{id}", s.api(item("alert_type")))
	s.mux.Handle("GET /alert/all", s.api(list("alert")))
	s.mux.Handle("GET /parameter_type", s.api(list("parameter_type")))
	s.mux.Handle("GET /weather_station/{id}", s.api(item("weather_station")))
	s.mux.Handle("GET /dashboard/{view}", s.api(dashboard))

	return s
}

// Token returns the token handed out on login.
func (s *Server) Token() string {
	return s.opts.Token
}

// Logins returns the number of successful logins.
func (s *Server) Logins() int64 {
	return s.logins.Load()
}

// Requests returns the number of API calls served, including rejected ones.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Rejected returns the number of API calls refused for missing auth.
func (s *Server) Rejected() int64 {
	return s.rejected.Load()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid form"})
		return
	}

	if r.PostForm.Get("username") != s.opts.Username || r.PostForm.Get("password") != s.opts.Password {
		s.logger.Debug("login rejected", zap.String("username", r.PostForm.Get("username")))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
		return
	}

	s.logins.Add(1)
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.opts.Token,
		"token_type":   "bearer",
	})
}

// api wraps an endpoint with latency, auth and request counting.
func (s *Server) api(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)

		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-r.Context().Done():
				return
			}
		}

		if s.opts.RequireAuth {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token != s.opts.Token {
				s.rejected.Add(1)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Not authenticated"})
				return
			}
		}

		s.logger.Debug("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next(w, r)
	})
}

func list(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"resource": resource,
			"items":    []map[string]any{{"id": 1}, {"id": 2}},
		})
	}
}

func item(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"resource": resource,
			"id":       r.PathValue("id"),
		})
	}
}

func dashboard(w http.ResponseWriter, r *http.Request) {
	switch view := r.PathValue("view"); view {
	case "station-history", "alert-types", "alert-counts", "station-status", "measures-status":
		writeJSON(w, http.StatusOK, map[string]any{"view": view, "data": []int{}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
