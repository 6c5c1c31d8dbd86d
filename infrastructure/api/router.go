package api

import (
	"log/slog"
	"net/http"
	"time"
	"whirl/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps gathers what NewRouter wires together.
type RouterDeps struct {
	Log        *slog.Logger
	Websocket  http.Handler
	Auth       IAuthService
	AuthConfig AuthHandlerConfig
	Gatherer   prometheus.Gatherer
}

// NewRouter mounts the websocket endpoint next to the session and
// operational endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	authHandler := NewAuthHandler(deps.Log, deps.Auth, deps.AuthConfig)

	r.Get("/ws", deps.Websocket.ServeHTTP)

	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", observability.Handler(deps.Gatherer))
	}
	return r
}

// NewServer wraps handler with the timeouts used in production.
// Websocket connections are hijacked and escape these limits.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
