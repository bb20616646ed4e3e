package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/mdd-api/internal/handler"
	"github.com/honeynil/mdd-api/internal/infrastructure/auth"
)

type RouterConfig struct {
	Handler *handler.Handler
	Tokens  auth.TokenVerifier
	Users   auth.UserDirectory

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Health backs /healthz when set.
	Health func(ctx context.Context) error

	AllowedOrigin       string
	AuthRateLimitPerMin int
}

func SetupRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", healthHandler(cfg.Health)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.AuthMiddleware(cfg.Tokens, cfg.Users))

	public := api.NewRoute().Subrouter()
	if cfg.AuthRateLimitPerMin > 0 {
		public.Use(NewIPRateLimiter(cfg.AuthRateLimitPerMin).Middleware)
	}
	cfg.Handler.RegisterPublicRoutes(public)

	protected := api.NewRoute().Subrouter()
	protected.Use(RequireAuth)
	cfg.Handler.RegisterProtectedRoutes(protected)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handler.WriteError(w, http.StatusNotFound, "Resource not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		handler.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	var h http.Handler = r
	h = corsMiddleware(cfg.AllowedOrigin)(h)
	h = recoveryMiddleware(h)
	h = loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				handler.WriteError(w, http.StatusServiceUnavailable, "unhealthy", nil)
				return
			}
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
