// Package router assembles the HTTP surface.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/5w1tchy/book-thrift/internal/api/apperr"
	"github.com/5w1tchy/book-thrift/internal/api/handlers/listings"
	"github.com/5w1tchy/book-thrift/internal/api/httpx"
	mw "github.com/5w1tchy/book-thrift/internal/api/middlewares"
	"github.com/5w1tchy/book-thrift/internal/auth"
	"github.com/5w1tchy/book-thrift/internal/config"
	"github.com/5w1tchy/book-thrift/internal/metrics"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Config   *config.Config
	DB       Pinger
	Redis    *redis.Client // nil disables rate limiting
	Auth     *auth.Handler
	Listings *listings.Handler
	Tokens   mw.TokenParser
	Versions mw.TokenVersions
	Uploads  http.Handler // served under /uploads when storage is local
}

func New(d Deps) http.Handler {
	cfg := d.Config
	requireAuth := mw.RequireAuth(d.Tokens, d.Versions)
	optionalAuth := mw.OptionalAuth(d.Tokens, d.Versions)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(mw.Cors(cfg.CORSOrigins))
	r.Use(mw.SecurityHeaders(cfg.IsProduction()))
	r.Use(mw.NewRedisTokenBucket(d.Redis, cfg.Limits.RatePerSecond, cfg.Limits.RateBurst, mw.PerIPKey("tb")).Middleware)
	r.Use(mw.BodySizeLimit(cfg.Limits.MaxUploadBytes + 1<<20))
	r.Use(mw.Compression())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteStatus(w, r, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteStatus(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", health(d.DB))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if d.Uploads != nil {
		r.Method(http.MethodGet, "/uploads/*", d.Uploads)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(mw.NoStore)
		r.Post("/register", d.Auth.Register)
		r.With(mw.LoginRateLimit(d.Redis, cfg.Limits.LoginMaxAttempts, cfg.Limits.LoginWindow)).
			Post("/login", d.Auth.Login)
		r.Post("/refresh", d.Auth.Refresh)
		r.Post("/logout", d.Auth.Logout)
		r.With(requireAuth).Post("/logout-all", d.Auth.LogoutAll)
		r.With(requireAuth).Get("/me", d.Auth.Me)
	})

	r.Mount("/listings", d.Listings.Routes(requireAuth, optionalAuth))
	return r
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
