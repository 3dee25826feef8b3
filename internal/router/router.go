// Package router sets up all HTTP routes and middleware chains for the
// Inkpress API. Every /api route resolves the caller's session; the
// handlers and domain services decide what that caller may do.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"inkpress/internal/apperr"
	"inkpress/internal/handlers"
	"inkpress/internal/metrics"
	"inkpress/internal/middleware"
)

// Handlers groups the handler sets mounted by the router.
type Handlers struct {
	Posts      *handlers.Posts
	Engagement *handlers.Engagement
	Comments   *handlers.Comments
	Taxonomy   *handlers.Taxonomy
	Media      *handlers.Media
	Auth       *handlers.Auth
	Users      *handlers.Users
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	Sessions      middleware.SessionReader
	Metrics       *metrics.Metrics        // optional; enables /metrics
	LoginLimiter  *middleware.RateLimiter // optional; limits login and register per IP
	DB            handlers.Pinger         // optional; checked by /health
	SecureCookies bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(h Handlers, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecureHeaders)

	// Health check and metrics: no session, no CSRF.
	r.Get("/health", handlers.Health(opts.DB))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.LoadSession(opts.Sessions))
		r.Use(middleware.CSRF(opts.SecureCookies))

		r.Route("/auth", func(r chi.Router) {
			limited := r.With()
			if opts.LoginLimiter != nil {
				limited = r.With(opts.LoginLimiter.Middleware)
			}
			limited.Post("/register", h.Auth.Register)
			limited.Post("/login", h.Auth.Login)
			r.Post("/logout", h.Auth.Logout)
			r.Get("/me", h.Auth.Me)
			r.Post("/2fa/setup", h.Auth.TwoFASetup)
			r.Post("/2fa/enable", h.Auth.TwoFAEnable)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.Posts.List)
			r.Post("/", h.Posts.Create)
			r.Get("/slug/{slug}", h.Posts.GetBySlug)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Posts.Get)
				r.Put("/", h.Posts.Update)
				r.Delete("/", h.Posts.Delete)

				r.Post("/like", h.Engagement.Like)
				r.Delete("/like", h.Engagement.Unlike)
				r.Post("/bookmark", h.Engagement.Bookmark)
				r.Delete("/bookmark", h.Engagement.Unbookmark)

				r.Get("/comments", h.Comments.List)
				r.Post("/comments", h.Comments.Create)
			})
		})

		r.Get("/bookmarks", h.Engagement.Bookmarks)

		r.Route("/comments/{id}", func(r chi.Router) {
			r.Put("/", h.Comments.Update)
			r.Delete("/", h.Comments.Delete)
		})

		r.Get("/categories", h.Taxonomy.Categories)
		r.Post("/categories", h.Taxonomy.CreateCategory)
		r.Get("/tags", h.Taxonomy.Tags)
		r.Get("/search", h.Posts.Search)

		r.Post("/media", h.Media.Upload)
		r.Get("/media/{id}", h.Media.Get)
		r.Delete("/media/{id}", h.Media.Delete)

		// User management, admin only (checked by the handlers).
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.Users.List)
			r.Patch("/{id}/role", h.Users.SetRole)
			r.Patch("/{id}/status", h.Users.SetStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.Write(w, r, apperr.NotFound("Not found"))
	})
	return r
}
