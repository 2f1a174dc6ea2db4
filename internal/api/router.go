package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/priyadarshi7/ZenLearn/internal/api/middleware"
	"github.com/priyadarshi7/ZenLearn/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	UploadHandler       http.HandlerFunc
	StatusHandler       http.HandlerFunc
	StatusStreamHandler http.HandlerFunc
	ReactionsHandler    http.HandlerFunc
	ProcessHandler      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public: health and artifact downloads (audio players cannot send auth headers)
	r.Get("/health", orNotImplemented(deps.HealthHandler))
	r.Get("/reactions/{filename}", orNotImplemented(deps.ReactionsHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Get("/status/{job_id}", orNotImplemented(deps.StatusHandler))
		r.Get("/ws/status/{job_id}", orNotImplemented(deps.StatusStreamHandler))

		// Pipeline entry points are rate limited
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimit.Limit)

			r.Post("/upload", orNotImplemented(deps.UploadHandler))
			r.Post("/process", orNotImplemented(deps.ProcessHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
