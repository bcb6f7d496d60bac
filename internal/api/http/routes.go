package http

import (
	"ammindex/internal/api/http/handlers"
	"ammindex/internal/api/http/mw"
	"compress/flate"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Nil middlewares are skipped
type Middlewares struct {
	Logging   *mw.LoggingMiddleware
	RateLimit *mw.RateLimitMiddleware
	JWT       *mw.JWTMiddleware
	CORS      *mw.CORSMiddleware
	Compress  int // flate level; 0 = default speed
}

func BuildRouter(h *handlers.Handler, metrics http.Handler, m Middlewares) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if m.Logging != nil {
		r.Use(m.Logging.Handler)
	}

	lvl := m.Compress
	if lvl == 0 {
		lvl = flate.BestSpeed
	}
	r.Use(middleware.Compress(lvl, "application/json"))

	if m.CORS != nil {
		r.Use(m.CORS.Handler())
	}

	// tech endpoints, no auth
	r.Get("/healthz", h.Healthz)
	r.Get("/readiness", h.Readiness)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api", func(api chi.Router) {
		if m.RateLimit != nil {
			api.Use(m.RateLimit.Handler)
		}
		if m.JWT != nil {
			api.Use(m.JWT.Handler)
		}

		api.Get("/overview", h.Overview)
		api.Get("/tokens/{address}", h.Token)
		api.Get("/pairs/{address}", h.Pair)
	})

	return r
}
