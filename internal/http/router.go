package http

import (
	"net/http"

	"github.com/fjod/go_cart/upsell-service/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter mounts the handler. Request deadlines are applied by the handler
// itself so a timed out request gets exactly one response.
func NewRouter(h *RecommendationHandler, l *logger.Logger) http.Handler {
	if l == nil {
		l = logger.Nop()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(AccessLog(l))
	r.Use(UserIDMiddleware)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/recommendations", h.Get)
		r.Get("/cart/recommendations", h.GetForCart)
	})

	return otelhttp.NewHandler(r, "upsell-service")
}
