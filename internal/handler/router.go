package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"diagnosis-key-service/config"
)

// NewRouter はルーターを生成する。
func NewRouter(h *DiagnosisHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Post("/diagnosis-keys", h.SubmitKeys)
		r.Get("/diagnosis-keys/{interval}", h.GetIntervalKeys)
		r.Get("/diagnosis-keys/{interval}/count", h.GetKeyCount)
		r.Get("/intervals", h.ListIntervals)
	})

	if cfg.OtelEnabled {
		return otelhttp.NewHandler(r, "diagnosis-key-service")
	}
	return r
}
