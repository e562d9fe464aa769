package server

import (
	"net/http"

	"github.com/cloo-solutions/kbase/internal/api"
	"github.com/cloo-solutions/kbase/internal/api/handlers"
	"github.com/cloo-solutions/kbase/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	ChunkHandler    *handlers.ChunkHandler
	SearchHandler   *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// larger than the usual JSON cap since document uploads come through here
	const maxBodyBytes int64 = 64 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Upload)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Get("/{id}/content", cfg.DocumentHandler.Content)
			r.Get("/{id}/chunks", cfg.DocumentHandler.Chunks)
			r.Put("/{id}/status", cfg.DocumentHandler.ModifyStatus)
		})

		r.Route("/chunks", func(r chi.Router) {
			r.Post("/", cfg.ChunkHandler.Create)
			r.Get("/", cfg.ChunkHandler.List)
			r.Get("/{id}", cfg.ChunkHandler.Get)
			r.Put("/{id}", cfg.ChunkHandler.Update)
			r.Delete("/{id}", cfg.ChunkHandler.Delete)
			r.Put("/{id}/status", cfg.ChunkHandler.ModifyStatus)
		})

		r.Post("/search", cfg.SearchHandler.Search)
		r.Get("/search/similar", cfg.SearchHandler.Similar)
	})

	return r
}
