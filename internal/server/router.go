package server

import (
	"net/http"

	"github.com/cloo-solutions/meetmind/internal/api"
	"github.com/cloo-solutions/meetmind/internal/api/handlers"
	"github.com/cloo-solutions/meetmind/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const maxJSONBodyBytes int64 = 5 * 1024 * 1024

// uploadOverheadBytes covers multipart framing around the audio payload.
const uploadOverheadBytes int64 = 1024 * 1024

type RouterConfig struct {
	// AuthValidator guards every route but /health; nil disables auth.
	AuthValidator        middleware.AuthValidator
	TranscriptionHandler *handlers.TranscriptionHandler
	MeetingHandler       *handlers.MeetingHandler
	QueryHandler         *handlers.QueryHandler
	MaxUploadBytes       int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(cfg.AuthValidator))

		uploadLimit := cfg.MaxUploadBytes
		if uploadLimit > 0 {
			uploadLimit += uploadOverheadBytes
		}
		r.With(middleware.MaxBodyBytes(uploadLimit)).
			Post("/transcriptions", cfg.TranscriptionHandler.Transcribe)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(maxJSONBodyBytes))

			r.Route("/meetings", func(r chi.Router) {
				r.Post("/index", cfg.MeetingHandler.Index)
				r.Delete("/{id}", cfg.MeetingHandler.Delete)
			})

			r.Post("/search", cfg.QueryHandler.Search)
			r.Post("/query", cfg.QueryHandler.Ask)
		})
	})

	return r
}
