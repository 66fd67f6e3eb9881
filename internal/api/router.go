package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(h *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.RegisterHandler)
			r.Post("/login", h.LoginHandler)
		})

		// Chat, workouts, and exercises accept anonymous callers; a valid
		// bearer token scopes data to the authenticated user instead.
		r.Group(func(r chi.Router) {
			r.Use(h.OptionalAuth)

			r.Route("/chat", func(r chi.Router) {
				r.Post("/message", h.SendMessageHandler)
				r.Get("/history/{conversationID}", h.GetHistoryHandler)
				r.Delete("/history/{conversationID}", h.ClearHistoryHandler)
			})

			r.Route("/workouts", func(r chi.Router) {
				r.Post("/generate", h.GeneratePlanHandler)
				r.Get("/", h.ListPlansHandler)
				r.Get("/{planID}", h.GetPlanHandler)
			})

			r.Route("/exercises", func(r chi.Router) {
				r.Get("/", h.ListExercisesHandler)
				r.Get("/search", h.SearchExercisesHandler)
				r.Get("/suggest", h.SuggestExercisesHandler)
				r.Get("/{exerciseID}", h.GetExerciseHandler)
			})
		})
	})

	return r
}
