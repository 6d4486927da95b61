package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Route("/v1", func(r chi.Router) {
		r.Get("/deployments", h.GetDeployments)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/challenge", h.Challenge)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
		})

		r.Route("/contracts/{contract}", func(r chi.Router) {
			r.Use(h.RequireContract)

			r.Get("/events/ws", h.StreamEvents)

			r.Route("/users/{address}", func(r chi.Router) {
				r.Get("/messages", h.GetAllMessages)
				r.Get("/messages/count", h.GetMessageCount)
				r.Get("/messages/{index}", h.GetMessage)
				r.Get("/messages/{index}/metadata", h.GetMessageMetadata)
				r.Get("/messages/{index}/content", h.GetEncryptedContent)
				r.Get("/events", h.GetEvents)
			})

			r.Group(func(r chi.Router) {
				r.Use(h.RequireCaller)
				r.Post("/messages", h.StoreMessage)
				r.Post("/responses", h.StoreResponse)
				r.Delete("/messages", h.ClearMessages)
				r.Post("/decryption-requests", h.RequestDecryption)
			})
		})
	})

	return router
}
