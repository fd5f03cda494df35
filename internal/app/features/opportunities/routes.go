package opportunities

import (
	"net/http"

	"github.com/dalemusser/opportunityhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the opportunity API. Static segments are registered ahead
// of /{id} so "saved" and "provider" are never read as ids.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	limit := h.WriteLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/", h.ServeList)
	r.Get("/provider/{providerId}", h.ServeByProvider)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.With(limit).Post("/", h.HandleCreate)
		pr.With(limit).Post("/save", h.HandleSave)
		pr.Get("/saved", h.ServeSaved)
		pr.Get("/saved/{userId}/{opportunityId}", h.ServeSavedCheck)
		pr.With(limit).Delete("/{id}/save", h.HandleUnsave)

		pr.With(limit).Put("/{id}", h.HandleUpdate)
		pr.With(limit).Delete("/{id}", h.HandleDelete)
		pr.With(auth.RequireRole("admin")).Put("/{id}/status", h.HandleStatus)
	})

	r.Get("/{id}", h.ServeGet)
	return r
}
