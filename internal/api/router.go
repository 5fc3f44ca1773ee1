package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *workspace.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/articles", func(r chi.Router) {
		r.Get("/", h.ListArticles)
		r.Post("/", h.CreateArticle)
		r.Get("/{name}", h.GetArticle)
		r.Patch("/{name}", h.UpdateArticle)
		r.Delete("/{name}", h.DeleteArticle)
		r.Post("/{name}/restore", h.RestoreArticle)
		r.Post("/{name}/discard", h.DiscardArticle)
	})

	r.Post("/save", h.Save)
	r.Post("/reload", h.Reload)
	r.Get("/status", h.Status)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
