package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/workspace"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *workspace.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workspace.Service) *Handler {
	return &Handler{svc: svc}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func validRequest(w http.ResponseWriter, v interface{ Validate() error }) bool {
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// ListArticles handles GET /articles.
//
//	@Summary		List articles of the working set
//	@Tags			articles
//	@Produce		json
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			pending	query		bool	false	"Only articles with unsaved changes"
//	@Success		200		{object}	ArticleListResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles [get]
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List()
	if err != nil {
		writeError(w, "list articles", err)
		return
	}
	q := r.URL.Query()
	if tag := q.Get("tag"); tag != "" {
		items = slices.DeleteFunc(items, func(v ArticleView) bool { return !slices.Contains(v.Tags, tag) })
	}
	if q.Get("pending") == "true" {
		items = slices.DeleteFunc(items, func(v ArticleView) bool { return !v.Modified && !v.Removed })
	}
	writeJSON(w, http.StatusOK, ArticleListResponse{Articles: items, Total: len(items)})
}

// GetArticle handles GET /articles/{name}.
//
//	@Summary		Get one article with its source
//	@Tags			articles
//	@Produce		json
//	@Param			name	path		string	true	"Article name"
//	@Success		200		{object}	ArticleView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{name} [get]
func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "get article", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CreateArticle handles POST /articles.
//
//	@Summary		Add a new, unsaved article
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateArticleRequest	true	"Article to create"
//	@Success		201		{object}	ArticleView
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles [post]
func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req CreateArticleRequest
	if !decode(w, r, &req) || !validRequest(w, req) {
		return
	}
	v, err := h.svc.Create(workspace.CreateInput{
		Name:        req.Name,
		Title:       req.Title,
		PublishTime: req.PublishTime,
		Tags:        req.Tags,
		Source:      req.Source,
	})
	if err != nil {
		writeError(w, "create article", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// UpdateArticle handles PATCH /articles/{name}.
//
//	@Summary		Edit fields of an article
//	@Tags			articles
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string					true	"Article name"
//	@Param			body	body		UpdateArticleRequest	true	"Fields to change"
//	@Success		200		{object}	ArticleView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{name} [patch]
func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	var req UpdateArticleRequest
	if !decode(w, r, &req) || !validRequest(w, req) {
		return
	}
	v, err := h.svc.Update(r.Context(), chi.URLParam(r, "name"), workspace.Patch{
		Title:       req.Title,
		PublishTime: req.PublishTime,
		Tags:        req.Tags,
		Source:      req.Source,
	})
	if err != nil {
		writeError(w, "update article", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DeleteArticle handles DELETE /articles/{name}.
//
//	@Summary		Flag an article for removal at the next save
//	@Tags			articles
//	@Param			name	path	string	true	"Article name"
//	@Success		204		"Article flagged"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{name} [delete]
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Remove(chi.URLParam(r, "name")); err != nil {
		writeError(w, "delete article", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreArticle handles POST /articles/{name}/restore.
//
//	@Summary		Clear the removal flag of an article
//	@Tags			articles
//	@Produce		json
//	@Param			name	path		string	true	"Article name"
//	@Success		200		{object}	ArticleView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{name}/restore [post]
func (h *Handler) RestoreArticle(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Restore(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "restore article", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DiscardArticle handles POST /articles/{name}/discard.
//
//	@Summary		Revert an article to its last saved state
//	@Tags			articles
//	@Produce		json
//	@Param			name	path		string	true	"Article name"
//	@Success		200		{object}	ArticleView
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/articles/{name}/discard [post]
func (h *Handler) DiscardArticle(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Discard(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "discard article", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Save handles POST /save.
//
//	@Summary		Commit every pending change as one commit
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveRequest	false	"Commit message"
//	@Success		200		{object}	StatusResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/save [post]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !decode(w, r, &req) || !validRequest(w, req) {
		return
	}
	st, err := h.svc.Save(r.Context(), req.Message)
	if err != nil {
		writeError(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Reload handles POST /reload.
//
//	@Summary		Reload the index from the branch, discarding unsaved edits
//	@Tags			session
//	@Produce		json
//	@Success		200		{object}	StatusResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reload(r.Context()); err != nil {
		writeError(w, "reload", err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// Status handles GET /status.
//
//	@Summary		Session status
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}
