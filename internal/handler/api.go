package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/flatblog/internal/apperror"
	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/service"
)

// APIHandler is a read-only JSON view of the blog.
type APIHandler struct {
	posts    *service.PostService
	identity *service.IdentityService
	logger   *slog.Logger
}

func NewAPIHandler(posts *service.PostService, identity *service.IdentityService, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		posts:    posts,
		identity: identity,
		logger:   logger,
	}
}

// HandleListPosts returns every post in stored order.
//
// HTTP: GET /api/posts
//
// Always an array, "[]" when there are no posts.
func (h *APIHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		h.logger.Error("api: listing posts", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGetPost returns one post, or a 404 error body.
//
// HTTP: GET /api/posts/{id}
func (h *APIHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, apperror.NotFound("post", raw))
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type meResponse struct {
	Username string `json:"username"`
}

// HandleMe reports who the session cookie belongs to.
//
// HTTP: GET /api/me
func (h *APIHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := auth.SessionIDFromContext(r.Context())
	username, ok := h.identity.CurrentIdentity(sessionID)
	if !ok {
		writeError(w, apperror.Unauthorized("not logged in"))
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Username: username})
}
