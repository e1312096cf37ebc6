package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/flatblog/internal/apperror"
	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/service"
)

const (
	flashSuccess = "success"
	flashError   = "error"
)

// Flash texts shown by the blog pages.
const (
	msgPostNotFound  = "Post not found!"
	msgLoginFirst    = "You need to login first!"
	msgPostCreated   = "Post created successfully!"
	msgPostDeleted   = "Post deleted successfully!"
	msgNotYourPost   = "You can only delete your own posts!"
	msgRegistered    = "Registration successful! Please login."
	msgUsernameTaken = "Username already exists!"
	msgLoggedIn      = "Login successful!"
	msgBadLogin      = "Invalid username or password!"
	msgLoggedOut     = "You have been logged out!"
)

// BlogHandler serves the post pages: the two list views, single posts, the
// create form and deletion.
type BlogHandler struct {
	posts  *service.PostService
	view   *View
	logger *slog.Logger
}

func NewBlogHandler(posts *service.PostService, view *View, logger *slog.Logger) *BlogHandler {
	return &BlogHandler{
		posts:  posts,
		view:   view,
		logger: logger,
	}
}

// HandleIndex renders every post in stored order.
//
// HTTP: GET /
func (h *BlogHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, pageIndex)
}

// HandleAnimated renders the same list with an animated layout.
//
// HTTP: GET /animated
func (h *BlogHandler) HandleAnimated(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, pageAnimated)
}

func (h *BlogHandler) renderList(w http.ResponseWriter, r *http.Request, page string) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		h.view.serverError(w, r, err)
		return
	}
	h.view.render(w, r, http.StatusOK, page, pageData{Posts: posts})
}

// HandlePost renders one post. An unknown ID sends the visitor back to the
// list with an error flash instead of a 404 page.
//
// HTTP: GET /post/{id}
func (h *BlogHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		// The route only matches digits, so this is an ID too large for int.
		h.view.redirect(w, r, "/", flashError, msgPostNotFound)
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		h.view.redirect(w, r, "/", flashError, msgPostNotFound)
		return
	case err != nil:
		h.view.serverError(w, r, err)
		return
	}

	h.view.render(w, r, http.StatusOK, pagePost, pageData{Post: post})
}

// HandleCreateForm shows the empty create form.
//
// HTTP: GET /create (logged in only)
func (h *BlogHandler) HandleCreateForm(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, pageCreate, pageData{})
}

// HandleCreate publishes a post as the logged-in user.
//
// HTTP: POST /create (logged in only)
//
// Title and content are published as typed, empty or not.
func (h *BlogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	author, _ := auth.UsernameFromContext(r.Context())

	_, err := h.posts.Create(r.Context(), r.PostFormValue("title"), r.PostFormValue("content"), author)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.view.redirect(w, r, "/login", flashError, msgLoginFirst)
			return
		}
		h.view.serverError(w, r, err)
		return
	}

	h.view.redirect(w, r, "/", flashSuccess, msgPostCreated)
}

// HandleDelete removes a post if the logged-in user wrote it.
//
// HTTP: GET /delete/{id} (logged in only)
//
// An unknown ID and someone else's post get the same message: the visitor
// learns nothing about which IDs exist.
func (h *BlogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.UsernameFromContext(r.Context())

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.view.redirect(w, r, "/", flashError, msgNotYourPost)
		return
	}

	err = h.posts.Delete(r.Context(), id, requester)
	switch {
	case err == nil:
		h.view.redirect(w, r, "/", flashSuccess, msgPostDeleted)
	case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrForbidden):
		h.view.redirect(w, r, "/", flashError, msgNotYourPost)
	default:
		h.view.serverError(w, r, err)
	}
}

// RequireLogin is the RequireUser fallback for pages that need a logged-in
// user: it redirects to the login form.
func (h *BlogHandler) RequireLogin(w http.ResponseWriter, r *http.Request) {
	h.view.redirect(w, r, "/login", flashError, msgLoginFirst)
}
