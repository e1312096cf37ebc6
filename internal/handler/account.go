package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/flatblog/internal/apperror"
	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/service"
)

// AccountHandler serves registration, login and logout.
//
// Every form here answers with a redirect and a flash message, never with
// an inline error, so reloading the result page cannot resubmit the form.
type AccountHandler struct {
	identity *service.IdentityService
	sessions *auth.SessionManager
	view     *View
	logger   *slog.Logger
}

func NewAccountHandler(identity *service.IdentityService, sessions *auth.SessionManager, view *View, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		identity: identity,
		sessions: sessions,
		view:     view,
		logger:   logger,
	}
}

// HandleRegisterForm shows the sign-up form.
//
// HTTP: GET /register
func (h *AccountHandler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, pageRegister, pageData{})
}

// HandleRegister creates an account and sends the visitor to the login form.
//
// HTTP: POST /register
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	err := h.identity.Register(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
		r.PostFormValue("email"),
	)

	var appErr *apperror.AppError
	switch {
	case err == nil:
		h.view.redirect(w, r, "/login", flashSuccess, msgRegistered)
	case errors.Is(err, apperror.ErrConflict):
		h.view.redirect(w, r, "/register", flashError, msgUsernameTaken)
	case errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr):
		h.view.redirect(w, r, "/register", flashError, capitalize(appErr.Message))
	default:
		h.view.serverError(w, r, err)
	}
}

// HandleLoginForm shows the login form.
//
// HTTP: GET /login
func (h *AccountHandler) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.view.render(w, r, http.StatusOK, pageLogin, pageData{})
}

// HandleLogin checks the credentials and, if they are right, swaps the
// visitor's session for a fresh logged-in one.
//
// HTTP: POST /login
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	username, err := h.identity.Authenticate(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
	)
	switch {
	case errors.Is(err, apperror.ErrInvalidCredentials):
		h.view.redirect(w, r, "/login", flashError, msgBadLogin)
		return
	case err != nil:
		h.view.serverError(w, r, err)
		return
	}

	oldID, _ := auth.SessionIDFromContext(r.Context())
	sess, err := h.sessions.Renew(w, oldID)
	if err != nil {
		h.view.serverError(w, r, err)
		return
	}
	if err := h.identity.Login(sess.ID, username); err != nil {
		h.view.serverError(w, r, err)
		return
	}

	r = r.WithContext(auth.ContextWithSession(r.Context(), sess.ID, username))
	h.view.redirect(w, r, "/", flashSuccess, msgLoggedIn)
}

// HandleLogout forgets who the session belongs to. The session itself stays
// so the goodbye flash can be shown.
//
// HTTP: GET /logout
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := auth.SessionIDFromContext(r.Context())
	h.identity.Logout(sessionID)
	h.view.redirect(w, r, "/", flashSuccess, msgLoggedOut)
}
