package auth

import (
	"context"
	"log/slog"
	"net/http"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// contextKey is unexported so no other package can read or overwrite the
// values this package stores in a request context.
type contextKey string

const (
	sessionIDKey contextKey = "sessionID"
	usernameKey  contextKey = "username"
)

// SessionManager issues session cookies and resolves them back to sessions.
type SessionManager struct {
	tokens       *TokenService
	store        *SessionStore
	secureCookie bool
	logger       *slog.Logger
}

func NewSessionManager(tokens *TokenService, store *SessionStore, secureCookie bool, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		tokens:       tokens,
		store:        store,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// Store returns the underlying session store.
func (m *SessionManager) Store() *SessionStore {
	return m.store
}

// LoadSession makes sure every request has a session.
//
// A valid cookie pointing at a live session is reused. Anything else (no
// cookie, bad signature, expired token, session lost in a restart) gets a
// fresh anonymous session and a new cookie. The session ID, and the username
// if the session is logged in, are stored in the request context.
//
// Every visitor needs a session, not just logged-in users: flash messages
// such as "Registration successful! Please login." are shown to visitors who
// are not logged in yet.
func (m *SessionManager) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := m.resolve(r)
		if !ok {
			var err error
			sess, err = m.start(w)
			if err != nil {
				m.logger.Error("failed to start session", slog.String("error", err.Error()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
		}

		ctx := ContextWithSession(r.Context(), sess.ID, sess.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Renew replaces the session oldID with a fresh one, sets the new cookie on
// w and deletes the old session. Pending flashes move across. Call it when
// the visitor's privilege changes (login) so an ID planted before the
// change is worthless afterwards.
func (m *SessionManager) Renew(w http.ResponseWriter, oldID string) (Session, error) {
	sess, err := m.start(w)
	if err != nil {
		return Session{}, err
	}
	for _, f := range m.store.PopFlashes(oldID) {
		m.store.AddFlash(sess.ID, f)
	}
	m.store.Delete(oldID)
	return sess, nil
}

// RequireUser lets the request through only if the session is logged in.
// Anonymous requests are handed to onAnonymous instead (typically a redirect
// to the login page with a flash message).
func RequireUser(onAnonymous http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UsernameFromContext(r.Context()); !ok {
				onAnonymous.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithSession stores a session ID and, when non-empty, a username in
// ctx the way LoadSession does. Handler tests use it to skip the cookie.
func ContextWithSession(ctx context.Context, sessionID, username string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	if username != "" {
		ctx = context.WithValue(ctx, usernameKey, username)
	}
	return ctx
}

// SessionIDFromContext returns the current request's session ID.
// It is always present behind LoadSession.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// UsernameFromContext returns the logged-in username as it was when the
// request started. Returns ("", false) for anonymous requests.
func UsernameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(usernameKey).(string)
	return name, ok && name != ""
}

func (m *SessionManager) resolve(r *http.Request) (Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}

	id, err := m.tokens.Validate(cookie.Value)
	if err != nil {
		m.logger.Debug("rejected session cookie", slog.String("error", err.Error()))
		return Session{}, false
	}

	return m.store.Get(id)
}

func (m *SessionManager) start(w http.ResponseWriter) (Session, error) {
	sess := m.store.Create()

	token, err := m.tokens.Generate(sess.ID)
	if err != nil {
		m.store.Delete(sess.ID)
		return Session{}, err
	}

	// HttpOnly keeps scripts from reading the cookie; SameSite=Lax stops it
	// riding along on cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	return sess, nil
}
