package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/flatblog/internal/apperror"
	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/model"
	"github.com/sakif/flatblog/internal/repository"
)

// IdentityService registers users, checks credentials and tracks which
// username, if any, each session is logged in as.
type IdentityService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	sessions  *auth.SessionStore
	logger    *slog.Logger
}

func NewIdentityService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	sessions *auth.SessionStore,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		users:     users,
		passwords: passwords,
		sessions:  sessions,
		logger:    logger,
	}
}

// registration is the validated shape of a sign-up form. Only presence is
// checked: there is no length, password-strength or email-format policy,
// and the email may be empty.
type registration struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Email    string `form:"email"`
}

// Register creates a new account.
//
// Returns apperror.ErrConflict (DuplicateUsername) if the username is taken.
// The comparison is exact and case-sensitive: "Alice" and "alice" are
// different accounts. The plaintext password is hashed once and dropped.
func (s *IdentityService) Register(ctx context.Context, username, password, email string) error {
	if err := checkInput(registration{Username: username, Password: password, Email: email}); err != nil {
		return err
	}

	users, err := s.users.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("registering %q: %w", username, err)
	}

	if _, found := findUser(users, username); found {
		return apperror.DuplicateUsername(username)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("registering %q: %w", username, err)
	}

	users = append(users, model.User{
		Username: username,
		Password: hash,
		Email:    email,
	})
	if err := s.users.SaveUsers(ctx, users); err != nil {
		s.logger.Error("failed to save users",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("registering %q: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("username", username))
	return nil
}

// Authenticate checks a username/password pair and returns the stored
// username. Unknown users and wrong passwords both fail with
// apperror.ErrInvalidCredentials so callers cannot tell which it was.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (string, error) {
	users, err := s.users.LoadUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("authenticating %q: %w", username, err)
	}

	user, found := findUser(users, username)
	if !found {
		s.logger.Info("login failed: unknown user", slog.String("username", username))
		return "", apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			// A stored hash bcrypt cannot parse. Still a failed login, but
			// worth a louder log line.
			s.logger.Error("unreadable password hash",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Info("login failed: wrong password", slog.String("username", username))
		return "", apperror.InvalidCredentials()
	}

	return user.Username, nil
}

// Login marks the session as belonging to username. Call it only after a
// successful Authenticate.
func (s *IdentityService) Login(sessionID, username string) error {
	if !s.sessions.SetUsername(sessionID, username) {
		return apperror.Unauthorized("session expired")
	}
	s.logger.Info("user logged in", slog.String("username", username))
	return nil
}

// CurrentIdentity returns the username the session is logged in as.
// ("", false) means not logged in, including unknown or expired sessions.
func (s *IdentityService) CurrentIdentity(sessionID string) (string, bool) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok || sess.Username == "" {
		return "", false
	}
	return sess.Username, true
}

// Logout clears the session's identity. Logging out an anonymous or unknown
// session is a no-op.
func (s *IdentityService) Logout(sessionID string) {
	if username, ok := s.CurrentIdentity(sessionID); ok {
		s.logger.Info("user logged out", slog.String("username", username))
	}
	s.sessions.ClearUsername(sessionID)
}

// findUser is a linear scan; users.json is small and unindexed.
func findUser(users []model.User, username string) (model.User, bool) {
	for _, u := range users {
		if u.Username == username {
			return u, true
		}
	}
	return model.User{}, false
}
