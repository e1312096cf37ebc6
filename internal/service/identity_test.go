package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flatblog/internal/apperror"
	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/clock"
	"github.com/sakif/flatblog/internal/model"
	"github.com/sakif/flatblog/internal/repository"
	"github.com/sakif/flatblog/internal/repository/memory"
)

type identityFixture struct {
	svc      *IdentityService
	store    *memory.Store
	sessions *auth.SessionStore
	clock    *clock.StubClock
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	store := memory.New()
	clk := clock.NewStubClock(testDate)
	sessions := auth.NewSessionStore(time.Hour, clk)
	return &identityFixture{
		svc:      NewIdentityService(store, auth.NewPasswordServiceForTest(), sessions, testLogger()),
		store:    store,
		sessions: sessions,
		clock:    clk,
	}
}

func (f *identityFixture) users(t *testing.T) []model.User {
	t.Helper()
	users, err := f.store.LoadUsers(context.Background())
	require.NoError(t, err)
	return users
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister_StoresHashedPassword(t *testing.T) {
	f := newIdentityFixture(t)

	require.NoError(t, f.svc.Register(context.Background(), "alice", "pw", "a@x.com"))

	users := f.users(t)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.NotEqual(t, "pw", users[0].Password)
	assert.True(t, strings.HasPrefix(users[0].Password, "$2"), "expected a bcrypt hash")
}

func TestRegister_Duplicate(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, "alice", "pw", "a@x.com"))

	err := f.svc.Register(ctx, "alice", "other", "b@x.com")
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Len(t, f.users(t), 1, "user count must not change")
	assert.Equal(t, 1, f.store.Saves(repository.UsersDocument))
}

func TestRegister_UsernameIsCaseSensitive(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, "alice", "pw", ""))

	require.NoError(t, f.svc.Register(ctx, "Alice", "pw", ""))
	assert.Len(t, f.users(t), 2)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		username  string
		password  string
		email     string
		wantField string
	}{
		{"missing username", "", "pw", "a@x.com", "username"},
		{"missing password", "alice", "", "a@x.com", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIdentityFixture(t)

			err := f.svc.Register(context.Background(), tt.username, tt.password, tt.email)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Zero(t, f.store.Saves(repository.UsersDocument))
		})
	}
}

func TestRegister_LongCredentialsAccepted(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()
	username := strings.Repeat("u", 300)
	password := strings.Repeat("p", 100)

	require.NoError(t, f.svc.Register(ctx, username, password, strings.Repeat("e", 300)+"@x.com"))

	got, err := f.svc.Authenticate(ctx, username, password)
	require.NoError(t, err)
	assert.Equal(t, username, got)

	// Past bcrypt's 72-byte window the tail still matters.
	_, err = f.svc.Authenticate(ctx, username, strings.Repeat("p", 99)+"q")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestRegister_EmptyEmailAllowed(t *testing.T) {
	f := newIdentityFixture(t)
	assert.NoError(t, f.svc.Register(context.Background(), "alice", "pw", ""))
}

func TestRegister_StorageError(t *testing.T) {
	f := newIdentityFixture(t)
	f.store.FailWith = errors.New("read-only filesystem")

	err := f.svc.Register(context.Background(), "alice", "pw", "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrConflict)
}

// =========================================================================
// AUTHENTICATE
// =========================================================================

func TestAuthenticate(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Register(ctx, "alice", "pw", "a@x.com"))

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"correct", "alice", "pw", nil},
		{"wrong password", "alice", "nope", apperror.ErrInvalidCredentials},
		{"unknown user", "mallory", "pw", apperror.ErrInvalidCredentials},
		{"wrong case", "Alice", "pw", apperror.ErrInvalidCredentials},
		{"empty password", "alice", "", apperror.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			username, err := f.svc.Authenticate(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, username)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", username)
		})
	}
}

func TestAuthenticate_CorruptHash(t *testing.T) {
	f := newIdentityFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveUsers(ctx, []model.User{
		{Username: "broken", Password: "not-a-bcrypt-hash"},
	}))

	_, err := f.svc.Authenticate(ctx, "broken", "anything")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

// =========================================================================
// SESSIONS
// =========================================================================

func TestLoginAndCurrentIdentity(t *testing.T) {
	f := newIdentityFixture(t)
	sess := f.sessions.Create()

	_, ok := f.svc.CurrentIdentity(sess.ID)
	assert.False(t, ok, "new session is anonymous")

	require.NoError(t, f.svc.Login(sess.ID, "alice"))

	username, ok := f.svc.CurrentIdentity(sess.ID)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)
}

func TestLogin_UnknownSession(t *testing.T) {
	f := newIdentityFixture(t)

	err := f.svc.Login("no-such-session", "alice")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestCurrentIdentity_ExpiredSession(t *testing.T) {
	f := newIdentityFixture(t)
	sess := f.sessions.Create()
	require.NoError(t, f.svc.Login(sess.ID, "alice"))

	f.clock.Advance(2 * time.Hour)

	_, ok := f.svc.CurrentIdentity(sess.ID)
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	f := newIdentityFixture(t)
	sess := f.sessions.Create()
	require.NoError(t, f.svc.Login(sess.ID, "alice"))

	f.svc.Logout(sess.ID)

	_, ok := f.svc.CurrentIdentity(sess.ID)
	assert.False(t, ok)

	// The session itself survives so a flash can still be shown.
	_, exists := f.sessions.Get(sess.ID)
	assert.True(t, exists)
}

func TestLogout_Anonymous(t *testing.T) {
	f := newIdentityFixture(t)
	sess := f.sessions.Create()

	assert.NotPanics(t, func() {
		f.svc.Logout(sess.ID)
		f.svc.Logout("unknown")
	})
}

// =========================================================================
// END TO END
// =========================================================================

// TestRegisterLoginPostDelete runs the main user journey across both
// services sharing one store.
func TestRegisterLoginPostDelete(t *testing.T) {
	f := newIdentityFixture(t)
	posts := NewPostService(f.store, f.clock, testLogger())
	ctx := context.Background()

	require.NoError(t, f.svc.Register(ctx, "alice", "pw", "a@x.com"))

	username, err := f.svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)

	sess := f.sessions.Create()
	require.NoError(t, f.svc.Login(sess.ID, username))
	author, ok := f.svc.CurrentIdentity(sess.ID)
	require.True(t, ok)

	post, err := posts.Create(ctx, "T", "C", author)
	require.NoError(t, err)

	err = posts.Delete(ctx, post.ID, "bob")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, posts.Delete(ctx, post.ID, "alice"))

	all, err := posts.List(ctx)
	require.NoError(t, err)
	for _, p := range all {
		assert.NotEqual(t, post.ID, p.ID)
	}
}

func TestBootstrap(t *testing.T) {
	store := memory.New()
	passwords := auth.NewPasswordServiceForTest()
	ctx := context.Background()

	require.NoError(t, Bootstrap(ctx, store, passwords))

	posts, err := store.LoadPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	identity := NewIdentityService(store, passwords, auth.NewSessionStore(time.Hour, clock.NewRealClock()), testLogger())
	username, err := identity.Authenticate(ctx, repository.AdminUsername, repository.AdminPassword)
	require.NoError(t, err)
	assert.Equal(t, repository.AdminUsername, username)
}

func TestBootstrap_KeepsExistingData(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.SavePosts(ctx, []model.Post{}))

	require.NoError(t, Bootstrap(ctx, store, auth.NewPasswordServiceForTest()))

	posts, err := store.LoadPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts, "an existing empty collection is not reseeded")

	users, err := store.LoadUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
