package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-attendance-console/auth"
	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/redirect"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/jrsteele09/go-attendance-console/session/memtier"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeAuthenticator accepts one password and saves a session with role
type fakeAuthenticator struct {
	store *session.Store
	role  users.RoleType
	calls int
}

func (f *fakeAuthenticator) Login(_ context.Context, username, password string) (*session.Session, error) {
	f.calls++
	if password != "secret" {
		return nil, errors.Wrap(autherrors.ErrAuthenticationFailed, "invalid credentials")
	}
	return f.store.Save(&session.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		User:         &users.User{ID: "u-1", Username: username, Role: f.role},
	})
}

type contextFixture struct {
	now           time.Time
	store         *session.Store
	cookies       *session.CookieMirror
	guard         *redirect.Guard
	authenticator *fakeAuthenticator
	ctx           *auth.SessionContext
}

func setupContext(t *testing.T, role users.RoleType) *contextFixture {
	t.Helper()

	f := &contextFixture{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return f.now }

	f.cookies = session.NewCookieMirror(12 * time.Hour)
	store, err := session.NewStore(memtier.New(), memtier.New(), session.WithNowFunc(clock), session.WithCookieMirror(f.cookies))
	require.NoError(t, err)
	f.store = store
	f.guard = redirect.NewGuard(redirect.WithNowFunc(clock))
	f.authenticator = &fakeAuthenticator{store: store, role: role}

	sc, err := auth.NewSessionContext(store, f.authenticator, f.guard, auth.WithNowFunc(clock))
	require.NoError(t, err)
	f.ctx = sc
	return f
}

func TestInitialize(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		f := setupContext(t, users.RoleLecturer)
		require.Equal(t, auth.StateInitializing, f.ctx.State())
		require.False(t, f.ctx.Ready())

		require.Equal(t, auth.StateUnauthenticated, f.ctx.Initialize())
		require.True(t, f.ctx.Ready())
		require.False(t, f.ctx.IsAuthenticated())
	})

	t.Run("valid session restored and mirrored", func(t *testing.T) {
		f := setupContext(t, users.RoleLecturer)
		_, err := f.authenticator.Login(context.Background(), "budi", "secret")
		require.NoError(t, err)
		f.cookies.Expire()

		require.Equal(t, auth.StateAuthenticated, f.ctx.Initialize())
		require.True(t, f.ctx.IsAuthenticated())

		var mirrored bool
		for _, c := range f.cookies.Cookies() {
			if c.Name == session.CookieAuthToken {
				mirrored = c.Value == "access-1"
			}
		}
		require.True(t, mirrored)
	})

	t.Run("expired session cleared", func(t *testing.T) {
		f := setupContext(t, users.RoleLecturer)
		_, err := f.authenticator.Login(context.Background(), "budi", "secret")
		require.NoError(t, err)
		f.now = f.now.Add(13 * time.Hour)

		require.Equal(t, auth.StateUnauthenticated, f.ctx.Initialize())
		require.Nil(t, f.store.Credentials())
	})
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupContext(t, users.RoleLecturer)
		f.ctx.Initialize()

		sess, err := f.ctx.Login(context.Background(), "budi", "secret")
		require.NoError(t, err)
		require.Equal(t, "budi", sess.User.Username)
		require.Equal(t, auth.StateAuthenticated, f.ctx.State())
		require.True(t, f.ctx.IsAuthenticated())
	})

	t.Run("failure returns to unauthenticated", func(t *testing.T) {
		f := setupContext(t, users.RoleLecturer)
		f.ctx.Initialize()

		_, err := f.ctx.Login(context.Background(), "budi", "wrong")
		require.ErrorIs(t, err, autherrors.ErrAuthenticationFailed)
		require.Equal(t, auth.StateUnauthenticated, f.ctx.State())
	})

	t.Run("not allowed before initialization", func(t *testing.T) {
		f := setupContext(t, users.RoleLecturer)
		_, err := f.ctx.Login(context.Background(), "budi", "secret")
		require.ErrorIs(t, err, autherrors.ErrInvalidTransition)
		require.Equal(t, 0, f.authenticator.calls)
	})

	t.Run("not allowed when authenticated", func(t *testing.T) {
		f := setupContext(t, users.RoleLecturer)
		f.ctx.Initialize()
		_, err := f.ctx.Login(context.Background(), "budi", "secret")
		require.NoError(t, err)

		_, err = f.ctx.Login(context.Background(), "budi", "secret")
		require.ErrorIs(t, err, autherrors.ErrInvalidTransition)
		require.Equal(t, 1, f.authenticator.calls)
	})
}

func TestLogout(t *testing.T) {
	f := setupContext(t, users.RoleAdmin)
	f.ctx.Initialize()
	_, err := f.ctx.Login(context.Background(), "siti", "secret")
	require.NoError(t, err)
	f.ctx.RememberReturnPath("/dashboard/academic")
	require.True(t, f.guard.MayRedirect(redirect.KeyAuth))
	require.True(t, f.guard.MayRedirect(redirect.KeyLogin))

	require.NoError(t, f.ctx.Logout())
	require.Equal(t, auth.StateUnauthenticated, f.ctx.State())
	require.False(t, f.ctx.IsAuthenticated())
	require.Nil(t, f.store.Credentials())
	require.Equal(t, "/dashboard", f.ctx.TakeReturnPath("/dashboard"))

	require.Zero(t, f.guard.RetryAfter(redirect.KeyAuth))
	require.Zero(t, f.guard.RetryAfter(redirect.KeyLogin))

	// Logout is idempotent
	require.NoError(t, f.ctx.Logout())
}

func TestCheckRole(t *testing.T) {
	admin := []users.RoleType{users.RoleAdmin}

	f := setupContext(t, users.RoleLecturer)
	f.ctx.Initialize()
	require.False(t, f.ctx.CheckRole(admin...))

	_, err := f.ctx.Login(context.Background(), "budi", "secret")
	require.NoError(t, err)
	require.False(t, f.ctx.CheckRole(admin...))
	require.True(t, f.ctx.CheckRole(users.RoleLecturer, users.RoleTeachingAssistant))

	g := setupContext(t, users.RoleAdmin)
	g.ctx.Initialize()
	_, err = g.ctx.Login(context.Background(), "siti", "secret")
	require.NoError(t, err)
	require.True(t, g.ctx.CheckRole(admin...))

	g.now = g.now.Add(12 * time.Hour)
	require.False(t, g.ctx.CheckRole(admin...))
}

func TestHandleSessionExpired(t *testing.T) {
	f := setupContext(t, users.RoleLecturer)
	f.ctx.Initialize()
	_, err := f.ctx.Login(context.Background(), "budi", "secret")
	require.NoError(t, err)

	require.NoError(t, f.store.Clear())
	f.ctx.HandleSessionExpired()
	require.Equal(t, auth.StateUnauthenticated, f.ctx.State())
	require.Nil(t, f.ctx.Current())
}

func TestReturnPath(t *testing.T) {
	f := setupContext(t, users.RoleLecturer)

	f.ctx.RememberReturnPath("https://evil.example/phish")
	require.Equal(t, "/dashboard", f.ctx.TakeReturnPath("/dashboard"))

	f.ctx.RememberReturnPath("//evil.example")
	require.Equal(t, "/dashboard", f.ctx.TakeReturnPath("/dashboard"))

	f.ctx.RememberReturnPath("/dashboard/lecturer?week=3")
	require.Equal(t, "/dashboard/lecturer?week=3", f.ctx.TakeReturnPath("/dashboard"))
	require.Equal(t, "/dashboard", f.ctx.TakeReturnPath("/dashboard"))
}

func TestIsLocalPath(t *testing.T) {
	tests := map[string]bool{
		"/dashboard":           true,
		"/dashboard?x=1":       true,
		"":                     false,
		"dashboard":            false,
		"//evil.example":       false,
		"/\\evil.example":      false,
		"https://evil.example": false,
	}
	for path, want := range tests {
		require.Equal(t, want, auth.IsLocalPath(path), path)
	}
}

func TestNewSessionContext_Validation(t *testing.T) {
	store, err := session.NewStore(memtier.New(), memtier.New())
	require.NoError(t, err)
	guard := redirect.NewGuard()

	_, err = auth.NewSessionContext(nil, &fakeAuthenticator{}, guard)
	require.Error(t, err)
	_, err = auth.NewSessionContext(store, nil, guard)
	require.Error(t, err)
	_, err = auth.NewSessionContext(store, &fakeAuthenticator{}, nil)
	require.Error(t, err)
}

func TestLogin_AfterStoredSessionExpired(t *testing.T) {
	f := setupContext(t, users.RoleLecturer)
	f.ctx.Initialize()
	_, err := f.ctx.Login(context.Background(), "budi", "secret")
	require.NoError(t, err)

	f.now = f.now.Add(13 * time.Hour)
	sess, err := f.ctx.Login(context.Background(), "budi", "secret")
	require.NoError(t, err)
	require.True(t, sess.Valid(f.now))
	require.Equal(t, auth.StateAuthenticated, f.ctx.State())
}
