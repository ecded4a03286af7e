package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-attendance-console/identity"
	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/jrsteele09/go-attendance-console/session/memtier"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/stretchr/testify/require"
)

// identityFixture runs both providers on one test server
type identityFixture struct {
	server      *httptest.Server
	store       *session.Store
	auth        *identity.Authenticator
	campusCalls atomic.Int32
	adminCalls  atomic.Int32

	campus http.HandlerFunc
	admin  http.HandlerFunc
}

func setupIdentity(t *testing.T) *identityFixture {
	t.Helper()

	f := &identityFixture{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+identity.CampusLoginPath, func(w http.ResponseWriter, r *http.Request) {
		f.campusCalls.Add(1)
		f.campus(w, r)
	})
	mux.HandleFunc("POST "+identity.AdminLoginPath, func(w http.ResponseWriter, r *http.Request) {
		f.adminCalls.Add(1)
		f.admin(w, r)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	store, err := session.NewStore(memtier.New(), memtier.New())
	require.NoError(t, err)
	f.store = store

	a, err := identity.NewAuthenticator(store, []identity.Provider{
		identity.CampusProvider(f.server.URL),
		identity.AdminProvider(f.server.URL),
	}, identity.WithHTTPClient(f.server.Client()))
	require.NoError(t, err)
	f.auth = a
	return f
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func campusAnswer(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "expected multipart form", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"user_id":  42,
				"username": r.FormValue("username"),
				"name":     "Siti Rahma",
				"email":    "siti@campus.test",
				"role":     role,
				"photo":    "https://campus.test/siti.png",
			},
			"token":         "campus-token",
			"refresh_token": "campus-refresh",
		})
	}
}

func adminAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "expected json", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          map[string]any{"id": "adm-7", "name": "Rina", "email": "rina@admin.test", "role": "Admin"},
		"token":         "admin-token",
		"refresh_token": "admin-refresh",
	})
}

func adminReject(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Username atau password salah"})
}

func TestLogin_CampusLecturerIsAuthoritative(t *testing.T) {
	f := setupIdentity(t)
	f.campus = campusAnswer("Dosen")
	f.admin = adminAnswer

	sess, err := f.auth.Login(context.Background(), "siti", "secret")
	require.NoError(t, err)
	require.Equal(t, "campus-token", sess.AccessToken)
	require.Equal(t, "campus-refresh", sess.RefreshToken)
	require.Equal(t, users.RoleLecturer, sess.User.Role)
	require.Equal(t, "42", sess.User.ID)
	require.Equal(t, "siti", sess.User.Username)
	require.Equal(t, "https://campus.test/siti.png", *sess.User.Photo)

	require.Equal(t, int32(1), f.campusCalls.Load())
	require.Equal(t, int32(0), f.adminCalls.Load(), "admin provider must not be called")

	loaded := f.store.Load()
	require.NotNil(t, loaded)
	require.Equal(t, "campus-token", loaded.AccessToken)
}

func TestLogin_CampusTeachingAssistantIsAuthoritative(t *testing.T) {
	f := setupIdentity(t)
	f.campus = campusAnswer("Asisten")
	f.admin = adminAnswer

	sess, err := f.auth.Login(context.Background(), "andi", "secret")
	require.NoError(t, err)
	require.Equal(t, users.RoleTeachingAssistant, sess.User.Role)
	require.Equal(t, int32(0), f.adminCalls.Load())
}

func TestLogin_FallsThroughToAdmin(t *testing.T) {
	tests := []struct {
		name   string
		campus http.HandlerFunc
	}{
		{"student role", campusAnswer("Mahasiswa")},
		{"campus rejects", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid"})
		}},
		{"campus server error", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"campus answers garbage", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupIdentity(t)
			f.campus = tt.campus
			f.admin = adminAnswer

			sess, err := f.auth.Login(context.Background(), "rina", "secret")
			require.NoError(t, err)
			require.Equal(t, "admin-token", sess.AccessToken)
			require.Equal(t, users.RoleAdmin, sess.User.Role)
			require.Equal(t, "rina@admin.test", sess.User.Username)
			require.Equal(t, int32(1), f.campusCalls.Load())
			require.Equal(t, int32(1), f.adminCalls.Load())
		})
	}
}

func TestLogin_AdminAcceptsAnyRole(t *testing.T) {
	f := setupIdentity(t)
	f.campus = campusAnswer("Mahasiswa")
	f.admin = func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  map[string]any{"id": 9, "name": "Joko", "email": "joko@admin.test", "role": "Pegawai"},
			"token": "employee-token",
		})
	}

	sess, err := f.auth.Login(context.Background(), "joko", "secret")
	require.NoError(t, err)
	require.Equal(t, users.RoleEmployee, sess.User.Role)
	require.Equal(t, "9", sess.User.ID)
	require.Empty(t, sess.RefreshToken)
}

func TestLogin_BothProvidersFail(t *testing.T) {
	f := setupIdentity(t)
	f.campus = campusAnswer("Mahasiswa")
	f.admin = adminReject

	sess, err := f.auth.Login(context.Background(), "budi", "wrong")
	require.Nil(t, sess)
	require.Error(t, err)
	require.ErrorIs(t, err, autherrors.ErrAuthenticationFailed)
	require.Contains(t, err.Error(), "Username atau password salah")

	var perr *identity.ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "admin", perr.Provider)
	require.Equal(t, http.StatusUnauthorized, perr.Status)

	require.Nil(t, f.store.Load(), "no partial session is kept")
	require.Nil(t, f.store.Credentials())
}

func TestLogin_NetworkFailure(t *testing.T) {
	store, err := session.NewStore(memtier.New(), memtier.New())
	require.NoError(t, err)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()

	a, err := identity.NewAuthenticator(store, []identity.Provider{
		identity.CampusProvider(url),
		identity.AdminProvider(url),
	}, identity.WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)

	_, err = a.Login(context.Background(), "x", "y")
	require.ErrorIs(t, err, autherrors.ErrNetwork)
	require.ErrorIs(t, err, autherrors.ErrAuthenticationFailed)
}

func TestMultipartEncoder(t *testing.T) {
	body, contentType, err := identity.MultipartEncoder(identity.Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))
	require.Contains(t, string(body), `name="username"`)
	require.Contains(t, string(body), `name="password"`)
}

func TestNewAuthenticator_Validation(t *testing.T) {
	store, err := session.NewStore(memtier.New(), memtier.New())
	require.NoError(t, err)

	_, err = identity.NewAuthenticator(nil, []identity.Provider{identity.AdminProvider("http://x")})
	require.Error(t, err)
	_, err = identity.NewAuthenticator(store, nil)
	require.Error(t, err)
	_, err = identity.NewAuthenticator(store, []identity.Provider{{Name: "broken"}})
	require.Error(t, err)
}
