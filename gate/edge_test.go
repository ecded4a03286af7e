package gate_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-attendance-console/gate"
	"github.com/jrsteele09/go-attendance-console/internal/config"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/stretchr/testify/require"
)

func setupEdge(t *testing.T) (*gate.EdgeGate, http.Handler, *string) {
	t.Helper()

	reached := new(string)
	edge := gate.NewEdgeGateFromConfig(config.DefaultRouteRules())
	h := edge.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		*reached = r.URL.Path
	}))
	return edge, h, reached
}

func userCookie(t *testing.T, role users.RoleType) *http.Cookie {
	t.Helper()
	v, err := session.EncodeUserCookie(&users.User{ID: "u-1", Role: role})
	require.NoError(t, err)
	return &http.Cookie{Name: session.CookieUser, Value: v}
}

func TestEdgeGate_Middleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		cookie func(t *testing.T) *http.Cookie
		want   string
	}{
		{"lecturer on admin prefix", "/dashboard/academic/courses", func(t *testing.T) *http.Cookie { return userCookie(t, users.RoleLecturer) }, "/dashboard"},
		{"admin on admin prefix", "/dashboard/academic/courses", func(t *testing.T) *http.Cookie { return userCookie(t, users.RoleAdmin) }, "/dashboard/academic/courses"},
		{"lecturer on lecturer prefix", "/dashboard/lecturer", func(t *testing.T) *http.Cookie { return userCookie(t, users.RoleLecturer) }, "/dashboard/lecturer"},
		{"student on lecturer prefix", "/dashboard/lecturer/classes", func(t *testing.T) *http.Cookie { return userCookie(t, users.RoleStudent) }, "/dashboard"},
		{"no cookie passes through", "/dashboard/academic", nil, "/dashboard/academic"},
		{"malformed cookie passes through", "/dashboard/academic", func(*testing.T) *http.Cookie { return &http.Cookie{Name: session.CookieUser, Value: "%7Bnot-json"} }, "/dashboard/academic"},
		{"segment boundary", "/dashboard/academically", func(t *testing.T) *http.Cookie { return userCookie(t, users.RoleLecturer) }, "/dashboard/academically"},
		{"unmatched path", "/dashboard/attendance", func(t *testing.T) *http.Cookie { return userCookie(t, users.RoleStudent) }, "/dashboard/attendance"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, h, reached := setupEdge(t)
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie(t))
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			require.Equal(t, tc.want, *reached)
		})
	}
}

func TestEdgeGate_LongestPrefixWins(t *testing.T) {
	edge := gate.NewEdgeGate("", []gate.EdgeRule{
		{Prefix: "/dashboard/academic/", Roles: []users.RoleType{users.RoleAdmin}},
		{Prefix: "/dashboard/academic/reports", Roles: []users.RoleType{users.RoleAdmin, users.RoleEmployee}},
	})
	require.Equal(t, gate.DefaultDashboardRoot, edge.Root())

	target, rewritten := edge.Target("/dashboard/academic/reports/2026", users.RoleEmployee)
	require.False(t, rewritten)
	require.Equal(t, "/dashboard/academic/reports/2026", target)

	target, rewritten = edge.Target("/dashboard/academic/courses", users.RoleEmployee)
	require.True(t, rewritten)
	require.Equal(t, "/dashboard", target)
}
