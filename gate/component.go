package gate

import (
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-attendance-console/redirect"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/rs/zerolog/log"
)

// Decision is the outcome of a component-level check
type Decision int

const (
	// Verifying means the session status is not known yet
	Verifying Decision = iota
	// Unauthenticated means there is no session at all
	Unauthenticated
	// Denied means a session exists but its role is not allowed
	Denied
	// Authorized means the session role is allowed
	Authorized
)

func (d Decision) String() string {
	switch d {
	case Verifying:
		return "verifying"
	case Unauthenticated:
		return "unauthenticated"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

// Viewer exposes the live session state the component gate decides on
type Viewer interface {
	// Ready reports whether the session status has been determined
	Ready() bool
	// Current returns the active session, or nil
	Current() *session.Session
	// RememberReturnPath stores the path login should return to
	RememberReturnPath(path string)
}

// Evaluate decides access for roles against the viewer's session. An empty
// roles list admits any authenticated user.
func Evaluate(v Viewer, roles ...users.RoleType) Decision {
	if !v.Ready() {
		return Verifying
	}
	sess := v.Current()
	if sess == nil || sess.User == nil {
		return Unauthenticated
	}
	if len(roles) == 0 || sess.User.HasRole(roles...) {
		return Authorized
	}
	return Denied
}

// ComponentGate enforces per-route role sets using live session state
type ComponentGate struct {
	viewer    Viewer
	guard     *redirect.Guard
	loginPath string
	root      string
}

// NewComponentGate creates a component gate
func NewComponentGate(viewer Viewer, guard *redirect.Guard, loginPath, dashboardRoot string) *ComponentGate {
	if dashboardRoot == "" {
		dashboardRoot = DefaultDashboardRoot
	}
	return &ComponentGate{viewer: viewer, guard: guard, loginPath: loginPath, root: dashboardRoot}
}

// RequireRoles wraps a handler so it only runs for an allowed session
func (g *ComponentGate) RequireRoles(roles ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch Evaluate(g.viewer, roles...) {
			case Authorized:
				next(w, r)
			case Verifying:
				w.Header().Set("Retry-After", "1")
				g.render(w, http.StatusServiceUnavailable, gatePage{
					Title: "Verifying session", Message: "Checking your session, please wait.", Refresh: true,
				})
			case Denied:
				// Rendered in place so it never fights the edge gate's rewrite
				g.render(w, http.StatusForbidden, gatePage{
					Title: "Access denied", Message: "Your role does not have access to this page.",
					LinkHref: g.root, LinkText: "Back to dashboard",
				})
			case Unauthenticated:
				g.LoginRedirect(w, r)
			}
		}
	}
}

// LoginRedirect sends the user to the login page, remembering where they
// were going. Inside the cooldown window the navigation is skipped and a
// plain page with a login link is shown instead.
func (g *ComponentGate) LoginRedirect(w http.ResponseWriter, r *http.Request) {
	returnPath := r.URL.RequestURI()
	if !g.guard.MayRedirect(redirect.KeyAuth) {
		log.Debug().Str("path", r.URL.Path).Msg("Login redirect suppressed")
		retry := int(math.Ceil(g.guard.RetryAfter(redirect.KeyAuth).Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
		g.render(w, http.StatusUnauthorized, gatePage{
			Title: "Sign in required", Message: "Please sign in to continue.",
			LinkHref: g.loginURL(returnPath), LinkText: "Sign in",
		})
		return
	}
	g.viewer.RememberReturnPath(returnPath)
	http.Redirect(w, r, g.loginURL(returnPath), http.StatusSeeOther)
}

func (g *ComponentGate) loginURL(returnPath string) string {
	return g.loginPath + "?next=" + url.QueryEscape(returnPath)
}

type gatePage struct {
	Title    string
	Message  string
	LinkHref string
	LinkText string
	Refresh  bool
}

var gateTemplate = template.Must(template.New("gate").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
{{if .Refresh}}<meta http-equiv="refresh" content="1">{{end}}
<title>{{.Title}}</title>
</head>
<body>
<main class="gate">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .LinkHref}}<a href="{{.LinkHref}}">{{.LinkText}}</a>{{end}}
</main>
</body>
</html>
`))

func (g *ComponentGate) render(w http.ResponseWriter, status int, page gatePage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := gateTemplate.Execute(w, page); err != nil {
		log.Err(err).Msg("Failed to render gate page")
	}
}
