package gate

import (
	"net/http"
	"sort"
	"strings"

	"github.com/jrsteele09/go-attendance-console/internal/config"
	"github.com/jrsteele09/go-attendance-console/internal/metrics"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/rs/zerolog/log"
)

// DefaultDashboardRoot is where mismatched navigations are sent
const DefaultDashboardRoot = "/dashboard"

// EdgeRule requires one of Roles for every path under Prefix
type EdgeRule struct {
	Prefix string
	Roles  []users.RoleType
}

// NewEdgeGateFromConfig builds the edge gate from the configured route rules
func NewEdgeGateFromConfig(rules *config.RouteRules) *EdgeGate {
	edgeRules := make([]EdgeRule, 0, len(rules.Rules))
	for _, r := range rules.Rules {
		roles := make([]users.RoleType, 0, len(r.Roles))
		for _, role := range r.Roles {
			if rt := users.RoleType(role); !rt.Known() {
				log.Warn().Str("prefix", r.Prefix).Str("role", role).Msg("Unknown role in route rules")
			}
			roles = append(roles, users.RoleType(role))
		}
		edgeRules = append(edgeRules, EdgeRule{Prefix: r.Prefix, Roles: roles})
	}
	return NewEdgeGate(rules.DashboardRoot, edgeRules)
}

// EdgeGate checks the role carried by the user cookie against a prefix table
// before any route handler runs. It only ever rewrites the navigation target.
type EdgeGate struct {
	root  string
	rules []EdgeRule // Longest prefix first
}

// NewEdgeGate builds an edge gate rewriting mismatches to root
func NewEdgeGate(root string, rules []EdgeRule) *EdgeGate {
	if root == "" {
		root = DefaultDashboardRoot
	}
	sorted := make([]EdgeRule, 0, len(rules))
	for _, r := range rules {
		prefix := strings.TrimSuffix(r.Prefix, "/")
		if prefix == "" {
			continue
		}
		sorted = append(sorted, EdgeRule{Prefix: prefix, Roles: r.Roles})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &EdgeGate{root: root, rules: sorted}
}

// Root returns the dashboard root
func (g *EdgeGate) Root() string {
	return g.root
}

// Match returns the rule governing path, matching on whole path segments
func (g *EdgeGate) Match(path string) (EdgeRule, bool) {
	for _, r := range g.rules {
		if path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r, true
		}
	}
	return EdgeRule{}, false
}

// Target returns the path the navigation should actually reach. An empty
// role means no opinion and the path is returned unchanged.
func (g *EdgeGate) Target(path string, role users.RoleType) (string, bool) {
	if role == "" {
		return path, false
	}
	rule, ok := g.Match(path)
	if !ok || role.In(rule.Roles...) {
		return path, false
	}
	return g.root, true
}

// Middleware wraps the whole router
func (g *EdgeGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := roleFromCookie(r)
		target, rewritten := g.Target(r.URL.Path, role)
		if rewritten {
			rule, _ := g.Match(r.URL.Path)
			metrics.EdgeRewrites.WithLabelValues(rule.Prefix).Inc()
			log.Debug().Str("path", r.URL.Path).Str("role", string(role)).Str("target", target).Msg("Edge gate rewrite")

			r = r.Clone(r.Context())
			r.URL.Path = target
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}

// roleFromCookie reads the role from the user cookie. Absent or malformed
// data yields an empty role.
func roleFromCookie(r *http.Request) users.RoleType {
	c, err := r.Cookie(session.CookieUser)
	if err != nil || c.Value == "" {
		return ""
	}
	user, err := session.DecodeUserCookie(c.Value)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring malformed user cookie")
		return ""
	}
	return user.Role
}
