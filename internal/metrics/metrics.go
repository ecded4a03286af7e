package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendance_console"

var (
	// LoginAttempts counts provider attempts by outcome (accepted, rejected, skipped, error)
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Identity provider login attempts by provider and result.",
	}, []string{"provider", "result"})

	// RefreshAttempts counts calls to the renewal endpoint
	RefreshAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "Token renewal calls by result.",
	}, []string{"result"})

	// RedirectsSuppressed counts redirects skipped by the loop guard
	RedirectsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redirects_suppressed_total",
		Help:      "Authorization redirects skipped inside the cooldown window.",
	}, []string{"key"})

	// EdgeRewrites counts navigations rewritten to the dashboard root
	EdgeRewrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "edge_rewrites_total",
		Help:      "Navigations rewritten by the edge gate, by matched prefix.",
	}, []string{"prefix"})
)

// Registry holds the console's collectors
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(LoginAttempts, RefreshAttempts, RedirectsSuppressed, EdgeRewrites)
}

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
