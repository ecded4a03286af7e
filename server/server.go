package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-attendance-console/apiclient"
	"github.com/jrsteele09/go-attendance-console/auth"
	"github.com/jrsteele09/go-attendance-console/gate"
	"github.com/jrsteele09/go-attendance-console/internal/config"
	"github.com/jrsteele09/go-attendance-console/redirect"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Deps are the session components the console serves
type Deps struct {
	Sessions *auth.SessionContext
	Store    *session.Store
	Guard    *redirect.Guard
	API      *apiclient.Client
	Edge     *gate.EdgeGate
}

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	handler   http.Handler
	routes    []string
	config    config.Config
	sessions  *auth.SessionContext
	store     *session.Store
	guard     *redirect.Guard
	api       *apiclient.Client
	edge      *gate.EdgeGate
	component *gate.ComponentGate
	pages     *pages
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Sessions == nil || deps.Store == nil || deps.Guard == nil || deps.API == nil || deps.Edge == nil {
		return nil, errors.New("[Server New] all dependencies are required")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to parse templates")
	}

	s := &Server{
		env:      config.GetEnv(),
		mux:      http.NewServeMux(),
		config:   config,
		sessions: deps.Sessions,
		store:    deps.Store,
		guard:    deps.Guard,
		api:      deps.API,
		edge:     deps.Edge,
		pages:    pages,
	}
	s.component = gate.NewComponentGate(s.sessions, s.guard, RouteLogin, s.edge.Root())
	s.api.SetSessionExpiredHandler(s.sessions.HandleSessionExpired)

	s.initRoutes()
	s.logRoutes()

	// The edge gate sees every navigation before the router does
	s.handler = s.edge.Middleware(s.mux)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
