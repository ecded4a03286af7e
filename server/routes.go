package server

import (
	"net/http"

	"github.com/jrsteele09/go-attendance-console/internal/metrics"
	"github.com/jrsteele09/go-attendance-console/users"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// Dashboard routes, each behind the component gate
	s.RegisterRouteHandler("GET "+s.edge.Root(), ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleWare(s.component.RequireRoles())...))
	s.RegisterRouteHandler("GET "+RouteDashboardAcademic, ChainMiddleware(s.AcademicHandler(),
		s.HTMLMiddleWare(s.component.RequireRoles(users.RoleAdmin))...))
	s.RegisterRouteHandler("GET "+RouteDashboardLecturer, ChainMiddleware(s.LecturerHandler(),
		s.HTMLMiddleWare(s.component.RequireRoles(users.RoleLecturer, users.RoleTeachingAssistant))...))
	s.RegisterRouteHandler("GET "+RouteDashboardAttendance, ChainMiddleware(s.AttendanceHandler(), s.HTMLMiddleWare(s.component.RequireRoles())...))

	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteHandler("/", ChainMiddleware(s.NotFoundHandler(), s.HTMLMiddleWare()...))
}

func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.edge.Root(), http.StatusSeeOther)
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusNotFound, "notfound.html", pageData{Title: "Not found"})
	}
}
