package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Logout
	RouteLogin      = "/login"
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"

	// Dashboard Routes; the dashboard root itself comes from the edge gate
	RouteDashboardAcademic   = "/dashboard/academic/"
	RouteDashboardLecturer   = "/dashboard/lecturer/"
	RouteDashboardAttendance = "/dashboard/attendance"

	// API Routes (served by the backend, fetched through the API client)
	RouteAPIAttendance = "/api/attendance"

	RouteMetrics = "/metrics"
)
