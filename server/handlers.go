package server

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-attendance-console/auth"
	"github.com/jrsteele09/go-attendance-console/identity"
	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/redirect"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxLoginFormSize = 64 << 10

// LoginPageHandler displays the login form (GET /login). Users who are
// already signed in are sent to the dashboard, subject to the login
// redirect cooldown.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := r.URL.Query().Get("next")
		if !auth.IsLocalPath(next) {
			next = ""
		}

		if sess := s.sessions.Current(); sess != nil {
			target := next
			if target == "" {
				target = s.edge.Root()
			}
			if s.guard.MayRedirect(redirect.KeyLogin) {
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			s.render(w, http.StatusOK, "login.html", pageData{
				Title: "Masuk", User: sess.User,
				Notice: "Anda sudah masuk.", LinkHref: target, LinkText: "Buka dashboard",
			})
			return
		}

		s.render(w, http.StatusOK, "login.html", pageData{
			Title: "Masuk",
			Error: r.URL.Query().Get("error"),
			Next:  next,
		})
	}
}

// LoginSubmissionHandler processes the login form (POST /auth/login)
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxLoginFormSize)
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, RouteLogin, "Data formulir tidak valid", "")
			return
		}
		username := r.PostForm.Get("username")
		password := r.PostForm.Get("password")
		next := r.PostForm.Get("next")
		if username == "" || password == "" {
			redirectWithError(w, r, RouteLogin, "Username dan password wajib diisi", next)
			return
		}

		_, err := s.sessions.Login(r.Context(), username, password)
		if errors.Is(err, autherrors.ErrInvalidTransition) && s.sessions.IsAuthenticated() {
			http.Redirect(w, r, s.edge.Root(), http.StatusSeeOther)
			return
		}
		if err != nil {
			redirectWithError(w, r, RouteLogin, loginErrorMessage(err), next)
			return
		}

		target := s.sessions.TakeReturnPath(s.edge.Root())
		if auth.IsLocalPath(next) {
			target = next
		}
		s.guard.Reset(redirect.KeyLogin)
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// LogoutHandler clears the session and renders the transitional page, which
// performs a full navigation to the login page.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.Logout(); err != nil {
			log.Err(err).Msg("Logout did not clear every storage tier")
		}
		s.render(w, http.StatusOK, "logout.html", pageData{Title: "Keluar", RefreshTo: RouteLogin})
	}
}

func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Current()
		if sess == nil {
			s.component.LoginRedirect(w, r)
			return
		}
		s.render(w, http.StatusOK, "dashboard.html", pageData{
			Title:       "Dashboard",
			User:        sess.User,
			CanAcademic: s.sessions.CheckRole(users.RoleAdmin),
			CanLecturer: s.sessions.CheckRole(users.RoleLecturer, users.RoleTeachingAssistant),
		})
	}
}

func (s *Server) AcademicHandler() http.HandlerFunc {
	return s.sectionHandler("Manajemen akademik", "Kelola program studi, mata kuliah dan jadwal perkuliahan.")
}

func (s *Server) LecturerHandler() http.HandlerFunc {
	return s.sectionHandler("Kelas yang diampu", "Buka sesi presensi dan lihat kehadiran mahasiswa per pertemuan.")
}

func (s *Server) sectionHandler(title, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Current()
		if sess == nil {
			s.component.LoginRedirect(w, r)
			return
		}
		s.render(w, http.StatusOK, "section.html", pageData{Title: title, User: sess.User, Section: body})
	}
}

// AttendanceHandler fetches the attendance summary through the API client.
// An expired session sends the user back to login.
func (s *Server) AttendanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Records []attendanceRecord `json:"records"`
		}
		err := s.api.GetJSON(r.Context(), RouteAPIAttendance, &body)
		if errors.Is(err, autherrors.ErrSessionExpired) || errors.Is(err, autherrors.ErrNoSession) {
			s.component.LoginRedirect(w, r)
			return
		}

		sess := s.sessions.Current()
		if sess == nil {
			s.component.LoginRedirect(w, r)
			return
		}
		data := pageData{Title: "Rekap presensi", User: sess.User, Records: body.Records}
		status := http.StatusOK
		if err != nil {
			log.Err(err).Msg("Failed to fetch attendance")
			data.FetchFailure = "Data presensi tidak dapat dimuat. Coba lagi nanti."
			status = http.StatusBadGateway
		}
		s.render(w, status, "attendance.html", data)
	}
}

// loginErrorMessage is the inline message shown for a rejected login
func loginErrorMessage(err error) string {
	var providerErr *identity.ProviderError
	if errors.As(err, &providerErr) && providerErr.Message != "" {
		if errors.Is(err, autherrors.ErrNetwork) {
			return "Layanan login tidak dapat dihubungi"
		}
		return providerErr.Message
	}
	return "Login gagal"
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg, next string) {
	q := url.Values{}
	q.Set("error", errorMsg)
	if auth.IsLocalPath(next) {
		q.Set("next", next)
	}
	http.Redirect(w, r, path+"?"+q.Encode(), http.StatusSeeOther)
}
