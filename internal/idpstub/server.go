// Package idpstub is a development stand-in for the campus and administrative
// identity services and the attendance API, so the console can run end to end
// on one machine.
package idpstub

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	RouteCampusLogin = "/auth/campus/login"
	RouteAdminLogin  = "/auth/login"
	RouteRefresh     = "/auth/refresh"
	RouteAttendance  = "/api/attendance"

	contentTypeJSON  = "application/json; charset=utf-8"
	maxMultipartSize = 1 << 20
)

// Server implements the identity, renewal and attendance endpoints
type Server struct {
	mux    *http.ServeMux
	users  users.UserRepo
	tokens *issuer
}

// ServerOption defines a function type to modify the stub configuration.
type ServerOption func(*options)

type options struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time
}

// WithSecret sets the HS256 signing secret
func WithSecret(secret string) ServerOption {
	return func(o *options) {
		o.secret = secret
	}
}

// WithAccessTokenTTL sets how long access tokens are accepted
func WithAccessTokenTTL(ttl time.Duration) ServerOption {
	return func(o *options) {
		o.accessTTL = ttl
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ServerOption {
	return func(o *options) {
		o.nowFunc = now
	}
}

// New creates a stub backed by repo
func New(repo users.UserRepo, opts ...ServerOption) (*Server, error) {
	if repo == nil {
		return nil, errors.New("[idpstub.New] user repo is required")
	}
	o := options{
		secret:     "attendance-dev-secret",
		accessTTL:  15 * time.Minute,
		refreshTTL: 24 * time.Hour,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		mux:    http.NewServeMux(),
		users:  repo,
		tokens: newIssuer(NewHMACSigner(o.secret), o.accessTTL, o.refreshTTL, o.nowFunc),
	}
	s.mux.HandleFunc("POST "+RouteCampusLogin, s.CampusLoginHandler())
	s.mux.HandleFunc("POST "+RouteAdminLogin, s.AdminLoginHandler())
	s.mux.HandleFunc("POST "+RouteRefresh, s.RefreshHandler())
	s.mux.HandleFunc("GET "+RouteAttendance, s.AttendanceHandler())
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Seed registers an account with a bcrypt-hashed password
func (s *Server) Seed(directory users.Directory, user users.User, password string) error {
	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[Server.Seed] hash password")
	}
	return s.users.Upsert(&users.Account{User: user, PasswordHash: hash, Directory: directory})
}

type campusUser struct {
	UserID   string  `json:"user_id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	Photo    *string `json:"photo"`
}

type adminUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	User         interface{} `json:"user"`
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
}

// CampusLoginHandler accepts a multipart {username, password} form
func (s *Server) CampusLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMultipartSize); err != nil {
			writeJSONError(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		account, ok := s.authenticate(w, users.DirectoryCampus, r.FormValue("username"), r.FormValue("password"))
		if !ok {
			return
		}
		s.writeTokens(w, account, campusUser{
			UserID:   account.ID,
			Username: account.Username,
			Name:     account.DisplayName,
			Email:    account.Email,
			Role:     string(account.Role),
			Photo:    account.Photo,
		})
	}
}

// AdminLoginHandler accepts a JSON {username, password} body
func (s *Server) AdminLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		account, ok := s.authenticate(w, users.DirectoryAdmin, body.Username, body.Password)
		if !ok {
			return
		}
		s.writeTokens(w, account, toAdminUser(account))
	}
}

// RefreshHandler rotates a refresh token into a new token pair
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
			writeJSONError(w, "refresh_token is required", http.StatusBadRequest)
			return
		}

		userID, err := s.tokens.redeem(body.RefreshToken)
		if err != nil {
			writeJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		}
		account, err := s.users.GetByID(userID)
		if err != nil {
			writeJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		}
		s.writeTokens(w, account, toAdminUser(account))
	}
}

type attendanceRecord struct {
	Course  string `json:"course"`
	Meeting int    `json:"meeting"`
	Present int    `json:"present"`
	Total   int    `json:"total"`
}

// AttendanceHandler serves sample attendance data to a bearer of a valid access token
func (s *Server) AttendanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSONError(w, "Missing bearer token", http.StatusUnauthorized)
			return
		}
		userID, err := s.tokens.verify(raw)
		if err != nil {
			log.Debug().Err(err).Msg("Rejected access token")
			writeJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user_id": userID,
			"records": []attendanceRecord{
				{Course: "IF-101 Algoritma", Meeting: 5, Present: 38, Total: 40},
				{Course: "IF-204 Basis Data", Meeting: 4, Present: 29, Total: 32},
			},
		})
	}
}

func (s *Server) authenticate(w http.ResponseWriter, directory users.Directory, username, password string) (*users.Account, bool) {
	account, err := s.users.GetByUsername(directory, username)
	if err != nil || !users.CheckPasswordHash(password, account.PasswordHash) {
		log.Info().Str("directory", string(directory)).Str("username", username).Msg("Login rejected")
		writeJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return nil, false
	}
	return account, true
}

func (s *Server) writeTokens(w http.ResponseWriter, account *users.Account, user interface{}) {
	access, refresh, err := s.tokens.issue(&account.User)
	if err != nil {
		log.Err(err).Msg("Failed to issue tokens")
		writeJSONError(w, "Failed to issue tokens", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.NewEncoder(w).Encode(tokenResponse{User: user, Token: access, RefreshToken: refresh})
}

func toAdminUser(account *users.Account) adminUser {
	return adminUser{ID: account.ID, Name: account.DisplayName, Email: account.Email, Role: string(account.Role)}
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// DefaultAccounts seeds the stub with one account per role
func DefaultAccounts(s *Server, password string) error {
	seed := []struct {
		directory users.Directory
		user      users.User
	}{
		{users.DirectoryAdmin, users.User{Username: "admin", DisplayName: "Administrator Akademik", Email: "admin@kampus.ac.id", Role: users.RoleAdmin}},
		{users.DirectoryCampus, users.User{Username: "dosen", DisplayName: "Budi Santoso", Email: "budi@kampus.ac.id", Role: users.RoleLecturer}},
		{users.DirectoryCampus, users.User{Username: "asisten", DisplayName: "Rina Wijaya", Email: "rina@kampus.ac.id", Role: users.RoleTeachingAssistant}},
		{users.DirectoryCampus, users.User{Username: "mahasiswa", DisplayName: "Andi Pratama", Email: "andi@student.kampus.ac.id", Role: users.RoleStudent}},
		{users.DirectoryAdmin, users.User{Username: "mahasiswa", DisplayName: "Andi Pratama", Email: "andi@student.kampus.ac.id", Role: users.RoleStudent}},
		{users.DirectoryAdmin, users.User{Username: "pegawai", DisplayName: "Sri Lestari", Email: "sri@kampus.ac.id", Role: users.RoleEmployee}},
	}
	for _, a := range seed {
		if err := s.Seed(a.directory, a.user, password); err != nil {
			return err
		}
	}
	return nil
}
