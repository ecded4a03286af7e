package identity

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/internal/utils"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/pkg/errors"
)

// Identity provider routes
const (
	CampusLoginPath = "/auth/campus/login"
	AdminLoginPath  = "/auth/login"
)

// Credentials is the username/password pair typed into the login form
type Credentials struct {
	Username string
	Password string
}

// Result is what a provider returns on a successful login
type Result struct {
	AccessToken  string
	RefreshToken string
	User         *users.User
}

// Encoder turns credentials into a request body and its content type
type Encoder func(creds Credentials) (body []byte, contentType string, err error)

// Decoder parses a 2xx response body
type Decoder func(body []byte) (*Result, error)

// Provider describes one identity system in the login chain
type Provider struct {
	Name     string                    // Used in logs, metrics and errors
	Endpoint string                    // Absolute login URL
	Encode   Encoder                   // Request body strategy
	Decode   Decoder                   // Response body strategy
	Accept   func(users.RoleType) bool // Optional role filter; a rejected role falls through to the next provider
}

// AcceptRoles builds a role filter accepting only roles
func AcceptRoles(roles ...users.RoleType) func(users.RoleType) bool {
	return func(role users.RoleType) bool {
		return role.In(roles...)
	}
}

// CampusProvider is the campus identity: multipart form credentials, and only
// its lecturer and teaching-assistant answers are authoritative.
func CampusProvider(baseURL string) Provider {
	return Provider{
		Name:     "campus",
		Endpoint: strings.TrimSuffix(baseURL, "/") + CampusLoginPath,
		Encode:   MultipartEncoder,
		Decode:   decodeCampus,
		Accept:   AcceptRoles(users.RoleLecturer, users.RoleTeachingAssistant),
	}
}

// AdminProvider is the administrative identity: JSON credentials, any role accepted
func AdminProvider(baseURL string) Provider {
	return Provider{
		Name:     "admin",
		Endpoint: strings.TrimSuffix(baseURL, "/") + AdminLoginPath,
		Encode:   JSONEncoder,
		Decode:   decodeAdmin,
	}
}

// MultipartEncoder encodes credentials as multipart/form-data
func MultipartEncoder(creds Credentials) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("username", creds.Username); err != nil {
		return nil, "", errors.Wrap(err, "[MultipartEncoder] username")
	}
	if err := mw.WriteField("password", creds.Password); err != nil {
		return nil, "", errors.Wrap(err, "[MultipartEncoder] password")
	}
	if err := mw.Close(); err != nil {
		return nil, "", errors.Wrap(err, "[MultipartEncoder] close")
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// JSONEncoder encodes credentials as a JSON object
func JSONEncoder(creds Credentials) ([]byte, string, error) {
	b, err := json.Marshal(struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{creds.Username, creds.Password})
	if err != nil {
		return nil, "", errors.Wrap(err, "[JSONEncoder]")
	}
	return b, "application/json", nil
}

// flexibleID accepts ids sent as JSON strings or numbers
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type campusResponse struct {
	User struct {
		UserID   flexibleID `json:"user_id"`
		Username string     `json:"username"`
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Role     string     `json:"role"`
		Photo    string     `json:"photo"`
	} `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func decodeCampus(body []byte) (*Result, error) {
	var resp campusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(autherrors.ErrAuthenticationFailed, "campus response: "+err.Error())
	}
	u := resp.User
	user := &users.User{
		ID:          string(u.UserID),
		Username:    u.Username,
		DisplayName: u.Name,
		Email:       u.Email,
		Role:        users.RoleType(u.Role),
		Photo:       optional(u.Photo),
	}
	return newResult(resp.Token, resp.RefreshToken, user)
}

type adminResponse struct {
	User struct {
		ID       flexibleID `json:"id"`
		Username string     `json:"username"`
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Role     string     `json:"role"`
	} `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func decodeAdmin(body []byte) (*Result, error) {
	var resp adminResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(autherrors.ErrAuthenticationFailed, "admin response: "+err.Error())
	}
	u := resp.User
	username := u.Username
	if username == "" {
		username = u.Email
	}
	user := &users.User{
		ID:          string(u.ID),
		Username:    username,
		DisplayName: u.Name,
		Email:       u.Email,
		Role:        users.RoleType(u.Role),
	}
	return newResult(resp.Token, resp.RefreshToken, user)
}

func newResult(token, refreshToken string, user *users.User) (*Result, error) {
	if token == "" {
		return nil, errors.Wrap(autherrors.ErrAuthenticationFailed, "response carries no token")
	}
	if !user.Valid() {
		return nil, errors.Wrap(autherrors.ErrAuthenticationFailed, "response carries no user id or role")
	}
	return &Result{AccessToken: token, RefreshToken: refreshToken, User: user}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return utils.Ptr(s)
}

// errorMessage extracts a human readable message from an error response body
func errorMessage(status int, body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, 64<<10))
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if text := strings.TrimSpace(string(b)); text != "" && len(text) < 200 {
		return text
	}
	return "status " + strconv.Itoa(status)
}
