package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// HeaderRequestID correlates a call and its replay in logs
const HeaderRequestID = "X-Request-ID"

// Refresher renews the stored session
type Refresher interface {
	Refresh(ctx context.Context) (*session.Session, error)
}

// Request describes one API call
type Request struct {
	Method       string
	Path         string // Relative to the API base URL, e.g. /api/attendance
	Body         []byte // Kept as bytes so the call can be replayed
	Header       http.Header
	RequiresAuth bool
}

// StatusError is returned by the JSON helpers for non-2xx answers
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Body)
}

// Client is the authenticated fetch wrapper. It attaches the stored bearer
// token and, on a 401, renews the session once and replays the call once.
type Client struct {
	baseURL    string
	store      *session.Store
	refresher  Refresher
	httpClient *http.Client
	onExpired  func()
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSessionExpiredHandler registers the routine run after a failed renewal
// has cleared the session, typically sending the user to the login page.
func WithSessionExpiredHandler(onExpired func()) ClientOption {
	return func(c *Client) {
		c.onExpired = onExpired
	}
}

// New creates a Client for the API at baseURL
func New(baseURL string, store *session.Store, refresher Refresher, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("[apiclient.New] base URL is required")
	}
	if store == nil {
		return nil, errors.New("[apiclient.New] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[apiclient.New] refresher is required")
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		store:      store,
		refresher:  refresher,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// SetSessionExpiredHandler replaces the routine run after a failed renewal
func (c *Client) SetSessionExpiredHandler(onExpired func()) {
	c.onExpired = onExpired
}

// Do performs the call. For authenticated calls the order is strictly
// attach token, send, and on 401 renew then replay; the replay's response is
// returned as-is, even when it is another 401. The caller closes the body.
func (c *Client) Do(ctx context.Context, r Request) (*http.Response, error) {
	requestID := uuid.NewString()

	if !r.RequiresAuth {
		return c.send(ctx, r, nil, requestID)
	}

	creds := c.store.Credentials()
	if creds == nil || creds.AccessToken == "" {
		return nil, fmt.Errorf("[Client.Do] %w: %w", autherrors.ErrAuthenticationFailed, autherrors.ErrNoSession)
	}

	resp, err := c.send(ctx, r, creds, requestID)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	drain(resp)

	// Another call may already have renewed the token this request was sent with
	if current := c.store.Credentials(); current != nil && current.AccessToken != "" && current.AccessToken != creds.AccessToken {
		log.Debug().Str("request_id", requestID).Msg("Replaying with token renewed by another call")
		return c.send(ctx, r, current, requestID)
	}

	renewed, err := c.refresher.Refresh(ctx)
	if err != nil {
		if newer := c.expire(creds.RefreshToken, err); newer != nil {
			log.Debug().Str("request_id", requestID).Msg("Session replaced during renewal, replaying with it")
			return c.send(ctx, r, newer, requestID)
		}
		return nil, errors.Wrap(autherrors.ErrSessionExpired, "[Client.Do] renewal failed")
	}

	log.Debug().Str("request_id", requestID).Str("path", r.Path).Msg("Replaying request after token refresh")
	return c.send(ctx, r, renewed, requestID)
}

// GetJSON performs an authenticated GET and decodes a 2xx JSON body into out
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, RequiresAuth: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "[Client.GetJSON] decode")
	}
	return nil
}

func (c *Client) send(ctx context.Context, r Request, creds *session.Session, requestID string) (*http.Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+r.Path, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client] build request")
	}
	for k, vals := range r.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(HeaderRequestID, requestID)
	if creds != nil {
		creds.Token().SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrNetwork, err.Error())
	}
	return resp, nil
}

// expire clears the session holding refreshToken after an unrecoverable
// renewal failure and runs the process-wide expiry routine. When a newer
// login has replaced that session it is kept and returned instead.
func (c *Client) expire(refreshToken string, cause error) *session.Session {
	cleared, err := c.store.ClearIf(refreshToken)
	if err != nil {
		log.Err(err).Msg("Failed to clear expired session")
	}
	if !cleared {
		if current := c.store.Credentials(); current != nil {
			return current
		}
	}

	log.Warn().Err(cause).Msg("Session expired")
	if c.onExpired != nil {
		c.onExpired()
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
