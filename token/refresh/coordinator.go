package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/internal/metrics"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RefreshPath is the renewal endpoint on the administrative identity service
const RefreshPath = "/auth/refresh"

// Coordinator renews the stored access token. Callers that ask for a renewal
// while one is in flight for the same refresh token wait for that call instead
// of issuing their own.
type Coordinator struct {
	endpoint   string
	store      *session.Store
	httpClient *http.Client
	group      singleflight.Group
}

// CoordinatorOption defines a function type to modify the Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithHTTPClient sets the client used to call the renewal endpoint
func WithHTTPClient(client *http.Client) CoordinatorOption {
	return func(c *Coordinator) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewCoordinator creates a Coordinator posting to baseURL + RefreshPath
func NewCoordinator(store *session.Store, baseURL string, options ...CoordinatorOption) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("[NewCoordinator] store is required")
	}
	if baseURL == "" {
		return nil, errors.New("[NewCoordinator] base URL is required")
	}

	c := &Coordinator{
		endpoint:   strings.TrimSuffix(baseURL, "/") + RefreshPath,
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type renewRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type renewResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
}

// Refresh renews the stored session and returns it.
// Any failure leaves the store untouched and returns an error matching ErrSessionExpired.
func (c *Coordinator) Refresh(ctx context.Context) (*session.Session, error) {
	creds := c.store.Credentials()
	if creds == nil || creds.RefreshToken == "" {
		return nil, errors.Wrap(autherrors.ErrSessionExpired, "[Coordinator.Refresh] no refresh token stored")
	}

	// The shared call must not die with whichever caller happened to start it
	callCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(creds.RefreshToken, func() (interface{}, error) {
		// A flight for this token may have finished after it was read above.
		// Refresh tokens are single-use, so the one it stored is the result.
		if current := c.store.Credentials(); current == nil || current.RefreshToken != creds.RefreshToken {
			if current == nil {
				return nil, errors.Wrap(autherrors.ErrSessionExpired, "[Coordinator.Refresh] session cleared")
			}
			log.Debug().Msg("Session already renewed")
			return current, nil
		}
		return c.renew(callCtx, creds.RefreshToken)
	})
	if shared {
		log.Debug().Msg("Joined in-flight token refresh")
	}
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}

func (c *Coordinator) renew(ctx context.Context, refreshToken string) (*session.Session, error) {
	sess, err := c.post(ctx, refreshToken)
	if err != nil {
		metrics.RefreshAttempts.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Msg("Token refresh failed")
		return nil, errors.Wrap(autherrors.ErrSessionExpired, err.Error())
	}
	metrics.RefreshAttempts.WithLabelValues("renewed").Inc()
	log.Info().Str("user", sess.User.Username).Time("expires_at", sess.ExpiresAt).Msg("Token refreshed")
	return sess, nil
}

func (c *Coordinator) post(ctx context.Context, refreshToken string) (*session.Session, error) {
	body, err := json.Marshal(renewRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrNetwork, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("renewal endpoint returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrNetwork, err.Error())
	}
	var renewed renewResponse
	if err := json.Unmarshal(respBody, &renewed); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if renewed.Token == "" {
		return nil, errors.New("renewal response carries no token")
	}

	// Same identity, new credentials: the stored user is kept
	return c.store.Renew(refreshToken, renewed.Token, renewed.RefreshToken)
}
