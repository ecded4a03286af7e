package identity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	autherrors "github.com/jrsteele09/go-attendance-console/internal/errors"
	"github.com/jrsteele09/go-attendance-console/internal/metrics"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxResponseBody = 1 << 20

// ProviderError is the failure of one provider in the login chain.
// It matches ErrAuthenticationFailed, and ErrNetwork when the transport failed.
type ProviderError struct {
	Provider string
	Status   int    // HTTP status, zero for transport or decoding failures
	Message  string // Provider supplied message, shown to the user
	Err      error  // Underlying cause
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s login failed (%d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s login failed: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{autherrors.ErrAuthenticationFailed}
	}
	return []error{autherrors.ErrAuthenticationFailed, e.Err}
}

// Authenticator turns credentials into a session by walking an ordered provider chain
type Authenticator struct {
	providers  []Provider
	store      *session.Store
	httpClient *http.Client
}

// AuthenticatorOption defines a function type to modify the Authenticator instance.
type AuthenticatorOption func(*Authenticator)

// WithHTTPClient sets the client used to call the providers
func WithHTTPClient(client *http.Client) AuthenticatorOption {
	return func(a *Authenticator) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// NewAuthenticator creates an Authenticator over providers, tried in order
func NewAuthenticator(store *session.Store, providers []Provider, options ...AuthenticatorOption) (*Authenticator, error) {
	if store == nil {
		return nil, errors.New("[NewAuthenticator] store is required")
	}
	if len(providers) == 0 {
		return nil, errors.New("[NewAuthenticator] at least one provider is required")
	}
	for _, p := range providers {
		if p.Endpoint == "" || p.Encode == nil || p.Decode == nil {
			return nil, errors.Errorf("[NewAuthenticator] provider %q is incomplete", p.Name)
		}
	}

	a := &Authenticator{
		providers:  providers,
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Login tries each provider in order. Every failure except the last provider's
// falls through to the next one; the first accepted answer is saved to the
// store and returned. Nothing is written to the store on failure.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*session.Session, error) {
	creds := Credentials{Username: username, Password: password}

	var lastErr error
	for i, p := range a.providers {
		last := i == len(a.providers)-1

		result, err := a.attempt(ctx, p, creds)
		if err != nil {
			metrics.LoginAttempts.WithLabelValues(p.Name, "error").Inc()
			lastErr = err
			if !last {
				log.Debug().Err(err).Str("provider", p.Name).Msg("Login provider failed, trying next")
			}
			continue
		}

		if p.Accept != nil && !p.Accept(result.User.Role) {
			metrics.LoginAttempts.WithLabelValues(p.Name, "skipped").Inc()
			lastErr = &ProviderError{Provider: p.Name, Message: "role not permitted: " + string(result.User.Role)}
			log.Debug().Str("provider", p.Name).Str("role", string(result.User.Role)).Msg("Login provider role not accepted, trying next")
			continue
		}

		stored, err := a.store.Save(&session.Session{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			User:         result.User,
		})
		if err != nil {
			return nil, errors.Wrap(err, "[Authenticator.Login] save session")
		}
		metrics.LoginAttempts.WithLabelValues(p.Name, "accepted").Inc()
		log.Info().Str("provider", p.Name).Str("user", result.User.Username).Str("role", string(result.User.Role)).Msg("Login succeeded")
		return stored, nil
	}

	log.Warn().Err(lastErr).Str("user", username).Msg("Login failed")
	return nil, lastErr
}

func (a *Authenticator) attempt(ctx context.Context, p Provider, creds Credentials) (*Result, error) {
	body, contentType, err := p.Encode(creds)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name, Message: "could not encode credentials", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: p.Name, Message: "could not build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name, Message: "identity service unreachable", Err: errors.Wrap(autherrors.ErrNetwork, err.Error())}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: p.Name, Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, resp.Body)}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &ProviderError{Provider: p.Name, Status: resp.StatusCode, Message: "could not read response", Err: errors.Wrap(autherrors.ErrNetwork, err.Error())}
	}
	result, err := p.Decode(respBody)
	if err != nil {
		return nil, &ProviderError{Provider: p.Name, Status: resp.StatusCode, Message: "unexpected response", Err: err}
	}
	return result, nil
}
