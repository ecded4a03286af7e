package idpstub

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/pkg/errors"
)

const refreshTokenLength = 32

var errRefreshTokenUnknown = errors.New("refresh token not recognised")

// refreshGrant records who a refresh token was issued to
type refreshGrant struct {
	userID    string
	expiresAt time.Time
}

// issuer mints access tokens and single-use refresh tokens
type issuer struct {
	signer     *HMACSigner
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowFunc    func() time.Time

	mu     sync.Mutex
	grants map[string]refreshGrant
}

func newIssuer(signer *HMACSigner, accessTTL, refreshTTL time.Duration, now func() time.Time) *issuer {
	return &issuer{
		signer:     signer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowFunc:    now,
		grants:     make(map[string]refreshGrant),
	}
}

// issue returns a new access/refresh token pair for user
func (i *issuer) issue(user *users.User) (string, string, error) {
	now := i.nowFunc()
	access, err := i.signer.Sign(jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(i.accessTTL).Unix(),
		"jti":  uuid.NewString(),
	})
	if err != nil {
		return "", "", err
	}

	refresh, err := randomToken()
	if err != nil {
		return "", "", errors.Wrap(err, "[issuer.issue] refresh token")
	}

	i.mu.Lock()
	i.grants[refresh] = refreshGrant{userID: user.ID, expiresAt: now.Add(i.refreshTTL)}
	i.mu.Unlock()
	return access, refresh, nil
}

// redeem consumes a refresh token, returning the user it was issued to.
// A token can only be redeemed once.
func (i *issuer) redeem(refresh string) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	grant, ok := i.grants[refresh]
	if !ok {
		return "", errRefreshTokenUnknown
	}
	delete(i.grants, refresh)
	if !i.nowFunc().Before(grant.expiresAt) {
		return "", errors.New("refresh token expired")
	}
	return grant.userID, nil
}

// verify checks an access token and returns its subject
func (i *issuer) verify(access string) (string, error) {
	claims, err := i.signer.Parse(access, jwt.WithTimeFunc(i.nowFunc))
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func randomToken() (string, error) {
	b := make([]byte, refreshTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
