package idpstub

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// HMACSigner signs and verifies HS256 access tokens
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner creates a new HMAC signer with the given secret
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{
		secret: []byte(secret),
	}
}

func (h *HMACSigner) Sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

// Parse verifies rawToken and returns its claims
func (h *HMACSigner) Parse(rawToken string, options ...jwt.ParserOption) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, h.verificationKey, append(options, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))...)
	if err != nil {
		return nil, errors.Wrap(err, "[HMACSigner.Parse]")
	}
	if !token.Valid {
		return nil, errors.New("[HMACSigner.Parse] invalid token")
	}
	return claims, nil
}

func (h *HMACSigner) verificationKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}
