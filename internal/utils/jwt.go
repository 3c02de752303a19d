package utils // package utils provides helper functions for token creation and hashing

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are encoded in the Authorization
// header when calling protected endpoints.
type AccessToken struct {
	Token string    `json:"access_token"` // the serialized JWT string
	Exp   time.Time `json:"expires_at"`   // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT.  The subject is the client
// id for CLIENT tokens and the operator username for OPERATOR tokens.  The
// JWT includes the standard claims sub, exp and iat plus a custom role
// claim.
func NewAccessToken(secret, subject, role string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	// Sign the token with the provided secret and obtain the string form.
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
