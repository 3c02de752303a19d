package middleware

// identity.go holds the context keys JWTAuth fills in and the helpers the
// handlers and the rate limiter use to read them back.

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Roles carried in the "role" claim.
const (
	RoleClient   = "CLIENT"
	RoleOperator = "OPERATOR"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// ErrNoClient is returned by ClientID when the request carries no client
// identity.
var ErrNoClient = errors.New("no client identity in request")

// UserID returns the token subject, or "anon" for unauthenticated requests.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}

// Role returns the token role, or "" for unauthenticated requests.
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}

// ClientID returns the chat client id of a CLIENT token.
func ClientID(c echo.Context) (int64, error) {
	if Role(c) != RoleClient {
		return 0, ErrNoClient
	}
	id, err := strconv.ParseInt(UserID(c), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNoClient
	}
	return id, nil
}
