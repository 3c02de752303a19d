package handler

import (
	"crypto/subtle" // constant-time username comparison
	"net/http"      // HTTP status codes and primitives
	"strconv"       // client id to token subject

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/workday-booking/internal/config"     // app configuration
	"github.com/iliyamo/workday-booking/internal/middleware" // role names
	"github.com/iliyamo/workday-booking/internal/utils"      // password checks and token issuing
)

// AuthHandler issues access tokens.  Operators log in with the configured
// username and bcrypt password hash; the chat front-end exchanges a client
// id for a CLIENT token using its API key.
type AuthHandler struct {
	Cfg config.Config
}

func NewAuthHandler(cfg config.Config) *AuthHandler {
	return &AuthHandler{Cfg: cfg}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionReq struct {
	ClientID int64 `json:"client_id" validate:"required,gt=0"`
}

type authResp struct {
	Subject string            `json:"subject"`
	Role    string            `json:"role"`
	Access  utils.AccessToken `json:"access"`
}

// Login handles POST /v1/auth/login for the operator.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Cfg.OperatorUsername)) == 1
	// bcrypt runs even when the username is wrong
	passOK := utils.VerifyPassword(h.Cfg.OperatorPasswordHash, req.Password)
	if !userOK || !passOK {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, h.Cfg.OperatorUsername, middleware.RoleOperator)
}

// Session handles POST /v1/auth/session.  The route is guarded by
// RequireAPIKey; the front-end has already authenticated the chat user.
func (h *AuthHandler) Session(c echo.Context) error {
	var req sessionReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	return h.issue(c, strconv.FormatInt(req.ClientID, 10), middleware.RoleClient)
}

func (h *AuthHandler) issue(c echo.Context, subject, role string) error {
	tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, subject, role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}
	return c.JSON(http.StatusOK, authResp{Subject: subject, Role: role, Access: tok})
}
