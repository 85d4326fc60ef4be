package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/amestel/coffee-catalog/internal/auth"
)

// AuthHandler exchanges the service API key for a short-lived access
// token.  The key itself is never stored; only its bcrypt hash is
// configured.
type AuthHandler struct {
	APIKeyHash   string // bcrypt hash of the service API key
	JWTSecret    string // secret used to sign access tokens
	AccessTTLMin int    // token lifetime in minutes
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(apiKeyHash, jwtSecret string, accessTTLMin int) *AuthHandler {
	return &AuthHandler{APIKeyHash: apiKeyHash, JWTSecret: jwtSecret, AccessTTLMin: accessTTLMin}
}

// Token handles POST /v1/auth/token.  A valid API key yields an HS256
// bearer token for the mutating catalog endpoints; anything else is a
// 401 without detail.
func (h *AuthHandler) Token(c echo.Context) error {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	key := strings.TrimSpace(body.APIKey)
	if key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "api_key is required"})
	}
	if !auth.VerifyAPIKey(h.APIKeyHash, key) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid api key"})
	}

	tok, err := auth.NewAccessToken(h.JWTSecret, "api-client", h.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": tok.Token,
		"token_type":   "Bearer",
		"expires_at":   tok.Exp,
	})
}
