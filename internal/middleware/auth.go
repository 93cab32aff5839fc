package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/auth"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/reqctx"
)

const (
	ContextKeyUID  = "uid"
	ContextKeyRole = "role"
)

type AuthMiddleware struct {
	verifier auth.Verifier
}

func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth verifies the bearer token and stores the principal on the
// echo context and the request context. Browsers cannot set headers on a
// websocket handshake, so upgrades may pass the token as ?token=.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := bearerToken(c.Request())
		if tokenStr == "" {
			return c.JSON(http.StatusUnauthorized, unauthorized("missing bearer token"))
		}
		p, err := m.verifier.Verify(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, unauthorized("invalid token"))
		}
		c.Set(ContextKeyUID, p.UserID)
		c.Set(ContextKeyRole, p.Role)
		c.SetRequest(c.Request().WithContext(reqctx.WithUID(c.Request().Context(), p.UserID)))
		return next(c)
	}
}

// Principal returns what RequireAuth stored, if anything.
func Principal(c echo.Context) (auth.Principal, bool) {
	uid, _ := c.Get(ContextKeyUID).(string)
	if uid == "" {
		return auth.Principal{}, false
	}
	role, _ := c.Get(ContextKeyRole).(model.Role)
	return auth.Principal{UserID: uid, Role: role}, true
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

func unauthorized(msg string) map[string]map[string]string {
	return map[string]map[string]string{
		"error": {"code": "unauthorized", "message": msg},
	}
}
