package middleware // reusable HTTP middleware for the provider dashboard and public API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotta-engine/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the caller as a Principal in the request context.  The secret must
// match the one used when issuing tokens.  Handlers read the caller through
// ProviderID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			id, role, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			req := c.Request()
			c.SetRequest(req.WithContext(WithPrincipal(req.Context(), Principal{ProviderID: id, Role: role})))
			return next(c)
		}
	}
}
