package middleware

// identity.go carries the authenticated provider through the request
// context.  JWTAuth stores it; public routes have none and are keyed as
// "anon" by the rate limiter.

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Principal is the caller behind a verified access token.
type Principal struct {
	ProviderID uint64
	Role       string
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by JWTAuth.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.ProviderID != 0
}

// ProviderID returns the authenticated provider id.
func ProviderID(c echo.Context) (uint64, bool) {
	p, ok := PrincipalFrom(c.Request().Context())
	return p.ProviderID, ok
}

// Role returns the role claim of the caller, or "" on public routes.
func Role(c echo.Context) string {
	p, _ := PrincipalFrom(c.Request().Context())
	return p.Role
}

// callerKey identifies the caller for rate limiting.
func callerKey(c echo.Context) string {
	if id, ok := ProviderID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
