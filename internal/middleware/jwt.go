package middleware // middleware provides shared request processing for handlers

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ngconnect/marketplace-api/internal/httperr"
	"github.com/ngconnect/marketplace-api/internal/model"
	"github.com/ngconnect/marketplace-api/internal/utils"
)

const principalKey = "principal"

// JWTAuth returns middleware that validates a Bearer access token and
// stores the decoded principal in the request context.  Missing tokens
// and invalid signatures are both 401; an expired token surfaces a
// dedicated message but the access decision is identical.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return httperr.Unauthorized("Access token is missing")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			p, err := utils.ParseToken(secret, raw)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return httperr.Unauthorized("Token expired!")
				}
				return httperr.Unauthorized("Session expired")
			}

			c.Set(principalKey, p)
			// plain string keys consumed by the rate limiter
			c.Set("user_id", p.ID)
			c.Set("role", p.Role)
			return next(c)
		}
	}
}

// CurrentPrincipal returns the principal stored by JWTAuth.  Every
// mutating operation requires a non-empty principal id; its absence is
// an Unauthenticated failure, never silently skipped.
func CurrentPrincipal(c echo.Context) (model.Principal, error) {
	p, ok := c.Get(principalKey).(model.Principal)
	if !ok || p.ID == "" {
		return model.Principal{}, httperr.Unauthorized("Restricted permission or session is expired.")
	}
	return p, nil
}
