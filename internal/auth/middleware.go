package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const callerContextKey = "callerID"

// Middleware verifies the bearer token and stores the caller id in the echo
// context for the handlers downstream.
func Middleware(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(callerContextKey, claims.UserID)
			return next(c)
		}
	}
}

// CallerID resolves the authenticated caller from the request context; empty
// when the route skipped the middleware.
func CallerID(c echo.Context) string {
	if id, ok := c.Get(callerContextKey).(string); ok {
		return id
	}
	return ""
}
