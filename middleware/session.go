package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/presh-ai/training-portal/services"
)

// SessionContextKey is where RequireSession stores the authenticated session
// on the echo context.
const SessionContextKey = "session"

// RequireSession guards a route group behind an authenticated session. It
// resolves the session cookie against the store and short-circuits with 401
// when there is no session or the session carries no identity.
func RequireSession(sessions *services.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(services.SessionCookieName)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication_required"})
			}

			session, err := sessions.Get(c.Request().Context(), cookie.Value)
			if err != nil || !session.Authenticated() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication_required"})
			}

			c.Set(SessionContextKey, session)
			return next(c)
		}
	}
}
