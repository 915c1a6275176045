package echoapi

import (
	"github.com/labstack/echo/v4"
)

// roleMiddleware lets through the users whose claims pass allowed.
func roleMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHTTPForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(c Claims) bool { return c.IsAdmin })
}

func teacherMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(c Claims) bool { return c.IsTeacher })
}

func staffMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(func(c Claims) bool { return c.IsTeacher || c.IsAdmin })
}
