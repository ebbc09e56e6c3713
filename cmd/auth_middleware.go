package cmd

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"groupsyncservice/auth"
)

// authMiddleware accepts either a matching x-api-key header or a valid
// Bearer token from /v1/api/login. With neither configured, all requests
// to protected endpoints are rejected.
func (s *apiServer) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.apiKey != "" {
				key := c.Request().Header.Get("x-api-key")
				if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) == 1 {
					return next(c)
				}
			}

			if s.jwtSecret != "" {
				header := c.Request().Header.Get(echo.HeaderAuthorization)
				if token, ok := strings.CutPrefix(header, "Bearer "); ok {
					claims, err := auth.ValidateToken(token, s.jwtSecret)
					if err != nil {
						return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
					}
					c.Set("user_id", claims.UserID)
					c.Set("username", claims.Username)
					c.Set("role", claims.Role)
					return next(c)
				}
			}

			return echo.NewHTTPError(http.StatusUnauthorized, "Missing x-api-key header or Bearer token")
		}
	}
}

// requireAdmin ensures only admin users can access. API-key callers pass:
// the key grants full access.
func (s *apiServer) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, _ := c.Get("role").(string)
		if role != "" && role != auth.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
		}
		return next(c)
	}
}

// requestUsername returns the authenticated operator, or a placeholder for
// api-key callers.
func requestUsername(c echo.Context) string {
	if username, ok := c.Get("username").(string); ok && username != "" {
		return username
	}
	return "api-key"
}
