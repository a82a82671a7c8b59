package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// authMiddleware checks for valid session token
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Get token from Authorization header
		auth := c.Request().Header.Get("Authorization")
		if auth == "" {
			return errorJSON(c, http.StatusUnauthorized, "authorization required")
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token == "" {
			return errorJSON(c, http.StatusUnauthorized, "invalid authorization format")
		}

		// Validate session
		session, err := s.store.Session(c.Request().Context(), token)
		if err != nil {
			return errorJSON(c, http.StatusUnauthorized, "invalid token")
		}

		if s.now().After(session.ExpiresAt) {
			return errorJSON(c, http.StatusUnauthorized, "token expired")
		}

		// Add user ID to context
		c.Set("user_id", session.UserID)
		c.Set("token", token)
		return next(c)
	}
}
