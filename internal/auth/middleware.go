package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// Middleware validates the bearer token and stores the client id in the
// echo context.
func (s *Service) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}

		claims, err := s.ParseToken(parts[1])
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set(string(ClientIDKey), claims.ClientID)
		return next(c)
	}
}

// ClientIDFromContext returns the client id set by Middleware.
func ClientIDFromContext(c echo.Context) (string, error) {
	id, ok := c.Get(string(ClientIDKey)).(string)
	if !ok || id == "" {
		return "", errors.New("client ID not found in context")
	}
	return id, nil
}
