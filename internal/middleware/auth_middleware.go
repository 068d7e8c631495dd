package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"shopsense/pkg/logger"
	jsonres "shopsense/pkg/response"
	"shopsense/pkg/utils"
)

// SessionCookie carries the anonymous session id so guests keep a stable
// identity across requests.
const SessionCookie = "ss_session"

// AuthMiddleware requires a valid bearer token and sets user_id on the
// context.
func AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Missing authorization header", nil,
				))
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid authorization format", nil,
				))
			}

			tokenString := tokenParts[1]

			claims, err := utils.ParseJWT(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, jsonres.Error(
					"UNAUTHORIZED", "Invalid token", nil,
				))
			}

			expAt, err := claims.GetExpirationTime()
			if err != nil {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Status Forbidden", nil,
				))
			}

			if time.Now().After(expAt.Time) {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Token expired", nil,
				))
			}

			userIDUint, err := strconv.ParseUint(claims.UserID, 10, 64)
			if err != nil {
				logger.Error("invalid user id in token", "error", err)
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Invalid user ID in token", nil,
				))
			}

			c.Set("user_id", uint(userIDUint))
			c.Set("role", claims.Role)
			c.Set("token", tokenString)

			return next(c)
		}
	}
}

// OptionalAuth resolves the requester identity without requiring a login. A
// valid bearer token sets user_id; otherwise the guest gets a session cookie
// and session_id is set. An invalid token falls back to guest rather than
// failing: recommendations are served to everyone.
func OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader != "" {
				tokenParts := strings.Split(authHeader, " ")
				if len(tokenParts) == 2 && tokenParts[0] == "Bearer" {
					if claims, err := utils.ParseJWT(tokenParts[1]); err == nil {
						if expAt, err := claims.GetExpirationTime(); err == nil && time.Now().Before(expAt.Time) {
							if userIDUint, err := strconv.ParseUint(claims.UserID, 10, 64); err == nil {
								c.Set("user_id", uint(userIDUint))
								c.Set("role", claims.Role)
								return next(c)
							}
						}
					}
				}
			}

			cookie, err := c.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				cookie = &http.Cookie{
					Name:     SessionCookie,
					Value:    uuid.NewString(),
					Path:     "/",
					HttpOnly: true,
					MaxAge:   int((90 * 24 * time.Hour).Seconds()),
				}
				c.SetCookie(cookie)
			}
			c.Set("session_id", cookie.Value)

			return next(c)
		}
	}
}

func AdminOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := c.Get("role")
			roleStr, ok := role.(string)
			if !ok || strings.ToUpper(roleStr) != "ADMIN" {
				return c.JSON(http.StatusForbidden, jsonres.Error(
					"FORBIDDEN", "Admin access required", nil,
				))
			}

			return next(c)
		}
	}
}
