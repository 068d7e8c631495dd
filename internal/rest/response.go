package rest

import (
	"shopsense/domain"

	"github.com/labstack/echo/v4"
)

type ResponseError struct {
	Message string `json:"message"`
}

// identityFrom reads the requester identity resolved by the auth middleware.
func identityFrom(c echo.Context) domain.Identity {
	if userID, ok := c.Get("user_id").(uint); ok && userID != 0 {
		return domain.Identity{UserID: userID}
	}
	if sessionID, ok := c.Get("session_id").(string); ok {
		return domain.Identity{SessionID: sessionID}
	}
	return domain.Identity{}
}
