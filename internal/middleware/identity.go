package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-backend/internal/model"
)

const userContextKey = "user"

// CurrentUser returns the identity stored by the session gate.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(userContextKey).(*model.User)
	return u, ok && u != nil
}

// SetCurrentUser stores u as the request identity.
func SetCurrentUser(c echo.Context, u *model.User) {
	c.Set(userContextKey, u)
}

// userID is the identity part of rate-limit keys.  Anonymous callers share
// "anon".
func userID(c echo.Context) string {
	if u, ok := CurrentUser(c); ok {
		return strconv.FormatUint(u.ID, 10)
	}
	return "anon"
}
