package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-backend/internal/handler"
	"github.com/iliyamo/storefront-backend/internal/middleware"
)

// RegisterAuth registers /api/auth.  limit wraps the credential endpoints;
// profile sits behind the session gate.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, gate *middleware.Gate, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/signup", a.Signup, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/logout", a.Logout)
	g.POST("/refresh-token", a.RefreshToken, limit)
	g.GET("/profile", a.Profile, gate.Middleware())
}
