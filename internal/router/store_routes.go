package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-backend/internal/handler"
	"github.com/iliyamo/storefront-backend/internal/middleware"
	"github.com/iliyamo/storefront-backend/internal/model"
)

// RegisterCatalog registers /api/products.  Reads are public; writes and
// the full listing need an admin.  cache fronts the category listing.
func RegisterCatalog(e *echo.Echo, p *handler.ProductHandler, gate *middleware.Gate, cache echo.MiddlewareFunc) {
	admin := []echo.MiddlewareFunc{gate.Middleware(), middleware.RequireRole(model.RoleAdmin)}

	g := e.Group("/api/products")
	g.GET("", p.List, admin...)
	g.GET("/featured", p.Featured)
	g.GET("/recommendations", p.Recommendations)
	g.GET("/category/:category", p.ByCategory, cache)
	g.POST("", p.Create, admin...)
	g.PATCH("/:id", p.ToggleFeatured, admin...)
	g.DELETE("/:id", p.Delete, admin...)
}

// RegisterCustomer registers the cart, coupon and payment endpoints.  All
// of them need a session; any role may use them.
func RegisterCustomer(e *echo.Echo, cart *handler.CartHandler, coupons *handler.CouponHandler, pay *handler.PaymentHandler, gate *middleware.Gate) {
	c := e.Group("/api/cart", gate.Middleware())
	c.GET("", cart.List)
	c.POST("", cart.Add)
	c.DELETE("", cart.Remove)
	c.PUT("/:id", cart.UpdateQuantity)

	cp := e.Group("/api/coupons", gate.Middleware())
	cp.GET("", coupons.Get)
	cp.POST("/validate", coupons.Validate)

	p := e.Group("/api/payments", gate.Middleware())
	p.POST("/create-checkout-session", pay.CreateCheckoutSession)
	p.POST("/checkout-success", pay.CheckoutSuccess)
}

// RegisterAdmin registers the admin dashboard endpoints.
func RegisterAdmin(e *echo.Echo, a *handler.AnalyticsHandler, gate *middleware.Gate) {
	g := e.Group("/api/analytics", gate.Middleware(), middleware.RequireRole(model.RoleAdmin))
	g.GET("", a.Get)
}
