package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-backend/internal/middleware"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/observability"
)

// requestTimeout bounds the store calls of a single request.
const requestTimeout = 5 * time.Second

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// upstreamFailure logs err, reports it to Sentry and answers 500 without
// leaking the cause.
func upstreamFailure(c echo.Context, op string, err error) error {
	zap.L().Error("upstream failure",
		zap.String("op", op),
		zap.String("path", c.Request().URL.Path),
		zap.Error(err))
	observability.CaptureRequestError(c.Request(), op, err)
	return jsonError(c, http.StatusInternalServerError, "internal server error")
}

// currentUser returns the identity the session gate stored.  Routes using
// it are mounted behind the gate, so a miss is answered as unauthenticated.
func currentUser(c echo.Context) (*model.User, bool) {
	return middleware.CurrentUser(c)
}

func unauthorized(c echo.Context) error {
	return jsonError(c, http.StatusUnauthorized, "unauthorized")
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
