package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/observability"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/service"
)

// AccessTokenCookie carries the short-lived access token.
const AccessTokenCookie = "accessToken"

// Rejection reasons.  Clients always see the same 401 body; the reason is
// only logged and counted.
const (
	ReasonNoCredential     = "no_credential"
	ReasonExpired          = "expired"
	ReasonInvalid          = "invalid"
	ReasonIdentityNotFound = "identity_not_found"
)

// Rejection is returned by Gate.Authenticate when the caller is not
// authenticated.
type Rejection struct {
	Reason string
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return "unauthenticated: " + r.Reason + ": " + r.Err.Error()
	}
	return "unauthenticated: " + r.Reason
}

func (r *Rejection) Unwrap() error { return r.Err }

type AccessValidator interface {
	ValidateAccess(token string) (uint64, error)
}

type IdentityLoader interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// Gate turns an access token into a loaded identity.
type Gate struct {
	tokens AccessValidator
	users  IdentityLoader
}

func NewGate(tokens AccessValidator, users IdentityLoader) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate reads the access cookie, falling back to a Bearer header,
// and loads the identity it names.  A *Rejection means unauthenticated;
// any other error is a store failure.
func (g *Gate) Authenticate(ctx context.Context, r *http.Request) (*model.User, error) {
	raw := accessToken(r)
	if raw == "" {
		return nil, &Rejection{Reason: ReasonNoCredential}
	}
	id, err := g.tokens.ValidateAccess(raw)
	if err != nil {
		if errors.Is(err, service.ErrTokenExpired) {
			return nil, &Rejection{Reason: ReasonExpired, Err: err}
		}
		return nil, &Rejection{Reason: ReasonInvalid, Err: err}
	}
	u, err := g.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, &Rejection{Reason: ReasonIdentityNotFound, Err: err}
		}
		return nil, err
	}
	return u, nil
}

func accessToken(r *http.Request) string {
	if ck, err := r.Cookie(AccessTokenCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Middleware protects a route group.  The loaded identity is stored in the
// context under "user".
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			u, err := g.Authenticate(req.Context(), req)
			if err != nil {
				var rej *Rejection
				if errors.As(err, &rej) {
					metrics.AuthRejections.WithLabelValues(rej.Reason).Inc()
					zap.L().Info("request rejected by session gate",
						zap.String("reason", rej.Reason),
						zap.String("path", req.URL.Path),
						zap.String("ip", c.RealIP()))
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
				}
				zap.L().Error("session gate identity lookup failed", zap.Error(err))
				observability.CaptureRequestError(req, "session_gate", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			SetCurrentUser(c, u)
			return next(c)
		}
	}
}
