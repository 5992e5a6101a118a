package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-backend/internal/config"
	"github.com/iliyamo/storefront-backend/internal/middleware"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/service"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

// RefreshTokenCookie carries the long-lived refresh token.
const RefreshTokenCookie = "refreshToken"

const minPasswordLen = 6

type CredentialStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	VerifyPassword(u *model.User, plain string) bool
}

type SessionTokens interface {
	Issue(ctx context.Context, userID uint64) (service.TokenPair, error)
	ValidateAndRotateRefresh(ctx context.Context, token string) (utils.SignedToken, error)
	Revoke(ctx context.Context, token string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Users  CredentialStore
	Tokens SessionTokens
	Secure bool // Secure attribute on cookies
	now    func() time.Time
}

func NewAuthHandler(cfg config.Config, users CredentialStore, tokens SessionTokens) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens, Secure: cfg.IsProduction(), now: time.Now}
}

// ----- DTOs -----

type signupReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResp struct {
	ID    uint64     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func toUserResp(u *model.User) userResp {
	return userResp{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Signup creates a customer account and signs it in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = repository.NormalizeEmail(req.Email)
	switch {
	case req.Name == "":
		return jsonError(c, http.StatusBadRequest, "name is required")
	case !validEmail(req.Email):
		return jsonError(c, http.StatusBadRequest, "a valid email is required")
	case len(req.Password) < minPasswordLen:
		return jsonError(c, http.StatusBadRequest, "password must be at least 6 characters long")
	case len(req.Password) > utils.MaxPasswordLen:
		return jsonError(c, http.StatusBadRequest, "password must be at most 72 bytes long")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u := &model.User{Name: req.Name, Email: req.Email, Password: req.Password, Role: model.RoleCustomer}
	if err := h.Users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return jsonError(c, http.StatusBadRequest, "user already exists")
		case errors.Is(err, utils.ErrPasswordTooLong):
			return jsonError(c, http.StatusBadRequest, "password must be at most 72 bytes long")
		}
		return upstreamFailure(c, "signup.create_user", err)
	}
	if err := h.startSession(c, u.ID); err != nil {
		return upstreamFailure(c, "signup.issue_tokens", err)
	}
	return c.JSON(http.StatusCreated, toUserResp(u))
}

// Login verifies credentials and replaces the caller's session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "email and password are required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return jsonError(c, http.StatusBadRequest, "invalid email or password")
		}
		return upstreamFailure(c, "login.get_user", err)
	}
	if !h.Users.VerifyPassword(u, req.Password) {
		return jsonError(c, http.StatusBadRequest, "invalid email or password")
	}
	if err := h.startSession(c, u.ID); err != nil {
		return upstreamFailure(c, "login.issue_tokens", err)
	}
	return c.JSON(http.StatusOK, toUserResp(u))
}

// Logout revokes the refresh token named by the cookie, if any, and clears
// both cookies.  It never fails: a stale or forged cookie is just dropped.
func (h *AuthHandler) Logout(c echo.Context) error {
	if ck, err := c.Cookie(RefreshTokenCookie); err == nil && ck.Value != "" {
		if err := h.Tokens.Revoke(c.Request().Context(), ck.Value); err != nil {
			zap.L().Info("logout revoke skipped", zap.Error(err))
		}
	}
	h.clearCookie(c, middleware.AccessTokenCookie)
	h.clearCookie(c, RefreshTokenCookie)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// RefreshToken mints a new access token from the refresh cookie.  The
// refresh token itself is not rotated.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	ck, err := c.Cookie(RefreshTokenCookie)
	if err != nil || ck.Value == "" {
		return jsonError(c, http.StatusUnauthorized, "no refresh token provided")
	}
	access, err := h.Tokens.ValidateAndRotateRefresh(c.Request().Context(), ck.Value)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrTokenMissing),
		errors.Is(err, service.ErrTokenMismatch),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenInvalid):
		return jsonError(c, http.StatusUnauthorized, "invalid refresh token")
	default:
		return upstreamFailure(c, "refresh_token", err)
	}
	h.setCookie(c, middleware.AccessTokenCookie, access)
	return c.JSON(http.StatusOK, echo.Map{"message": "token refreshed successfully"})
}

// Profile returns the authenticated identity with its cart.
func (h *AuthHandler) Profile(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) startSession(c echo.Context, userID uint64) error {
	pair, err := h.Tokens.Issue(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	h.setCookie(c, middleware.AccessTokenCookie, pair.Access)
	h.setCookie(c, RefreshTokenCookie, pair.Refresh)
	return nil
}

func (h *AuthHandler) setCookie(c echo.Context, name string, tok utils.SignedToken) {
	maxAge := int(tok.Exp.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    tok.Token,
		Path:     "/",
		Expires:  tok.Exp,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}
