// Package service holds the token lifecycle and the clients for the
// external services the storefront talks to (Stripe, Cloudinary, RabbitMQ).
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

// Token rejection reasons.  Callers map all of them to 401; the distinction
// is for logs and metrics.
var (
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenMissing  = errors.New("refresh token not on record")
	ErrTokenMismatch = errors.New("refresh token does not match record")
)

// storeTimeout bounds every revocation store call.
const storeTimeout = 5 * time.Second

// RevocationStore holds the single live refresh token per user.
// repository.TokenRepo is the Redis implementation.
type RevocationStore interface {
	Set(ctx context.Context, userID uint64, token string, ttl time.Duration) error
	Get(ctx context.Context, userID uint64) (string, error)
	Delete(ctx context.Context, userID uint64) error
}

// TokenPair is what Issue hands back to the transport layer.
type TokenPair struct {
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

// TokenService mints, validates and revokes access/refresh tokens.
//
// Access tokens are stateless: only signature and expiry are checked.
// A refresh token is honoured only while the store holds exactly that
// token for its user, so issuing a new pair or revoking cuts off the old
// refresh token immediately.
type TokenService struct {
	store         RevocationStore
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now for signing and validation.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(store RevocationStore, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) *TokenService {
	s := &TokenService{
		store:         store,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// detached keeps store I/O alive when the caller's request is cancelled,
// so a token is never handed out without its record (or the reverse).
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
}

// Issue mints a pair for userID and records the refresh token, replacing
// any previous one.  Tokens are returned only after the record is written.
func (s *TokenService) Issue(ctx context.Context, userID uint64) (TokenPair, error) {
	now := s.now()
	access, err := utils.SignToken(s.accessSecret, userID, now, s.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := utils.SignToken(s.refreshSecret, userID, now, s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.store.Set(ctx, userID, refresh.Token, s.refreshTTL); err != nil {
		metrics.TokenOperations.WithLabelValues("issue", "error").Inc()
		return TokenPair{}, err
	}
	metrics.TokenOperations.WithLabelValues("issue", "ok").Inc()
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateAccess checks signature and expiry and returns the user id.
// It never touches the store.
func (s *TokenService) ValidateAccess(token string) (uint64, error) {
	return s.parse(s.accessSecret, token, true)
}

// ValidateAndRotateRefresh accepts a refresh token that verifies and
// matches the stored record byte for byte, and returns a fresh access
// token.  The refresh token itself is left as is.
func (s *TokenService) ValidateAndRotateRefresh(ctx context.Context, token string) (utils.SignedToken, error) {
	userID, err := s.parse(s.refreshSecret, token, true)
	if err != nil {
		metrics.TokenOperations.WithLabelValues("refresh", reasonLabel(err)).Inc()
		return utils.SignedToken{}, err
	}

	ctx, cancel := detached(ctx)
	defer cancel()
	stored, err := s.store.Get(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrTokenRecordMissing):
		err = ErrTokenMissing
	case err != nil:
		metrics.TokenOperations.WithLabelValues("refresh", "error").Inc()
		return utils.SignedToken{}, err
	case stored != token:
		err = ErrTokenMismatch
	}
	if err != nil {
		metrics.TokenOperations.WithLabelValues("refresh", reasonLabel(err)).Inc()
		return utils.SignedToken{}, err
	}

	access, err := utils.SignToken(s.accessSecret, userID, s.now(), s.accessTTL)
	if err != nil {
		return utils.SignedToken{}, fmt.Errorf("sign access token: %w", err)
	}
	metrics.TokenOperations.WithLabelValues("refresh", "ok").Inc()
	return access, nil
}

// Revoke deletes the record of the user named by a refresh token.  Expired
// tokens are accepted; the signature must still verify.  Revoking twice
// is not an error.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	userID, err := s.parse(s.refreshSecret, token, false)
	if err != nil {
		metrics.TokenOperations.WithLabelValues("revoke", reasonLabel(err)).Inc()
		return err
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.store.Delete(ctx, userID); err != nil {
		metrics.TokenOperations.WithLabelValues("revoke", "error").Inc()
		return err
	}
	metrics.TokenOperations.WithLabelValues("revoke", "ok").Inc()
	return nil
}

func (s *TokenService) parse(secret []byte, token string, validateClaims bool) (uint64, error) {
	if token == "" {
		return 0, ErrTokenInvalid
	}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims, err := utils.ParseToken(secret, token, opts...)
	switch {
	case err == nil:
		return claims.UserID, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return 0, ErrTokenExpired
	default:
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

// reasonLabel maps a token error to a short metric label.
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenMissing):
		return "missing"
	case errors.Is(err, ErrTokenMismatch):
		return "mismatch"
	case errors.Is(err, ErrTokenInvalid):
		return "invalid"
	}
	return "error"
}
