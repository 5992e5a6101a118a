package utils // package utils provides helpers for token signing and password hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SignedToken is a serialized JWT and its expiry.
type SignedToken struct {
	Token string
	Exp   time.Time
}

// Claims is the payload shared by access and refresh tokens.  The two
// kinds are told apart by the secret they are signed with, never by a claim.
type Claims struct {
	UserID uint64 `json:"uid"`
	jwt.RegisteredClaims
}

// SignToken builds and signs an HS256 JWT for userID valid for ttl from now.
// Every token carries a random jti, so two tokens minted for the same user in
// the same second still differ.
func SignToken(secret []byte, userID uint64, now time.Time, ttl time.Duration) (SignedToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// ErrNoSubject is returned when a token verifies but names no user.
var ErrNoSubject = errors.New("token has no user id")

// ParseToken verifies raw with secret and returns its claims.  Only HMAC
// signatures are accepted.  Extra parser options (clock, skipping claim
// validation) are passed through to jwt.
func ParseToken(secret []byte, raw string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append([]jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}, opts...)
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrNoSubject
	}
	return claims, nil
}
