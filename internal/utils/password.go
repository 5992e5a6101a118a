package utils

import "golang.org/x/crypto/bcrypt"

// MaxPasswordLen is the longest input bcrypt accepts, in bytes.
const MaxPasswordLen = 72

// ErrPasswordTooLong is returned by HashPassword for inputs over
// MaxPasswordLen bytes.  It is bcrypt's own error value.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword returns a bcrypt hash using the given cost.  Costs below
// bcrypt.DefaultCost are raised to it.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}
	if cost < bcrypt.DefaultCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares a bcrypt hash and a plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
