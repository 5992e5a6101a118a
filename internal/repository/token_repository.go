package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTokenRecordMissing is returned by Get when no record exists.
var ErrTokenRecordMissing = errors.New("refresh token record missing")

// TokenRepo keeps one revocation record per user: the exact refresh token
// string currently allowed to mint access tokens.  Writes overwrite, so
// the last issued token wins.
type TokenRepo struct{ RDB redis.Cmdable }

func NewTokenRepo(rdb redis.Cmdable) *TokenRepo { return &TokenRepo{RDB: rdb} }

func refreshKey(userID uint64) string {
	return "refresh_token:" + strconv.FormatUint(userID, 10)
}

// Set stores token for userID with the given ttl, replacing any previous one.
func (r *TokenRepo) Set(ctx context.Context, userID uint64, token string, ttl time.Duration) error {
	if err := r.RDB.Set(ctx, refreshKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Get returns the stored token for userID.
func (r *TokenRepo) Get(ctx context.Context, userID uint64) (string, error) {
	v, err := r.RDB.Get(ctx, refreshKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenRecordMissing
	}
	if err != nil {
		return "", fmt.Errorf("load refresh token: %w", err)
	}
	return v, nil
}

// Delete removes the record.  Deleting an absent record is not an error.
func (r *TokenRepo) Delete(ctx context.Context, userID uint64) error {
	if err := r.RDB.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
