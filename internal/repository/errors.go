// Package repository holds the MySQL and Redis stores.  Stores return the
// sentinel errors below for conditions handlers translate to HTTP statuses;
// anything else is wrapped and treated as an upstream failure.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is the generic missing-row error.  Every per-entity
	// not-found error wraps it.
	ErrNotFound = errors.New("not found")

	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrCouponNotFound  = fmt.Errorf("coupon %w", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)

	ErrEmailExists = errors.New("email already exists")

	// ErrConflict is returned when a write collides with existing state,
	// such as a duplicate unique key.
	ErrConflict = errors.New("conflict")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
