package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

// UserRepo is the credential store.  It owns the users and cart_items tables.
type UserRepo struct {
	DB         *sql.DB
	BcryptCost int
}

func NewUserRepo(db *sql.DB, bcryptCost int) *UserRepo {
	return &UserRepo{DB: db, BcryptCost: bcryptCost}
}

// NormalizeEmail lower-cases and trims an address before any lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create hashes u.Password, inserts the user and fills in its ID.  A
// duplicate email yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	hash, err := utils.HashPassword(u.Password, r.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?,?,?,?)",
		u.Name, u.Email, hash, string(u.Role))
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = uint64(id)
	u.PasswordHash = hash
	u.Password = ""
	u.Cart = []model.CartItem{}
	return nil
}

const userColumns = "id,name,email,password_hash,role,created_at,updated_at"

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

// GetByEmail fetches a user by normalized email, without its cart.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)))
}

// GetByID fetches a user and its cart.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, err
	}
	if u.Cart, err = r.loadCart(ctx, id); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) loadCart(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT product_id, quantity FROM cart_items WHERE user_id=? ORDER BY position", userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	defer rows.Close()
	cart := []model.CartItem{}
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart = append(cart, it)
	}
	return cart, rows.Err()
}

// VerifyPassword checks plain against the stored hash.
func (r *UserRepo) VerifyPassword(u *model.User, plain string) bool {
	return utils.VerifyPassword(u.PasswordHash, plain)
}

// Save persists the profile, role, a new password when u.Password is set,
// and the whole cart, in one transaction.  Lines with a non-positive
// quantity are dropped.
func (r *UserRepo) Save(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Password != "" {
		hash, err := utils.HashPassword(u.Password, r.BcryptCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
		u.Password = ""
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"UPDATE users SET name=?, email=?, password_hash=?, role=? WHERE id=?",
		u.Name, u.Email, u.PasswordHash, string(u.Role), u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for unchanged rows too, so confirm existence.
		var one int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", u.ID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("check user: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id=?", u.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	kept := u.Cart[:0]
	for _, it := range u.Cart {
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	u.Cart = kept
	for i, it := range u.Cart {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO cart_items (user_id, product_id, quantity, position) VALUES (?,?,?,?)",
			u.ID, it.ProductID, it.Quantity, i); err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save user: %w", err)
	}
	return nil
}
