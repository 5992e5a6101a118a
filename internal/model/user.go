package model

import "time"

// Role is a flat, closed set of permission tags.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// User mirrors a row of the `users` table plus its cart lines.
//
// Password carries a new plaintext between the handler and the store.  It
// is never persisted: Create and Save hash it and clear it.
type User struct {
	ID           uint64     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Password     string     `json:"-"`
	Role         Role       `json:"role"`
	Cart         []CartItem `json:"cart_items"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CartItem is one line of a user's cart.  Quantity is always >= 1 in a
// persisted cart.
type CartItem struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartLine finds the cart entry for productID.
func (u *User) CartLine(productID uint64) (int, bool) {
	for i, it := range u.Cart {
		if it.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}
