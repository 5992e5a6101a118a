package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/storefront-backend/internal/model"
)

// ProductRepo provides CRUD over the products table.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productColumns = "id,name,description,price_cents,image_url,image_public_id,category,is_featured,created_at,updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (model.Product, error) {
	var p model.Product
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.ImageURL,
		&p.ImagePublicID, &p.Category, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProductRepo) list(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// List returns every product, newest first.
func (r *ProductRepo) List(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products ORDER BY id DESC")
}

// ListFeatured returns products flagged as featured.
func (r *ProductRepo) ListFeatured(ctx context.Context) ([]model.Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products WHERE is_featured=1 ORDER BY id DESC")
}

// ListByCategory returns the products of one category.
func (r *ProductRepo) ListByCategory(ctx context.Context, category string) ([]model.Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products WHERE category=? ORDER BY id DESC",
		strings.ToLower(strings.TrimSpace(category)))
}

// Sample returns up to n random products.
func (r *ProductRepo) Sample(ctx context.Context, n int) ([]model.Product, error) {
	return r.list(ctx, "SELECT "+productColumns+" FROM products ORDER BY RAND() LIMIT ?", n)
}

// GetByID returns ErrProductNotFound when no row matches.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrProductNotFound
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetByIDs returns the products among ids that exist, keyed by id.
func (r *ProductRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Product, error) {
	out := make(map[uint64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	list, err := r.list(ctx, "SELECT "+productColumns+" FROM products WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.ID] = p
	}
	return out, nil
}

// Create inserts p and sets its ID.  Category is stored lower-cased.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO products (name, description, price_cents, image_url, image_public_id, category, is_featured) VALUES (?,?,?,?,?,?,?)",
		p.Name, p.Description, p.PriceCents, p.ImageURL, p.ImagePublicID, p.Category, p.IsFeatured)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.ID = uint64(id)
	return nil
}

// Delete removes a product.  Cart lines go with it through the foreign key.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ToggleFeatured flips is_featured and returns the updated product.
func (r *ProductRepo) ToggleFeatured(ctx context.Context, id uint64) (model.Product, error) {
	res, err := r.DB.ExecContext(ctx, "UPDATE products SET is_featured = NOT is_featured WHERE id=?", id)
	if err != nil {
		return model.Product{}, fmt.Errorf("toggle featured: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Product{}, ErrProductNotFound
	}
	return r.GetByID(ctx, id)
}
