package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-backend/internal/model"
)

var productCols = []string{"id", "name", "description", "price_cents", "image_url", "image_public_id", "category", "is_featured", "created_at", "updated_at"}

func TestProductRepoGetByIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id IN (?,?)")).
		WithArgs(uint64(1), uint64(2)).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "Shoe", "d", 4999, "u", "p", "shoes", false, now, now))

	got, err := repo.GetByIDs(context.Background(), []uint64{1, 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(4999), got[1].PriceCents)
}

func TestProductRepoCreateLowercasesCategory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)
	mock.ExpectExec("INSERT INTO products").
		WithArgs("Cap", "wool", int64(1500), "", "", "hats", false).
		WillReturnResult(sqlmock.NewResult(12, 1))

	p := &model.Product{Name: "Cap", Description: "wool", PriceCents: 1500, Category: " Hats "}
	require.NoError(t, repo.Create(context.Background(), p))
	require.Equal(t, uint64(12), p.ID)
	require.Equal(t, "hats", p.Category)
}

func TestProductRepoDeleteNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM products WHERE id=?")).
		WithArgs(uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.Delete(context.Background(), 4), ErrProductNotFound)
}

func TestProductRepoToggleFeatured(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepo(db)
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET is_featured = NOT is_featured WHERE id=?")).
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM products WHERE id=\\?").
		WithArgs(uint64(8)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(8, "Bag", "d", 9000, "", "", "bags", true, now, now))

	p, err := repo.ToggleFeatured(context.Background(), 8)
	require.NoError(t, err)
	require.True(t, p.IsFeatured)
}
