package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
)

type UserSaver interface {
	Save(ctx context.Context, u *model.User) error
}

type ProductLookup interface {
	GetByID(ctx context.Context, id uint64) (model.Product, error)
	GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Product, error)
}

// CartHandler edits the cart embedded in the authenticated user.  Every
// mutation persists the whole cart through Save.
type CartHandler struct {
	Users    UserSaver
	Products ProductLookup
}

func NewCartHandler(users UserSaver, products ProductLookup) *CartHandler {
	return &CartHandler{Users: users, Products: products}
}

type cartProductReq struct {
	ProductID uint64 `json:"product_id"`
}

type cartQuantityReq struct {
	Quantity *int `json:"quantity"`
}

// List returns the cart lines joined with their products, in cart order.
// Lines whose product has since been deleted are skipped.
func (h *CartHandler) List(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	ids := make([]uint64, len(u.Cart))
	for i, it := range u.Cart {
		ids[i] = it.ProductID
	}
	byID, err := h.Products.GetByIDs(ctx, ids)
	if err != nil {
		return upstreamFailure(c, "cart.products", err)
	}
	out := make([]model.CartProduct, 0, len(u.Cart))
	for _, it := range u.Cart {
		if p, ok := byID[it.ProductID]; ok {
			out = append(out, model.CartProduct{Product: p, Quantity: it.Quantity})
		}
	}
	return c.JSON(http.StatusOK, out)
}

// Add puts one unit of a product in the cart.
func (h *CartHandler) Add(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req cartProductReq
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return jsonError(c, http.StatusBadRequest, "product_id is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := h.Products.GetByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return jsonError(c, http.StatusNotFound, "product not found")
		}
		return upstreamFailure(c, "cart.get_product", err)
	}
	if i, found := u.CartLine(req.ProductID); found {
		u.Cart[i].Quantity++
	} else {
		u.Cart = append(u.Cart, model.CartItem{ProductID: req.ProductID, Quantity: 1})
	}
	return h.save(ctx, c, u)
}

// Remove drops one line, or empties the cart when no product is named.
func (h *CartHandler) Remove(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req cartProductReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if req.ProductID == 0 {
		u.Cart = []model.CartItem{}
	} else if i, found := u.CartLine(req.ProductID); found {
		u.Cart = append(u.Cart[:i], u.Cart[i+1:]...)
	}
	return h.save(ctx, c, u)
}

// UpdateQuantity sets a line's quantity.  Zero removes the line.
func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	u, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid product id")
	}
	var req cartQuantityReq
	if err := c.Bind(&req); err != nil || req.Quantity == nil || *req.Quantity < 0 {
		return jsonError(c, http.StatusBadRequest, "quantity must be zero or more")
	}
	i, found := u.CartLine(id)
	if !found {
		return jsonError(c, http.StatusNotFound, "product not found in cart")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if *req.Quantity == 0 {
		u.Cart = append(u.Cart[:i], u.Cart[i+1:]...)
	} else {
		u.Cart[i].Quantity = *req.Quantity
	}
	return h.save(ctx, c, u)
}

func (h *CartHandler) save(ctx context.Context, c echo.Context, u *model.User) error {
	if err := h.Users.Save(ctx, u); err != nil {
		return upstreamFailure(c, "cart.save", err)
	}
	return c.JSON(http.StatusOK, u.Cart)
}
