package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/service"
)

const recommendationCount = 3

type ProductStore interface {
	List(ctx context.Context) ([]model.Product, error)
	ListFeatured(ctx context.Context) ([]model.Product, error)
	ListByCategory(ctx context.Context, category string) ([]model.Product, error)
	Sample(ctx context.Context, n int) ([]model.Product, error)
	GetByID(ctx context.Context, id uint64) (model.Product, error)
	Create(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id uint64) error
	ToggleFeatured(ctx context.Context, id uint64) (model.Product, error)
}

type FeaturedStore interface {
	Get(ctx context.Context) ([]model.Product, error)
	Set(ctx context.Context, products []model.Product) error
	Invalidate(ctx context.Context) error
}

type ImageStore interface {
	UploadImage(ctx context.Context, src string) (service.UploadedImage, error)
	DestroyImage(ctx context.Context, publicID string) error
}

// ListingCache drops cached catalog listing responses.
type ListingCache interface {
	Purge(ctx context.Context) error
}

// ProductHandler serves the catalog.  Images may be nil, in which case the
// image field of a new product is stored as given.
type ProductHandler struct {
	Products ProductStore
	Cache    FeaturedStore
	Images   ImageStore
	Listings ListingCache // optional
}

func NewProductHandler(products ProductStore, featured FeaturedStore, images ImageStore) *ProductHandler {
	return &ProductHandler{Products: products, Cache: featured, Images: images}
}

type createProductReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	products, err := h.Products.List(ctx)
	if err != nil {
		return upstreamFailure(c, "products.list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

// Featured is a cache-aside read: Redis first, MySQL on a miss, then the
// cache is filled.  A broken cache degrades to a database read.
func (h *ProductHandler) Featured(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	cached, err := h.Cache.Get(ctx)
	switch {
	case err == nil:
		metrics.FeaturedCacheLookups.WithLabelValues("hit").Inc()
		return c.JSON(http.StatusOK, cached)
	case errors.Is(err, repository.ErrCacheMiss):
		metrics.FeaturedCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.FeaturedCacheLookups.WithLabelValues("error").Inc()
		zap.L().Warn("featured cache read failed", zap.Error(err))
	}

	products, err := h.Products.ListFeatured(ctx)
	if err != nil {
		return upstreamFailure(c, "products.featured", err)
	}
	if err := h.Cache.Set(ctx, products); err != nil {
		zap.L().Warn("featured cache fill failed", zap.Error(err))
	}
	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) Recommendations(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	products, err := h.Products.Sample(ctx, recommendationCount)
	if err != nil {
		return upstreamFailure(c, "products.recommendations", err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) ByCategory(c echo.Context) error {
	category := strings.TrimSpace(c.Param("category"))
	if category == "" {
		return jsonError(c, http.StatusBadRequest, "category is required")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	products, err := h.Products.ListByCategory(ctx, category)
	if err != nil {
		return upstreamFailure(c, "products.by_category", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"products": products})
}

// Create stores a product, uploading its image to Cloudinary first.
func (h *ProductHandler) Create(c echo.Context) error {
	var req createProductReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	switch {
	case req.Name == "":
		return jsonError(c, http.StatusBadRequest, "name is required")
	case req.PriceCents <= 0:
		return jsonError(c, http.StatusBadRequest, "price_cents must be positive")
	case req.Category == "":
		return jsonError(c, http.StatusBadRequest, "category is required")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	p := model.Product{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		ImageURL:    req.Image,
	}
	if req.Image != "" && h.Images != nil {
		img, err := h.Images.UploadImage(ctx, req.Image)
		if err != nil {
			return upstreamFailure(c, "products.upload_image", err)
		}
		p.ImageURL, p.ImagePublicID = img.URL, img.PublicID
	}
	if err := h.Products.Create(ctx, &p); err != nil {
		return upstreamFailure(c, "products.create", err)
	}
	h.afterWrite(ctx)
	return c.JSON(http.StatusCreated, p)
}

// Delete removes the product's image, then the product.  A failed image
// delete only leaves an orphan in Cloudinary.
func (h *ProductHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid product id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return jsonError(c, http.StatusNotFound, "product not found")
		}
		return upstreamFailure(c, "products.get", err)
	}
	if p.ImagePublicID != "" && h.Images != nil {
		if err := h.Images.DestroyImage(ctx, p.ImagePublicID); err != nil {
			zap.L().Warn("delete product image failed",
				zap.Uint64("product_id", id), zap.String("public_id", p.ImagePublicID), zap.Error(err))
		}
	}
	if err := h.Products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return jsonError(c, http.StatusNotFound, "product not found")
		}
		return upstreamFailure(c, "products.delete", err)
	}
	h.afterWrite(ctx)
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted successfully"})
}

func (h *ProductHandler) ToggleFeatured(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid product id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	p, err := h.Products.ToggleFeatured(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return jsonError(c, http.StatusNotFound, "product not found")
		}
		return upstreamFailure(c, "products.toggle_featured", err)
	}
	h.afterWrite(ctx)
	return c.JSON(http.StatusOK, p)
}

// afterWrite keeps both catalog caches in step with MySQL.
func (h *ProductHandler) afterWrite(ctx context.Context) {
	h.refreshFeatured(ctx)
	if h.Listings == nil {
		return
	}
	if err := h.Listings.Purge(ctx); err != nil {
		zap.L().Error("listing cache purge failed", zap.Error(err))
	}
}

// refreshFeatured rewrites the featured cache from MySQL.  When that is not
// possible the entry is dropped so the next read repopulates it.
func (h *ProductHandler) refreshFeatured(ctx context.Context) {
	products, err := h.Products.ListFeatured(ctx)
	if err == nil {
		err = h.Cache.Set(ctx, products)
	}
	if err == nil {
		return
	}
	zap.L().Warn("featured cache refresh failed, invalidating", zap.Error(err))
	if err := h.Cache.Invalidate(ctx); err != nil {
		zap.L().Error("featured cache invalidate failed", zap.Error(err))
	}
}
