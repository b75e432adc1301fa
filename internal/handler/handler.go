// Package handler exposes the catalog operations over HTTP.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xenking/merchant-catalog/internal/domain/product"
)

// Catalog is the set of product operations served over HTTP.
type Catalog interface {
	ImportProduct(ctx context.Context, req *product.ImportRequest) (*product.ImportResult, error)
	ListProducts(ctx context.Context, q product.ListQuery) (*product.Page, error)
	GetProductDetail(ctx context.Context, id int64) (*product.Detail, error)
	BulkSetActive(ctx context.Context, ids []int64, active bool) (int64, error)
	DeactivateProduct(ctx context.Context, id int64) (*product.Summary, error)
}

var _ Catalog = (*product.Service)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes limits request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the product API.
type Handler struct {
	catalog      Catalog
	maxBodyBytes int64
}

// NewHandler constructs a Handler delegating to catalog.
func NewHandler(cfg HandlerConfig, catalog Catalog) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		catalog:      catalog,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Routes returns the product API router. Trailing slashes are ignored.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/import", h.ImportProduct)
		r.Post("/bulk-activate", h.BulkActivate)
		r.Get("/{id}", h.GetProduct)
		r.Post("/{id}/remove", h.RemoveProduct)
	})
	return r
}
