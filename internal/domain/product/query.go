package product

import (
	"context"
	"math"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
)

// ListQuery selects a page of a merchant's products.
type ListQuery struct {
	// MerchantID is required; a nil value is rejected before any query runs.
	MerchantID *int64
	Active     *bool
	Search     string
	// Page is 1-based. Zero means the first page.
	Page int
	// PageSize falls back to the service default when not positive and is
	// capped at the service maximum.
	PageSize int
}

// Page is one window of a product listing.
type Page struct {
	Items    []Summary
	Count    int
	Page     int
	PageSize int
}

// HasNext reports whether products exist after this page.
func (p *Page) HasNext() bool {
	if p.PageSize <= 0 || p.Count == 0 {
		return false
	}
	return p.Page <= (p.Count-1)/p.PageSize
}

// HasPrevious reports whether this is not the first page.
func (p *Page) HasPrevious() bool { return p.Page > 1 }

// ParseActiveFilter interprets "true" and "false" case-insensitively. Any
// other value means no filter.
func ParseActiveFilter(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

// ListProducts returns the requested page of a merchant's products in a
// stable order. Pages past the end are empty.
func (s *Service) ListProducts(ctx context.Context, q ListQuery) (*Page, error) {
	verr := &ValidationError{}
	if q.MerchantID == nil {
		verr.Add("merchant_id", "merchant_id query parameter is required")
	}
	if q.Page < 0 {
		verr.Add("page", "Invalid page.")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	page := max(q.Page, 1)
	size := q.PageSize
	if size <= 0 {
		size = s.defaultPageSize
	}
	size = min(size, s.maxPageSize)

	ctx, span := s.tracer.Start(ctx, "product.List")
	defer span.End()

	if _, err := s.merchants.GetByID(ctx, *q.MerchantID); err != nil {
		if errors.Is(err, merchant.ErrNotFound) {
			return nil, &MerchantNotFoundError{ID: *q.MerchantID}
		}
		return nil, errors.Wrap(err, "get merchant")
	}

	items, count, err := s.products.List(ctx, ListFilter{
		MerchantID: *q.MerchantID,
		Active:     q.Active,
		Search:     searchTerm(q.Search),
		Limit:      size,
		Offset:     pageOffset(page, size),
	})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if items == nil {
		items = []Summary{}
	}

	return &Page{
		Items:    items,
		Count:    count,
		Page:     page,
		PageSize: size,
	}, nil
}

// pageOffset saturates at math.MaxInt instead of overflowing, so absurd page
// numbers land past the end of any listing.
func pageOffset(page, size int) int {
	if page-1 > math.MaxInt/size {
		return math.MaxInt
	}
	return (page - 1) * size
}

// searchTerm drops NUL bytes, which Postgres rejects in text values.
func searchTerm(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// GetProductDetail returns a product with its variants and merchant name. The
// lookup is not scoped to a merchant.
func (s *Service) GetProductDetail(ctx context.Context, id int64) (*Detail, error) {
	d, err := s.products.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return d, nil
}
