package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item owned by a merchant. The pair
// (MerchantID, ExternalID) is unique and identifies the product across
// imports.
type Product struct {
	ID          int64
	MerchantID  int64
	ExternalID  string
	Title       string
	Description string
	ProductType string
	Active      bool
	BasePrice   decimal.Decimal
	CreatedAt   time.Time
}

// Variant is a purchasable configuration of a product. The pair
// (ProductID, ExternalID) is unique.
type Variant struct {
	ID          int64
	ProductID   int64
	ExternalID  string
	Name        string
	SKU         string
	Price       decimal.Decimal
	RetailPrice decimal.Decimal
	Quantity    int64
	Active      bool
}

// Summary is the list projection of a product.
type Summary struct {
	ID        int64
	Title     string
	BasePrice decimal.Decimal
	Active    bool
}

// Detail is a product together with its owning merchant's name and every
// stored variant.
type Detail struct {
	Product
	MerchantName string
	Variants     []Variant
}

// Summary projects the detail onto the list representation.
func (d *Detail) Summary() Summary {
	return Summary{
		ID:        d.ID,
		Title:     d.Title,
		BasePrice: d.BasePrice,
		Active:    d.Active,
	}
}

// ListFilter selects a window of a merchant's products.
type ListFilter struct {
	MerchantID int64
	// Active restricts results to the given state when non-nil.
	Active *bool
	// Search restricts results to titles containing it, case-insensitive.
	Search string
	Limit  int
	Offset int
}

// Repository is the catalog store contract used by Service. Implementations
// must order List results stably so that offsets are consistent across pages.
type Repository interface {
	// List returns the requested window and the total number of matches.
	List(ctx context.Context, f ListFilter) ([]Summary, int, error)
	// GetDetail returns ErrNotFound when no product has the given id.
	GetDetail(ctx context.Context, id int64) (*Detail, error)
	// SetActive applies active to every existing product in ids with a single
	// statement and returns the number of matched rows.
	SetActive(ctx context.Context, ids []int64, active bool) (int64, error)
	// Deactivate sets active=false on one product. It returns ErrNotFound when
	// the product does not exist.
	Deactivate(ctx context.Context, id int64) (*Summary, error)
	// InTx runs fn inside a transaction. The transaction is committed when fn
	// returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of store operations available inside an import transaction.
// Writes rejected by a uniqueness constraint return an error wrapping
// ErrConflict.
type Tx interface {
	GetByExternalID(ctx context.Context, merchantID int64, externalID string) (*Product, error)
	// Create inserts p and fills in its ID and CreatedAt.
	Create(ctx context.Context, p *Product) error
	UpdateMetadata(ctx context.Context, p *Product) error
	VariantExternalIDs(ctx context.Context, productID int64) ([]string, error)
	CreateVariants(ctx context.Context, variants []Variant) error
	SetBasePrice(ctx context.Context, productID int64, price decimal.Decimal) error
	GetDetail(ctx context.Context, id int64) (*Detail, error)
}
