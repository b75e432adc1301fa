package merchant

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested merchant does not exist.
var ErrNotFound = errors.New("merchant not found")

// Merchant is a tenant owning a catalog of products. Merchants are
// provisioned administratively and never mutated by catalog operations.
type Merchant struct {
	ID        int64
	Name      string
	Email     string
	StoreURL  string
	Status    string
	CreatedAt time.Time
}

// Repository defines read operations for merchants.
type Repository interface {
	// GetByID returns ErrNotFound when no merchant has the given id.
	GetByID(ctx context.Context, id int64) (*Merchant, error)
	// GetByStoreURL returns ErrNotFound when no merchant owns storeURL.
	GetByStoreURL(ctx context.Context, storeURL string) (*Merchant, error)
}
