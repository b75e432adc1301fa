package product

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrConflict is wrapped by stores when a uniqueness constraint rejects a
	// write.
	ErrConflict = errors.New("unique constraint violation")
)

// FieldError describes a single invalid request field. Field is the dotted
// JSON path of the value, e.g. "product.variants[1].price".
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Add records an invalid field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Has reports whether field already has an error recorded.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Merge appends the errors of other for fields not already present.
func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		if !e.Has(f.Field) {
			e.Fields = append(e.Fields, f)
		}
	}
}

// Err returns e, or nil when no field errors were recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// MerchantNotFoundError indicates that the merchant referenced by a request
// does not exist. Exactly one of ID and StoreURL is set.
type MerchantNotFoundError struct {
	ID       int64
	StoreURL string
}

func (e *MerchantNotFoundError) Error() string {
	if e.StoreURL != "" {
		return fmt.Sprintf("merchant with store_url %s not found", e.StoreURL)
	}
	return fmt.Sprintf("merchant with id %d does not exist", e.ID)
}

func (e *MerchantNotFoundError) Unwrap() error { return merchant.ErrNotFound }

// ConflictError indicates that a concurrent import created the same product
// or variant first. The caller may retry the import.
type ConflictError struct {
	MerchantID int64
	ExternalID string
	Err        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("product %q of merchant %d was modified concurrently, retry the import", e.ExternalID, e.MerchantID)
}

func (e *ConflictError) Unwrap() error { return e.Err }
