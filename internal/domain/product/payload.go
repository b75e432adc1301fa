package product

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Money limits mirror the NUMERIC(10,2) price columns. Length and quantity
// limits on the payload structs mirror their VARCHAR and INTEGER columns.
const (
	moneyMaxDigits   = 10
	moneyMaxDecimals = 2
)

// ImportRequest is the payload pushed by an external platform to import one
// product of the merchant identified by StoreURL.
type ImportRequest struct {
	StoreURL string          `json:"store_url" validate:"required"`
	Product  *ProductPayload `json:"product" validate:"required"`
}

// ProductPayload describes a product as known by the source platform.
type ProductPayload struct {
	ID          string           `json:"id" validate:"required,max=255"`
	Title       string           `json:"title" validate:"required,max=255"`
	Description string           `json:"description"`
	ProductType string           `json:"product_type" validate:"max=100"`
	Variants    []VariantPayload `json:"variants" validate:"required,min=1,dive"`
}

// VariantPayload describes a variant as known by the source platform. Prices
// are kept in their textual form until validated.
type VariantPayload struct {
	ID    string `json:"id" validate:"required,max=255"`
	Title string `json:"title" validate:"required,max=255"`
	SKU   string `json:"sku" validate:"max=100"`
	Price string `json:"price" validate:"required,money"`
	// CompareAtPrice is empty when the source sent null or omitted it.
	CompareAtPrice    string `json:"compare_at_price" validate:"omitempty,money"`
	InventoryQuantity *int64 `json:"inventory_quantity" validate:"required,min=0,max=2147483647"`
}

// BulkActivateRequest toggles the active flag of several products at once.
type BulkActivateRequest struct {
	ProductIDs []int64 `json:"product_ids" validate:"required,min=1"`
	Active     *bool   `json:"active" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := ParseMoney(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// ParseMoney parses a non-negative decimal amount with at most ten digits,
// two of them after the decimal point.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse amount")
	}
	if d.IsNegative() {
		return decimal.Decimal{}, errors.New("amount must not be negative")
	}

	digits := len(d.Coefficient().String())
	decimals := 0
	if exp := d.Exponent(); exp < 0 {
		decimals = int(-exp)
	} else {
		digits += int(exp)
	}
	if decimals > moneyMaxDecimals {
		return decimal.Decimal{}, errors.Errorf("more than %d decimal places", moneyMaxDecimals)
	}
	if digits-decimals > moneyMaxDigits-moneyMaxDecimals {
		return decimal.Decimal{}, errors.Errorf("more than %d digits before the decimal point", moneyMaxDigits-moneyMaxDecimals)
	}
	return d, nil
}

// Validate checks a request payload and returns a *ValidationError listing
// every invalid field, or nil.
func Validate(req any) error {
	verr := &ValidationError{}
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errors.Wrap(err, "validate request")
		}
		for _, fe := range fieldErrs {
			verr.Add(fieldPath(fe), fieldMessage(fe))
		}
	}
	if r, ok := req.(*ImportRequest); ok && r.Product != nil {
		seen := make(map[string]struct{}, len(r.Product.Variants))
		for i, v := range r.Product.Variants {
			if v.ID == "" {
				continue
			}
			if _, dup := seen[v.ID]; dup {
				verr.Add(fmt.Sprintf("product.variants[%d].id", i), "Duplicate variant id "+v.ID+".")
			}
			seen[v.ID] = struct{}{}
		}
	}
	return verr.Err()
}

// fieldPath strips the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min":
		if fe.Kind() == reflect.Slice {
			return "This list may not be empty."
		}
		return "Ensure this value is greater than or equal to " + fe.Param() + "."
	case "max":
		if fe.Kind() == reflect.String {
			return "Ensure this field has no more than " + fe.Param() + " characters."
		}
		return "Ensure this value is less than or equal to " + fe.Param() + "."
	case "money":
		return fmt.Sprintf("A valid non-negative number with at most %d digits and %d decimal places is required.",
			moneyMaxDigits, moneyMaxDecimals)
	default:
		return "Invalid value."
	}
}
