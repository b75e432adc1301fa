package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
)

// ImportResult is the outcome of a successful import.
type ImportResult struct {
	// Product holds the stored product with all of its variants, not only the
	// ones inserted by this import.
	Product *Detail
	// Created is true when the product did not exist before the import.
	Created bool
	// Inserted and Skipped count payload variants that were new and already
	// stored respectively.
	Inserted int
	Skipped  int
}

// ImportProduct creates or refreshes a product from an external payload.
//
// Product metadata is overwritten on every call. Variants are insert-only:
// payload variants whose external id is already stored are left untouched.
// BasePrice is set to the lowest price in this payload. All writes happen in
// one transaction.
func (s *Service) ImportProduct(ctx context.Context, req *ImportRequest) (_ *ImportResult, rerr error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	payload := req.Product

	variants, basePrice, err := payload.variants()
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "product.Import", trace.WithAttributes(
		attribute.String("catalog.store_url", req.StoreURL),
		attribute.String("catalog.product.external_id", payload.ID),
	))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "import failed")
		}
		span.End()
	}()

	m, err := s.merchants.GetByStoreURL(ctx, req.StoreURL)
	if err != nil {
		if errors.Is(err, merchant.ErrNotFound) {
			return nil, &MerchantNotFoundError{StoreURL: req.StoreURL}
		}
		return nil, errors.Wrap(err, "get merchant")
	}

	var res ImportResult
	err = s.products.InTx(ctx, func(ctx context.Context, tx Tx) error {
		res = ImportResult{}

		p, err := tx.GetByExternalID(ctx, m.ID, payload.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			p = &Product{
				MerchantID:  m.ID,
				ExternalID:  payload.ID,
				Title:       payload.Title,
				Description: payload.Description,
				ProductType: payload.ProductType,
				Active:      true,
			}
			if err := tx.Create(ctx, p); err != nil {
				return errors.Wrap(err, "create product")
			}
			res.Created = true
		case err != nil:
			return errors.Wrap(err, "get product")
		default:
			p.Title = payload.Title
			p.Description = payload.Description
			p.ProductType = payload.ProductType
			if err := tx.UpdateMetadata(ctx, p); err != nil {
				return errors.Wrap(err, "update product")
			}
		}

		stored, err := tx.VariantExternalIDs(ctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "list variant ids")
		}
		known := make(map[string]struct{}, len(stored))
		for _, id := range stored {
			known[id] = struct{}{}
		}

		fresh := make([]Variant, 0, len(variants))
		for _, v := range variants {
			if _, ok := known[v.ExternalID]; ok {
				res.Skipped++
				continue
			}
			v.ProductID = p.ID
			fresh = append(fresh, v)
		}
		if len(fresh) > 0 {
			if err := tx.CreateVariants(ctx, fresh); err != nil {
				return errors.Wrap(err, "create variants")
			}
		}
		res.Inserted = len(fresh)

		if err := tx.SetBasePrice(ctx, p.ID, basePrice); err != nil {
			return errors.Wrap(err, "set base price")
		}

		detail, err := tx.GetDetail(ctx, p.ID)
		if err != nil {
			return errors.Wrap(err, "get product detail")
		}
		res.Product = detail
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, &ConflictError{MerchantID: m.ID, ExternalID: payload.ID, Err: err}
		}
		return nil, errors.Wrap(err, "import product")
	}

	s.imports.Add(ctx, 1, metric.WithAttributes(attribute.Bool("created", res.Created)))
	s.variantsInserted.Add(ctx, int64(res.Inserted))

	zctx.From(ctx).Info("Product imported",
		zap.Int64("merchant_id", m.ID),
		zap.Int64("product_id", res.Product.ID),
		zap.String("external_id", payload.ID),
		zap.Bool("created", res.Created),
		zap.Int("variants_inserted", res.Inserted),
		zap.Int("variants_skipped", res.Skipped),
	)
	return &res, nil
}

// variants converts validated variant payloads into new variants and returns
// the lowest payload price.
func (p *ProductPayload) variants() ([]Variant, decimal.Decimal, error) {
	out := make([]Variant, len(p.Variants))
	var minPrice decimal.Decimal
	for i, v := range p.Variants {
		price, err := ParseMoney(v.Price)
		if err != nil {
			return nil, decimal.Decimal{}, errors.Wrapf(err, "variant %s price", v.ID)
		}
		retail, err := retailPrice(price, v.CompareAtPrice)
		if err != nil {
			return nil, decimal.Decimal{}, errors.Wrapf(err, "variant %s compare_at_price", v.ID)
		}
		out[i] = Variant{
			ExternalID:  v.ID,
			Name:        v.Title,
			SKU:         v.SKU,
			Price:       price,
			RetailPrice: retail,
			Quantity:    *v.InventoryQuantity,
			Active:      true,
		}
		if i == 0 || price.LessThan(minPrice) {
			minPrice = price
		}
	}
	return out, minPrice, nil
}

// retailPrice returns compareAt when it is set and non-zero, price otherwise.
func retailPrice(price decimal.Decimal, compareAt string) (decimal.Decimal, error) {
	if compareAt == "" {
		return price, nil
	}
	d, err := ParseMoney(compareAt)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.IsZero() {
		return price, nil
	}
	return d, nil
}
