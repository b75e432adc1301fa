package product

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BulkSetActive applies active to every listed product in one set-based
// update. Unknown ids are ignored. It returns the number of products matched.
func (s *Service) BulkSetActive(ctx context.Context, ids []int64, active bool) (int64, error) {
	if len(ids) == 0 {
		verr := &ValidationError{}
		verr.Add("product_ids", "This list may not be empty.")
		return 0, verr
	}

	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	ctx, span := s.tracer.Start(ctx, "product.BulkSetActive")
	defer span.End()

	n, err := s.products.SetActive(ctx, unique, active)
	if err != nil {
		return 0, errors.Wrap(err, "set active")
	}

	s.stateChanges.Add(ctx, n, metric.WithAttributes(
		attribute.String("operation", "bulk_set_active"),
		attribute.Bool("active", active),
	))
	zctx.From(ctx).Info("Products active flag updated",
		zap.Int("requested", len(unique)),
		zap.Int64("updated", n),
		zap.Bool("active", active),
	)
	return n, nil
}

// DeactivateProduct soft-deletes a product by clearing its active flag. The
// row, its variants and any order items referencing them are kept. Calling it
// on an inactive product succeeds.
func (s *Service) DeactivateProduct(ctx context.Context, id int64) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "product.Deactivate")
	defer span.End()

	sum, err := s.products.Deactivate(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "deactivate product %d", id)
	}

	s.stateChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "deactivate"),
		attribute.Bool("active", false),
	))
	zctx.From(ctx).Info("Product deactivated", zap.Int64("product_id", id))
	return sum, nil
}
