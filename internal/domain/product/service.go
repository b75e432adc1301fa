package product

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
)

const instrumentationName = "github.com/xenking/merchant-catalog/internal/domain/product"

// Page size bounds used when no Option overrides them.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service implements the catalog operations: import reconciliation, listing,
// detail lookup, bulk activation and soft delete. It keeps no state between
// calls; all coordination goes through the store.
type Service struct {
	merchants merchant.Repository
	products  Repository

	defaultPageSize int
	maxPageSize     int

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer

	imports          metric.Int64Counter
	variantsInserted metric.Int64Counter
	stateChanges     metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize overrides the default and maximum list page sizes.
func WithPageSize(defaultSize, maxSize int) Option {
	return func(s *Service) {
		if defaultSize > 0 {
			s.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// WithMeterProvider sets the meter provider used for operation counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider used for operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// NewService creates a Service over the given repositories.
func NewService(merchants merchant.Repository, products Repository, opts ...Option) (*Service, error) {
	s := &Service{
		merchants:       merchants,
		products:        products,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
		meterProvider:   metricnoop.NewMeterProvider(),
		tracerProvider:  tracenoop.NewTracerProvider(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.defaultPageSize > s.maxPageSize {
		s.defaultPageSize = s.maxPageSize
	}

	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	meter := s.meterProvider.Meter(instrumentationName)

	var err error
	if s.imports, err = meter.Int64Counter("catalog.product.imports",
		metric.WithDescription("Product imports by outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "create imports counter")
	}
	if s.variantsInserted, err = meter.Int64Counter("catalog.variant.inserted",
		metric.WithDescription("Variants inserted by imports"),
	); err != nil {
		return nil, errors.Wrap(err, "create variants counter")
	}
	if s.stateChanges, err = meter.Int64Counter("catalog.product.state_changes",
		metric.WithDescription("Products whose active flag was written"),
	); err != nil {
		return nil, errors.Wrap(err, "create state changes counter")
	}
	return s, nil
}
