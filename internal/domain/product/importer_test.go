package product

import (
	"context"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
)

// --- Helpers ---

func qty(n int64) *int64 { return &n }

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	merchants := newMemMerchants(
		merchant.Merchant{ID: 1, Name: "Tech Store", StoreURL: "s1"},
		merchant.Merchant{ID: 2, Name: "Fashion Boutique", StoreURL: "s2"},
	)
	store := newMemStore(merchants)
	svc, err := NewService(merchants, store)
	require.NoError(t, err)
	return svc, store
}

func widgetRequest() *ImportRequest {
	return &ImportRequest{
		StoreURL: "s1",
		Product: &ProductPayload{
			ID:    "P1",
			Title: "Widget",
			Variants: []VariantPayload{
				{ID: "V1", Title: "Small", Price: "10.00", InventoryQuantity: qty(5)},
				{ID: "V2", Title: "Large", Price: "8.00", CompareAtPrice: "12.00", InventoryQuantity: qty(3)},
			},
		},
	}
}

func variantByExternalID(t *testing.T, d *Detail, id string) Variant {
	t.Helper()
	for _, v := range d.Variants {
		if v.ExternalID == id {
			return v
		}
	}
	t.Fatalf("variant %q not found", id)
	return Variant{}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

// --- Tests ---

func TestImportProduct_CreatesProductAndVariants(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.ImportProduct(context.Background(), widgetRequest())
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Skipped)

	d := res.Product
	assert.Equal(t, "P1", d.ExternalID)
	assert.Equal(t, "Widget", d.Title)
	assert.Equal(t, "Tech Store", d.MerchantName)
	assert.True(t, d.Active)
	requireDecimal(t, "8.00", d.BasePrice)
	require.Len(t, d.Variants, 2)

	v1 := variantByExternalID(t, d, "V1")
	requireDecimal(t, "10.00", v1.RetailPrice)
	assert.Equal(t, int64(5), v1.Quantity)
	assert.True(t, v1.Active)

	v2 := variantByExternalID(t, d, "V2")
	requireDecimal(t, "8.00", v2.Price)
	requireDecimal(t, "12.00", v2.RetailPrice)
}

func TestImportProduct_SecondImportUpdatesMetadata(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.ImportProduct(ctx, widgetRequest())
	require.NoError(t, err)

	req := widgetRequest()
	req.Product.Title = "Widget Pro"
	req.Product.Description = "Now with more widget"
	req.Product.ProductType = "Gadgets"

	second, err := svc.ImportProduct(ctx, req)
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Product.ID, second.Product.ID)
	assert.Equal(t, "Widget Pro", second.Product.Title)
	assert.Equal(t, "Now with more widget", second.Product.Description)
	assert.Equal(t, "Gadgets", second.Product.ProductType)
	assert.Equal(t, 1, store.productCount())
}

func TestImportProduct_ExistingVariantsUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportProduct(ctx, widgetRequest())
	require.NoError(t, err)

	req := widgetRequest()
	req.Product.Variants[0].Price = "99.00"
	req.Product.Variants[0].Title = "Renamed"
	req.Product.Variants[0].InventoryQuantity = qty(50)

	res, err := svc.ImportProduct(ctx, req)
	require.NoError(t, err)

	assert.Zero(t, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Product.Variants, 2)

	v1 := variantByExternalID(t, res.Product, "V1")
	requireDecimal(t, "10.00", v1.Price)
	assert.Equal(t, "Small", v1.Name)
	assert.Equal(t, int64(5), v1.Quantity)
}

func TestImportProduct_BasePriceFromCurrentPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ImportProduct(ctx, widgetRequest())
	require.NoError(t, err)

	// V2 (8.00) stays stored but is absent from this payload.
	req := widgetRequest()
	req.Product.Variants = []VariantPayload{
		{ID: "V1", Title: "Small", Price: "10.00", InventoryQuantity: qty(5)},
		{ID: "V3", Title: "Huge", Price: "15.50", InventoryQuantity: qty(1)},
	}

	res, err := svc.ImportProduct(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Product.Variants, 3)
	requireDecimal(t, "10.00", res.Product.BasePrice)
}

func TestImportProduct_RetailPriceFallback(t *testing.T) {
	tests := []struct {
		name      string
		compareAt string
		want      string
	}{
		{name: "absent", compareAt: "", want: "7.25"},
		{name: "zero", compareAt: "0", want: "7.25"},
		{name: "zero with decimals", compareAt: "0.00", want: "7.25"},
		{name: "set", compareAt: "9.99", want: "9.99"},
		{name: "lower than price", compareAt: "5.00", want: "5.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)

			res, err := svc.ImportProduct(context.Background(), &ImportRequest{
				StoreURL: "s1",
				Product: &ProductPayload{
					ID:    "P",
					Title: "Thing",
					Variants: []VariantPayload{
						{ID: "V", Title: "Only", Price: "7.25", CompareAtPrice: tt.compareAt, InventoryQuantity: qty(0)},
					},
				},
			})
			require.NoError(t, err)
			requireDecimal(t, tt.want, res.Product.Variants[0].RetailPrice)
		})
	}
}

func TestImportProduct_SameExternalIDDifferentMerchants(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	a, err := svc.ImportProduct(ctx, widgetRequest())
	require.NoError(t, err)

	req := widgetRequest()
	req.StoreURL = "s2"
	b, err := svc.ImportProduct(ctx, req)
	require.NoError(t, err)

	assert.True(t, b.Created)
	assert.NotEqual(t, a.Product.ID, b.Product.ID)
	assert.Equal(t, "Fashion Boutique", b.Product.MerchantName)
	assert.Equal(t, 2, store.productCount())
}

func TestImportProduct_UnknownMerchant(t *testing.T) {
	svc, store := newTestService(t)

	req := widgetRequest()
	req.StoreURL = "missing.example.com"

	_, err := svc.ImportProduct(context.Background(), req)

	var mnf *MerchantNotFoundError
	require.ErrorAs(t, err, &mnf)
	assert.Equal(t, "missing.example.com", mnf.StoreURL)
	assert.ErrorIs(t, err, merchant.ErrNotFound)
	assert.Zero(t, store.txCount)
}

func TestImportProduct_ValidationListsEveryField(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.ImportProduct(context.Background(), &ImportRequest{
		StoreURL: "s1",
		Product: &ProductPayload{
			Title: "No id",
			Variants: []VariantPayload{
				{ID: "V1", Title: "ok", Price: "abc", InventoryQuantity: qty(-1)},
				{ID: "V1", Price: "1.005"},
			},
		},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make(map[string]string)
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Contains(t, fields, "product.id")
	assert.Contains(t, fields, "product.variants[0].price")
	assert.Contains(t, fields, "product.variants[0].inventory_quantity")
	assert.Contains(t, fields, "product.variants[1].title")
	assert.Contains(t, fields, "product.variants[1].price")
	assert.Contains(t, fields, "product.variants[1].inventory_quantity")
	assert.Contains(t, fields, "product.variants[1].id")
	assert.Zero(t, store.txCount, "no store access on invalid payload")
}

func TestImportProduct_ColumnLimits(t *testing.T) {
	for _, tt := range []struct {
		name    string
		field   string
		message string
		mutate  func(r *ImportRequest)
	}{
		{
			name:    "ProductID",
			field:   "product.id",
			message: "Ensure this field has no more than 255 characters.",
			mutate:  func(r *ImportRequest) { r.Product.ID = strings.Repeat("p", 256) },
		},
		{
			name:    "ProductTitle",
			field:   "product.title",
			message: "Ensure this field has no more than 255 characters.",
			mutate:  func(r *ImportRequest) { r.Product.Title = strings.Repeat("t", 256) },
		},
		{
			name:    "ProductType",
			field:   "product.product_type",
			message: "Ensure this field has no more than 100 characters.",
			mutate:  func(r *ImportRequest) { r.Product.ProductType = strings.Repeat("x", 101) },
		},
		{
			name:    "VariantID",
			field:   "product.variants[0].id",
			message: "Ensure this field has no more than 255 characters.",
			mutate:  func(r *ImportRequest) { r.Product.Variants[0].ID = strings.Repeat("v", 256) },
		},
		{
			name:    "VariantTitle",
			field:   "product.variants[1].title",
			message: "Ensure this field has no more than 255 characters.",
			mutate:  func(r *ImportRequest) { r.Product.Variants[1].Title = strings.Repeat("n", 256) },
		},
		{
			name:    "SKU",
			field:   "product.variants[0].sku",
			message: "Ensure this field has no more than 100 characters.",
			mutate:  func(r *ImportRequest) { r.Product.Variants[0].SKU = strings.Repeat("s", 300) },
		},
		{
			name:    "InventoryQuantity",
			field:   "product.variants[1].inventory_quantity",
			message: "Ensure this value is less than or equal to 2147483647.",
			mutate:  func(r *ImportRequest) { r.Product.Variants[1].InventoryQuantity = qty(3000000000) },
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			req := widgetRequest()
			tt.mutate(req)

			_, err := svc.ImportProduct(context.Background(), req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Equal(t, tt.message, verr.Fields[0].Message)
			assert.Zero(t, store.txCount)
		})
	}
}

func TestImportProduct_ColumnLimitsInclusive(t *testing.T) {
	svc, _ := newTestService(t)
	req := widgetRequest()
	req.Product.Title = strings.Repeat("é", 255)
	req.Product.Variants[0].SKU = strings.Repeat("s", 100)
	req.Product.Variants[0].InventoryQuantity = qty(2147483647)

	res, err := svc.ImportProduct(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(2147483647), variantByExternalID(t, res.Product, "V1").Quantity)
}

func TestImportProduct_EmptyVariants(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ImportProduct(context.Background(), &ImportRequest{
		StoreURL: "s1",
		Product:  &ProductPayload{ID: "P", Title: "T", Variants: []VariantPayload{}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "product.variants", verr.Fields[0].Field)
}

func TestImportProduct_RollbackOnStoreFailure(t *testing.T) {
	svc, store := newTestService(t)
	store.failOn = "SetBasePrice"
	store.failErr = errors.New("connection reset")

	_, err := svc.ImportProduct(context.Background(), widgetRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set base price")
	assert.Zero(t, store.productCount(), "partial writes must not be visible")

	var cerr *ConflictError
	assert.False(t, errors.As(err, &cerr))
}

func TestImportProduct_ConcurrentCreateConflict(t *testing.T) {
	svc, store := newTestService(t)

	// Another importer created the product between lookup and insert.
	store.failOn = "Create"
	store.failErr = errors.Wrap(ErrConflict, "insert product")

	_, err := svc.ImportProduct(context.Background(), widgetRequest())

	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "P1", cerr.ExternalID)
	assert.Equal(t, int64(1), cerr.MerchantID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestParseMoney(t *testing.T) {
	valid := []string{"0", "10", "10.5", "10.00", "99999999.99", " 3.10 "}
	for _, s := range valid {
		_, err := ParseMoney(s)
		assert.NoError(t, err, s)
	}

	invalid := []string{"", "abc", "-1.00", "1.001", "123456789.00", "1e9"}
	for _, s := range invalid {
		_, err := ParseMoney(s)
		assert.Error(t, err, s)
	}
}
