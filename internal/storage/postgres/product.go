package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/merchant-catalog/internal/domain/product"
)

const (
	productColumns = `p.id, p.merchant_id, p.external_id, p.title, p.description, p.product_type,
		p.active, p.base_price, p.created_at`

	getProductDetailSQL = `SELECT ` + productColumns + `, m.name
		FROM products p JOIN merchants m ON m.id = p.merchant_id
		WHERE p.id = $1`

	listVariantsSQL = `SELECT id, product_id, external_id, name, sku, price, retail_price, quantity, active
		FROM variants WHERE product_id = $1 ORDER BY id`

	getProductByExternalIDSQL = `SELECT ` + productColumns + `
		FROM products p WHERE p.merchant_id = $1 AND p.external_id = $2
		FOR UPDATE`

	createProductSQL = `INSERT INTO products (merchant_id, external_id, title, description, product_type, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, base_price, created_at`

	updateProductMetadataSQL = `UPDATE products SET title = $2, description = $3, product_type = $4
		WHERE id = $1`

	listVariantExternalIDsSQL = `SELECT external_id FROM variants WHERE product_id = $1`

	setBasePriceSQL = `UPDATE products SET base_price = $2 WHERE id = $1`

	setActiveSQL = `UPDATE products SET active = $2 WHERE id = ANY($1)`

	deactivateProductSQL = `UPDATE products SET active = FALSE WHERE id = $1
		RETURNING id, title, base_price, active`

	listProductKeysSQL = `SELECT m.store_url, p.external_id
		FROM products p JOIN merchants m ON m.id = p.merchant_id`

	productKeyExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM products p JOIN merchants m ON m.id = p.merchant_id
		WHERE m.store_url = $1 AND p.external_id = $2)`
)

var variantCopyColumns = []string{
	"product_id", "external_id", "name", "sku", "price", "retail_price", "quantity", "active",
}

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Tx         = (*productTx)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns one window of a merchant's products ordered by id, together
// with the number of matching products. Both reads share a snapshot.
func (r *ProductRepository) List(ctx context.Context, f product.ListFilter) ([]product.Summary, int, error) {
	where, args := listConditions(f)

	var (
		items []product.Summary
		count int
	)
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&count); err != nil {
			return fmt.Errorf("counting products: %w", err)
		}
		if count == 0 || f.Offset >= count {
			return nil
		}

		n := len(args)
		query := `SELECT id, title, base_price, active FROM products WHERE ` + where +
			` ORDER BY id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
		rows, err := tx.Query(ctx, query, append(args, f.Limit, f.Offset)...)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}
		items, err = pgx.CollectRows(rows, scanSummary)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, count, nil
}

// listConditions builds the WHERE clause and its positional arguments.
func listConditions(f product.ListFilter) (string, []any) {
	conds := []string{"merchant_id = $1"}
	args := []any{f.MerchantID}

	if f.Active != nil {
		args = append(args, *f.Active)
		conds = append(conds, "active = $"+strconv.Itoa(len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(f.Search)+"%")
		conds = append(conds, "title ILIKE $"+strconv.Itoa(len(args)))
	}
	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GetDetail returns a product with its merchant name and variants.
func (r *ProductRepository) GetDetail(ctx context.Context, id int64) (*product.Detail, error) {
	return getDetail(ctx, r.pool, id)
}

// SetActive updates every product in ids with one statement.
func (r *ProductRepository) SetActive(ctx context.Context, ids []int64, active bool) (int64, error) {
	tag, err := r.pool.Exec(ctx, setActiveSQL, ids, active)
	if err != nil {
		return 0, fmt.Errorf("setting active=%t on %d products: %w", active, len(ids), err)
	}
	return tag.RowsAffected(), nil
}

// Deactivate clears the active flag of one product.
func (r *ProductRepository) Deactivate(ctx context.Context, id int64) (*product.Summary, error) {
	rows, err := r.pool.Query(ctx, deactivateProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("deactivating product %d: %w", id, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSummary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("deactivating product %d: %w", id, err)
	}
	return &s, nil
}

// InTx runs fn in a read-committed transaction.
func (r *ProductRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx product.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &productTx{tx: tx})
	})
}

// ProductKeys streams the (store URL, external id) pair of every stored
// product.
func (r *ProductRepository) ProductKeys(ctx context.Context, fn func(storeURL, externalID string)) error {
	rows, err := r.pool.Query(ctx, listProductKeysSQL)
	if err != nil {
		return fmt.Errorf("listing product keys: %w", err)
	}
	var storeURL, externalID string
	_, err = pgx.ForEachRow(rows, []any{&storeURL, &externalID}, func() error {
		fn(storeURL, externalID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing product keys: %w", err)
	}
	return nil
}

// ProductKeyExists reports whether the merchant owning storeURL has a product
// with externalID.
func (r *ProductRepository) ProductKeyExists(ctx context.Context, storeURL, externalID string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, productKeyExistsSQL, storeURL, externalID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking product %q of %q: %w", externalID, storeURL, err)
	}
	return ok, nil
}

// productTx implements product.Tx on an open transaction.
type productTx struct {
	tx pgx.Tx
}

func (t *productTx) GetByExternalID(ctx context.Context, merchantID int64, externalID string) (*product.Product, error) {
	rows, err := t.tx.Query(ctx, getProductByExternalIDSQL, merchantID, externalID)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", externalID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", externalID, err)
	}
	return &p, nil
}

func (t *productTx) Create(ctx context.Context, p *product.Product) error {
	err := t.tx.QueryRow(ctx, createProductSQL,
		p.MerchantID, p.ExternalID, p.Title, p.Description, p.ProductType, p.Active,
	).Scan(&p.ID, &p.BasePrice, &p.CreatedAt)
	if err != nil {
		return writeError(fmt.Sprintf("creating product %q", p.ExternalID), err)
	}
	return nil
}

func (t *productTx) UpdateMetadata(ctx context.Context, p *product.Product) error {
	_, err := t.tx.Exec(ctx, updateProductMetadataSQL, p.ID, p.Title, p.Description, p.ProductType)
	if err != nil {
		return writeError(fmt.Sprintf("updating product %d", p.ID), err)
	}
	return nil
}

func (t *productTx) VariantExternalIDs(ctx context.Context, productID int64) ([]string, error) {
	rows, err := t.tx.Query(ctx, listVariantExternalIDsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing variant ids of product %d: %w", productID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("listing variant ids of product %d: %w", productID, err)
	}
	return ids, nil
}

// CreateVariants inserts all variants with a single COPY.
func (t *productTx) CreateVariants(ctx context.Context, variants []product.Variant) error {
	_, err := t.tx.CopyFrom(ctx, pgx.Identifier{"variants"}, variantCopyColumns,
		pgx.CopyFromSlice(len(variants), func(i int) ([]any, error) {
			v := variants[i]
			return []any{v.ProductID, v.ExternalID, v.Name, v.SKU, v.Price, v.RetailPrice, v.Quantity, v.Active}, nil
		}),
	)
	if err != nil {
		return writeError(fmt.Sprintf("copying %d variants", len(variants)), err)
	}
	return nil
}

func (t *productTx) SetBasePrice(ctx context.Context, productID int64, price decimal.Decimal) error {
	if _, err := t.tx.Exec(ctx, setBasePriceSQL, productID, price); err != nil {
		return fmt.Errorf("setting base price of product %d: %w", productID, err)
	}
	return nil
}

func (t *productTx) GetDetail(ctx context.Context, id int64) (*product.Detail, error) {
	return getDetail(ctx, t.tx, id)
}

func getDetail(ctx context.Context, q querier, id int64) (*product.Detail, error) {
	var d product.Detail
	err := q.QueryRow(ctx, getProductDetailSQL, id).Scan(
		&d.ID, &d.MerchantID, &d.ExternalID, &d.Title, &d.Description, &d.ProductType,
		&d.Active, &d.BasePrice, &d.CreatedAt, &d.MerchantName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	rows, err := q.Query(ctx, listVariantsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing variants of product %d: %w", id, err)
	}
	d.Variants, err = pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, fmt.Errorf("listing variants of product %d: %w", id, err)
	}
	return &d, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.ExternalID, &p.Title, &p.Description, &p.ProductType,
		&p.Active, &p.BasePrice, &p.CreatedAt,
	)
	return p, err
}

func scanSummary(row pgx.CollectableRow) (product.Summary, error) {
	var s product.Summary
	err := row.Scan(&s.ID, &s.Title, &s.BasePrice, &s.Active)
	return s, err
}

func scanVariant(row pgx.CollectableRow) (product.Variant, error) {
	var v product.Variant
	err := row.Scan(
		&v.ID, &v.ProductID, &v.ExternalID, &v.Name, &v.SKU,
		&v.Price, &v.RetailPrice, &v.Quantity, &v.Active,
	)
	return v, err
}
