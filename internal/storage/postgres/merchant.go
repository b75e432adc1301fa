package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
)

const (
	merchantColumns = `id, name, email, store_url, status, created_at`

	getMerchantByIDSQL = `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1`

	getMerchantByStoreURLSQL = `SELECT ` + merchantColumns + ` FROM merchants WHERE store_url = $1`

	upsertMerchantSQL = `INSERT INTO merchants (name, email, store_url, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (store_url) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, status = EXCLUDED.status
		RETURNING id, created_at`
)

var _ merchant.Repository = (*MerchantRepository)(nil)

// MerchantRepository implements merchant.Repository backed by PostgreSQL.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantRepository returns a MerchantRepository that uses the given pool.
func NewMerchantRepository(pool *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{pool: pool}
}

// GetByID returns the merchant with the given id.
func (r *MerchantRepository) GetByID(ctx context.Context, id int64) (*merchant.Merchant, error) {
	return r.getOne(ctx, getMerchantByIDSQL, id)
}

// GetByStoreURL returns the merchant owning storeURL.
func (r *MerchantRepository) GetByStoreURL(ctx context.Context, storeURL string) (*merchant.Merchant, error) {
	return r.getOne(ctx, getMerchantByStoreURLSQL, storeURL)
}

func (r *MerchantRepository) getOne(ctx context.Context, sql string, arg any) (*merchant.Merchant, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting merchant %v: %w", arg, err)
	}

	m, err := pgx.CollectExactlyOneRow(rows, scanMerchant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, merchant.ErrNotFound
		}
		return nil, fmt.Errorf("getting merchant %v: %w", arg, err)
	}
	return &m, nil
}

// Upsert creates the merchant or refreshes the one with the same store URL,
// filling in ID and CreatedAt.
func (r *MerchantRepository) Upsert(ctx context.Context, m *merchant.Merchant) error {
	status := m.Status
	if status == "" {
		status = "ACTIVE"
	}
	err := r.pool.QueryRow(ctx, upsertMerchantSQL, m.Name, m.Email, m.StoreURL, status).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting merchant %q: %w", m.StoreURL, err)
	}
	m.Status = status
	return nil
}

func scanMerchant(row pgx.CollectableRow) (merchant.Merchant, error) {
	var m merchant.Merchant
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.StoreURL, &m.Status, &m.CreatedAt)
	return m, err
}
