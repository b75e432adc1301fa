package product

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/merchant-catalog/internal/domain/merchant"
)

// --- In-memory catalog store ---

type memMerchants struct {
	byID map[int64]*merchant.Merchant
}

func newMemMerchants(ms ...merchant.Merchant) *memMerchants {
	byID := make(map[int64]*merchant.Merchant, len(ms))
	for i := range ms {
		byID[ms[i].ID] = &ms[i]
	}
	return &memMerchants{byID: byID}
}

func (m *memMerchants) GetByID(_ context.Context, id int64) (*merchant.Merchant, error) {
	mm, ok := m.byID[id]
	if !ok {
		return nil, merchant.ErrNotFound
	}
	return mm, nil
}

func (m *memMerchants) GetByStoreURL(_ context.Context, storeURL string) (*merchant.Merchant, error) {
	for _, mm := range m.byID {
		if mm.StoreURL == storeURL {
			return mm, nil
		}
	}
	return nil, merchant.ErrNotFound
}

type memState struct {
	products  []Product
	variants  []Variant
	nextProd  int64
	nextVar   int64
	merchants map[int64]string
}

func (s memState) clone() memState {
	return memState{
		products:  slices.Clone(s.products),
		variants:  slices.Clone(s.variants),
		nextProd:  s.nextProd,
		nextVar:   s.nextVar,
		merchants: s.merchants,
	}
}

// memStore implements Repository with snapshot transactions.
type memStore struct {
	mu    sync.Mutex
	state memState

	// failOn makes the named Tx method fail with failErr.
	failOn  string
	failErr error
	txCount int
}

func newMemStore(merchants *memMerchants) *memStore {
	names := make(map[int64]string, len(merchants.byID))
	for id, m := range merchants.byID {
		names[id] = m.Name
	}
	return &memStore{state: memState{nextProd: 1, nextVar: 1, merchants: names}}
}

func (s *memStore) List(_ context.Context, f ListFilter) ([]Summary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []Summary
	for _, p := range s.state.products {
		if p.MerchantID != f.MerchantID {
			continue
		}
		if f.Active != nil && p.Active != *f.Active {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Search)) {
			continue
		}
		matched = append(matched, Summary{ID: p.ID, Title: p.Title, BasePrice: p.BasePrice, Active: p.Active})
	}
	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := min(f.Offset+f.Limit, total)
	return matched[f.Offset:end], total, nil
}

func (s *memStore) GetDetail(_ context.Context, id int64) (*Detail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.detail(id)
}

func (s *memStore) SetActive(_ context.Context, ids []int64, active bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.state.products {
		if slices.Contains(ids, s.state.products[i].ID) {
			s.state.products[i].Active = active
			n++
		}
	}
	return n, nil
}

func (s *memStore) Deactivate(_ context.Context, id int64) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.products {
		p := &s.state.products[i]
		if p.ID == id {
			p.Active = false
			return &Summary{ID: p.ID, Title: p.Title, BasePrice: p.BasePrice, Active: p.Active}, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	tx := &memTx{store: s, state: s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *memStore) product(id int64) (Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.state.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (s *memStore) productCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.products)
}

func (s *memStore) seedProduct(p Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.state.nextProd
	s.state.nextProd++
	s.state.products = append(s.state.products, p)
	return p.ID
}

func (st *memState) detail(id int64) (*Detail, error) {
	for _, p := range st.products {
		if p.ID != id {
			continue
		}
		d := &Detail{Product: p, MerchantName: st.merchants[p.MerchantID], Variants: []Variant{}}
		for _, v := range st.variants {
			if v.ProductID == id {
				d.Variants = append(d.Variants, v)
			}
		}
		return d, nil
	}
	return nil, ErrNotFound
}

type memTx struct {
	store *memStore
	state memState
}

func (t *memTx) fail(op string) error {
	if t.store.failOn == op {
		return t.store.failErr
	}
	return nil
}

func (t *memTx) GetByExternalID(_ context.Context, merchantID int64, externalID string) (*Product, error) {
	if err := t.fail("GetByExternalID"); err != nil {
		return nil, err
	}
	for _, p := range t.state.products {
		if p.MerchantID == merchantID && p.ExternalID == externalID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) Create(_ context.Context, p *Product) error {
	if err := t.fail("Create"); err != nil {
		return err
	}
	for _, existing := range t.state.products {
		if existing.MerchantID == p.MerchantID && existing.ExternalID == p.ExternalID {
			return fmt.Errorf("creating product: %w", ErrConflict)
		}
	}
	p.ID = t.state.nextProd
	p.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t.state.nextProd++
	t.state.products = append(t.state.products, *p)
	return nil
}

func (t *memTx) UpdateMetadata(_ context.Context, p *Product) error {
	if err := t.fail("UpdateMetadata"); err != nil {
		return err
	}
	for i := range t.state.products {
		if t.state.products[i].ID == p.ID {
			t.state.products[i].Title = p.Title
			t.state.products[i].Description = p.Description
			t.state.products[i].ProductType = p.ProductType
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) VariantExternalIDs(_ context.Context, productID int64) ([]string, error) {
	var ids []string
	for _, v := range t.state.variants {
		if v.ProductID == productID {
			ids = append(ids, v.ExternalID)
		}
	}
	return ids, nil
}

func (t *memTx) CreateVariants(_ context.Context, variants []Variant) error {
	if err := t.fail("CreateVariants"); err != nil {
		return err
	}
	for _, v := range variants {
		v.ID = t.state.nextVar
		t.state.nextVar++
		t.state.variants = append(t.state.variants, v)
	}
	return nil
}

func (t *memTx) SetBasePrice(_ context.Context, productID int64, price decimal.Decimal) error {
	if err := t.fail("SetBasePrice"); err != nil {
		return err
	}
	for i := range t.state.products {
		if t.state.products[i].ID == productID {
			t.state.products[i].BasePrice = price
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) GetDetail(_ context.Context, id int64) (*Detail, error) {
	return t.state.detail(id)
}
