package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
)

// CatalogRepository is an in-memory catalog.Store. Each product carries its own
// mutex so the check-and-decrement in Reserve is atomic per product without
// serializing reservations across unrelated products.
type CatalogRepository struct {
	mu    sync.RWMutex
	items map[string]*productEntry
}

type productEntry struct {
	mu sync.Mutex
	p  *domain.Product
}

func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		items: make(map[string]*productEntry),
	}
}

// Save inserts or replaces a product; used by provisioning and seeding.
func (r *CatalogRepository) Save(ctx context.Context, p *domain.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.items[p.ID]
	if !ok {
		r.items[p.ID] = &productEntry{p: cloneProduct(p)}
		return nil
	}

	entry.mu.Lock()
	entry.p = cloneProduct(p)
	entry.mu.Unlock()
	return nil
}

func (r *CatalogRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	_ = ctx

	entry, err := r.entry(productID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneProduct(entry.p), nil
}

func (r *CatalogRepository) List(ctx context.Context) ([]*domain.Product, error) {
	_ = ctx

	r.mu.RLock()
	entries := make([]*productEntry, 0, len(r.items))
	for _, e := range r.items {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]*domain.Product, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneProduct(e.p))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reserve atomically tests stock_level >= quantity and decrements. The product
// mutex makes the test and the decrement one indivisible step for concurrent
// callers of the same product.
func (r *CatalogRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	_ = ctx

	entry, err := r.entry(productID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.p.Deduct(quantity)
}

func (r *CatalogRepository) Restock(ctx context.Context, productID string, quantity int) error {
	_ = ctx

	entry, err := r.entry(productID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.p.Restock(quantity)
}

func (r *CatalogRepository) SetPrice(ctx context.Context, productID string, unitPriceCents int64) error {
	_ = ctx
	if unitPriceCents < 0 {
		return domain.ErrInvalidPrice
	}

	entry, err := r.entry(productID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.p.UnitPriceCents = unitPriceCents
	return nil
}

func (r *CatalogRepository) entry(productID string) (*productEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.items[productID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
