package catalog

import "context"

// Store is the inventory contract. Reserve is the single synchronization point
// for the purchase path: it must test stock_level >= quantity and decrement in
// one step that is atomic per product, so two concurrent reservations can never
// jointly exceed available stock.
type Store interface {
	Get(ctx context.Context, productID string) (*Product, error)
	List(ctx context.Context) ([]*Product, error)
	Reserve(ctx context.Context, productID string, quantity int) error
	Restock(ctx context.Context, productID string, quantity int) error
	SetPrice(ctx context.Context, productID string, unitPriceCents int64) error
}
