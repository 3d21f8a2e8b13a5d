package order

import "context"

// Repository is the order ledger: an append-only record of orders and their
// status transitions. Update must reject transitions that are illegal with
// respect to the currently stored status (ErrInvalidTransition) and must not
// mutate state when it does.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
}
