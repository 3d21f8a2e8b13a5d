package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/shopfast/internal/domain/order"
)

// OrderRepository is a pgx-backed order ledger. Status transitions are
// enforced with a compare-and-swap on the stored status: the UPDATE only
// matches while the row still holds the status the caller transitioned from.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	ct, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, product_id, quantity, amount_cents, status, transaction_id, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		order.ID, order.ProductID, order.Quantity, order.AmountCents,
		string(order.Status), order.TransactionID, order.FailureReason,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("order repository: insert: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrConflict
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, product_id, quantity, amount_cents, status, transaction_id, failure_reason, created_at, updated_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.ProductID, &o.Quantity, &o.AmountCents, &status, &o.TransactionID, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order repository: get: %w", err)
	}
	o.Status = domain.Status(status)
	return &o, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	// Match rows whose stored status equals the new status (idempotent
	// rewrite) or may legally transition into it. Anything else means the
	// caller raced a terminal transition.
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, transaction_id = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1 AND (
			status = $2
			OR (status = 'pending' AND $2 IN ('completed', 'failed'))
			OR (status = 'completed' AND $2 = 'refunded')
		)`,
		order.ID, string(order.Status), order.TransactionID, order.FailureReason, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("order repository: update: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return fmt.Errorf("order repository: update: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInvalidTransition
}
