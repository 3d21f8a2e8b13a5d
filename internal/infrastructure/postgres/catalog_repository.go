package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
)

// CatalogRepository is a pgx-backed catalog.Store. Reserve relies on a single
// conditional UPDATE guarded by the stock_level predicate, so the database row
// lock makes the check-and-decrement linearizable per product; there is never a
// read-then-write window.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const productColumns = `id, name, description, unit_price_cents, stock_level, low_stock_threshold, updated_at`

func (r *CatalogRepository) Save(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return domain.ErrNotFound
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, name, description, unit_price_cents, stock_level, low_stock_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			unit_price_cents = EXCLUDED.unit_price_cents,
			stock_level = EXCLUDED.stock_level,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = now()`,
		p.ID, p.Name, p.Description, p.UnitPriceCents, p.StockLevel, p.LowStockThreshold,
	)
	if err != nil {
		return fmt.Errorf("catalog repository: save: %w", err)
	}
	return nil
}

func (r *CatalogRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	return scanProduct(row)
}

func (r *CatalogRepository) List(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog repository: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog repository: list: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE products
		SET stock_level = stock_level - $2, updated_at = now()
		WHERE id = $1 AND stock_level >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("catalog repository: reserve: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	// The guarded UPDATE touched nothing: either the product does not exist
	// or the stock predicate failed. Distinguish with a plain lookup.
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return fmt.Errorf("catalog repository: reserve: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *CatalogRepository) Restock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE products
		SET stock_level = stock_level + $2, updated_at = now()
		WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("catalog repository: restock: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) SetPrice(ctx context.Context, productID string, unitPriceCents int64) error {
	if unitPriceCents < 0 {
		return domain.ErrInvalidPrice
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE products
		SET unit_price_cents = $2, updated_at = now()
		WHERE id = $1`,
		productID, unitPriceCents,
	)
	if err != nil {
		return fmt.Errorf("catalog repository: set price: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.UnitPriceCents, &p.StockLevel, &p.LowStockThreshold, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog repository: scan: %w", err)
	}
	return &p, nil
}
