package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	description         TEXT NOT NULL DEFAULT '',
	unit_price_cents    BIGINT NOT NULL CHECK (unit_price_cents >= 0),
	stock_level         INTEGER NOT NULL CHECK (stock_level >= 0),
	low_stock_threshold INTEGER NOT NULL DEFAULT 0,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id             TEXT PRIMARY KEY,
	product_id     TEXT NOT NULL REFERENCES products(id),
	quantity       INTEGER NOT NULL CHECK (quantity > 0),
	amount_cents   BIGINT NOT NULL CHECK (amount_cents >= 0),
	status         TEXT NOT NULL,
	transaction_id TEXT NOT NULL DEFAULT '',
	failure_reason TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
CREATE INDEX IF NOT EXISTS idx_products_stock ON products (stock_level);
`

// EnsureSchema applies the table definitions. Idempotent; run at startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
