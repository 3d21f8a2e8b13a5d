package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
)

const (
	keyOrderStatus = "order_status:%s"
	statusTTL      = 5 * time.Minute
)

// entry is the serialized view of an order's terminal status, enough for the
// read path to answer without touching the ledger.
type entry struct {
	OrderID       string        `json:"order_id"`
	ProductID     string        `json:"product_id"`
	Quantity      int           `json:"quantity"`
	AmountCents   int64         `json:"amount_cents"`
	Status        domain.Status `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

// Cache is a best-effort Redis cache of order statuses with TTL. All methods
// tolerate a nil client: Set becomes a no-op and Get a miss, so the wiring
// works without Redis configured.
type Cache struct {
	rdb *redis.Client
	log observability.Logger
}

func New(addr string, logger observability.Logger) *Cache {
	if logger == nil {
		logger = observability.NopLogger()
	}
	var rdb *redis.Client
	if addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
	}
	return &Cache{
		rdb: rdb,
		log: logger.With(observability.F("component", "status_cache")),
	}
}

func (c *Cache) Set(ctx context.Context, o *domain.Order) {
	if c == nil || c.rdb == nil || o == nil {
		return
	}
	e := entry{
		OrderID:       o.ID,
		ProductID:     o.ProductID,
		Quantity:      o.Quantity,
		AmountCents:   o.AmountCents,
		Status:        o.Status,
		TransactionID: o.TransactionID,
		FailureReason: o.FailureReason,
	}
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	key := fmt.Sprintf(keyOrderStatus, o.ID)
	if err := c.rdb.Set(ctx, key, b, statusTTL).Err(); err != nil {
		c.log.Warn("status_cache_set_failed",
			observability.F("order_id", o.ID),
			observability.F("error", err.Error()),
		)
	}
}

func (c *Cache) Get(ctx context.Context, orderID string) (*domain.Order, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	key := fmt.Sprintf(keyOrderStatus, orderID)
	s, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, false
	}
	return &domain.Order{
		ID:            e.OrderID,
		ProductID:     e.ProductID,
		Quantity:      e.Quantity,
		AmountCents:   e.AmountCents,
		Status:        e.Status,
		TransactionID: e.TransactionID,
		FailureReason: e.FailureReason,
	}, true
}
