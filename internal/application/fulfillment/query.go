package fulfillment

import (
	"context"
	"errors"

	domain "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
	"github.com/Zhima-Mochi/shopfast/internal/observability/logctx"
)

// StatusCache is an optional read-side cache of order statuses. Both methods
// are best effort; a miss or failure falls through to the ledger.
type StatusCache interface {
	Set(ctx context.Context, o *domain.Order)
	Get(ctx context.Context, orderID string) (*domain.Order, bool)
}

// OrderQueryService answers order status lookups, reading through the cache
// for orders that already reached a terminal state.
type OrderQueryService struct {
	ledger domain.Repository
	cache  StatusCache
	log    observability.Logger
}

func NewOrderQueryService(ledger domain.Repository, cache StatusCache, tel observability.Observability) *OrderQueryService {
	if tel == nil {
		tel = observability.Nop()
	}
	return &OrderQueryService{
		ledger: ledger,
		cache:  cache,
		log:    tel.Logger().With(observability.F("service", fulfillmentService)),
	}
}

func (s *OrderQueryService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, newFailure(CodeInvalidRequest, "", "order id is required", nil)
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, orderID); ok {
			return cached, nil
		}
	}

	entity, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, newFailure(CodeOrderNotFound, orderID, "", err)
		}
		return nil, newFailure(CodeInternal, orderID, "ledger lookup failed", err)
	}

	// Pending orders settle within seconds; only terminal statuses are worth
	// caching.
	if s.cache != nil && entity.Status != domain.StatusPending {
		s.cache.Set(ctx, entity)
	}

	logctx.FromOr(ctx, s.log).Debug("order_status_read",
		observability.F("order_id", entity.ID),
		observability.F("status", string(entity.Status)),
	)
	return entity, nil
}
