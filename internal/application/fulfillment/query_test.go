package fulfillment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/memory"
)

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.Order
	sets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.Order)}
}

func (c *fakeCache) Set(_ context.Context, o *domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[o.ID] = o.Clone()
	c.sets++
}

func (c *fakeCache) Get(_ context.Context, orderID string) (*domain.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.entries[orderID]
	if ok {
		c.hits++
	}
	return o, ok
}

func TestGetOrderReadsThroughCache(t *testing.T) {
	ledger := memory.NewOrderRepository()
	cache := newFakeCache()
	svc := NewOrderQueryService(ledger, cache, nil)

	o, err := domain.New("ord-1", "prod-1", 1, 1000)
	require.NoError(t, err)
	require.NoError(t, ledger.Insert(context.Background(), o))
	require.NoError(t, o.Complete("TXN-1"))
	require.NoError(t, ledger.Update(context.Background(), o))

	got, err := svc.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache.
	_, err = svc.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets)
}

func TestGetOrderDoesNotCachePending(t *testing.T) {
	ledger := memory.NewOrderRepository()
	cache := newFakeCache()
	svc := NewOrderQueryService(ledger, cache, nil)

	o, err := domain.New("ord-1", "prod-1", 1, 1000)
	require.NoError(t, err)
	require.NoError(t, ledger.Insert(context.Background(), o))

	got, err := svc.GetOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 0, cache.sets)
}

func TestGetOrderUnknown(t *testing.T) {
	svc := NewOrderQueryService(memory.NewOrderRepository(), nil, nil)

	_, err := svc.GetOrder(context.Background(), "ghost")
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, CodeOrderNotFound, f.Code)

	_, err = svc.GetOrder(context.Background(), "")
	f, ok = AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidRequest, f.Code)
}
