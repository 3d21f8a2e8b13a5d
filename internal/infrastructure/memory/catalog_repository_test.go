package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
)

func seedProduct(t *testing.T, r *CatalogRepository, id string, stock int) {
	t.Helper()
	p, err := catalog.NewProduct(id, "Widget "+id, 1000, stock, 5)
	require.NoError(t, err)
	require.NoError(t, r.Save(context.Background(), p))
}

func TestGetReturnsClone(t *testing.T) {
	r := NewCatalogRepository()
	seedProduct(t, r, "prod-1", 10)

	p, err := r.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	p.StockLevel = 0

	again, err := r.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 10, again.StockLevel)
}

func TestGetNotFound(t *testing.T) {
	r := NewCatalogRepository()
	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestListSortedByID(t *testing.T) {
	r := NewCatalogRepository()
	seedProduct(t, r, "prod-b", 1)
	seedProduct(t, r, "prod-a", 2)
	seedProduct(t, r, "prod-c", 3)

	products, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "prod-a", products[0].ID)
	assert.Equal(t, "prod-b", products[1].ID)
	assert.Equal(t, "prod-c", products[2].ID)
}

func TestReserve(t *testing.T) {
	r := NewCatalogRepository()
	seedProduct(t, r, "prod-1", 10)

	require.NoError(t, r.Reserve(context.Background(), "prod-1", 4))

	p, err := r.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 6, p.StockLevel)

	assert.ErrorIs(t, r.Reserve(context.Background(), "prod-1", 7), catalog.ErrInsufficientStock)
	assert.ErrorIs(t, r.Reserve(context.Background(), "missing", 1), catalog.ErrNotFound)
}

func TestReserveNeverOversells(t *testing.T) {
	r := NewCatalogRepository()
	seedProduct(t, r, "prod-1", 10)

	const workers = 5
	const quantity = 3

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Reserve(context.Background(), "prod-1", quantity)
		}()
	}
	wg.Wait()
	close(results)

	reserved := 0
	for err := range results {
		if err == nil {
			reserved += quantity
		} else {
			assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
		}
	}

	p, err := r.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, reserved, 10)
	assert.Equal(t, 10-reserved, p.StockLevel)
}

func TestRestock(t *testing.T) {
	r := NewCatalogRepository()
	seedProduct(t, r, "prod-1", 2)

	require.NoError(t, r.Restock(context.Background(), "prod-1", 5))

	p, err := r.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.StockLevel)

	assert.ErrorIs(t, r.Restock(context.Background(), "missing", 1), catalog.ErrNotFound)
}

func TestSetPrice(t *testing.T) {
	r := NewCatalogRepository()
	seedProduct(t, r, "prod-1", 2)

	require.NoError(t, r.SetPrice(context.Background(), "prod-1", 2500))

	p, err := r.Get(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), p.UnitPriceCents)
}
