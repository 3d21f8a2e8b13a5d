package alerting

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/memory"
)

func seededStore(t *testing.T) *memory.CatalogRepository {
	t.Helper()
	store := memory.NewCatalogRepository()
	seed := []struct {
		id        string
		stock     int
		threshold int
	}{
		{"prod-healthy", 100, 10},
		{"prod-low", 8, 10},
		{"prod-critical", 2, 10},
		{"prod-empty", 0, 10},
	}
	for _, s := range seed {
		p, err := catalog.NewProduct(s.id, "Widget "+s.id, 1000, s.stock, s.threshold)
		require.NoError(t, err)
		require.NoError(t, store.Save(context.Background(), p))
	}
	return store
}

func TestAlertsFiltersAndSorts(t *testing.T) {
	svc := NewInventoryQueryService(seededStore(t), nil)

	alerts, err := svc.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	// Most depleted first, healthy products excluded.
	assert.Equal(t, "prod-empty", alerts[0].ProductID)
	assert.Equal(t, catalog.AlertOutOfStock, alerts[0].Level)
	assert.Equal(t, "prod-critical", alerts[1].ProductID)
	assert.Equal(t, catalog.AlertCritical, alerts[1].Level)
	assert.Equal(t, "prod-low", alerts[2].ProductID)
	assert.Equal(t, catalog.AlertLow, alerts[2].Level)
}

func TestAlertsEmptyCatalog(t *testing.T) {
	svc := NewInventoryQueryService(memory.NewCatalogRepository(), nil)

	alerts, err := svc.Alerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestStatusSummary(t *testing.T) {
	svc := NewInventoryQueryService(seededStore(t), nil)

	sum, err := svc.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, sum.TotalProducts)
	assert.Equal(t, 110, sum.TotalUnits)
	assert.Equal(t, 1, sum.LowStock)
	assert.Equal(t, 1, sum.CriticalStock)
	assert.Equal(t, 1, sum.OutOfStock)
	assert.Equal(t, 3, sum.Need)
}
