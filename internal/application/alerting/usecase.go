package alerting

import (
	"context"
	"errors"
	"sort"

	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
	"github.com/Zhima-Mochi/shopfast/internal/observability/logctx"
)

const alertingService = "alerting-service"

var ErrStore = errors.New("alerting: inventory store failure")

// Alert is one product that needs replenishment attention.
type Alert struct {
	ProductID         string
	Name              string
	StockLevel        int
	LowStockThreshold int
	Level             catalog.AlertLevel
}

// Summary aggregates the inventory position across the whole catalog.
type Summary struct {
	TotalProducts int
	TotalUnits    int
	LowStock      int
	CriticalStock int
	OutOfStock    int
	Need          int
}

// InventoryQueryService projects the catalog into alert listings and summary
// counts. It reads live stock; results reflect the instant of the call and
// may be stale by the time the caller acts on them.
type InventoryQueryService struct {
	store catalog.Store
	log   observability.Logger
}

func NewInventoryQueryService(store catalog.Store, tel observability.Observability) *InventoryQueryService {
	if tel == nil {
		tel = observability.Nop()
	}
	return &InventoryQueryService{
		store: store,
		log:   tel.Logger().With(observability.F("service", alertingService)),
	}
}

// Alerts lists every product at or below its threshold, most depleted first.
func (s *InventoryQueryService) Alerts(ctx context.Context) ([]Alert, error) {
	products, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	alerts := make([]Alert, 0, len(products))
	for _, p := range products {
		if !p.NeedsAttention() {
			continue
		}
		alerts = append(alerts, Alert{
			ProductID:         p.ID,
			Name:              p.Name,
			StockLevel:        p.StockLevel,
			LowStockThreshold: p.LowStockThreshold,
			Level:             p.Alert(),
		})
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].StockLevel != alerts[j].StockLevel {
			return alerts[i].StockLevel < alerts[j].StockLevel
		}
		return alerts[i].ProductID < alerts[j].ProductID
	})

	logctx.FromOr(ctx, s.log).Debug("inventory_alerts_listed",
		observability.F("products", len(products)),
		observability.F("alerts", len(alerts)),
	)
	return alerts, nil
}

// Status reports aggregate stock counts for dashboards.
func (s *InventoryQueryService) Status(ctx context.Context) (*Summary, error) {
	products, err := s.store.List(ctx)
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	sum := &Summary{TotalProducts: len(products)}
	for _, p := range products {
		sum.TotalUnits += p.StockLevel
		switch p.Alert() {
		case catalog.AlertLow:
			sum.LowStock++
		case catalog.AlertCritical:
			sum.CriticalStock++
		case catalog.AlertOutOfStock:
			sum.OutOfStock++
		}
	}
	sum.Need = sum.LowStock + sum.CriticalStock + sum.OutOfStock
	return sum, nil
}
