package alerting

import (
	"context"
	"sync"

	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopfast/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
)

// Worker listens to order lifecycle events and keeps the inventory gauges and
// order counters current. It also emits a warning log the moment a product
// crosses into a worse alert level, and again when it recovers.
type Worker struct {
	store catalog.Store
	log   observability.Logger

	orders     observability.Counter
	payments   observability.Counter
	stockLevel observability.Gauge
	lowStock   observability.Gauge

	mu         sync.Mutex
	lastLevels map[string]catalog.AlertLevel
}

func NewWorker(store catalog.Store, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Worker{
		store:      store,
		log:        tel.Logger().With(observability.F("service", alertingService)),
		orders:     metrics.Counter(observability.MOrders),
		payments:   metrics.Counter(observability.MPaymentAmount),
		stockLevel: metrics.Gauge(observability.MStockLevel),
		lowStock:   metrics.Gauge(observability.MLowStock),
		lastLevels: make(map[string]catalog.AlertLevel),
	}
}

// Register subscribes the worker to every order lifecycle event.
func (w *Worker) Register(bus domoutbox.Subscriber) {
	bus.Subscribe(domorder.OrderCompletedEvent{}.EventName(), w.onCompleted)
	bus.Subscribe(domorder.OrderFailedEvent{}.EventName(), w.onFailed)
	bus.Subscribe(domorder.OrderRefundedEvent{}.EventName(), w.onRefunded)
}

func (w *Worker) onCompleted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCompletedEvent)
	if !ok {
		return nil
	}
	w.orders.Add(1, observability.L("status", string(domorder.StatusCompleted)))
	w.payments.Add(float64(evt.AmountCents), observability.L("kind", "settlement"))
	return w.refresh(ctx, evt.ProductID)
}

func (w *Worker) onFailed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderFailedEvent)
	if !ok {
		return nil
	}
	w.orders.Add(1, observability.L("status", string(domorder.StatusFailed)))
	return w.refresh(ctx, evt.ProductID)
}

func (w *Worker) onRefunded(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderRefundedEvent)
	if !ok {
		return nil
	}
	w.orders.Add(1, observability.L("status", string(domorder.StatusRefunded)))
	w.payments.Add(float64(evt.AmountCents), observability.L("kind", "refund"))
	return w.refresh(ctx, evt.ProductID)
}

// refresh re-reads the catalog, updates the stock gauges, and logs alert level
// changes for the product the event touched.
func (w *Worker) refresh(ctx context.Context, productID string) error {
	products, err := w.store.List(ctx)
	if err != nil {
		return err
	}

	need := 0
	for _, p := range products {
		w.stockLevel.Set(float64(p.StockLevel), observability.L("product_id", p.ID))
		if p.NeedsAttention() {
			need++
		}
		if p.ID == productID {
			w.noteLevel(p)
		}
	}
	w.lowStock.Set(float64(need))
	return nil
}

func (w *Worker) noteLevel(p *catalog.Product) {
	level := p.Alert()

	w.mu.Lock()
	prev, seen := w.lastLevels[p.ID]
	w.lastLevels[p.ID] = level
	w.mu.Unlock()

	if seen && prev == level {
		return
	}
	if level == catalog.AlertOK {
		if seen {
			w.log.Info("stock_level_recovered",
				observability.F("product_id", p.ID),
				observability.F("stock_level", p.StockLevel),
			)
		}
		return
	}
	w.log.Warn("stock_level_alert",
		observability.F("product_id", p.ID),
		observability.F("product_name", p.Name),
		observability.F("stock_level", p.StockLevel),
		observability.F("threshold", p.LowStockThreshold),
		observability.F("level", string(level)),
	)
}
