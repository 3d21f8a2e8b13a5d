package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/shopfast/internal/domain/payment"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
)

// declineReasons mirrors the decline outcomes a real processor reports.
var declineReasons = []string{
	"insufficient funds",
	"card declined",
	"payment gateway timeout",
	"invalid card details",
}

type Config struct {
	// FailureRate is the probability [0,1] that a settlement is declined.
	FailureRate float64
	// UnavailableRate is the probability [0,1] that the gateway reports
	// itself unreachable instead of settling.
	UnavailableRate float64
	// MinLatency/MaxLatency bound the simulated settlement round-trip.
	MinLatency time.Duration
	MaxLatency time.Duration
}

// Simulated is a payment.Gateway with configurable decline and latency
// behaviour. The failure rate is injected at construction and adjustable only
// through the explicit SetFailureRate administrative call; it is never a
// process-wide variable.
type Simulated struct {
	mu       sync.Mutex
	random   *rand.Rand
	cfg      Config
	refunded map[string]bool
	log      observability.Logger
}

func NewSimulated(cfg Config, logger observability.Logger) *Simulated {
	if cfg.MinLatency <= 0 {
		cfg.MinLatency = 100 * time.Millisecond
	}
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency + 400*time.Millisecond
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Simulated{
		random:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg:      cfg,
		refunded: make(map[string]bool),
		log:      logger.With(observability.F("component", "payment_gateway")),
	}
}

func (g *Simulated) Settle(ctx context.Context, orderID string, amountCents int64, method string) (*domain.Receipt, error) {
	if err := g.sleep(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	g.mu.Lock()
	unavailable := g.random.Float64() < g.cfg.UnavailableRate
	declined := g.random.Float64() < g.cfg.FailureRate
	reason := declineReasons[g.random.Intn(len(declineReasons))]
	txnID := fmt.Sprintf("TXN-%d-%04d", time.Now().Unix(), g.random.Intn(9000)+1000)
	g.mu.Unlock()

	if unavailable {
		g.log.Warn("settlement_unavailable",
			observability.F("order_id", orderID),
		)
		return nil, domain.ErrUnavailable
	}
	if declined {
		g.log.Warn("settlement_declined",
			observability.F("order_id", orderID),
			observability.F("amount_cents", amountCents),
			observability.F("reason", reason),
		)
		return nil, &domain.DeclinedError{Reason: reason}
	}

	g.log.Info("settlement_success",
		observability.F("order_id", orderID),
		observability.F("amount_cents", amountCents),
		observability.F("method", method),
		observability.F("transaction_id", txnID),
	)
	return &domain.Receipt{
		TransactionID: txnID,
		OrderID:       orderID,
		AmountCents:   amountCents,
	}, nil
}

func (g *Simulated) Refund(ctx context.Context, transactionID string, amountCents int64) error {
	if err := g.sleep(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	g.mu.Lock()
	already := g.refunded[transactionID]
	g.refunded[transactionID] = true
	g.mu.Unlock()

	if already {
		return domain.ErrAlreadyRefunded
	}

	g.log.Info("refund_processed",
		observability.F("transaction_id", transactionID),
		observability.F("amount_cents", amountCents),
	)
	return nil
}

// SetFailureRate adjusts the decline probability at runtime. Clamped to [0,1].
func (g *Simulated) SetFailureRate(rate float64) {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	g.mu.Lock()
	g.cfg.FailureRate = rate
	g.mu.Unlock()
	g.log.Warn("failure_rate_changed",
		observability.F("failure_rate", rate),
	)
}

func (g *Simulated) FailureRate() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.FailureRate
}

// sleep waits the simulated settlement latency, respecting cancellation.
func (g *Simulated) sleep(ctx context.Context) error {
	g.mu.Lock()
	spread := g.cfg.MaxLatency - g.cfg.MinLatency
	d := g.cfg.MinLatency
	if spread > 0 {
		d += time.Duration(g.random.Int63n(int64(spread)))
	}
	g.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
