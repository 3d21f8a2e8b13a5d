package fulfillment

import (
	"context"
	"errors"
	"sync"
	"time"

	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	domain "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopfast/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopfast/internal/domain/payment"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
	"github.com/Zhima-Mochi/shopfast/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const useCaseRefundOrder = "order.refund"

// RefundOrderUseCase reverses a completed order: it returns the settlement
// through the gateway and records the refunded status. Only completed orders
// are refundable, and each settlement is refunded at most once even under
// concurrent requests for the same order.
type RefundOrderUseCase struct {
	store     catalog.Store
	ledger    domain.Repository
	gateway   payment.Gateway
	publisher domoutbox.Publisher
	tel       observability.Observability

	// Units deducted at purchase go back to inventory on refund only when
	// enabled; returned goods usually re-enter stock through a separate
	// inspection flow.
	restockOnRefund bool

	mu       sync.Mutex
	inFlight map[string]struct{}

	log observability.Logger

	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewRefundOrderUseCase(
	store catalog.Store,
	ledger domain.Repository,
	gateway payment.Gateway,
	publisher domoutbox.Publisher,
	restockOnRefund bool,
	tel observability.Observability,
) *RefundOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}

	metrics := tel.Metrics()
	return &RefundOrderUseCase{
		store:           store,
		ledger:          ledger,
		gateway:         gateway,
		publisher:       publisher,
		tel:             tel,
		restockOnRefund: restockOnRefund,
		inFlight:        make(map[string]struct{}),
		log:             tel.Logger().With(observability.F("service", fulfillmentService)),
		reqCounter:      metrics.Counter(observability.MUsecaseRequests),
		durHistogram:    metrics.Histogram(observability.MUsecaseDuration),
		extCounter:      metrics.Counter(observability.MExternalRequests),
		extHistogram:    metrics.Histogram(observability.MExternalRequestDuration),
	}
}

type RefundOrderInput struct {
	OrderID string
}

type RefundOrderResult struct {
	OrderID       string
	Status        domain.Status
	AmountCents   int64
	TransactionID string
}

func (uc *RefundOrderUseCase) Execute(ctx context.Context, cmd RefundOrderInput) (_ *RefundOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseRefundOrder))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"RefundOrder",
		attribute.String("use_case", useCaseRefundOrder),
		attribute.String("order.id", cmd.OrderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseRefundOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseRefundOrder),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	if cmd.OrderID == "" {
		outcome, statusText = "error", string(CodeInvalidRequest)
		return nil, newFailure(CodeInvalidRequest, "", "order id is required", nil)
	}

	entity, gerr := uc.ledger.Get(ctx, cmd.OrderID)
	if gerr != nil {
		if errors.Is(gerr, domain.ErrNotFound) {
			outcome, statusText = "error", string(CodeOrderNotFound)
			return nil, newFailure(CodeOrderNotFound, cmd.OrderID, "", gerr)
		}
		outcome, statusText = "error", string(CodeInternal)
		return nil, newFailure(CodeInternal, cmd.OrderID, "ledger lookup failed", gerr)
	}
	if entity.Status != domain.StatusCompleted {
		outcome, statusText = "error", string(CodeNotCompleted)
		reason := "only completed orders can be refunded"
		if entity.Status == domain.StatusRefunded {
			reason = "order already refunded"
		}
		return nil, newFailure(CodeNotCompleted, entity.ID, reason, domain.ErrInvalidTransition)
	}

	if !uc.claim(entity.TransactionID) {
		outcome, statusText = "error", string(CodeNotCompleted)
		return nil, newFailure(CodeNotCompleted, entity.ID, "refund already in progress", nil)
	}
	defer uc.release(entity.TransactionID)

	if rerr := uc.refund(ctx, entity); rerr != nil && !errors.Is(rerr, payment.ErrAlreadyRefunded) {
		// ErrAlreadyRefunded means a prior attempt reached the gateway but
		// never made it into the ledger; converge the ledger below.
		outcome, statusText = "error", string(CodePaymentUnavailable)
		return nil, newFailure(CodePaymentUnavailable, entity.ID, "refund could not be settled", rerr)
	}

	if terr := entity.Refund(); terr != nil {
		outcome, statusText = "error", string(CodeNotCompleted)
		return nil, newFailure(CodeNotCompleted, entity.ID, "order already refunded", terr)
	}
	if uerr := uc.ledger.Update(ctx, entity); uerr != nil {
		if errors.Is(uerr, domain.ErrInvalidTransition) {
			outcome, statusText = "error", string(CodeNotCompleted)
			return nil, newFailure(CodeNotCompleted, entity.ID, "order already refunded", uerr)
		}
		outcome, statusText = "error", string(CodeInternal)
		return nil, newFailure(CodeInternal, entity.ID, "ledger update failed", uerr)
	}

	if uc.restockOnRefund {
		uc.restock(ctx, logger, entity.ProductID, entity.Quantity)
	}

	uc.publish(ctx, logger, domain.NewOrderRefundedEvent(entity), "order.refunded")

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.refunded",
		trace.WithAttributes(attribute.String("order.id", entity.ID)),
	)

	return &RefundOrderResult{
		OrderID:       entity.ID,
		Status:        entity.Status,
		AmountCents:   entity.AmountCents,
		TransactionID: entity.TransactionID,
	}, nil
}

func (uc *RefundOrderUseCase) claim(transactionID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, busy := uc.inFlight[transactionID]; busy {
		return false
	}
	uc.inFlight[transactionID] = struct{}{}
	return true
}

func (uc *RefundOrderUseCase) release(transactionID string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	delete(uc.inFlight, transactionID)
}

func (uc *RefundOrderUseCase) refund(ctx context.Context, entity *domain.Order) error {
	rctx, cancel := context.WithTimeout(ctx, defaultSettleTimeout)
	defer cancel()

	start := time.Now()
	err := uc.gateway.Refund(rctx, entity.TransactionID, entity.AmountCents)

	extOutcome := "success"
	if err != nil {
		extOutcome = "error"
	}
	uc.extCounter.Add(1,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", refundEndpoint),
		observability.L("outcome", extOutcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", refundEndpoint),
	)
	return err
}

func (uc *RefundOrderUseCase) restock(ctx context.Context, logger observability.Logger, productID string, quantity int) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateGrace)
	defer cancel()

	if err := uc.store.Restock(rctx, productID, quantity); err != nil {
		logger.Error("refund_restock_failed",
			observability.F("product_id", productID),
			observability.F("quantity", quantity),
			observability.F("error", err.Error()),
		)
	}
}

func (uc *RefundOrderUseCase) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event, endpoint string) {
	if uc.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	start := time.Now()
	pubOutcome := "success"
	if err := uc.publisher.Publish(pctx, e); err != nil {
		pubOutcome = "error"
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
	)
}
