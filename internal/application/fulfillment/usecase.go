package fulfillment

import (
	"context"
	"errors"
	"fmt"
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

const (
	fulfillmentService = "fulfillment-service"
	useCasePlaceOrder  = "order.place"
	spanPrefix         = "UC."

	gatewayPeer     = "payment-gateway"
	settleEndpoint  = "settle"
	refundEndpoint  = "refund"
	publishPeer     = "outbox"
	publishTimeout  = 300 * time.Millisecond
	compensateGrace = 5 * time.Second

	defaultSettleTimeout = 3 * time.Second
)

// PlaceOrderUseCase is the purchase path: it reserves stock atomically, records
// a pending order, settles payment outside any inventory lock, and either
// completes the order or returns the reserved units before reporting failure.
// At no point can an order be completed without both a stock deduction and a
// settled payment backing it.
type PlaceOrderUseCase struct {
	store       catalog.Store
	ledger      domain.Repository
	gateway     payment.Gateway
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	tel         observability.Observability

	settleTimeout time.Duration

	log observability.Logger

	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

// NewPlaceOrderUseCase wires the dependencies required to execute the use case.
// A non-positive settleTimeout falls back to the default.
func NewPlaceOrderUseCase(
	store catalog.Store,
	ledger domain.Repository,
	gateway payment.Gateway,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	settleTimeout time.Duration,
	tel observability.Observability,
) *PlaceOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	if settleTimeout <= 0 {
		settleTimeout = defaultSettleTimeout
	}

	metrics := tel.Metrics()
	return &PlaceOrderUseCase{
		store:         store,
		ledger:        ledger,
		gateway:       gateway,
		idGenerator:   idGen,
		publisher:     publisher,
		tel:           tel,
		settleTimeout: settleTimeout,
		log:           tel.Logger().With(observability.F("service", fulfillmentService)),
		reqCounter:    metrics.Counter(observability.MUsecaseRequests),
		durHistogram:  metrics.Histogram(observability.MUsecaseDuration),
		extCounter:    metrics.Counter(observability.MExternalRequests),
		extHistogram:  metrics.Histogram(observability.MExternalRequestDuration),
	}
}

type PlaceOrderInput struct {
	ProductID     string
	Quantity      int
	PaymentMethod string
}

type PlaceOrderResult struct {
	OrderID       string
	Status        domain.Status
	AmountCents   int64
	TransactionID string
}

// Execute runs the full purchase flow. On any failure after the reservation
// succeeded, the reserved units are restocked before the error is returned, and
// the returned *Failure carries the order id when a ledger entry exists.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCasePlaceOrder))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlaceOrder),
		attribute.String("order.product_id", cmd.ProductID),
		attribute.Int("order.quantity", cmd.Quantity),
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
			observability.L("use_case", useCasePlaceOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCasePlaceOrder),
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

	if cmd.ProductID == "" {
		outcome, statusText = "error", string(CodeInvalidRequest)
		return nil, newFailure(CodeInvalidRequest, "", "product id is required", nil)
	}
	if cmd.Quantity <= 0 {
		outcome, statusText = "error", string(CodeInvalidRequest)
		return nil, newFailure(CodeInvalidRequest, "", "quantity must be greater than zero", catalog.ErrInvalidQuantity)
	}
	if cerr := ctx.Err(); cerr != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, cerr
	}

	// Price snapshot. The amount charged is fixed here; later price changes
	// never affect this order.
	product, gerr := uc.store.Get(ctx, cmd.ProductID)
	if gerr != nil {
		if errors.Is(gerr, catalog.ErrNotFound) {
			outcome, statusText = "error", string(CodeProductNotFound)
			return nil, newFailure(CodeProductNotFound, "", "", gerr)
		}
		outcome, statusText = "error", string(CodeInternal)
		return nil, newFailure(CodeInternal, "", "catalog lookup failed", gerr)
	}
	amountCents := product.UnitPriceCents * int64(cmd.Quantity)

	// The single synchronization point. After this succeeds the units belong
	// to this order until it completes or compensates.
	if rerr := uc.store.Reserve(ctx, cmd.ProductID, cmd.Quantity); rerr != nil {
		switch {
		case errors.Is(rerr, catalog.ErrInsufficientStock):
			outcome, statusText = "error", string(CodeOutOfStock)
			return nil, newFailure(CodeOutOfStock, "", "", rerr)
		case errors.Is(rerr, catalog.ErrNotFound):
			outcome, statusText = "error", string(CodeProductNotFound)
			return nil, newFailure(CodeProductNotFound, "", "", rerr)
		default:
			outcome, statusText = "error", string(CodeInternal)
			return nil, newFailure(CodeInternal, "", "reservation failed", rerr)
		}
	}

	orderID := uc.idGenerator.NewID()
	entity, derr := domain.New(orderID, cmd.ProductID, cmd.Quantity, amountCents)
	if derr != nil {
		uc.restock(ctx, logger, cmd.ProductID, cmd.Quantity)
		outcome, statusText = "error", string(CodeInvalidRequest)
		return nil, newFailure(CodeInvalidRequest, "", "", derr)
	}
	if ierr := uc.ledger.Insert(ctx, entity); ierr != nil {
		uc.restock(ctx, logger, cmd.ProductID, cmd.Quantity)
		outcome, statusText = "error", string(CodeInternal)
		return nil, newFailure(CodeInternal, "", "ledger insert failed", ierr)
	}

	span.AddEvent("order.reserved",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	receipt, serr := uc.settle(ctx, orderID, amountCents, cmd.PaymentMethod)
	if serr != nil {
		return uc.abort(ctx, logger, span, entity, serr, &outcome, &statusText)
	}

	if cerr := entity.Complete(receipt.TransactionID); cerr != nil {
		// Unreachable for a freshly inserted pending order; treated as a
		// settlement that cannot be recorded.
		return uc.unwind(ctx, logger, span, entity, receipt, cerr, &outcome, &statusText)
	}
	if uerr := uc.ledger.Update(ctx, entity); uerr != nil {
		return uc.unwind(ctx, logger, span, entity, receipt, uerr, &outcome, &statusText)
	}

	uc.publish(ctx, logger, domain.NewOrderCompletedEvent(entity), "order.completed")

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.completed",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	return &PlaceOrderResult{
		OrderID:       entity.ID,
		Status:        entity.Status,
		AmountCents:   entity.AmountCents,
		TransactionID: entity.TransactionID,
	}, nil
}

// settle calls the gateway under its own deadline, recording external call
// metrics. Inventory locks are never held here.
func (uc *PlaceOrderUseCase) settle(ctx context.Context, orderID string, amountCents int64, method string) (*payment.Receipt, error) {
	sctx, cancel := context.WithTimeout(ctx, uc.settleTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := uc.gateway.Settle(sctx, orderID, amountCents, method)

	extOutcome := "success"
	if err != nil {
		extOutcome = "error"
	}
	uc.extCounter.Add(1,
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", settleEndpoint),
		observability.L("outcome", extOutcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", gatewayPeer),
		observability.L("endpoint", settleEndpoint),
	)

	if err != nil && sctx.Err() != nil && !errors.Is(err, payment.ErrDeclined) {
		// Deadline expiry is indistinguishable from an unreachable gateway.
		return nil, fmt.Errorf("%w: %v", payment.ErrUnavailable, err)
	}
	return receipt, err
}

// abort compensates a failed settlement: the reserved units go back first, then
// the ledger records the terminal failed status. The business failure is
// returned even if the ledger write fails, because inventory is already
// consistent and the payment never happened.
func (uc *PlaceOrderUseCase) abort(
	ctx context.Context,
	logger observability.Logger,
	span trace.Span,
	entity *domain.Order,
	cause error,
	outcome, statusText *string,
) (*PlaceOrderResult, error) {
	code := CodeInternal
	reason := "settlement failed"

	var declined *payment.DeclinedError
	switch {
	case errors.As(cause, &declined):
		code, reason = CodePaymentDeclined, declined.Reason
	case errors.Is(cause, payment.ErrDeclined):
		code, reason = CodePaymentDeclined, "payment declined"
	case errors.Is(cause, payment.ErrUnavailable):
		code, reason = CodePaymentUnavailable, "payment gateway unavailable"
	}

	uc.restock(ctx, logger, entity.ProductID, entity.Quantity)

	if ferr := entity.Fail(reason); ferr == nil {
		if uerr := uc.ledger.Update(ctx, entity); uerr != nil {
			logger.Error("order_fail_record_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", uerr.Error()),
			)
		}
	}

	uc.publish(ctx, logger, domain.NewOrderFailedEvent(entity, reason), "order.failed")

	span.SetAttributes(attribute.String("order.status", string(domain.StatusFailed)))
	span.AddEvent("order.failed",
		trace.WithAttributes(
			attribute.String("order.id", entity.ID),
			attribute.String("order.failure_reason", reason),
		),
	)

	*outcome, *statusText = "error", string(code)
	return nil, newFailure(code, entity.ID, reason, cause)
}

// unwind handles the narrow window where payment settled but the completed
// status could not be recorded. The settlement is refunded and the units
// restocked so no money is held against an order the ledger cannot confirm.
func (uc *PlaceOrderUseCase) unwind(
	ctx context.Context,
	logger observability.Logger,
	span trace.Span,
	entity *domain.Order,
	receipt *payment.Receipt,
	cause error,
	outcome, statusText *string,
) (*PlaceOrderResult, error) {
	logger.Error("order_complete_record_failed",
		observability.F("order_id", entity.ID),
		observability.F("transaction_id", receipt.TransactionID),
		observability.F("error", cause.Error()),
	)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateGrace)
	defer cancel()
	if rerr := uc.gateway.Refund(rctx, receipt.TransactionID, receipt.AmountCents); rerr != nil && !errors.Is(rerr, payment.ErrAlreadyRefunded) {
		logger.Error("order_unwind_refund_failed",
			observability.F("order_id", entity.ID),
			observability.F("transaction_id", receipt.TransactionID),
			observability.F("error", rerr.Error()),
		)
	}

	uc.restock(ctx, logger, entity.ProductID, entity.Quantity)

	reason := "completion could not be recorded"
	if entity.Status == domain.StatusPending {
		if ferr := entity.Fail(reason); ferr == nil {
			if uerr := uc.ledger.Update(ctx, entity); uerr != nil {
				logger.Error("order_fail_record_failed",
					observability.F("order_id", entity.ID),
					observability.F("error", uerr.Error()),
				)
			}
		}
	}

	uc.publish(ctx, logger, domain.NewOrderFailedEvent(entity, reason), "order.failed")

	span.AddEvent("order.unwound",
		trace.WithAttributes(attribute.String("order.id", entity.ID)),
	)

	*outcome, *statusText = "error", string(CodeInternal)
	return nil, newFailure(CodeInternal, entity.ID, reason, cause)
}

// restock returns reserved units to inventory. It runs detached from request
// cancellation; losing the compensation would strand units as phantom stock.
func (uc *PlaceOrderUseCase) restock(ctx context.Context, logger observability.Logger, productID string, quantity int) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateGrace)
	defer cancel()

	if err := uc.store.Restock(rctx, productID, quantity); err != nil {
		logger.Error("restock_compensation_failed",
			observability.F("product_id", productID),
			observability.F("quantity", quantity),
			observability.F("error", err.Error()),
		)
	}
}

// publish forwards a lifecycle event to the outbox, best effort.
func (uc *PlaceOrderUseCase) publish(ctx context.Context, logger observability.Logger, e domoutbox.Event, endpoint string) {
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
