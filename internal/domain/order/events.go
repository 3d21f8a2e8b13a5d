package order

import "time"

// OrderCompletedEvent is emitted after settlement succeeds and the order
// reaches its terminal completed state.
type OrderCompletedEvent struct {
	OrderID       string    `json:"order_id"`
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	AmountCents   int64     `json:"amount_cents"`
	TransactionID string    `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (OrderCompletedEvent) EventName() string { return "order.completed" }

func NewOrderCompletedEvent(o *Order) OrderCompletedEvent {
	return OrderCompletedEvent{
		OrderID:       o.ID,
		ProductID:     o.ProductID,
		Quantity:      o.Quantity,
		AmountCents:   o.AmountCents,
		TransactionID: o.TransactionID,
		OccurredAt:    time.Now().UTC(),
	}
}

// OrderFailedEvent is emitted when an order fails after a successful
// reservation (payment declined, gateway unavailable, storage failure).
// The reserved stock has already been returned by the time it fires.
type OrderFailedEvent struct {
	OrderID     string    `json:"order_id"`
	ProductID   string    `json:"product_id"`
	Quantity    int       `json:"quantity"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (OrderFailedEvent) EventName() string { return "order.failed" }

func NewOrderFailedEvent(o *Order, reason string) OrderFailedEvent {
	return OrderFailedEvent{
		OrderID:     o.ID,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		AmountCents: o.AmountCents,
		Reason:      reason,
		OccurredAt:  time.Now().UTC(),
	}
}

// OrderRefundedEvent is emitted when a completed order is refunded.
type OrderRefundedEvent struct {
	OrderID       string    `json:"order_id"`
	ProductID     string    `json:"product_id"`
	Quantity      int       `json:"quantity"`
	AmountCents   int64     `json:"amount_cents"`
	TransactionID string    `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (OrderRefundedEvent) EventName() string { return "order.refunded" }

func NewOrderRefundedEvent(o *Order) OrderRefundedEvent {
	return OrderRefundedEvent{
		OrderID:       o.ID,
		ProductID:     o.ProductID,
		Quantity:      o.Quantity,
		AmountCents:   o.AmountCents,
		TransactionID: o.TransactionID,
		OccurredAt:    time.Now().UTC(),
	}
}
