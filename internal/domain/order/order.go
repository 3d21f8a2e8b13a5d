package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: already exists")
	ErrInvalidQuantity   = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount     = errors.New("order: amount must be zero or greater")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusCompleted: true, StatusFailed: true},
	StatusCompleted: {StatusRefunded: true},
	StatusFailed:    {},
	StatusRefunded:  {},
}

// CanTransition reports whether moving from one status to another is legal.
// completed and failed are terminal except for the single completed -> refunded path.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

type Order struct {
	ID            string
	ProductID     string
	Quantity      int
	AmountCents   int64
	Status        Status
	TransactionID string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New builds a pending order. AmountCents is the price snapshot taken at
// creation time; it never changes afterwards.
func New(id, productID string, quantity int, amountCents int64) (*Order, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if amountCents < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Order{
		ID:          id,
		ProductID:   productID,
		Quantity:    quantity,
		AmountCents: amountCents,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (o *Order) Complete(transactionID string) error {
	if err := o.transition(StatusCompleted); err != nil {
		return err
	}
	o.TransactionID = transactionID
	o.FailureReason = ""
	return nil
}

func (o *Order) Fail(reason string) error {
	if err := o.transition(StatusFailed); err != nil {
		return err
	}
	o.FailureReason = reason
	return nil
}

func (o *Order) Refund() error {
	return o.transition(StatusRefunded)
}

func (o *Order) transition(to Status) error {
	if !CanTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	o.Status = to
	o.touch()
	return nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
