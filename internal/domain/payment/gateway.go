package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDeclined marks a settlement rejected by the gateway. A business
	// outcome, not a system failure; wrap with DeclinedError to carry the reason.
	ErrDeclined = errors.New("payment: declined")
	// ErrUnavailable marks a gateway that could not be reached in time.
	// Transient; callers may retry with a fresh order.
	ErrUnavailable = errors.New("payment: gateway unavailable")
	// ErrAlreadyRefunded is returned for a refund of a transaction that was
	// already refunded.
	ErrAlreadyRefunded = errors.New("payment: transaction already refunded")
)

// DeclinedError carries the gateway's decline reason. errors.Is(err, ErrDeclined)
// matches it.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("payment: declined: %s", e.Reason)
}

func (e *DeclinedError) Unwrap() error { return ErrDeclined }

// Receipt is the gateway's proof of a successful settlement.
type Receipt struct {
	TransactionID string
	OrderID       string
	AmountCents   int64
}

// Gateway is the external settlement authority. Settle may take hundreds of
// milliseconds of wall-clock time; callers must never hold inventory locks
// across it and must bound it with a context deadline. Refund is idempotent on
// the gateway side, but callers should still de-duplicate by transaction id.
type Gateway interface {
	Settle(ctx context.Context, orderID string, amountCents int64, method string) (*Receipt, error)
	Refund(ctx context.Context, transactionID string, amountCents int64) error
}
