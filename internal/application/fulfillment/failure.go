package fulfillment

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable failure reason surfaced to callers.
type Code string

const (
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeProductNotFound    Code = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound      Code = "ORDER_NOT_FOUND"
	CodeOutOfStock         Code = "OUT_OF_STOCK"
	CodePaymentDeclined    Code = "PAYMENT_DECLINED"
	CodePaymentUnavailable Code = "PAYMENT_UNAVAILABLE"
	CodeNotCompleted       Code = "NOT_COMPLETED"
	CodeInternal           Code = "INTERNAL"
)

// Retryable reports whether a fresh request may succeed. Only transient
// gateway unavailability qualifies; declined payments and exhausted stock are
// settled business outcomes.
func (c Code) Retryable() bool { return c == CodePaymentUnavailable }

// Failure is a typed engine outcome: a stable code, the order id when one was
// created before the failure, and the underlying cause.
type Failure struct {
	Code    Code
	OrderID string
	Reason  string
	Err     error
}

func (f *Failure) Error() string {
	if f.Reason != "" {
		return fmt.Sprintf("fulfillment: %s: %s", f.Code, f.Reason)
	}
	if f.Err != nil {
		return fmt.Sprintf("fulfillment: %s: %v", f.Code, f.Err)
	}
	return fmt.Sprintf("fulfillment: %s", f.Code)
}

func (f *Failure) Unwrap() error { return f.Err }

func newFailure(code Code, orderID, reason string, err error) *Failure {
	return &Failure{Code: code, OrderID: orderID, Reason: reason, Err: err}
}

// AsFailure extracts a Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
