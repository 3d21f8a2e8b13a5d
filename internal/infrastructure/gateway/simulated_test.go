package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/shopfast/internal/domain/payment"
)

func fastGateway(failureRate, unavailableRate float64) *Simulated {
	return NewSimulated(Config{
		FailureRate:     failureRate,
		UnavailableRate: unavailableRate,
		MinLatency:      time.Millisecond,
		MaxLatency:      time.Millisecond,
	}, nil)
}

func TestSettleSucceedsAtZeroFailureRate(t *testing.T) {
	g := fastGateway(0, 0)

	receipt, err := g.Settle(context.Background(), "ord-1", 5000, "card")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", receipt.OrderID)
	assert.Equal(t, int64(5000), receipt.AmountCents)
	assert.True(t, strings.HasPrefix(receipt.TransactionID, "TXN-"))
}

func TestSettleAlwaysDeclinesAtFullFailureRate(t *testing.T) {
	g := fastGateway(1, 0)

	for i := 0; i < 10; i++ {
		_, err := g.Settle(context.Background(), "ord-1", 5000, "card")
		require.ErrorIs(t, err, payment.ErrDeclined)

		var declined *payment.DeclinedError
		require.ErrorAs(t, err, &declined)
		assert.NotEmpty(t, declined.Reason)
	}
}

func TestSettleUnavailable(t *testing.T) {
	g := fastGateway(0, 1)

	_, err := g.Settle(context.Background(), "ord-1", 5000, "card")
	assert.ErrorIs(t, err, payment.ErrUnavailable)
}

func TestSettleRespectsContextCancellation(t *testing.T) {
	g := NewSimulated(Config{
		MinLatency: time.Second,
		MaxLatency: time.Second,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.Settle(ctx, "ord-1", 5000, "card")
	assert.ErrorIs(t, err, payment.ErrUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRefundIsIdempotent(t *testing.T) {
	g := fastGateway(0, 0)

	require.NoError(t, g.Refund(context.Background(), "TXN-1", 5000))
	assert.ErrorIs(t, g.Refund(context.Background(), "TXN-1", 5000), payment.ErrAlreadyRefunded)
}

func TestSetFailureRateClamps(t *testing.T) {
	g := fastGateway(0.5, 0)

	g.SetFailureRate(1.7)
	assert.Equal(t, 1.0, g.FailureRate())

	g.SetFailureRate(-0.3)
	assert.Equal(t, 0.0, g.FailureRate())

	g.SetFailureRate(0.25)
	assert.Equal(t, 0.25, g.FailureRate())
}
