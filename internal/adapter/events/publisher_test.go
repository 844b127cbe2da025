package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"branch-ledger/internal/core/domain"
	"branch-ledger/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	failures int
	calls    int
	written  []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var (
	_ ports.EventPublisher = (*KafkaPublisher)(nil)
	_ ports.EventPublisher = NoopPublisher{}
)

func testEvent() domain.LedgerEvent {
	return domain.LedgerEvent{
		TransactionID:      7,
		BranchCode:         "WEST",
		Type:               "transfer",
		Account:            "WA0000001",
		DestinationAccount: "WA0000002",
		Amount:             decimal.RequireFromString("500000"),
		Status:             domain.TransactionStatusCompleted,
		OccurredAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, zerolog.Nop())

	require.NoError(t, p.Publish(context.Background(), testEvent()))
	require.Len(t, w.written, 1)

	msg := w.written[0]
	assert.Equal(t, "WA0000001", string(msg.Key))

	var got domain.LedgerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, int64(7), got.TransactionID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("500000")))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "COMPLETED", headers["status"])
	assert.Equal(t, "7", headers["transaction_id"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_Retries(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		w := &fakeWriter{failures: 2}
		p := newKafkaPublisher(w, zerolog.Nop())
		p.retries = []time.Duration{time.Millisecond, time.Millisecond}

		require.NoError(t, p.Publish(context.Background(), testEvent()))
		assert.Equal(t, 3, w.calls)
	})

	t.Run("gives up", func(t *testing.T) {
		w := &fakeWriter{failures: 10}
		p := newKafkaPublisher(w, zerolog.Nop())
		p.retries = []time.Duration{time.Millisecond}

		err := p.Publish(context.Background(), testEvent())
		assert.ErrorContains(t, err, "after 2 attempts")
		assert.Empty(t, w.written)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		w := &fakeWriter{failures: 10}
		p := newKafkaPublisher(w, zerolog.Nop())
		p.retries = []time.Duration{time.Hour}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := p.Publish(ctx, testEvent())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, w.calls)
	})
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.Publish(context.Background(), testEvent()))
	assert.NoError(t, p.Close())
}
