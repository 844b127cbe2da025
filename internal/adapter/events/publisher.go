package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"branch-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var retryIntervals = []time.Duration{
	200 * time.Millisecond,
	time.Second,
}

// messageWriter is the part of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements ports.EventPublisher on a Kafka topic.
// Messages are keyed by account so one account's events stay ordered.
type KafkaPublisher struct {
	writer       messageWriter
	writeTimeout time.Duration
	retries      []time.Duration
	log          zerolog.Logger
}

// NewKafkaPublisher creates a synchronous writer for topic.
func NewKafkaPublisher(brokers []string, topic string, log zerolog.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}, log)
}

func newKafkaPublisher(w messageWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:       w,
		writeTimeout: 5 * time.Second,
		retries:      retryIntervals,
		log:          log,
	}
}

// Publish writes event, retrying transient failures.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Account),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "status", Value: []byte(event.Status)},
			{Key: "transaction_id", Value: []byte(strconv.FormatInt(event.TransactionID, 10))},
		},
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.retries[attempt-1]):
			case <-ctx.Done():
				return fmt.Errorf("publish ledger event: %w", ctx.Err())
			}
		}

		wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		err = p.writer.WriteMessages(wctx, msg)
		cancel()
		if err == nil {
			return nil
		}
		if attempt >= len(p.retries) {
			return fmt.Errorf("publish ledger event after %d attempts: %w", attempt+1, err)
		}
		p.log.Warn().Err(err).Int64("tx_id", event.TransactionID).Int("attempt", attempt+1).Msg("kafka: publish failed, retrying")
	}
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.LedgerEvent) error { return nil }
func (NoopPublisher) Close() error                                     { return nil }
