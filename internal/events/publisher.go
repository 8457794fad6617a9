// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agent-wallet-service/internal/domain"
	"agent-wallet-service/internal/metrics"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher announces settlement outcomes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TransactionEvent) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.TransactionEvent) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			metrics.EventPublishErrors.Inc()
			logger.Warn(fmt.Sprintf(msg, args...))
		}),
	}

	logger.Info("✅ Kafka publisher initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))

	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish keys messages by user so one user's events stay ordered within a
// partition.
func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.TransactionEvent) error {
	msg, err := buildMessage(ev)
	if err != nil {
		metrics.EventPublishErrors.Inc()
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.EventPublishErrors.Inc()
		p.logger.Error("failed to publish transaction event",
			zap.String("event_id", ev.EventID),
			zap.Error(err))
		return fmt.Errorf("failed to publish transaction event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildMessage(ev domain.TransactionEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode transaction event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.UserID),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
			{Key: "status", Value: []byte(ev.Status)},
		},
	}, nil
}
