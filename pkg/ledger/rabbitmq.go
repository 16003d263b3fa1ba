package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
)

// RabbitMQConfig holds the broker settings.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// publisher is the subset of *amqp.Channel used here.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQSink publishes confirmed orders to a topic exchange.
type RabbitMQSink struct {
	conn     *amqp.Connection
	exchange string
	logger   logger.Logger

	mu      sync.Mutex
	channel publisher
}

// NewRabbitMQSink connects with retry, opens a channel and declares the exchange.
func NewRabbitMQSink(cfg RabbitMQConfig, log logger.Logger) (*RabbitMQSink, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("ledger: exchange name cannot be empty")
	}
	if log == nil {
		log = logger.NewNop()
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		retry := time.Duration(i*i)*time.Second + time.Second
		log.Warn("Failed to connect to RabbitMQ, retrying", "retry_in", retry.String(), "error", err)
		time.Sleep(retry)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ledger: open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("ledger: declare exchange: %w", err)
	}

	return &RabbitMQSink{conn: conn, exchange: cfg.Exchange, logger: log, channel: ch}, nil
}

func newRabbitMQSinkWithChannel(ch publisher, exchange string, log logger.Logger) *RabbitMQSink {
	return &RabbitMQSink{exchange: exchange, logger: log, channel: ch}
}

// SyncOrder publishes an order.confirmed event.
func (s *RabbitMQSink) SyncOrder(ctx context.Context, order *domain.Order) error {
	event := NewOrderEvent(order, time.Now())
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ledger: marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.channel.PublishWithContext(
		ctx,
		s.exchange,
		EventOrderConfirmed,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Timestamp:    event.OccurredAt,
			Headers:      amqp.Table{"tenant_id": order.TenantID},
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ledger: publish order %s: %w", order.OrderNumber, err)
	}

	s.logger.Debug("Order published to ledger", "tenant_id", order.TenantID, "order_number", order.OrderNumber)
	return nil
}

// Close releases the channel and the connection.
func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.channel != nil {
		errs = append(errs, s.channel.Close())
	}
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	return errors.Join(errs...)
}
