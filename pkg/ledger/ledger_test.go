package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
)

type channelMock struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (m *channelMock) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.exchange = exchange
	m.key = key
	m.msg = msg
	return m.err
}

func (m *channelMock) Close() error {
	m.closed = true
	return nil
}

func confirmedOrder() *domain.Order {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:            "o-1",
		TenantID:      "t-1",
		Status:        domain.OrderConfirmed,
		OrderNumber:   "ORD-20240510-ABC123",
		Items:         []domain.LineItem{{ProductID: 1, ProductName: "Web Camera HD", Quantity: 2, UnitPrice: 49.9, LineTotal: 99.8}},
		Subtotal:      99.8,
		Total:         99.8,
		Currency:      "USD",
		PaymentStatus: domain.PaymentPending,
		CustomerName:  "Ana",
		CustomerPhone: "+5511999990000",
		ConfirmedAt:   &now,
	}
}

func TestRabbitMQSink_SyncOrder(t *testing.T) {
	ch := &channelMock{}
	sink := newRabbitMQSinkWithChannel(ch, "commerce.orders", logger.NewNop())

	require.NoError(t, sink.SyncOrder(context.Background(), confirmedOrder()))

	assert.Equal(t, "commerce.orders", ch.exchange)
	assert.Equal(t, EventOrderConfirmed, ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "t-1", ch.msg.Headers["tenant_id"])

	var event OrderEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &event))
	assert.Equal(t, "ORD-20240510-ABC123", event.OrderNumber)
	assert.Equal(t, "confirmed", event.Status)
	assert.Equal(t, ch.msg.MessageId, event.EventID)
	require.Len(t, event.Items, 1)
	assert.Equal(t, 2, event.Items[0].Quantity)

	require.NoError(t, sink.Close())
	assert.True(t, ch.closed)
}

func TestRabbitMQSink_PublishError(t *testing.T) {
	ch := &channelMock{err: errors.New("channel closed")}
	sink := newRabbitMQSinkWithChannel(ch, "commerce.orders", logger.NewNop())

	err := sink.SyncOrder(context.Background(), confirmedOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORD-20240510-ABC123")
}

func TestNewRabbitMQSink_RequiresExchange(t *testing.T) {
	_, err := NewRabbitMQSink(RabbitMQConfig{URL: "amqp://localhost"}, nil)
	assert.Error(t, err)
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, NewLogSink(nil).SyncOrder(context.Background(), confirmedOrder()))
}
