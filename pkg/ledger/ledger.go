// Package ledger forwards confirmed orders to the merchant's external ledger
// (spreadsheet sync workers consume the published events).
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
)

// DefaultTimeout bounds one sync call.
const DefaultTimeout = 10 * time.Second

// Sink receives confirmed orders. Failures are reported but never undo a checkout.
type Sink interface {
	SyncOrder(ctx context.Context, order *domain.Order) error
}

// OrderEvent is the payload published for a confirmed order.
type OrderEvent struct {
	EventID       string            `json:"event_id"`
	Type          string            `json:"type"`
	OccurredAt    time.Time         `json:"occurred_at"`
	TenantID      string            `json:"tenant_id"`
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	Status        string            `json:"status"`
	Items         []domain.LineItem `json:"items"`
	Subtotal      float64           `json:"subtotal"`
	Tax           float64           `json:"tax"`
	Total         float64           `json:"total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	CustomerEmail string            `json:"customer_email,omitempty"`
}

// EventOrderConfirmed is the event type and routing key of a confirmed order.
const EventOrderConfirmed = "order.confirmed"

// NewOrderEvent builds the event for order.
func NewOrderEvent(order *domain.Order, now time.Time) OrderEvent {
	return OrderEvent{
		EventID:       uuid.NewString(),
		Type:          EventOrderConfirmed,
		OccurredAt:    now.UTC(),
		TenantID:      order.TenantID,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		Items:         order.Items,
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Total:         order.Total,
		Currency:      order.Currency,
		PaymentStatus: string(order.PaymentStatus),
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		CustomerEmail: order.CustomerEmail,
	}
}

// LogSink only logs the write it would have made. Used when no broker is configured.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogSink{logger: log}
}

func (s *LogSink) SyncOrder(_ context.Context, order *domain.Order) error {
	s.logger.Info("Ledger sync (log only)",
		"tenant_id", order.TenantID,
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"items", len(order.Items),
		"total", order.Total,
	)
	return nil
}
