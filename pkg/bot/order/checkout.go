package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/ledger"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

const maxNumberAttempts = 3

// InsufficientStockError rejects a checkout when a line cannot be served anymore.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXX.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// Committer finalizes a pending order and commits its stock changes.
type Committer struct {
	tx       repository.Transactor
	products repository.ProductRepository
	orders   repository.OrderRepository
	ledger   ledger.Sink
	logger   logger.Logger

	ledgerTimeout time.Duration
	now           func() time.Time
	newNumber     func(time.Time) string
}

// NewCommitter creates a committer. sink may be nil.
func NewCommitter(tx repository.Transactor, products repository.ProductRepository, orders repository.OrderRepository, sink ledger.Sink, log logger.Logger) *Committer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Committer{
		tx:            tx,
		products:      products,
		orders:        orders,
		ledger:        sink,
		logger:        log,
		ledgerTimeout: ledger.DefaultTimeout,
		now:           time.Now,
		newNumber:     NewOrderNumber,
	}
}

// Commit confirms the order inside one transaction: all lines are checked under
// row locks first, then stock is decremented and the order is confirmed.
// A line whose product no longer exists is skipped.
func (c *Committer) Commit(ctx context.Context, order *domain.Order, contact *domain.Contact) (*domain.Order, error) {
	ctx, span := orderTracer.Start(ctx, "Committer.Commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", order.TenantID),
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)

	if !order.IsPending() {
		return nil, domain.ErrIllegalTransition
	}
	if order.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	var confirmed *domain.Order
	err := c.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		lines, err := c.lockLines(ctx, order)
		if err != nil {
			return err
		}

		for _, l := range lines {
			newStock, err := c.products.DecrementStock(ctx, order.TenantID, l.item.ProductID, l.item.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock of product %d: %w", l.item.ProductID, err)
			}
			if expected := l.stock - l.item.Quantity; newStock != expected {
				c.logger.Warn("Stock discrepancy on checkout",
					"tenant_id", order.TenantID,
					"product_id", l.item.ProductID,
					"expected", expected,
					"actual", newStock,
				)
			}
		}

		confirmed, err = c.confirm(ctx, order, contact)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.logger.Info("Order confirmed",
		"tenant_id", confirmed.TenantID,
		"order_id", confirmed.ID,
		"order_number", confirmed.OrderNumber,
		"total", confirmed.Total,
	)

	c.syncLedger(ctx, confirmed)
	return confirmed, nil
}

type lockedLine struct {
	item  domain.LineItem
	stock int
}

func (c *Committer) lockLines(ctx context.Context, order *domain.Order) ([]lockedLine, error) {
	items := make([]domain.LineItem, len(order.Items))
	copy(items, order.Items)
	// fixed lock order so concurrent checkouts cannot deadlock
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	lines := make([]lockedLine, 0, len(items))
	for _, it := range items {
		p, err := c.products.FindForUpdate(ctx, order.TenantID, it.ProductID)
		if errors.Is(err, repository.ErrNotFound) {
			c.logger.Warn("Product removed before checkout, skipping stock update",
				"tenant_id", order.TenantID,
				"order_id", order.ID,
				"product_id", it.ProductID,
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock product %d: %w", it.ProductID, err)
		}
		if p.StockQuantity < it.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Requested:   it.Quantity,
				Available:   p.StockQuantity,
			}
		}
		lines = append(lines, lockedLine{item: it, stock: p.StockQuantity})
	}
	return lines, nil
}

func (c *Committer) confirm(ctx context.Context, order *domain.Order, contact *domain.Contact) (*domain.Order, error) {
	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		candidate := order.Clone()
		now := c.now()
		if err := candidate.Confirm(c.newNumber(now), contact, now); err != nil {
			return nil, err
		}

		err := c.orders.Confirm(ctx, candidate)
		switch {
		case err == nil:
			return candidate, nil
		case errors.Is(err, repository.ErrDuplicateOrderNumber):
			lastErr = err
			c.logger.Warn("Order number collision, regenerating", "tenant_id", order.TenantID, "order_number", candidate.OrderNumber)
		case errors.Is(err, repository.ErrOrderNotPending):
			return nil, domain.ErrIllegalTransition
		default:
			return nil, fmt.Errorf("confirm order: %w", err)
		}
	}
	return nil, fmt.Errorf("confirm order after %d attempts: %w", maxNumberAttempts, lastErr)
}

func (c *Committer) syncLedger(ctx context.Context, order *domain.Order) {
	if c.ledger == nil {
		return
	}

	// the checkout is already committed; the caller going away must not cancel the sync
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.ledgerTimeout)
	defer cancel()

	if err := c.ledger.SyncOrder(ctx, order); err != nil {
		c.logger.Error("Ledger sync failed",
			"tenant_id", order.TenantID,
			"order_number", order.OrderNumber,
			"error", err,
		)
	}
}
