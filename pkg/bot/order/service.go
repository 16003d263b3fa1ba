// Package order implements the conversational cart: one handler per intent,
// the product buttons and the checkout committer.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/hugohenrick/whatsapp-commerce/pkg/ai"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/catalog"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/intent"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/session"
	"github.com/hugohenrick/whatsapp-commerce/pkg/chat"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

var orderTracer = otel.Tracer("bot/order")

// Limits used by the handlers.
const (
	BrowseLimit        = 10
	InquiryLimit       = 5
	RecentOrdersLimit  = 3
	HistoryWindow      = 10
	orderNumberMatches = 3
)

// Request is everything a handler needs to answer one message.
type Request struct {
	TenantID string
	Contact  *domain.Contact
	Message  string
	Intent   intent.Intent
	Settings *domain.Settings
	Catalog  []domain.Product
}

// HandlerFunc answers one intent. Returned errors are turned into a generic apology by the caller.
type HandlerFunc func(ctx context.Context, req *Request) (*reply.Response, error)

// Deps groups the collaborators of the Service.
type Deps struct {
	Catalog   *catalog.Index
	Orders    repository.OrderRepository
	Sessions  session.Store
	Committer *Committer
	AI        ai.Client
	History   chat.Repository
	Logger    logger.Logger
}

// Service holds the cart state machine.
type Service struct {
	catalog   *catalog.Index
	orders    repository.OrderRepository
	sessions  session.Store
	committer *Committer
	ai        ai.Client
	history   chat.Repository
	logger    logger.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates the service. AI and History are optional.
func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		catalog:   d.Catalog,
		orders:    d.Orders,
		sessions:  d.Sessions,
		committer: d.Committer,
		ai:        d.AI,
		history:   d.History,
		logger:    log,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Handlers returns the handler bound to every intent type.
func (s *Service) Handlers() map[intent.Type]HandlerFunc {
	return map[intent.Type]HandlerFunc{
		intent.BrowseProducts: s.BrowseProducts,
		intent.ProductInquiry: s.ProductInquiry,
		intent.AddToCart:      s.AddToCart,
		intent.ViewCart:       s.ViewCart,
		intent.Checkout:       s.Checkout,
		intent.OrderStatus:    s.OrderStatus,
		intent.Help:           s.Help,
		intent.Unknown:        s.Unknown,
	}
}

// loadCart returns the pending order of the contact, or nil when there is none.
func (s *Service) loadCart(ctx context.Context, tenantID, contactID string) (*domain.Order, error) {
	orderID, err := s.sessions.Get(ctx, tenantID, contactID)
	switch {
	case err == nil:
		o, ferr := s.orders.FindByID(ctx, tenantID, orderID)
		if ferr == nil && o.IsPending() && o.ContactID == contactID {
			return o, nil
		}
		if ferr != nil && !errors.Is(ferr, repository.ErrNotFound) {
			return nil, fmt.Errorf("load cart %s: %w", orderID, ferr)
		}
		// stale reference, e.g. the order was confirmed elsewhere
		_ = s.sessions.Clear(ctx, tenantID, contactID)
	case !errors.Is(err, session.ErrMiss):
		s.logger.Warn("Session lookup failed, reading pending order from repository",
			"tenant_id", tenantID, "contact_id", contactID, "error", err)
	}

	o, err := s.orders.FindPending(ctx, tenantID, contactID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pending order: %w", err)
	}
	s.remember(ctx, o)
	return o, nil
}

// findOrCreateCart returns the single pending order of the contact, creating it lazily.
func (s *Service) findOrCreateCart(ctx context.Context, tenantID, contactID string, settings *domain.Settings) (*domain.Order, error) {
	o, err := s.loadCart(ctx, tenantID, contactID)
	if err != nil || o != nil {
		return o, err
	}

	o = domain.NewPendingOrder(s.newID(), tenantID, contactID, settings.Currency, s.now())
	err = s.orders.Create(ctx, o)
	if errors.Is(err, repository.ErrPendingOrderExists) {
		// another instance created it first
		o, err = s.orders.FindPending(ctx, tenantID, contactID)
	}
	if err != nil {
		return nil, fmt.Errorf("create pending order: %w", err)
	}

	s.remember(ctx, o)
	return o, nil
}

func (s *Service) remember(ctx context.Context, o *domain.Order) {
	if err := s.sessions.Set(ctx, o.TenantID, o.ContactID, o.ID); err != nil {
		s.logger.Warn("Failed to store cart reference", "tenant_id", o.TenantID, "contact_id", o.ContactID, "error", err)
	}
}

func (s *Service) forget(ctx context.Context, tenantID, contactID string) {
	if err := s.sessions.Clear(ctx, tenantID, contactID); err != nil {
		s.logger.Warn("Failed to clear cart reference", "tenant_id", tenantID, "contact_id", contactID, "error", err)
	}
}
