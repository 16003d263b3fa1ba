// Package memory keeps every repository in process memory. It backs the
// STORAGE=memory mode and the package tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hugohenrick/whatsapp-commerce/pkg/chat"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

// Store holds the data shared by the repositories below.
type Store struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	products map[string]map[int64]*domain.Product
	orders   map[string]*domain.Order
	contacts map[string]*domain.Contact
	settings map[string]*domain.Settings
	tenants  map[string]*domain.Tenant
	messages []chat.Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		products: make(map[string]map[int64]*domain.Product),
		orders:   make(map[string]*domain.Order),
		contacts: make(map[string]*domain.Contact),
		settings: make(map[string]*domain.Settings),
		tenants:  make(map[string]*domain.Tenant),
	}
}

// Transactor serializes transactions. When fn fails only the products and
// orders written through the transaction context are put back.
type Transactor struct{ s *Store }

func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

type productKey struct {
	tenantID string
	id       int64
}

// undoLog guarda o valor anterior de cada chave alterada na transação (nil = não existia)
type undoLog struct {
	products map[productKey]*domain.Product
	orders   map[string]*domain.Order
}

type undoKey struct{}

func undoFrom(ctx context.Context) *undoLog {
	u, _ := ctx.Value(undoKey{}).(*undoLog)
	return u
}

func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if undoFrom(ctx) != nil {
		return fn(ctx)
	}

	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	u := &undoLog{
		products: make(map[productKey]*domain.Product),
		orders:   make(map[string]*domain.Order),
	}
	if err := fn(context.WithValue(ctx, undoKey{}, u)); err != nil {
		t.s.undo(u)
		return err
	}
	return nil
}

// rememberProductLocked records the prior product value once per transaction. s.mu must be held.
func (s *Store) rememberProductLocked(ctx context.Context, tenantID string, id int64) {
	u := undoFrom(ctx)
	if u == nil {
		return
	}
	key := productKey{tenantID: tenantID, id: id}
	if _, seen := u.products[key]; seen {
		return
	}
	var prior *domain.Product
	if p, ok := s.products[tenantID][id]; ok {
		cp := *p
		prior = &cp
	}
	u.products[key] = prior
}

// rememberOrderLocked records the prior order value once per transaction. s.mu must be held.
func (s *Store) rememberOrderLocked(ctx context.Context, id string) {
	u := undoFrom(ctx)
	if u == nil {
		return
	}
	if _, seen := u.orders[id]; seen {
		return
	}
	var prior *domain.Order
	if o, ok := s.orders[id]; ok {
		prior = o.Clone()
	}
	u.orders[id] = prior
}

func (s *Store) undo(u *undoLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, prior := range u.products {
		if prior == nil {
			delete(s.products[key.tenantID], key.id)
			continue
		}
		if s.products[key.tenantID] == nil {
			s.products[key.tenantID] = make(map[int64]*domain.Product)
		}
		s.products[key.tenantID][key.id] = prior
	}
	for id, prior := range u.orders {
		if prior == nil {
			delete(s.orders, id)
			continue
		}
		s.orders[id] = prior
	}
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.products[p.TenantID] == nil {
		s.products[p.TenantID] = make(map[int64]*domain.Product)
	}
	cp := p
	s.products[p.TenantID][p.ID] = &cp
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(tenantID string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products[tenantID], id)
}

// PutSettings inserts or replaces the tenant settings.
func (s *Store) PutSettings(st domain.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := st
	cp.PaymentMethods = append([]string(nil), st.PaymentMethods...)
	s.settings[st.TenantID] = &cp
}

// PutTenant inserts or replaces a tenant.
func (s *Store) PutTenant(t domain.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.tenants[t.ID] = &cp
}

// ProductRepository is the in-memory catalog.
type ProductRepository struct{ s *Store }

func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

func (r *ProductRepository) ListActive(_ context.Context, tenantID string) ([]*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.s.products[tenantID]))
	for _, p := range r.s.products[tenantID] {
		if p.Status == domain.ProductActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ProductRepository) FindByID(_ context.Context, tenantID string, productID int64) (*domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.products[tenantID][productID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProductRepository) FindForUpdate(ctx context.Context, tenantID string, productID int64) (*domain.Product, error) {
	return r.FindByID(ctx, tenantID, productID)
}

func (r *ProductRepository) DecrementStock(ctx context.Context, tenantID string, productID int64, quantity int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[tenantID][productID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	r.s.rememberProductLocked(ctx, tenantID, productID)
	p.StockQuantity = max(p.StockQuantity-quantity, 0)
	p.UpdatedAt = time.Now()
	return p.StockQuantity, nil
}

// OrderRepository is the in-memory order store.
type OrderRepository struct{ s *Store }

func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

func (r *OrderRepository) FindByID(_ context.Context, tenantID, orderID string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) FindPending(_ context.Context, tenantID, contactID string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if o := r.s.pendingLocked(tenantID, contactID); o != nil {
		return o.Clone(), nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) pendingLocked(tenantID, contactID string) *domain.Order {
	for _, o := range s.orders {
		if o.TenantID == tenantID && o.ContactID == contactID && o.IsPending() {
			return o
		}
	}
	return nil
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if order.IsPending() && r.s.pendingLocked(order.TenantID, order.ContactID) != nil {
		return repository.ErrPendingOrderExists
	}
	r.s.rememberOrderLocked(ctx, order.ID)
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) SavePending(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.orders[order.ID]
	if !ok || stored.TenantID != order.TenantID {
		return repository.ErrNotFound
	}
	if !stored.IsPending() {
		return repository.ErrOrderNotPending
	}
	r.s.rememberOrderLocked(ctx, order.ID)
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Confirm(ctx context.Context, order *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.orders[order.ID]
	if !ok || stored.TenantID != order.TenantID {
		return repository.ErrNotFound
	}
	if !stored.IsPending() {
		return repository.ErrOrderNotPending
	}
	for id, o := range r.s.orders {
		if id != order.ID && o.TenantID == order.TenantID && o.OrderNumber == order.OrderNumber {
			return repository.ErrDuplicateOrderNumber
		}
	}
	r.s.rememberOrderLocked(ctx, order.ID)
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) confirmed(tenantID string, match func(*domain.Order) bool) []*domain.Order {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.Order
	for _, o := range r.s.orders {
		if o.TenantID == tenantID && o.Status == domain.OrderConfirmed && match(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return confirmedAt(out[i]).After(confirmedAt(out[j])) })
	return out
}

func confirmedAt(o *domain.Order) time.Time {
	if o.ConfirmedAt != nil {
		return *o.ConfirmedAt
	}
	return o.UpdatedAt
}

func limitOrders(orders []*domain.Order, limit, offset int) []*domain.Order {
	if offset >= len(orders) {
		return []*domain.Order{}
	}
	orders = orders[offset:]
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders
}

func (r *OrderRepository) FindByNumber(_ context.Context, tenantID, partial string, limit int) ([]*domain.Order, error) {
	needle := strings.ToUpper(strings.TrimSpace(partial))
	out := r.confirmed(tenantID, func(o *domain.Order) bool {
		return needle != "" && strings.Contains(o.OrderNumber, needle)
	})
	return limitOrders(out, limit, 0), nil
}

func (r *OrderRepository) RecentByPhone(_ context.Context, tenantID, phone string, limit int) ([]*domain.Order, error) {
	out := r.confirmed(tenantID, func(o *domain.Order) bool { return o.CustomerPhone == phone })
	return limitOrders(out, limit, 0), nil
}

func (r *OrderRepository) ListConfirmed(_ context.Context, tenantID string, limit, offset int) ([]*domain.Order, error) {
	out := r.confirmed(tenantID, func(*domain.Order) bool { return true })
	return limitOrders(out, limit, offset), nil
}

// ContactRepository is the in-memory contact store.
type ContactRepository struct{ s *Store }

func (s *Store) Contacts() *ContactRepository { return &ContactRepository{s: s} }

func (r *ContactRepository) FindByID(_ context.Context, tenantID, contactID string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.contacts[contactID]
	if !ok || c.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *ContactRepository) FindByPhone(_ context.Context, tenantID, phone string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.contacts {
		if c.TenantID == tenantID && c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ContactRepository) Upsert(_ context.Context, contact *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	for _, c := range r.s.contacts {
		if c.TenantID == contact.TenantID && c.Phone == contact.Phone {
			if contact.Name != "" {
				c.Name = contact.Name
			}
			if contact.Email != "" {
				c.Email = contact.Email
			}
			c.UpdatedAt = now
			*contact = *c
			return nil
		}
	}

	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	contact.CreatedAt = now
	contact.UpdatedAt = now
	cp := *contact
	r.s.contacts[contact.ID] = &cp
	return nil
}

// SettingsRepository is the in-memory settings store.
type SettingsRepository struct{ s *Store }

func (s *Store) Settings() *SettingsRepository { return &SettingsRepository{s: s} }

func (r *SettingsRepository) FindByTenant(_ context.Context, tenantID string) (*domain.Settings, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.settings[tenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *st
	cp.PaymentMethods = append([]string(nil), st.PaymentMethods...)
	return &cp, nil
}

// TenantRepository is the in-memory tenant store.
type TenantRepository struct{ s *Store }

func (s *Store) Tenants() *TenantRepository { return &TenantRepository{s: s} }

func (r *TenantRepository) FindByID(_ context.Context, tenantID string) (*domain.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tenants[tenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ChatRepository is the in-memory chat history.
type ChatRepository struct{ s *Store }

func (s *Store) Chat() *ChatRepository { return &ChatRepository{s: s} }

func (r *ChatRepository) SaveMessage(_ context.Context, message *chat.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	r.s.messages = append(r.s.messages, *message)
	return nil
}

func (r *ChatRepository) GetContactHistory(_ context.Context, tenantID, contactID string, limit int) ([]chat.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []chat.Message
	for i := len(r.s.messages) - 1; i >= 0; i-- {
		m := r.s.messages[i]
		if m.TenantID != tenantID || m.ContactID != contactID {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var (
	_ repository.Transactor         = (*Transactor)(nil)
	_ repository.ProductRepository  = (*ProductRepository)(nil)
	_ repository.OrderRepository    = (*OrderRepository)(nil)
	_ repository.ContactRepository  = (*ContactRepository)(nil)
	_ repository.SettingsRepository = (*SettingsRepository)(nil)
	_ repository.TenantRepository   = (*TenantRepository)(nil)
	_ chat.Repository               = (*ChatRepository)(nil)
)
