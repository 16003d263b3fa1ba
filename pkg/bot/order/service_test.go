package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/repository/memory"
	"github.com/hugohenrick/whatsapp-commerce/pkg/ai"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/catalog"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/intent"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/session"
	"github.com/hugohenrick/whatsapp-commerce/pkg/chat"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

const tenantID = "tenant-1"

// --- Mocks ---

type ledgerMock struct {
	mu     sync.Mutex
	orders []*domain.Order
	err    error
}

func (m *ledgerMock) SyncOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, order)
	return m.err
}

func (m *ledgerMock) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type aiMock struct {
	out  string
	err  error
	last ai.Request
}

func (m *aiMock) Complete(ctx context.Context, req ai.Request) (string, error) {
	m.last = req
	return m.out, m.err
}

// --- helper ---

type fixture struct {
	store     *memory.Store
	svc       *Service
	sessions  *session.MemoryStore
	ledger    *ledgerMock
	committer *Committer
	settings  *domain.Settings
	contact   *domain.Contact
}

func salePrice(v float64) *float64 { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	for _, p := range []domain.Product{
		{ID: 1, TenantID: tenantID, Name: "Web Camera HD", Category: "Electronics", Price: 49.90, StockQuantity: 5, Status: domain.ProductActive},
		{ID: 2, TenantID: tenantID, Name: "Wireless Mouse", Category: "Accessories", Price: 19.90, StockQuantity: 10, Status: domain.ProductActive},
		{ID: 3, TenantID: tenantID, Name: "USB Hub", Category: "Accessories", Price: 25, SalePrice: salePrice(20), StockQuantity: 2, Status: domain.ProductActive},
		{ID: 4, TenantID: tenantID, Name: "Desk Lamp", Category: "Home", Price: 30, StockQuantity: 3, Status: domain.ProductInactive},
	} {
		store.PutProduct(p)
	}

	settings := &domain.Settings{
		TenantID:         tenantID,
		Enabled:          true,
		CatalogSourceURL: "https://sheets.example.com/catalog",
		Currency:         "USD",
		TaxRate:          10,
		PaymentMethods:   []string{"pix", "credit card"},
	}

	contact := &domain.Contact{TenantID: tenantID, Phone: "+5511999990000", Name: "Ana"}
	require.NoError(t, store.Contacts().Upsert(context.Background(), contact))

	led := &ledgerMock{}
	sessions := session.NewMemoryStore(0)
	committer := NewCommitter(store.Transactor(), store.Products(), store.Orders(), led, nil)
	svc := NewService(Deps{
		Catalog:   catalog.NewIndex(store.Products(), 0),
		Orders:    store.Orders(),
		Sessions:  sessions,
		Committer: committer,
		History:   store.Chat(),
	})

	return &fixture{
		store:     store,
		svc:       svc,
		sessions:  sessions,
		ledger:    led,
		committer: committer,
		settings:  settings,
		contact:   contact,
	}
}

func (f *fixture) request(t *testing.T, in intent.Intent) *Request {
	t.Helper()
	snapshot, err := f.svc.catalog.Snapshot(context.Background(), tenantID)
	require.NoError(t, err)
	return &Request{
		TenantID: tenantID,
		Contact:  f.contact,
		Intent:   in,
		Settings: f.settings,
		Catalog:  snapshot,
	}
}

func (f *fixture) add(t *testing.T, name string, qty int) *reply.Response {
	t.Helper()
	resp, err := f.svc.AddToCart(context.Background(), f.request(t, intent.Intent{
		Type: intent.AddToCart,
		Data: intent.Data{ProductName: name, Quantity: qty},
	}))
	require.NoError(t, err)
	require.True(t, resp.Handled)
	return resp
}

func (f *fixture) pending(t *testing.T) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().FindPending(context.Background(), tenantID, f.contact.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	return o
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), tenantID, id)
	require.NoError(t, err)
	return p.StockQuantity
}

// --- add_to_cart ---

func TestAddToCart_MergesSameProduct(t *testing.T) {
	f := newFixture(t)

	f.add(t, "Web Camera HD", 1)
	resp := f.add(t, "Web Camera HD", 2)

	cart := f.pending(t)
	require.NotNil(t, cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.InDelta(t, 3*49.90, cart.Items[0].LineTotal, 0.001)
	assert.InDelta(t, 149.70, cart.Subtotal, 0.001)
	assert.InDelta(t, 14.97, cart.Tax, 0.001)
	assert.InDelta(t, 164.67, cart.Total, 0.001)

	require.Len(t, resp.Actions, 1)
	assert.Equal(t, reply.ActionCartUpdated, resp.Actions[0].Type)
	assert.Equal(t, 3, resp.Actions[0].Data["quantity"])
}

func TestAddToCart_ReusesPendingOrderWithoutSession(t *testing.T) {
	f := newFixture(t)

	f.add(t, "Web Camera HD", 1)
	first := f.pending(t)

	// losing the session reference must not create a second pending order
	require.NoError(t, f.sessions.Clear(context.Background(), tenantID, f.contact.ID))
	f.add(t, "Wireless Mouse", 1)

	cart := f.pending(t)
	assert.Equal(t, first.ID, cart.ID)
	assert.Len(t, cart.Items, 2)

	orderID, err := f.sessions.Get(context.Background(), tenantID, f.contact.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, orderID)
}

func TestAddToCart_UsesEffectivePrice(t *testing.T) {
	f := newFixture(t)

	f.add(t, "USB Hub", 2)

	cart := f.pending(t)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 20.0, cart.Items[0].UnitPrice)
	assert.Equal(t, 40.0, cart.Items[0].LineTotal)
}

func TestAddToCart_QuantityAboveStock(t *testing.T) {
	f := newFixture(t)

	resp := f.add(t, "Web Camera HD", 6)

	assert.Contains(t, resp.Text, "only 5 left")
	assert.Nil(t, f.pending(t), "cart must not be created")
}

func TestAddToCart_MergedQuantityAboveStock(t *testing.T) {
	f := newFixture(t)

	f.add(t, "Web Camera HD", 4)
	resp := f.add(t, "Web Camera HD", 2)

	assert.Contains(t, resp.Text, "only 5 left")
	assert.Contains(t, resp.Text, "already have 4")
	assert.Contains(t, resp.Text, "add 1 instead")
	assert.Equal(t, 4, f.pending(t).Items[0].Quantity)
}

func TestAddToCart_HugeQuantityHitsStockCheck(t *testing.T) {
	f := newFixture(t)

	resp := f.add(t, "Web Camera HD", 10000)

	assert.Contains(t, resp.Text, "only 5 left")
	assert.Nil(t, f.pending(t))
}

func TestAddToCart_SoldOutProduct(t *testing.T) {
	f := newFixture(t)
	f.store.PutProduct(domain.Product{ID: 5, TenantID: tenantID, Name: "Ring Light", Category: "Electronics", Price: 15, StockQuantity: 0, Status: domain.ProductActive})

	resp := f.add(t, "Ring Light", 1)

	assert.Contains(t, resp.Text, "*Ring Light* is out of stock")
	assert.NotContains(t, resp.Text, "couldn't find")
	assert.Nil(t, f.pending(t))
}

func TestAddToCart_ResolutionFailures(t *testing.T) {
	f := newFixture(t)

	resp := f.add(t, "", 1)
	assert.Equal(t, msgAskProduct, resp.Text)

	resp = f.add(t, "Flying Car", 1)
	assert.Contains(t, resp.Text, "couldn't find \"Flying Car\"")

	// inactive products are not orderable
	resp = f.add(t, "Desk Lamp", 1)
	assert.Contains(t, resp.Text, "couldn't find")

	assert.Nil(t, f.pending(t))
}

func TestAddToCart_WebCameraScenario(t *testing.T) {
	f := newFixture(t)
	classifier := intent.NewKeywordClassifier(intent.DefaultPartialMatch())

	req := f.request(t, intent.Intent{})
	in, err := classifier.Classify(context.Background(), "I want 2 Web Camera HD", req.Catalog, f.settings)
	require.NoError(t, err)
	require.Equal(t, intent.AddToCart, in.Type)

	req.Intent = in
	_, err = f.svc.AddToCart(context.Background(), req)
	require.NoError(t, err)

	cart := f.pending(t)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Web Camera HD", cart.Items[0].ProductName)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

// --- browse / inquiry ---

func TestBrowseProducts(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.BrowseProducts(context.Background(), f.request(t, intent.Intent{Type: intent.BrowseProducts}))
	require.NoError(t, err)

	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "1. *Web Camera HD* - USD 49.90")
	assert.Contains(t, resp.Text, "*USB Hub* - USD 20.00")
	assert.NotContains(t, resp.Text, "Desk Lamp")
	assert.Empty(t, resp.Buttons)
}

func TestBrowseProducts_CapsAtTen(t *testing.T) {
	f := newFixture(t)
	for i := int64(10); i < 25; i++ {
		f.store.PutProduct(domain.Product{ID: i, TenantID: tenantID, Name: fmt.Sprintf("Item %d", i), Price: 1, StockQuantity: 1, Status: domain.ProductActive})
	}

	resp, err := f.svc.BrowseProducts(context.Background(), f.request(t, intent.Intent{Type: intent.BrowseProducts}))
	require.NoError(t, err)

	assert.Contains(t, resp.Text, "10. ")
	assert.NotContains(t, resp.Text, "11. ")
}

func TestBrowseProducts_EmptyCatalog(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, intent.Intent{Type: intent.BrowseProducts})
	req.Catalog = nil

	resp, err := f.svc.BrowseProducts(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, resp.Handled)
	assert.Equal(t, msgEmptyCatalog, resp.Text)
	assert.Empty(t, resp.Buttons)
}

func TestProductInquiry(t *testing.T) {
	f := newFixture(t)

	t.Run("single match has buttons", func(t *testing.T) {
		resp, err := f.svc.ProductInquiry(context.Background(), f.request(t, intent.Intent{
			Type: intent.ProductInquiry, Data: intent.Data{ProductName: "web camera"},
		}))
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "*Web Camera HD*")
		require.Len(t, resp.Buttons, 3)
		assert.Equal(t, "buy_1", resp.Buttons[0].ID)
		assert.Equal(t, "add_cart_1", resp.Buttons[1].ID)
		assert.Equal(t, "more_info_1", resp.Buttons[2].ID)
	})

	t.Run("several matches are listed", func(t *testing.T) {
		resp, err := f.svc.ProductInquiry(context.Background(), f.request(t, intent.Intent{
			Type: intent.ProductInquiry, Data: intent.Data{Category: "Accessories"},
		}))
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "Wireless Mouse")
		assert.Contains(t, resp.Text, "USB Hub")
		assert.Empty(t, resp.Buttons)
	})

	t.Run("no match", func(t *testing.T) {
		resp, err := f.svc.ProductInquiry(context.Background(), f.request(t, intent.Intent{
			Type: intent.ProductInquiry, Data: intent.Data{ProductName: "Telescope"},
		}))
		require.NoError(t, err)
		assert.True(t, resp.Handled)
		assert.Contains(t, resp.Text, "couldn't find any product matching \"Telescope\"")
	})
}

// --- cart / checkout ---

func TestViewCart(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.ViewCart(context.Background(), f.request(t, intent.Intent{Type: intent.ViewCart}))
	require.NoError(t, err)
	assert.Equal(t, msgEmptyCart, resp.Text)

	f.add(t, "Web Camera HD", 2)

	resp, err = f.svc.ViewCart(context.Background(), f.request(t, intent.Intent{Type: intent.ViewCart}))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "2x Web Camera HD - USD 99.80")
	assert.Contains(t, resp.Text, "Subtotal: USD 99.80")
	assert.Contains(t, resp.Text, "Tax: USD 9.98")
	assert.Contains(t, resp.Text, "*Total: USD 109.78*")
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Checkout(context.Background(), f.request(t, intent.Intent{Type: intent.Checkout}))
	require.NoError(t, err)

	assert.True(t, resp.Handled)
	assert.Equal(t, msgCheckoutEmpty, resp.Text)
	assert.Nil(t, f.pending(t))
	assert.Zero(t, f.ledger.calls())
}

func TestCheckout_ConfirmsAndClearsSession(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Web Camera HD", 2)
	f.add(t, "Wireless Mouse", 1)
	cartID := f.pending(t).ID

	resp, err := f.svc.Checkout(context.Background(), f.request(t, intent.Intent{Type: intent.Checkout}))
	require.NoError(t, err)

	assert.Contains(t, resp.Text, "Order confirmed")
	assert.Contains(t, resp.Text, "pix")
	assert.Contains(t, resp.Text, "credit card")
	require.Len(t, resp.Actions, 2)
	assert.Equal(t, reply.ActionOrderConfirmed, resp.Actions[0].Type)
	assert.Equal(t, reply.ActionSessionCleared, resp.Actions[1].Type)

	order, err := f.store.Orders().FindByID(context.Background(), tenantID, cartID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, order.Status)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{6}$`, order.OrderNumber)
	assert.Contains(t, resp.Text, order.OrderNumber)
	assert.Equal(t, "Ana", order.CustomerName)
	assert.Equal(t, "+5511999990000", order.CustomerPhone)
	assert.NotNil(t, order.ConfirmedAt)

	assert.Equal(t, 3, f.stock(t, 1))
	assert.Equal(t, 9, f.stock(t, 2))
	assert.Equal(t, 1, f.ledger.calls())

	_, err = f.sessions.Get(context.Background(), tenantID, f.contact.ID)
	assert.ErrorIs(t, err, session.ErrMiss)
	assert.Nil(t, f.pending(t))

	// the next add starts a new cart
	f.add(t, "Wireless Mouse", 1)
	assert.NotEqual(t, cartID, f.pending(t).ID)
}

func TestCheckout_StockRaceRejectsWholeOrder(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Wireless Mouse", 3)
	f.add(t, "Web Camera HD", 2)

	// another customer bought the cameras in the meantime
	f.store.PutProduct(domain.Product{ID: 1, TenantID: tenantID, Name: "Web Camera HD", Price: 49.90, StockQuantity: 1, Status: domain.ProductActive})

	resp, err := f.svc.Checkout(context.Background(), f.request(t, intent.Intent{Type: intent.Checkout}))
	require.NoError(t, err)

	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "out of stock")
	assert.Contains(t, resp.Text, "Web Camera HD")

	cart := f.pending(t)
	require.NotNil(t, cart)
	assert.Empty(t, cart.OrderNumber)
	assert.Equal(t, 1, f.stock(t, 1))
	assert.Equal(t, 10, f.stock(t, 2))
	assert.Zero(t, f.ledger.calls())
}

func TestCheckout_LedgerFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.ledger.err = errors.New("broker down")
	f.add(t, "Web Camera HD", 1)

	resp, err := f.svc.Checkout(context.Background(), f.request(t, intent.Intent{Type: intent.Checkout}))
	require.NoError(t, err)

	assert.Contains(t, resp.Text, "Order confirmed")
	assert.Equal(t, 1, f.ledger.calls())
	assert.Nil(t, f.pending(t))
}

// --- order status ---

func TestOrderStatus(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.OrderStatus(context.Background(), f.request(t, intent.Intent{Type: intent.OrderStatus}))
	require.NoError(t, err)
	assert.Equal(t, msgNoOrders, resp.Text)

	f.add(t, "Web Camera HD", 1)
	_, err = f.svc.Checkout(context.Background(), f.request(t, intent.Intent{Type: intent.Checkout}))
	require.NoError(t, err)

	orders, err := f.store.Orders().RecentByPhone(context.Background(), tenantID, f.contact.Phone, 3)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	number := orders[0].OrderNumber

	resp, err = f.svc.OrderStatus(context.Background(), f.request(t, intent.Intent{Type: intent.OrderStatus}))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, number)

	partial := strings.ToLower(number[len(number)-6:])
	resp, err = f.svc.OrderStatus(context.Background(), f.request(t, intent.Intent{
		Type: intent.OrderStatus, Data: intent.Data{OrderNumber: partial},
	}))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Order *"+number+"*")
	assert.Contains(t, resp.Text, "Status: confirmed")

	resp, err = f.svc.OrderStatus(context.Background(), f.request(t, intent.Intent{
		Type: intent.OrderStatus, Data: intent.Data{OrderNumber: "ORD-19990101-ZZZZZZ"},
	}))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "couldn't find an order")
}

func TestOrderStatus_RecentOrdersCappedAtThree(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.add(t, "Wireless Mouse", 1)
		_, err := f.svc.Checkout(context.Background(), f.request(t, intent.Intent{Type: intent.Checkout}))
		require.NoError(t, err)
	}

	resp, err := f.svc.OrderStatus(context.Background(), f.request(t, intent.Intent{Type: intent.OrderStatus}))
	require.NoError(t, err)
	assert.Equal(t, RecentOrdersLimit, strings.Count(resp.Text, "• *ORD-"))
}

// --- buttons ---

func TestHandleButton(t *testing.T) {
	f := newFixture(t)

	t.Run("missing product", func(t *testing.T) {
		resp, err := f.svc.HandleButton(context.Background(), f.request(t, intent.Intent{}), reply.ActionBuy, 42)
		require.NoError(t, err)
		assert.True(t, resp.Handled)
		assert.Equal(t, msgNoLongerAvail, resp.Text)
	})

	t.Run("inactive product", func(t *testing.T) {
		resp, err := f.svc.HandleButton(context.Background(), f.request(t, intent.Intent{}), reply.ActionAddCart, 4)
		require.NoError(t, err)
		assert.Equal(t, msgNoLongerAvail, resp.Text)
		assert.Nil(t, f.pending(t))
	})

	t.Run("buy prompts for quantity", func(t *testing.T) {
		resp, err := f.svc.HandleButton(context.Background(), f.request(t, intent.Intent{}), reply.ActionBuy, 1)
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "How many")
		assert.Contains(t, resp.Text, "pix, credit card")
		require.Len(t, resp.Buttons, 1)
		assert.Equal(t, "add_cart_1", resp.Buttons[0].ID)
		assert.Nil(t, f.pending(t))
	})

	t.Run("more info shows detail", func(t *testing.T) {
		resp, err := f.svc.HandleButton(context.Background(), f.request(t, intent.Intent{}), reply.ActionMoreInfo, 3)
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "~USD 25.00~ USD 20.00")
		assert.Len(t, resp.Buttons, 3)
	})

	t.Run("add_cart adds one", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, err := f.svc.HandleButton(context.Background(), f.request(t, intent.Intent{}), reply.ActionAddCart, 2)
			require.NoError(t, err)
		}
		cart := f.pending(t)
		require.NotNil(t, cart)
		assert.Equal(t, 2, cart.ItemQuantity(2))
	})
}

// --- help / unknown ---

func TestHelp(t *testing.T) {
	f := newFixture(t)
	resp, err := f.svc.Help(context.Background(), f.request(t, intent.Intent{Type: intent.Help}))
	require.NoError(t, err)
	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "checkout")
}

func TestUnknown(t *testing.T) {
	f := newFixture(t)
	req := f.request(t, intent.Intent{Type: intent.Unknown})
	req.Message = "do you deliver on sundays?"

	t.Run("no ai configured", func(t *testing.T) {
		resp, err := f.svc.Unknown(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, msgUnknownFallback, resp.Text)
	})

	f.settings.AI = domain.AISettings{Enabled: true, Provider: domain.ProviderOpenAI, APIKey: "k"}
	require.NoError(t, f.store.Chat().SaveMessage(context.Background(), &chat.Message{
		TenantID: tenantID, ContactID: f.contact.ID, Role: chat.RoleUser, Content: "hi",
	}))
	require.NoError(t, f.store.Chat().SaveMessage(context.Background(), &chat.Message{
		TenantID: tenantID, ContactID: f.contact.ID, Role: chat.RoleAssistant, Content: "hello!",
	}))

	t.Run("ai answer", func(t *testing.T) {
		client := &aiMock{out: "We deliver Monday to Saturday."}
		f.svc.ai = client

		resp, err := f.svc.Unknown(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "We deliver Monday to Saturday.", resp.Text)
		assert.Equal(t, req.Message, client.last.UserMessage)
		require.Len(t, client.last.History, 2)
		assert.Equal(t, "hi", client.last.History[0].Content)
		assert.Equal(t, "hello!", client.last.History[1].Content)
	})

	t.Run("blank ai answer falls back", func(t *testing.T) {
		f.svc.ai = &aiMock{out: "  \n "}
		resp, err := f.svc.Unknown(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, resp.Handled)
		assert.Equal(t, msgUnknownFallback, resp.Text)
	})

	t.Run("ai failure falls back", func(t *testing.T) {
		f.svc.ai = &aiMock{err: errors.New("timeout")}
		resp, err := f.svc.Unknown(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, resp.Handled)
		assert.Equal(t, msgUnknownFallback, resp.Text)
	})
}

func TestHandlersCoverTaxonomy(t *testing.T) {
	f := newFixture(t)
	handlers := f.svc.Handlers()
	for _, typ := range intent.All() {
		assert.NotNil(t, handlers[typ], typ)
	}
}
