package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/repository/memory"
	"github.com/hugohenrick/whatsapp-commerce/pkg/ai"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/catalog"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/intent"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/order"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/session"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

const tenantID = "tenant-1"

// --- Mocks ---

type countingProducts struct {
	repository.ProductRepository
	listCalls atomic.Int32
}

func (c *countingProducts) ListActive(ctx context.Context, tenantID string) ([]*domain.Product, error) {
	c.listCalls.Add(1)
	return c.ProductRepository.ListActive(ctx, tenantID)
}

type countingAI struct {
	calls atomic.Int32
	out   string
	err   error
}

func (c *countingAI) Complete(ctx context.Context, req ai.Request) (string, error) {
	c.calls.Add(1)
	return c.out, c.err
}

// --- helper ---

type env struct {
	store      *memory.Store
	products   *countingProducts
	ai         *countingAI
	dispatcher *Dispatcher
	contact    *domain.Contact
}

func newEnv(t *testing.T, configured bool) *env {
	t.Helper()

	store := memory.NewStore()
	store.PutProduct(domain.Product{ID: 1, TenantID: tenantID, Name: "Web Camera HD", Category: "Electronics", Price: 49.90, StockQuantity: 5, Status: domain.ProductActive})
	store.PutProduct(domain.Product{ID: 2, TenantID: tenantID, Name: "Wireless Mouse", Category: "Accessories", Price: 19.90, StockQuantity: 10, Status: domain.ProductActive})

	settings := domain.Settings{
		TenantID:         tenantID,
		Enabled:          true,
		CatalogSourceURL: "https://sheets.example.com/catalog",
		Currency:         "USD",
		PaymentMethods:   []string{"pix"},
		AI:               domain.AISettings{Enabled: true, Provider: domain.ProviderOpenAI, APIKey: "sk-test"},
	}
	if !configured {
		settings.PaymentMethods = nil
	}
	store.PutSettings(settings)

	contact := &domain.Contact{TenantID: tenantID, Phone: "+5511999990000", Name: "Ana"}
	require.NoError(t, store.Contacts().Upsert(context.Background(), contact))

	products := &countingProducts{ProductRepository: store.Products()}
	aiClient := &countingAI{err: errors.New("ai offline")}
	idx := catalog.NewIndex(products, 0)

	svc := order.NewService(order.Deps{
		Catalog:   idx,
		Orders:    store.Orders(),
		Sessions:  session.NewMemoryStore(0),
		Committer: order.NewCommitter(store.Transactor(), store.Products(), store.Orders(), nil, nil),
		AI:        aiClient,
		History:   store.Chat(),
	})
	classifier := intent.NewFallbackClassifier(intent.NewAIClassifier(aiClient), nil, nil)

	d, err := NewDispatcher(Deps{
		Settings:   store.Settings(),
		Catalog:    idx,
		Classifier: classifier,
		Service:    svc,
		History:    store.Chat(),
	})
	require.NoError(t, err)

	return &env{store: store, products: products, ai: aiClient, dispatcher: d, contact: contact}
}

func (e *env) process(msg string) *reply.Response {
	return e.dispatcher.Process(context.Background(), tenantID, msg, e.contact)
}

// --- tests ---

func TestProcess_UnconfiguredTenantDoesNothing(t *testing.T) {
	for name, tenant := range map[string]string{
		"incomplete settings": tenantID,
		"no settings at all":  "tenant-unknown",
	} {
		t.Run(name, func(t *testing.T) {
			e := newEnv(t, false)

			resp := e.dispatcher.Process(context.Background(), tenant, "I want 2 Web Camera HD", e.contact)

			require.NotNil(t, resp)
			assert.False(t, resp.Handled)
			assert.Empty(t, resp.Text)
			assert.Zero(t, e.products.listCalls.Load(), "catalog must not be read")
			assert.Zero(t, e.ai.calls.Load(), "AI must not be called")
		})
	}
}

func TestProcess_AddToCartThroughFallback(t *testing.T) {
	e := newEnv(t, true)

	resp := e.process("I want 2 Web Camera HD")

	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "Added 2x *Web Camera HD*")
	assert.Equal(t, int32(1), e.ai.calls.Load(), "AI tried once before the keyword fallback")

	cart, err := e.store.Orders().FindPending(context.Background(), tenantID, e.contact.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestProcess_AIClassification(t *testing.T) {
	e := newEnv(t, true)
	e.ai.err = nil
	e.ai.out = "```json\n{\"type\":\"browse_products\",\"confidence\":0.97}\n```"

	resp := e.process("what have you got?")

	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "Web Camera HD")
	assert.Contains(t, resp.Text, "Wireless Mouse")
}

func TestProcess_ButtonBypassesClassifier(t *testing.T) {
	e := newEnv(t, true)

	resp := e.process("buy_42")
	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "no longer available")
	assert.Zero(t, e.ai.calls.Load())
	assert.Zero(t, e.products.listCalls.Load())

	resp = e.process("add_cart_2")
	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "Added 1x *Wireless Mouse*")
	assert.Zero(t, e.ai.calls.Load())
}

func TestProcess_CatalogWithNoProducts(t *testing.T) {
	e := newEnv(t, true)
	e.store.DeleteProduct(tenantID, 1)
	e.store.DeleteProduct(tenantID, 2)

	resp := e.process("catalog")

	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "catalog is empty")
	assert.Empty(t, resp.Buttons)
}

func TestProcess_CheckoutWithEmptyCart(t *testing.T) {
	e := newEnv(t, true)

	resp := e.process("checkout")

	assert.True(t, resp.Handled)
	assert.Contains(t, resp.Text, "cart is empty")
	_, err := e.store.Orders().FindPending(context.Background(), tenantID, e.contact.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestProcess_HandlerPanicIsContained(t *testing.T) {
	e := newEnv(t, true)
	handlers := e.dispatcher.service.Handlers()
	handlers[intent.Help] = func(ctx context.Context, req *order.Request) (*reply.Response, error) {
		var p *domain.Product
		_ = p.Name // nil dereference
		return nil, nil
	}
	e.dispatcher.handlers = handlers

	resp := e.process("help")

	require.NotNil(t, resp)
	assert.False(t, resp.Handled)
	assert.Equal(t, GenericErrorMessage, resp.Text)

	// the contact lock was released by the deferred unlock
	resp = e.process("catalog")
	assert.True(t, resp.Handled)
}

func TestProcess_HandlerErrorIsContained(t *testing.T) {
	e := newEnv(t, true)
	handlers := e.dispatcher.service.Handlers()
	handlers[intent.ViewCart] = func(ctx context.Context, req *order.Request) (*reply.Response, error) {
		return nil, errors.New("database is gone")
	}
	e.dispatcher.handlers = handlers

	resp := e.process("show my cart")

	assert.False(t, resp.Handled)
	assert.Equal(t, GenericErrorMessage, resp.Text)
}

func TestProcess_SavesHistory(t *testing.T) {
	e := newEnv(t, true)

	e.process("help")

	history, err := e.store.Chat().GetContactHistory(context.Background(), tenantID, e.contact.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "assistant", history[0].Role)
	assert.Equal(t, "user", history[1].Role)
	assert.Equal(t, "help", history[1].Content)
	assert.Equal(t, "help", history[1].Intent)
}

func TestProcess_ConcurrentMessagesShareOnePendingOrder(t *testing.T) {
	e := newEnv(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := e.process("add_cart_2")
			assert.True(t, resp.Handled)
		}()
	}
	wg.Wait()

	cart, err := e.store.Orders().FindPending(context.Background(), tenantID, e.contact.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestNewDispatcher_RequiresEveryHandler(t *testing.T) {
	e := newEnv(t, true)
	handlers := e.dispatcher.service.Handlers()
	delete(handlers, intent.OrderStatus)

	_, err := NewDispatcher(Deps{
		Settings:   e.store.Settings(),
		Catalog:    e.dispatcher.catalog,
		Classifier: e.dispatcher.classifier,
		Service:    e.dispatcher.service,
		Handlers:   handlers,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_status")
}
