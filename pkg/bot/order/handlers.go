package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hugohenrick/whatsapp-commerce/pkg/ai"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/catalog"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/chat"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

const (
	msgEmptyCatalog    = "Our catalog is empty right now. Please check back soon!"
	msgAskProduct      = "Which product would you like? Tell me the name, for example: \"I want 2 Web Camera HD\"."
	msgEmptyCart       = "Your cart is empty. Type *catalog* to browse our products."
	msgCheckoutEmpty   = "Your cart is empty. Add some products before checking out, type *catalog* to see them."
	msgNoOrders        = "You don't have any orders yet. Type *catalog* to start shopping."
	msgNoLongerAvail   = "Sorry, this product is no longer available."
	msgUnknownFallback = "I'm not sure I understood. How can I help you? Type *help* to see what I can do."

	msgHelp = "*How to shop with us*\n\n" +
		"• *catalog*: see our products\n" +
		"• send a product name to see details\n" +
		"• *I want 2 <product>*: add to your cart\n" +
		"• *cart*: review your cart\n" +
		"• *checkout*: place your order\n" +
		"• *order status* or your order number: track an order"

	freeTextSystemPrompt = "You are the friendly sales assistant of an online store talking to a customer on WhatsApp. " +
		"Be brief and helpful. Never invent products, prices, stock or order details; " +
		"when the customer asks for them, tell them to type *catalog* or *help*."
)

// BrowseProducts lists the first available products in catalog order.
func (s *Service) BrowseProducts(_ context.Context, req *Request) (*reply.Response, error) {
	available := catalog.Available(req.Catalog)
	if len(available) == 0 {
		return reply.Text(msgEmptyCatalog), nil
	}
	if len(available) > BrowseLimit {
		available = available[:BrowseLimit]
	}

	var sb strings.Builder
	sb.WriteString("🛍️ *Our products:*\n\n")
	for i, p := range available {
		sb.WriteString(productLine(i+1, p, req.Settings.Currency))
		sb.WriteString("\n")
	}
	sb.WriteString("\nSend a product name for details or say \"I want 2 <product>\" to add it to your cart.")
	return reply.Text(sb.String()), nil
}

// ProductInquiry shows one product with its buttons, or a short list.
func (s *Service) ProductInquiry(_ context.Context, req *Request) (*reply.Response, error) {
	data := req.Intent.Data
	found := catalog.Search(req.Catalog, data.ProductName, data.Category, InquiryLimit)

	switch len(found) {
	case 0:
		term := data.ProductName
		if term == "" {
			term = data.Category
		}
		if term == "" {
			return reply.Text(msgAskProduct), nil
		}
		return reply.Text(fmt.Sprintf("Sorry, I couldn't find any product matching \"%s\". Type *catalog* to see everything we have.", term)), nil
	case 1:
		return productDetail(found[0], req.Settings.Currency), nil
	}

	var sb strings.Builder
	sb.WriteString("I found these products:\n\n")
	for i, p := range found {
		sb.WriteString(productLine(i+1, p, req.Settings.Currency))
		sb.WriteString("\n")
	}
	sb.WriteString("\nWhich one are you interested in?")
	return reply.Text(sb.String()), nil
}

// AddToCart merges the requested product into the contact's pending order.
func (s *Service) AddToCart(ctx context.Context, req *Request) (*reply.Response, error) {
	name := strings.TrimSpace(req.Intent.Data.ProductName)
	if name == "" {
		return reply.Text(msgAskProduct), nil
	}

	p, ok := catalog.FirstByName(req.Catalog, name)
	if !ok {
		if listed, found := catalog.FirstActiveByName(req.Catalog, name); found {
			return stockLimited(listed, 0), nil
		}
		return reply.Text(fmt.Sprintf("Sorry, I couldn't find \"%s\" in our catalog. Type *catalog* to see what we have.", name)), nil
	}

	return s.addProduct(ctx, req, p, req.Intent.Data.QuantityOrDefault())
}

func (s *Service) addProduct(ctx context.Context, req *Request, p domain.Product, quantity int) (*reply.Response, error) {
	ctx, span := orderTracer.Start(ctx, "Service.AddToCart")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.Int64("product.id", p.ID),
		attribute.Int("quantity", quantity),
	)

	if quantity > p.StockQuantity {
		return stockLimited(p, 0), nil
	}

	// check against the current cart before creating anything
	current, err := s.loadCart(ctx, req.TenantID, req.Contact.ID)
	if err != nil {
		return nil, err
	}
	inCart := 0
	if current != nil {
		inCart = current.ItemQuantity(p.ID)
	}
	if inCart+quantity > p.StockQuantity {
		return stockLimited(p, inCart), nil
	}

	cart := current
	if cart == nil {
		cart, err = s.findOrCreateCart(ctx, req.TenantID, req.Contact.ID, req.Settings)
		if err != nil {
			return nil, err
		}
	}

	if err := cart.AddItem(&p, quantity, s.now()); err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	cart.Recalculate(req.Settings.TaxRate)
	if err := s.orders.SavePending(ctx, cart); err != nil {
		if errors.Is(err, repository.ErrOrderNotPending) {
			s.forget(ctx, req.TenantID, req.Contact.ID)
		}
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.Info("Product added to cart",
		"tenant_id", req.TenantID,
		"contact_id", req.Contact.ID,
		"order_id", cart.ID,
		"product_id", p.ID,
		"quantity", quantity,
	)

	text := fmt.Sprintf("✅ Added %dx *%s* to your cart.\nCart total: %s\n\nType *cart* to review or *checkout* to finish.",
		quantity, p.Name, money(cart.Currency, cart.Total))
	return reply.Text(text).WithAction(reply.ActionCartUpdated, map[string]any{
		"order_id":   cart.ID,
		"product_id": p.ID,
		"quantity":   cart.ItemQuantity(p.ID),
	}), nil
}

// stockLimited answers with the current stock. Nothing is mutated.
func stockLimited(p domain.Product, inCart int) *reply.Response {
	if p.StockQuantity <= 0 {
		return reply.Text(fmt.Sprintf("Sorry, *%s* is out of stock right now. Type *catalog* to see what we have.", p.Name))
	}
	text := fmt.Sprintf("Sorry, there are only %d left of *%s*.", p.StockQuantity, p.Name)
	if inCart > 0 {
		text += fmt.Sprintf(" You already have %d in your cart.", inCart)
	}
	if canAdd := p.StockQuantity - inCart; canAdd > 0 {
		text += fmt.Sprintf(" Would you like to add %d instead? Reply \"I want %d %s\".", canAdd, canAdd, p.Name)
	}
	return reply.Text(text)
}

// ViewCart renders the pending order.
func (s *Service) ViewCart(ctx context.Context, req *Request) (*reply.Response, error) {
	cart, err := s.loadCart(ctx, req.TenantID, req.Contact.ID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.IsEmpty() {
		return reply.Text(msgEmptyCart), nil
	}
	return reply.Text(renderCart(cart)), nil
}

// Checkout confirms the pending order and clears the cart reference.
func (s *Service) Checkout(ctx context.Context, req *Request) (*reply.Response, error) {
	cart, err := s.loadCart(ctx, req.TenantID, req.Contact.ID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.IsEmpty() {
		return reply.Text(msgCheckoutEmpty), nil
	}

	confirmed, err := s.committer.Commit(ctx, cart, req.Contact)
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		s.catalog.Invalidate(req.TenantID)
		return reply.Text(fmt.Sprintf(
			"Sorry, *%s* is out of stock (only %d left), so your order was not placed. Your cart is still saved, type *cart* to review it.",
			stockErr.ProductName, stockErr.Available)), nil
	case errors.Is(err, domain.ErrEmptyCart):
		return reply.Text(msgCheckoutEmpty), nil
	case errors.Is(err, domain.ErrIllegalTransition):
		// confirmed by a concurrent request; start over with a fresh cart
		s.forget(ctx, req.TenantID, req.Contact.ID)
		return reply.Text(msgCheckoutEmpty), nil
	case err != nil:
		return nil, err
	}

	s.forget(ctx, req.TenantID, req.Contact.ID)
	s.catalog.Invalidate(req.TenantID)

	return reply.Text(renderConfirmation(confirmed, req.Settings.PaymentMethods)).
		WithAction(reply.ActionOrderConfirmed, map[string]any{
			"order_id":     confirmed.ID,
			"order_number": confirmed.OrderNumber,
			"total":        confirmed.Total,
		}).
		WithAction(reply.ActionSessionCleared, nil), nil
}

// OrderStatus looks an order up by (partial) number, or lists the contact's recent orders.
func (s *Service) OrderStatus(ctx context.Context, req *Request) (*reply.Response, error) {
	number := strings.TrimSpace(req.Intent.Data.OrderNumber)
	if number != "" {
		orders, err := s.orders.FindByNumber(ctx, req.TenantID, number, orderNumberMatches)
		if err != nil {
			return nil, fmt.Errorf("find order by number: %w", err)
		}
		if len(orders) == 0 {
			return reply.Text(fmt.Sprintf("I couldn't find an order matching \"%s\". Please check the number and try again.", number)), nil
		}
		return reply.Text(renderOrderStatus(orders[0])), nil
	}

	orders, err := s.orders.RecentByPhone(ctx, req.TenantID, req.Contact.Phone, RecentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	if len(orders) == 0 {
		return reply.Text(msgNoOrders), nil
	}

	var sb strings.Builder
	sb.WriteString("📦 *Your recent orders:*\n\n")
	for _, o := range orders {
		fmt.Fprintf(&sb, "• *%s* - %s - %s\n", o.OrderNumber, o.Status, money(o.Currency, o.Total))
	}
	sb.WriteString("\nSend an order number for details.")
	return reply.Text(sb.String()), nil
}

// Help returns the static usage text.
func (s *Service) Help(_ context.Context, _ *Request) (*reply.Response, error) {
	return reply.Text(msgHelp), nil
}

// Unknown delegates to the AI free-text responder; it always answers.
func (s *Service) Unknown(ctx context.Context, req *Request) (*reply.Response, error) {
	if s.ai == nil || req.Settings == nil || !req.Settings.AI.Usable() {
		return reply.Text(msgUnknownFallback), nil
	}

	text, err := s.ai.Complete(ctx, ai.Request{
		SystemPrompt: freeTextSystemPrompt,
		History:      s.recentHistory(ctx, req),
		UserMessage:  req.Message,
		Options:      ai.OptionsFromSettings(req.Settings.AI),
	})
	if err != nil {
		s.logger.Warn("AI free-text response failed", "tenant_id", req.TenantID, "contact_id", req.Contact.ID, "error", err)
		return reply.Text(msgUnknownFallback), nil
	}
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("AI free-text response was empty", "tenant_id", req.TenantID, "contact_id", req.Contact.ID)
		return reply.Text(msgUnknownFallback), nil
	}
	return reply.Text(text), nil
}

func (s *Service) recentHistory(ctx context.Context, req *Request) []ai.Message {
	if s.history == nil {
		return nil
	}
	history, err := s.history.GetContactHistory(ctx, req.TenantID, req.Contact.ID, HistoryWindow)
	if err != nil {
		s.logger.Warn("Failed to load chat history", "tenant_id", req.TenantID, "contact_id", req.Contact.ID, "error", err)
		return nil
	}

	msgs := make([]ai.Message, 0, len(history))
	for _, m := range chat.Chronological(history) {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}
