package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

// HandleButton answers a product button click ("buy_42", "add_cart_42", "more_info_42").
func (s *Service) HandleButton(ctx context.Context, req *Request, action reply.ButtonAction, productID int64) (*reply.Response, error) {
	p, err := s.catalog.FindByID(ctx, req.TenantID, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsAvailable() {
		return reply.Text(msgNoLongerAvail), nil
	}

	switch action {
	case reply.ActionAddCart:
		return s.addProduct(ctx, req, *p, 1)
	case reply.ActionMoreInfo:
		return productDetail(*p, req.Settings.Currency), nil
	case reply.ActionBuy:
		return buyPrompt(*p, req.Settings), nil
	}
	return nil, fmt.Errorf("unsupported button action %q", action)
}

func buyPrompt(p domain.Product, settings *domain.Settings) *reply.Response {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Great choice! *%s* costs %s.\n", p.Name, money(settings.Currency, p.EffectivePrice()))
	fmt.Fprintf(&sb, "How many would you like? We have %d in stock.\n", p.StockQuantity)
	fmt.Fprintf(&sb, "Reply for example: \"I want 1 %s\".", p.Name)
	if len(settings.PaymentMethods) > 0 {
		fmt.Fprintf(&sb, "\n\nWe accept: %s.", strings.Join(settings.PaymentMethods, ", "))
	}
	return reply.Text(sb.String()).WithButtons(
		reply.Button{ID: reply.ButtonID(reply.ActionAddCart, p.ID), Title: "Add 1 to cart"},
	)
}
