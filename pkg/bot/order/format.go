package order

import (
	"fmt"
	"strings"

	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

func money(currency string, v float64) string {
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %.2f", currency, v)
}

func productLine(i int, p domain.Product, currency string) string {
	return fmt.Sprintf("%d. *%s* - %s", i, p.Name, money(currency, p.EffectivePrice()))
}

func productDetail(p domain.Product, currency string) *reply.Response {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s*\n", p.Name)
	if p.Description != "" {
		sb.WriteString(p.Description)
		sb.WriteString("\n")
	}
	if p.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", p.Category)
	}
	price := p.EffectivePrice()
	if price < p.Price {
		fmt.Fprintf(&sb, "Price: ~%s~ %s\n", money(currency, p.Price), money(currency, price))
	} else {
		fmt.Fprintf(&sb, "Price: %s\n", money(currency, price))
	}
	fmt.Fprintf(&sb, "In stock: %d", p.StockQuantity)

	return reply.Text(sb.String()).WithButtons(
		reply.Button{ID: reply.ButtonID(reply.ActionBuy, p.ID), Title: "Buy now"},
		reply.Button{ID: reply.ButtonID(reply.ActionAddCart, p.ID), Title: "Add to cart"},
		reply.Button{ID: reply.ButtonID(reply.ActionMoreInfo, p.ID), Title: "More info"},
	)
}

func renderItems(sb *strings.Builder, o *domain.Order) {
	for _, it := range o.Items {
		fmt.Fprintf(sb, "• %dx %s - %s\n", it.Quantity, it.ProductName, money(o.Currency, it.LineTotal))
	}
}

func renderTotals(sb *strings.Builder, o *domain.Order) {
	fmt.Fprintf(sb, "\nSubtotal: %s\n", money(o.Currency, o.Subtotal))
	if o.Tax > 0 {
		fmt.Fprintf(sb, "Tax: %s\n", money(o.Currency, o.Tax))
	}
	fmt.Fprintf(sb, "*Total: %s*", money(o.Currency, o.Total))
}

func renderCart(o *domain.Order) string {
	var sb strings.Builder
	sb.WriteString("🛒 *Your cart:*\n\n")
	renderItems(&sb, o)
	renderTotals(&sb, o)
	sb.WriteString("\n\nType *checkout* to place your order or keep adding products.")
	return sb.String()
}

func renderConfirmation(o *domain.Order, paymentMethods []string) string {
	var sb strings.Builder
	sb.WriteString("🎉 *Order confirmed!*\n")
	fmt.Fprintf(&sb, "Order number: *%s*\n\n", o.OrderNumber)
	renderItems(&sb, o)
	renderTotals(&sb, o)
	if len(paymentMethods) > 0 {
		sb.WriteString("\n\n*Payment methods:*\n")
		for _, m := range paymentMethods {
			fmt.Fprintf(&sb, "• %s\n", m)
		}
	} else {
		sb.WriteString("\n\n")
	}
	sb.WriteString("Thank you for your purchase!")
	return sb.String()
}

func renderOrderStatus(o *domain.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 Order *%s*\n", o.OrderNumber)
	fmt.Fprintf(&sb, "Status: %s\n", o.Status)
	fmt.Fprintf(&sb, "Payment: %s\n", o.PaymentStatus)
	fmt.Fprintf(&sb, "Total: %s\n", money(o.Currency, o.Total))
	placed := o.CreatedAt
	if o.ConfirmedAt != nil {
		placed = *o.ConfirmedAt
	}
	fmt.Fprintf(&sb, "Placed on: %s", placed.Format("2006-01-02"))
	return sb.String()
}
