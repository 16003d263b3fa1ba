package domain

import (
	"time"
)

// OrderStatus is the lifecycle state of an order. Pending orders act as the cart.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
)

// PaymentStatus tracks whether the customer has paid.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// LineItem snapshots the product name and price at the time it was added.
type LineItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// Order is the CartOrder: pending while it is a cart, confirmed once checked out.
type Order struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	ContactID     string        `json:"contact_id"`
	Status        OrderStatus   `json:"status"`
	Items         []LineItem    `json:"items"`
	Subtotal      float64       `json:"subtotal"`
	Tax           float64       `json:"tax"`
	Total         float64       `json:"total"`
	Currency      string        `json:"currency"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderNumber   string        `json:"order_number,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewPendingOrder creates an empty cart for the contact.
func NewPendingOrder(id, tenantID, contactID, currency string, now time.Time) *Order {
	return &Order{
		ID:            id,
		TenantID:      tenantID,
		ContactID:     contactID,
		Status:        OrderPending,
		Items:         []LineItem{},
		Currency:      currency,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsPending reports whether the order is still a cart.
func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

// IsEmpty reports whether the order has no line items.
func (o *Order) IsEmpty() bool {
	return len(o.Items) == 0
}

// ItemQuantity returns the quantity of the product already in the order.
func (o *Order) ItemQuantity(productID int64) int {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// AddItem merges quantity into an existing line for the product, or appends a new line.
// The line total is recomputed with the product's current effective price.
func (o *Order) AddItem(p *Product, quantity int, now time.Time) error {
	if !o.IsPending() {
		return ErrIllegalTransition
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	price := p.EffectivePrice()
	for i := range o.Items {
		if o.Items[i].ProductID == p.ID {
			o.Items[i].Quantity += quantity
			o.Items[i].UnitPrice = price
			o.Items[i].LineTotal = RoundMoney(price * float64(o.Items[i].Quantity))
			o.UpdatedAt = now
			return nil
		}
	}

	o.Items = append(o.Items, LineItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   price,
		LineTotal:   RoundMoney(price * float64(quantity)),
	})
	o.UpdatedAt = now
	return nil
}

// Recalculate sets subtotal, tax and total. taxRate is a percentage (e.g. 10 for 10%).
func (o *Order) Recalculate(taxRate float64) {
	var subtotal float64
	for _, it := range o.Items {
		subtotal += it.LineTotal
	}
	o.Subtotal = RoundMoney(subtotal)
	o.Tax = RoundMoney(o.Subtotal * taxRate / 100)
	o.Total = RoundMoney(o.Subtotal + o.Tax)
}

// Confirm moves the order from pending to confirmed and stamps the customer snapshot.
// Confirmed is terminal, so calling Confirm twice fails and the number is never replaced.
func (o *Order) Confirm(orderNumber string, contact *Contact, now time.Time) error {
	if !o.IsPending() {
		return ErrIllegalTransition
	}
	if o.IsEmpty() {
		return ErrEmptyCart
	}

	o.Status = OrderConfirmed
	o.OrderNumber = orderNumber
	if contact != nil {
		o.CustomerName = contact.Name
		o.CustomerPhone = contact.Phone
		o.CustomerEmail = contact.Email
	}
	confirmedAt := now
	o.ConfirmedAt = &confirmedAt
	o.UpdatedAt = now
	return nil
}

// Clone returns a deep copy; the in-memory repositories hand out copies.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	copy(c.Items, o.Items)
	if o.ConfirmedAt != nil {
		t := *o.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}
