// Package intent classifies inbound customer messages into a fixed taxonomy.
package intent

import (
	"context"
	"errors"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

// Type is the classified purpose of a message.
type Type string

const (
	BrowseProducts Type = "browse_products"
	ProductInquiry Type = "product_inquiry"
	AddToCart      Type = "add_to_cart"
	ViewCart       Type = "view_cart"
	Checkout       Type = "checkout"
	OrderStatus    Type = "order_status"
	Help           Type = "help"
	Unknown        Type = "unknown"
)

// Taxonomy lists the types a classifier may emit, excluding Unknown.
func Taxonomy() []Type {
	return []Type{BrowseProducts, ProductInquiry, AddToCart, ViewCart, Checkout, OrderStatus, Help}
}

// All lists every type including Unknown. Routers must bind all of them.
func All() []Type {
	return append(Taxonomy(), Unknown)
}

// Valid reports whether t is part of the taxonomy (Unknown included).
func (t Type) Valid() bool {
	for _, v := range All() {
		if v == t {
			return true
		}
	}
	return false
}

func (t Type) String() string { return string(t) }

// Data holds the slots extracted from the message.
type Data struct {
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Category    string `json:"category,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}

// QuantityOrDefault returns the requested quantity, 1 when none was extracted.
func (d Data) QuantityOrDefault() int {
	if d.Quantity < 1 {
		return 1
	}
	return d.Quantity
}

// Intent is the transient result of a classification.
type Intent struct {
	Type       Type    `json:"type"`
	Confidence float64 `json:"confidence"`
	Data       Data    `json:"extracted_data"`
}

// UnknownIntent is the default when nothing matched.
func UnknownIntent() Intent {
	return Intent{Type: Unknown}
}

// ErrClassification is returned by a classifier stage that could not produce an intent.
var ErrClassification = errors.New("intent: classification failed")

// Classifier turns a message into an Intent given the tenant's catalog snapshot.
type Classifier interface {
	Classify(ctx context.Context, message string, catalog []domain.Product, settings *domain.Settings) (Intent, error)
}
