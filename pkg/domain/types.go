package domain

import (
	"errors"
	"math"
	"time"
)

// ProductStatus representa o estado de publicação de um produto
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
	ProductDraft    ProductStatus = "draft"
)

// Product representa um produto do catálogo de um tenant
type Product struct {
	ID            int64         `json:"id"`
	TenantID      string        `json:"tenant_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	SKU           string        `json:"sku"`
	Category      string        `json:"category"`
	Price         float64       `json:"price"`
	SalePrice     *float64      `json:"sale_price,omitempty"`
	StockQuantity int           `json:"stock_quantity"`
	Status        ProductStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// EffectivePrice returns the sale price when it is a real discount, else the list price.
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

// IsAvailable reports whether the product can be browsed and ordered.
func (p *Product) IsAvailable() bool {
	return p.Status == ProductActive && p.StockQuantity > 0
}

// Contact representa o cliente no canal de mensagens
type Contact struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tenant representa a conta isolada de um lojista
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoundMoney arredonda um valor monetário para duas casas
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

var (
	// ErrEmptyCart ocorre ao finalizar um pedido sem itens
	ErrEmptyCart = errors.New("cart is empty")

	// ErrIllegalTransition ocorre quando o pedido já saiu do estado pending
	ErrIllegalTransition = errors.New("illegal order status transition")

	// ErrInvalidQuantity ocorre com quantidades menores que 1
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
