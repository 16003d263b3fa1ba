package dto

import (
	"time"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

// OrderItemResponse representa uma linha do pedido
type OrderItemResponse struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// OrderResponse representa um pedido confirmado
type OrderResponse struct {
	ID            string              `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Items         []OrderItemResponse `json:"items"`
	Subtotal      float64             `json:"subtotal"`
	Tax           float64             `json:"tax"`
	Total         float64             `json:"total"`
	Currency      string              `json:"currency"`
	CustomerName  string              `json:"customer_name,omitempty"`
	CustomerPhone string              `json:"customer_phone,omitempty"`
	CustomerEmail string              `json:"customer_email,omitempty"`
	ConfirmedAt   *time.Time          `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderListResponse representa uma página de pedidos
type OrderListResponse struct {
	Orders   []OrderResponse `json:"orders"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ToOrderResponse converte um pedido de domínio para DTO
func ToOrderResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}

	return OrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: o.PaymentMethod,
		Items:         items,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Total:         o.Total,
		Currency:      o.Currency,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		CustomerEmail: o.CustomerEmail,
		ConfirmedAt:   o.ConfirmedAt,
		CreatedAt:     o.CreatedAt,
	}
}

// ToOrderListResponse converte uma página de pedidos
func ToOrderListResponse(orders []*domain.Order, p Pagination) OrderListResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return OrderListResponse{Orders: out, Page: p.Page, PageSize: p.PageSize}
}
