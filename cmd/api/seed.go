package main

import (
	"time"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/repository/memory"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

// demoTenantID é o tenant disponível em STORAGE=memory
const demoTenantID = "demo"

// seedDemo cria uma loja de exemplo para desenvolvimento local
func seedDemo(store *memory.Store, aiKey string) {
	now := time.Now()
	store.PutTenant(domain.Tenant{ID: demoTenantID, Name: "Demo Store", Active: true, CreatedAt: now, UpdatedAt: now})
	store.PutSettings(domain.Settings{
		TenantID:         demoTenantID,
		Enabled:          true,
		CatalogSourceURL: "memory://demo",
		Currency:         "USD",
		TaxRate:          0,
		PaymentMethods:   []string{"pix", "card"},
		AI: domain.AISettings{
			Enabled:  aiKey != "",
			Provider: domain.ProviderOpenAI,
			APIKey:   aiKey,
		},
		UpdatedAt: now,
	})

	sale := 39.90
	for _, p := range []domain.Product{
		{ID: 1, Name: "Web Camera HD", Category: "Electronics", Price: 49.90, SalePrice: &sale, StockQuantity: 15},
		{ID: 2, Name: "Wireless Mouse", Category: "Accessories", Price: 19.90, StockQuantity: 40},
		{ID: 3, Name: "Mechanical Keyboard", Category: "Accessories", Price: 89.00, StockQuantity: 8},
		{ID: 4, Name: "USB-C Hub", Category: "Electronics", Price: 34.50, StockQuantity: 0},
	} {
		p.TenantID = demoTenantID
		p.Status = domain.ProductActive
		p.CreatedAt, p.UpdatedAt = now, now
		store.PutProduct(p)
	}
}
