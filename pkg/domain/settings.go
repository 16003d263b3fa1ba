package domain

import (
	"strings"
	"time"
)

// AIProvider names the completion backend configured for a tenant.
type AIProvider string

const (
	ProviderOpenAI    AIProvider = "openai"
	ProviderAnthropic AIProvider = "anthropic"
)

// AISettings holds the credentials and sampling parameters of the tenant's AI provider.
type AISettings struct {
	Enabled     bool          `json:"enabled"`
	Provider    AIProvider    `json:"provider"`
	APIKey      string        `json:"-"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// Usable reports whether AI calls can be attempted at all.
func (a AISettings) Usable() bool {
	return a.Enabled && strings.TrimSpace(a.APIKey) != ""
}

// Settings is the tenant's e-commerce configuration.
type Settings struct {
	TenantID         string     `json:"tenant_id"`
	Enabled          bool       `json:"enabled"`
	CatalogSourceURL string     `json:"catalog_source_url"`
	Currency         string     `json:"currency"`
	TaxRate          float64    `json:"tax_rate"`
	PaymentMethods   []string   `json:"payment_methods"`
	AI               AISettings `json:"ai"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsFullyConfigured reports whether the storefront may answer customers.
func (s *Settings) IsFullyConfigured() bool {
	if s == nil || !s.Enabled {
		return false
	}
	if strings.TrimSpace(s.CatalogSourceURL) == "" || strings.TrimSpace(s.Currency) == "" {
		return false
	}
	return len(s.PaymentMethods) > 0
}
