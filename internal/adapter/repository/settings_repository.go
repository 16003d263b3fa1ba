package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hugohenrick/whatsapp-commerce/internal/infrastructure/database"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

// SettingsRepository lê a tabela ecommerce_settings
type SettingsRepository struct {
	db *database.TxManager
}

// NewSettingsRepository cria uma nova instância de SettingsRepository
func NewSettingsRepository(db *database.TxManager) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// FindByTenant implementa repository.SettingsRepository.FindByTenant
func (r *SettingsRepository) FindByTenant(ctx context.Context, tenantID string) (*domain.Settings, error) {
	query := `
		SELECT tenant_id, enabled, catalog_source_url, currency, tax_rate, payment_methods,
			ai_enabled, ai_provider, ai_api_key, ai_model, ai_temperature, ai_max_tokens,
			ai_timeout_seconds, updated_at
		FROM ecommerce_settings
		WHERE tenant_id = $1`

	var (
		s          domain.Settings
		timeoutSec int
	)
	err := r.db.Conn(ctx).QueryRow(ctx, query, tenantID).Scan(
		&s.TenantID,
		&s.Enabled,
		&s.CatalogSourceURL,
		&s.Currency,
		&s.TaxRate,
		&s.PaymentMethods,
		&s.AI.Enabled,
		&s.AI.Provider,
		&s.AI.APIKey,
		&s.AI.Model,
		&s.AI.Temperature,
		&s.AI.MaxTokens,
		&timeoutSec,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar configuração da loja: %w", err)
	}
	s.AI.Timeout = time.Duration(timeoutSec) * time.Second
	return &s, nil
}

// Save grava a configuração da loja do tenant
func (r *SettingsRepository) Save(ctx context.Context, s *domain.Settings) error {
	query := `
		INSERT INTO ecommerce_settings (tenant_id, enabled, catalog_source_url, currency, tax_rate,
			payment_methods, ai_enabled, ai_provider, ai_api_key, ai_model, ai_temperature,
			ai_max_tokens, ai_timeout_seconds, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			catalog_source_url = EXCLUDED.catalog_source_url,
			currency = EXCLUDED.currency,
			tax_rate = EXCLUDED.tax_rate,
			payment_methods = EXCLUDED.payment_methods,
			ai_enabled = EXCLUDED.ai_enabled,
			ai_provider = EXCLUDED.ai_provider,
			ai_api_key = EXCLUDED.ai_api_key,
			ai_model = EXCLUDED.ai_model,
			ai_temperature = EXCLUDED.ai_temperature,
			ai_max_tokens = EXCLUDED.ai_max_tokens,
			ai_timeout_seconds = EXCLUDED.ai_timeout_seconds,
			updated_at = NOW()`

	methods := s.PaymentMethods
	if methods == nil {
		methods = []string{}
	}
	_, err := r.db.Conn(ctx).Exec(ctx, query,
		s.TenantID, s.Enabled, s.CatalogSourceURL, s.Currency, s.TaxRate, methods,
		s.AI.Enabled, s.AI.Provider, s.AI.APIKey, s.AI.Model, s.AI.Temperature,
		s.AI.MaxTokens, int(s.AI.Timeout/time.Second),
	)
	if err != nil {
		return fmt.Errorf("erro ao salvar configuração da loja: %w", err)
	}
	return nil
}

var _ repository.SettingsRepository = (*SettingsRepository)(nil)
