package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hugohenrick/whatsapp-commerce/internal/infrastructure/database"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

// TenantRepository implementa repository.TenantRepository
type TenantRepository struct {
	db *database.TxManager
}

// NewTenantRepository cria uma nova instância de TenantRepository
func NewTenantRepository(db *database.TxManager) *TenantRepository {
	return &TenantRepository{db: db}
}

// FindByID implementa repository.TenantRepository.FindByID
func (r *TenantRepository) FindByID(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT id, name, active, created_at, updated_at FROM tenants WHERE id = $1`,
		tenantID,
	).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar tenant: %w", err)
	}
	return &t, nil
}

// Create insere um tenant
func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.db.Conn(ctx).Exec(ctx,
		`INSERT INTO tenants (id, name, active, created_at, updated_at) VALUES ($1, $2, $3, NOW(), NOW())`,
		t.ID, t.Name, t.Active,
	)
	if err != nil {
		return fmt.Errorf("erro ao criar tenant: %w", err)
	}
	return nil
}

var _ repository.TenantRepository = (*TenantRepository)(nil)
