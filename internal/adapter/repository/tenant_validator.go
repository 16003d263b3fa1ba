package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
	pkgtenant "github.com/hugohenrick/whatsapp-commerce/pkg/tenant"
)

// TenantValidator implementa pkgtenant.TenantValidator sobre um TenantRepository
type TenantValidator struct {
	repository repository.TenantRepository
}

// NewTenantValidator cria uma nova instância de TenantValidator
func NewTenantValidator(repo repository.TenantRepository) *TenantValidator {
	return &TenantValidator{repository: repo}
}

// ValidateTenant verifica se um tenant existe e está ativo
func (v *TenantValidator) ValidateTenant(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return pkgtenant.ErrTenantNotSpecified
	}

	t, err := v.repository.FindByID(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return pkgtenant.ErrTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("erro ao buscar tenant: %w", err)
	}

	if !t.Active {
		return pkgtenant.ErrTenantNotActive
	}
	return nil
}

var _ pkgtenant.TenantValidator = (*TenantValidator)(nil)
