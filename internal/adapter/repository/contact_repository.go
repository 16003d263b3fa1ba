package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hugohenrick/whatsapp-commerce/internal/infrastructure/database"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

const contactColumns = `id, tenant_id, phone, name, email, created_at, updated_at`

// ContactRepository implementa repository.ContactRepository no PostgreSQL
type ContactRepository struct {
	db *database.TxManager
}

// NewContactRepository cria uma nova instância de ContactRepository
func NewContactRepository(db *database.TxManager) *ContactRepository {
	return &ContactRepository{db: db}
}

// FindByID implementa repository.ContactRepository.FindByID
func (r *ContactRepository) FindByID(ctx context.Context, tenantID, contactID string) (*domain.Contact, error) {
	if _, err := uuid.Parse(contactID); err != nil {
		return nil, repository.ErrNotFound
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND id = $2`
	return r.findOne(ctx, query, tenantID, contactID)
}

// FindByPhone implementa repository.ContactRepository.FindByPhone
func (r *ContactRepository) FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE tenant_id = $1 AND phone = $2`
	return r.findOne(ctx, query, tenantID, phone)
}

func (r *ContactRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Contact, error) {
	var c domain.Contact
	err := r.db.Conn(ctx).QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.TenantID, &c.Phone, &c.Name, &c.Email, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar contato: %w", err)
	}
	return &c, nil
}

// Upsert cria o contato pelo telefone ou atualiza nome e email quando informados
func (r *ContactRepository) Upsert(ctx context.Context, contact *domain.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	now := time.Now()

	query := `
		INSERT INTO contacts (id, tenant_id, phone, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (tenant_id, phone) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name),
			email = COALESCE(NULLIF(EXCLUDED.email, ''), contacts.email),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + contactColumns

	err := r.db.Conn(ctx).QueryRow(ctx, query,
		contact.ID, contact.TenantID, contact.Phone, contact.Name, contact.Email, now,
	).Scan(
		&contact.ID, &contact.TenantID, &contact.Phone, &contact.Name, &contact.Email,
		&contact.CreatedAt, &contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("erro ao salvar contato: %w", err)
	}
	return nil
}

var _ repository.ContactRepository = (*ContactRepository)(nil)
