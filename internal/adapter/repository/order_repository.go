package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/hugohenrick/whatsapp-commerce/internal/infrastructure/database"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
)

// nomes dos índices definidos em migrations/000001_init_schema.up.sql
const (
	pendingContactIndex = "uq_orders_pending_contact"
	orderNumberIndex    = "uq_orders_tenant_number"
)

const orderColumns = `id, tenant_id, contact_id, status, items, subtotal, tax, total, currency,
	payment_method, payment_status, COALESCE(order_number, ''), customer_name, customer_phone,
	customer_email, confirmed_at, created_at, updated_at`

// OrderRepository implementa repository.OrderRepository no PostgreSQL
type OrderRepository struct {
	db *database.TxManager
}

// NewOrderRepository cria uma nova instância de OrderRepository
func NewOrderRepository(db *database.TxManager) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID implementa repository.OrderRepository.FindByID
func (r *OrderRepository) FindByID(ctx context.Context, tenantID, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 AND id = $2`
	return r.findOne(ctx, query, tenantID, orderID)
}

// FindPending implementa repository.OrderRepository.FindPending
func (r *OrderRepository) FindPending(ctx context.Context, tenantID, contactID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 AND contact_id = $2 AND status = 'pending'`
	return r.findOne(ctx, query, tenantID, contactID)
}

func (r *OrderRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(r.db.Conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar pedido: %w", err)
	}
	return o, nil
}

// Create implementa repository.OrderRepository.Create
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("erro ao serializar itens: %w", err)
	}

	query := `
		INSERT INTO orders (id, tenant_id, contact_id, status, items, subtotal, tax, total, currency,
			payment_method, payment_status, order_number, customer_name, customer_phone, customer_email,
			confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.Conn(ctx).Exec(ctx, query,
		order.ID, order.TenantID, order.ContactID, order.Status, string(items),
		order.Subtotal, order.Tax, order.Total, order.Currency,
		order.PaymentMethod, order.PaymentStatus, nullable(order.OrderNumber),
		order.CustomerName, order.CustomerPhone, order.CustomerEmail,
		order.ConfirmedAt, order.CreatedAt, order.UpdatedAt,
	)
	if database.IsUniqueViolation(err, pendingContactIndex) {
		return repository.ErrPendingOrderExists
	}
	if err != nil {
		return fmt.Errorf("erro ao criar pedido: %w", err)
	}
	return nil
}

// SavePending implementa repository.OrderRepository.SavePending
func (r *OrderRepository) SavePending(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("erro ao serializar itens: %w", err)
	}

	query := `
		UPDATE orders
		SET items = $3, subtotal = $4, tax = $5, total = $6, payment_method = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'`

	tag, err := r.db.Conn(ctx).Exec(ctx, query,
		order.TenantID, order.ID, string(items),
		order.Subtotal, order.Tax, order.Total, order.PaymentMethod, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("erro ao atualizar pedido: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.notPendingOrMissing(ctx, order)
	}
	return nil
}

// Confirm grava a transição em um savepoint, assim uma colisão de número
// não aborta a transação de checkout e o chamador pode tentar outro número.
func (r *OrderRepository) Confirm(ctx context.Context, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("erro ao serializar itens: %w", err)
	}

	sp, err := r.db.Conn(ctx).Begin(ctx)
	if err != nil {
		return fmt.Errorf("erro ao abrir savepoint: %w", err)
	}
	defer sp.Rollback(context.WithoutCancel(ctx))

	query := `
		UPDATE orders
		SET status = $3, items = $4, subtotal = $5, tax = $6, total = $7, order_number = $8,
			customer_name = $9, customer_phone = $10, customer_email = $11, confirmed_at = $12, updated_at = $13
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'`

	tag, err := sp.Exec(ctx, query,
		order.TenantID, order.ID, order.Status, string(items),
		order.Subtotal, order.Tax, order.Total, order.OrderNumber,
		order.CustomerName, order.CustomerPhone, order.CustomerEmail, order.ConfirmedAt, order.UpdatedAt,
	)
	if database.IsUniqueViolation(err, orderNumberIndex) {
		return repository.ErrDuplicateOrderNumber
	}
	if err != nil {
		return fmt.Errorf("erro ao confirmar pedido: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.notPendingOrMissing(ctx, order)
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("erro ao liberar savepoint: %w", err)
	}
	return nil
}

func (r *OrderRepository) notPendingOrMissing(ctx context.Context, order *domain.Order) error {
	var exists bool
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE tenant_id = $1 AND id = $2)`,
		order.TenantID, order.ID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("erro ao verificar pedido: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrOrderNotPending
}

// FindByNumber implementa repository.OrderRepository.FindByNumber
func (r *OrderRepository) FindByNumber(ctx context.Context, tenantID, partial string, limit int) ([]*domain.Order, error) {
	needle := strings.ToUpper(strings.TrimSpace(partial))
	if needle == "" {
		return []*domain.Order{}, nil
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND status = 'confirmed' AND order_number LIKE '%' || $2 || '%'
		ORDER BY confirmed_at DESC
		LIMIT $3`
	return r.list(ctx, query, tenantID, escapeLike(needle), limitOrAll(limit))
}

// RecentByPhone implementa repository.OrderRepository.RecentByPhone
func (r *OrderRepository) RecentByPhone(ctx context.Context, tenantID, phone string, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND status = 'confirmed' AND customer_phone = $2
		ORDER BY confirmed_at DESC
		LIMIT $3`
	return r.list(ctx, query, tenantID, phone, limitOrAll(limit))
}

// ListConfirmed implementa repository.OrderRepository.ListConfirmed
func (r *OrderRepository) ListConfirmed(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE tenant_id = $1 AND status = 'confirmed'
		ORDER BY confirmed_at DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, query, tenantID, limitOrAll(limit), max(offset, 0))
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar pedidos: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler pedido: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao ler linhas: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o     domain.Order
		items []byte
	)
	err := row.Scan(
		&o.ID,
		&o.TenantID,
		&o.ContactID,
		&o.Status,
		&items,
		&o.Subtotal,
		&o.Tax,
		&o.Total,
		&o.Currency,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.OrderNumber,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.CustomerEmail,
		&o.ConfirmedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("itens inválidos no pedido %s: %w", o.ID, err)
	}
	if o.Items == nil {
		o.Items = []domain.LineItem{}
	}
	return &o, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// limitOrAll converte limit <= 0 em sem limite (LIMIT NULL)
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ repository.OrderRepository = (*OrderRepository)(nil)
