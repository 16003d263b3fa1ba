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

const productColumns = `id, tenant_id, name, description, sku, category, price, sale_price,
	stock_quantity, status, created_at, updated_at`

// ProductRepository implementa repository.ProductRepository no PostgreSQL
type ProductRepository struct {
	db *database.TxManager
}

// NewProductRepository cria uma nova instância de ProductRepository
func NewProductRepository(db *database.TxManager) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListActive implementa repository.ProductRepository.ListActive
func (r *ProductRepository) ListActive(ctx context.Context, tenantID string) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE tenant_id = $1 AND status = $2
		ORDER BY id`

	rows, err := r.db.Conn(ctx).Query(ctx, query, tenantID, domain.ProductActive)
	if err != nil {
		return nil, fmt.Errorf("erro ao listar produtos: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler produto: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao ler linhas: %w", err)
	}
	return products, nil
}

// FindByID implementa repository.ProductRepository.FindByID
func (r *ProductRepository) FindByID(ctx context.Context, tenantID string, productID int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2`
	return r.findOne(ctx, query, tenantID, productID)
}

// FindForUpdate trava a linha do produto até o fim da transação do contexto
func (r *ProductRepository) FindForUpdate(ctx context.Context, tenantID string, productID int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return r.findOne(ctx, query, tenantID, productID)
}

func (r *ProductRepository) findOne(ctx context.Context, query string, tenantID string, productID int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.Conn(ctx).QueryRow(ctx, query, tenantID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar produto: %w", err)
	}
	return p, nil
}

// DecrementStock implementa repository.ProductRepository.DecrementStock
func (r *ProductRepository) DecrementStock(ctx context.Context, tenantID string, productID int64, quantity int) (int, error) {
	query := `
		UPDATE products
		SET stock_quantity = GREATEST(stock_quantity - $3, 0), updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING stock_quantity`

	var stock int
	err := r.db.Conn(ctx).QueryRow(ctx, query, tenantID, productID, quantity).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, repository.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("erro ao atualizar estoque: %w", err)
	}
	return stock, nil
}

// Upsert grava um produto vindo da sincronização do catálogo
func (r *ProductRepository) Upsert(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (id, tenant_id, name, description, sku, category, price, sale_price,
			stock_quantity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			sku = EXCLUDED.sku,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			sale_price = EXCLUDED.sale_price,
			stock_quantity = EXCLUDED.stock_quantity,
			status = EXCLUDED.status,
			updated_at = NOW()`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		p.ID, p.TenantID, p.Name, p.Description, p.SKU, p.Category, p.Price, p.SalePrice,
		p.StockQuantity, p.Status,
	)
	if err != nil {
		return fmt.Errorf("erro ao salvar produto: %w", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.Name,
		&p.Description,
		&p.SKU,
		&p.Category,
		&p.Price,
		&p.SalePrice,
		&p.StockQuantity,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var _ repository.ProductRepository = (*ProductRepository)(nil)
