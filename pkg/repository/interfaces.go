package repository

import (
	"context"
	"errors"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

// Erros comuns devolvidos pelas implementações de repositório
var (
	ErrNotFound             = errors.New("registro não encontrado")
	ErrPendingOrderExists   = errors.New("contact already has a pending order")
	ErrOrderNotPending      = errors.New("order is no longer pending")
	ErrDuplicateOrderNumber = errors.New("order number already used by tenant")
)

// ProductRepository é o provedor de catálogo
type ProductRepository interface {
	// ListActive retorna os produtos ativos do tenant na ordem padrão do catálogo
	ListActive(ctx context.Context, tenantID string) ([]*domain.Product, error)

	// FindByID busca um produto pelo ID
	FindByID(ctx context.Context, tenantID string, productID int64) (*domain.Product, error)

	// FindForUpdate busca o produto travando a linha até o fim da transação corrente
	FindForUpdate(ctx context.Context, tenantID string, productID int64) (*domain.Product, error)

	// DecrementStock reduz o estoque atomicamente, nunca abaixo de zero, e devolve o novo saldo
	DecrementStock(ctx context.Context, tenantID string, productID int64, quantity int) (int, error)
}

// OrderRepository persiste os pedidos (o carrinho é o pedido pending)
type OrderRepository interface {
	// FindByID busca um pedido pelo ID
	FindByID(ctx context.Context, tenantID, orderID string) (*domain.Order, error)

	// FindPending busca o pedido pending do contato
	FindPending(ctx context.Context, tenantID, contactID string) (*domain.Order, error)

	// Create insere um pedido novo; devolve ErrPendingOrderExists se o contato já tiver um
	Create(ctx context.Context, order *domain.Order) error

	// SavePending atualiza itens e totais de um pedido que ainda está pending
	SavePending(ctx context.Context, order *domain.Order) error

	// Confirm grava a transição pending -> confirmed; devolve ErrOrderNotPending se já confirmado
	Confirm(ctx context.Context, order *domain.Order) error

	// FindByNumber busca pedidos confirmados cujo número contém o trecho informado
	FindByNumber(ctx context.Context, tenantID, partial string, limit int) ([]*domain.Order, error)

	// RecentByPhone retorna os pedidos confirmados mais recentes de um telefone
	RecentByPhone(ctx context.Context, tenantID, phone string, limit int) ([]*domain.Order, error)

	// ListConfirmed lista pedidos confirmados do tenant com paginação
	ListConfirmed(ctx context.Context, tenantID string, limit, offset int) ([]*domain.Order, error)
}

// ContactRepository acessa os contatos do canal de mensagens
type ContactRepository interface {
	// FindByID busca um contato pelo ID
	FindByID(ctx context.Context, tenantID, contactID string) (*domain.Contact, error)

	// FindByPhone busca um contato pelo telefone
	FindByPhone(ctx context.Context, tenantID, phone string) (*domain.Contact, error)

	// Upsert cria o contato ou atualiza o nome exibido
	Upsert(ctx context.Context, contact *domain.Contact) error
}

// SettingsRepository é o provedor de configuração por tenant
type SettingsRepository interface {
	// FindByTenant devolve ErrNotFound quando o tenant ainda não configurou a loja
	FindByTenant(ctx context.Context, tenantID string) (*domain.Settings, error)
}

// TenantRepository valida os tenants que chegam pelo cabeçalho
type TenantRepository interface {
	FindByID(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

// Transactor executa fn em uma única transação; repositórios usados com o ctx recebido participam dela
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
