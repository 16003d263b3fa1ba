package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hugohenrick/whatsapp-commerce/internal/infrastructure/database"
	"github.com/hugohenrick/whatsapp-commerce/pkg/chat"
)

// ChatRepository guarda o histórico de conversa por contato
type ChatRepository struct {
	db *database.TxManager
}

// NewChatRepository cria uma nova instância de ChatRepository
func NewChatRepository(db *database.TxManager) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) SaveMessage(ctx context.Context, message *chat.Message) error {
	// Se o ID da mensagem estiver vazio, gerar um novo
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	query := `
		INSERT INTO chat_history (id, tenant_id, contact_id, role, content, intent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		message.ID,
		message.TenantID,
		message.ContactID,
		message.Role,
		message.Content,
		message.Intent,
		message.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("erro ao salvar mensagem: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetContactHistory(ctx context.Context, tenantID, contactID string, limit int) ([]chat.Message, error) {
	query := `
		SELECT id, role, content, intent, created_at
		FROM chat_history
		WHERE tenant_id = $1 AND contact_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.Conn(ctx).Query(ctx, query, tenantID, contactID, limit)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar histórico: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		msg := chat.Message{TenantID: tenantID, ContactID: contactID}
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Intent, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("erro ao ler mensagem: %w", err)
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao ler linhas: %w", err)
	}
	return messages, nil
}

var _ chat.Repository = (*ChatRepository)(nil)
