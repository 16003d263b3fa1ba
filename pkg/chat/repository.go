package chat

import (
	"context"
)

// Repository define a interface para operações de repositório do histórico de chat
type Repository interface {
	// SaveMessage salva uma nova mensagem no histórico
	SaveMessage(ctx context.Context, message *Message) error

	// GetContactHistory retorna as mensagens mais recentes primeiro
	GetContactHistory(ctx context.Context, tenantID, contactID string, limit int) ([]Message, error)
}

// Chronological reverses a newest-first history into the order the AI expects.
func Chronological(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
	}
	return out
}
