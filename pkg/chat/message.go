package chat

import "time"

// Roles used in the conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message representa uma mensagem no histórico do chat
type Message struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ContactID string    `json:"contact_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
