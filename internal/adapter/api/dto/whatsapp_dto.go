package dto

import (
	"strings"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

// InboundMessageRequest é a mensagem recebida do gateway do WhatsApp
type InboundMessageRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message" binding:"required"`
}

// Contact monta o contato do tenant a partir da mensagem
func (r InboundMessageRequest) Contact(tenantID string) *domain.Contact {
	return &domain.Contact{
		TenantID: tenantID,
		Phone:    strings.TrimSpace(r.Phone),
		Name:     strings.TrimSpace(r.Name),
		Email:    strings.TrimSpace(r.Email),
	}
}
