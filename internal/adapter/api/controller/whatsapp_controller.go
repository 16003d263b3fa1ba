package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/dto"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/reply"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
	"github.com/hugohenrick/whatsapp-commerce/pkg/tenant"
)

// MessageProcessor responde uma mensagem recebida; implementado por bot.Dispatcher
type MessageProcessor interface {
	Process(ctx context.Context, tenantID, message string, contact *domain.Contact) *reply.Response
}

// WhatsAppController recebe as mensagens encaminhadas pelo gateway do WhatsApp
type WhatsAppController struct {
	processor MessageProcessor
	contacts  repository.ContactRepository
	logger    logger.Logger
}

// NewWhatsAppController cria uma nova instância de WhatsAppController
func NewWhatsAppController(processor MessageProcessor, contacts repository.ContactRepository, log logger.Logger) *WhatsAppController {
	if log == nil {
		log = logger.NewNop()
	}
	return &WhatsAppController{
		processor: processor,
		contacts:  contacts,
		logger:    log,
	}
}

// Receive processa uma mensagem recebida
// @Summary Processa uma mensagem do WhatsApp
// @Description Classifica a mensagem do cliente e devolve a resposta da loja
// @Tags whatsapp
// @Accept json
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param message body dto.InboundMessageRequest true "Mensagem recebida"
// @Success 200 {object} reply.Response
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /whatsapp/messages [post]
func (c *WhatsAppController) Receive(ctx *gin.Context) {
	var request dto.InboundMessageRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "Requisição inválida", err.Error()))
		return
	}

	tenantID := ctx.GetString(tenant.GinKey)
	contact := request.Contact(tenantID)
	if err := c.contacts.Upsert(ctx.Request.Context(), contact); err != nil {
		c.logger.Error("Erro ao registrar contato", "tenant_id", tenantID, "phone", contact.Phone, "error", err)
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao registrar contato", err.Error()))
		return
	}

	resp := c.processor.Process(ctx.Request.Context(), tenantID, request.Message, contact)
	ctx.JSON(http.StatusOK, resp)
}
