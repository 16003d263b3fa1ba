package route

import (
	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/controller"
)

// SetupWhatsAppRoutes configura o webhook das mensagens recebidas
func SetupWhatsAppRoutes(router *gin.RouterGroup, whatsappController *controller.WhatsAppController, tenantMiddleware gin.HandlerFunc) {
	whatsappRouter := router.Group("/whatsapp")
	whatsappRouter.Use(tenantMiddleware)
	{
		whatsappRouter.POST("/messages", whatsappController.Receive)
	}
}
