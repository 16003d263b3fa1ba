package route

import (
	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/controller"
)

// SetupOrderRoutes configura a consulta de pedidos do lojista (JWT)
func SetupOrderRoutes(router *gin.RouterGroup, orderController *controller.OrderController, authMiddleware gin.HandlerFunc) {
	orderRouter := router.Group("/orders")
	orderRouter.Use(authMiddleware)
	{
		orderRouter.GET("", orderController.List)
		orderRouter.GET("/:number", orderController.GetByNumber)
	}
}
