package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/dto"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
	"github.com/hugohenrick/whatsapp-commerce/pkg/tenant"
)

// OrderController expõe os pedidos confirmados ao lojista
type OrderController struct {
	orders repository.OrderRepository
}

// NewOrderController cria uma nova instância de OrderController
func NewOrderController(orders repository.OrderRepository) *OrderController {
	return &OrderController{orders: orders}
}

// List lista os pedidos confirmados do tenant
// @Summary Lista pedidos confirmados
// @Description Lista os pedidos confirmados do tenant, mais recentes primeiro
// @Tags orders
// @Produce json
// @Security Bearer
// @Param page query int false "Página" default(1)
// @Param page_size query int false "Itens por página" default(10)
// @Success 200 {object} dto.OrderListResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /orders [get]
func (c *OrderController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	pagination := dto.GetPagination(page, pageSize)

	tenantID := ctx.GetString(tenant.GinKey)
	orders, err := c.orders.ListConfirmed(ctx.Request.Context(), tenantID, pagination.PageSize, pagination.Offset())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao listar pedidos", err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, dto.ToOrderListResponse(orders, pagination))
}

// GetByNumber busca um pedido pelo número
// @Summary Busca pedido pelo número
// @Description Busca um pedido confirmado pelo número completo (ORD-YYYYMMDD-XXXXXX)
// @Tags orders
// @Produce json
// @Security Bearer
// @Param number path string true "Número do pedido"
// @Success 200 {object} dto.OrderResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /orders/{number} [get]
func (c *OrderController) GetByNumber(ctx *gin.Context) {
	number := strings.ToUpper(strings.TrimSpace(ctx.Param("number")))
	tenantID := ctx.GetString(tenant.GinKey)

	orders, err := c.orders.FindByNumber(ctx.Request.Context(), tenantID, number, 5)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Erro ao buscar pedido", err.Error()))
		return
	}

	for _, o := range orders {
		if o.OrderNumber == number {
			ctx.JSON(http.StatusOK, dto.ToOrderResponse(o))
			return
		}
	}
	ctx.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, "Pedido não encontrado", number))
}
