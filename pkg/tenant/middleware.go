package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/dto"
)

// HeaderName é o cabeçalho que identifica o tenant no webhook
const HeaderName = "tenant-id"

// TenantValidator define a interface para validação de tenant
type TenantValidator interface {
	ValidateTenant(ctx context.Context, tenantID string) error
}

// TenantMiddleware valida o cabeçalho tenant-id e guarda o tenant no contexto
func TenantMiddleware(validator TenantValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderName)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				http.StatusBadRequest,
				"Tenant ID não fornecido",
				"O cabeçalho 'tenant-id' é obrigatório",
			))
			return
		}

		if err := validator.ValidateTenant(c.Request.Context(), tenantID); err != nil {
			switch {
			case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrTenantNotActive):
				c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(
					http.StatusForbidden,
					"Tenant inválido",
					err.Error(),
				))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
					http.StatusInternalServerError,
					"Erro ao validar tenant",
					err.Error(),
				))
			}
			return
		}

		c.Set(GinKey, tenantID)
		c.Request = c.Request.WithContext(SetTenantIDContext(c.Request.Context(), tenantID))

		c.Next()
	}
}
