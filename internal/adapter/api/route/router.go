package route

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/controller"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
)

// Version é exposta no health check
const Version = "1.0.0"

// Config reúne as dependências das rotas
type Config struct {
	WhatsAppController *controller.WhatsAppController
	OrderController    *controller.OrderController
	TenantMiddleware   gin.HandlerFunc
	AuthMiddleware     gin.HandlerFunc
	Logger             logger.Logger
	AllowedOrigins     []string
}

// NewRouter cria o gin.Engine com middlewares globais e rotas em /api/v1
func NewRouter(cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "tenant-id")
	router.Use(cors.New(corsConfig))

	api := router.Group("/api/v1")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	SetupWhatsAppRoutes(api, cfg.WhatsAppController, cfg.TenantMiddleware)
	SetupOrderRoutes(api, cfg.OrderController, cfg.AuthMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}

// requestLogger registra cada requisição no logger do serviço
func requestLogger(log logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"tenant_id", c.GetString("tenant_id"),
		)
	}
}
