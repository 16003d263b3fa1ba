package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	_ "github.com/hugohenrick/whatsapp-commerce/docs"
	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/controller"
	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/dto"
	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/api/route"
	pgrepo "github.com/hugohenrick/whatsapp-commerce/internal/adapter/repository"
	"github.com/hugohenrick/whatsapp-commerce/internal/adapter/repository/memory"
	"github.com/hugohenrick/whatsapp-commerce/internal/config"
	"github.com/hugohenrick/whatsapp-commerce/internal/infrastructure/database"
	"github.com/hugohenrick/whatsapp-commerce/pkg/ai"
	"github.com/hugohenrick/whatsapp-commerce/pkg/auth"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/catalog"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/intent"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/order"
	"github.com/hugohenrick/whatsapp-commerce/pkg/bot/session"
	"github.com/hugohenrick/whatsapp-commerce/pkg/chat"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
	"github.com/hugohenrick/whatsapp-commerce/pkg/ledger"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
	"github.com/hugohenrick/whatsapp-commerce/pkg/repository"
	"github.com/hugohenrick/whatsapp-commerce/pkg/tenant"
)

// App representa a aplicação e suas dependências
type App struct {
	cfg    *config.Config
	logger logger.Logger
	router *gin.Engine

	pool   *pgxpool.Pool
	redis  *redis.Client
	ledger ledger.Sink
}

// repositories agrupa as implementações escolhidas por STORAGE
type repositories struct {
	tx       repository.Transactor
	products repository.ProductRepository
	orders   repository.OrderRepository
	contacts repository.ContactRepository
	settings repository.SettingsRepository
	tenants  repository.TenantRepository
	chat     chat.Repository
}

// NewApp cria uma nova instância do aplicativo
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.NewLogger(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	app := &App{cfg: cfg, logger: log}

	repos, err := app.setupStorage(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	sessions, locker, err := app.setupSessions(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.ledger = app.setupLedger()

	// Provedores de IA: um cliente por provedor, com breaker e rate limit por credencial
	aiRouter := ai.NewRouter(domain.ProviderOpenAI)
	aiRouter.Register(domain.ProviderOpenAI, ai.NewOpenAIClient(""))
	aiRouter.Register(domain.ProviderAnthropic, ai.NewAnthropicClient(""))
	aiClient := ai.NewGuard(aiRouter, ai.GuardConfig{
		RequestsPerSecond:   cfg.AIRateLimit,
		Burst:               cfg.AIBurst,
		ConsecutiveFailures: cfg.AIMaxFailures,
		OpenTimeout:         cfg.AIOpenTimeout,
	}, log)

	index := catalog.NewIndex(repos.products, cfg.CatalogTTL)
	committer := order.NewCommitter(repos.tx, repos.products, repos.orders, app.ledger, log)
	service := order.NewService(order.Deps{
		Catalog:   index,
		Orders:    repos.orders,
		Sessions:  sessions,
		Committer: committer,
		AI:        aiClient,
		History:   repos.chat,
		Logger:    log,
	})

	classifier := intent.NewFallbackClassifier(
		intent.NewAIClassifier(aiClient),
		intent.NewKeywordClassifier(intent.DefaultPartialMatch()),
		log,
	)

	dispatcher, err := bot.NewDispatcher(bot.Deps{
		Settings:   repos.settings,
		Catalog:    index,
		Classifier: classifier,
		Service:    service,
		Locker:     locker,
		History:    repos.chat,
		Logger:     log,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	tenantMiddleware := tenant.TenantMiddleware(pgrepo.NewTenantValidator(repos.tenants))

	app.router = route.NewRouter(route.Config{
		WhatsAppController: controller.NewWhatsAppController(dispatcher, repos.contacts, log),
		OrderController:    controller.NewOrderController(repos.orders),
		TenantMiddleware:   tenantMiddleware,
		AuthMiddleware:     app.authMiddleware(),
		Logger:             log,
	})

	return app, nil
}

func (a *App) setupStorage(ctx context.Context) (*repositories, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("Usando armazenamento em memória; os dados são perdidos ao reiniciar")
		store := memory.NewStore()
		seedDemo(store, a.cfg.DemoAIKey)
		return &repositories{
			tx:       store.Transactor(),
			products: store.Products(),
			orders:   store.Orders(),
			contacts: store.Contacts(),
			settings: store.Settings(),
			tenants:  store.Tenants(),
			chat:     store.Chat(),
		}, nil
	}

	if a.cfg.AutoMigrate {
		if err := database.RunMigrations(a.cfg.DatabaseURL, a.cfg.MigrationsPath, a.logger); err != nil {
			return nil, err
		}
	}

	pool, err := database.NewPool(ctx, a.cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	a.pool = pool

	txm := database.NewTxManager(pool, a.logger)
	return &repositories{
		tx:       txm,
		products: pgrepo.NewProductRepository(txm),
		orders:   pgrepo.NewOrderRepository(txm),
		contacts: pgrepo.NewContactRepository(txm),
		settings: pgrepo.NewSettingsRepository(txm),
		tenants:  pgrepo.NewTenantRepository(txm),
		chat:     pgrepo.NewChatRepository(txm),
	}, nil
}

func (a *App) setupSessions(ctx context.Context) (session.Store, session.Locker, error) {
	if a.cfg.RedisURL == "" {
		return session.NewMemoryStore(a.cfg.SessionTTL), session.NewKeyedMutex(), nil
	}

	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("REDIS_URL inválida: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("erro ao conectar no redis: %w", err)
	}
	a.redis = client

	// o lock expira sozinho se a instância cair no meio de uma mensagem
	return session.NewRedisStore(client, a.cfg.SessionTTL), session.NewRedisLocker(client, 2*bot.DefaultLockTimeout), nil
}

func (a *App) setupLedger() ledger.Sink {
	if a.cfg.RabbitMQURL == "" {
		return ledger.NewLogSink(a.logger)
	}

	sink, err := ledger.NewRabbitMQSink(ledger.RabbitMQConfig{
		URL:      a.cfg.RabbitMQURL,
		Exchange: a.cfg.LedgerExchange,
	}, a.logger)
	if err != nil {
		a.logger.Error("RabbitMQ indisponível, pedidos serão apenas registrados no log", "error", err)
		return ledger.NewLogSink(a.logger)
	}
	return sink
}

func (a *App) authMiddleware() gin.HandlerFunc {
	jwtService, err := auth.NewJWTService(a.cfg.JWTSecret, 0)
	if err != nil {
		a.logger.Warn("JWT_SECRET_KEY ausente, API de pedidos desabilitada")
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
				http.StatusInternalServerError,
				"Erro ao configurar autenticação",
				"O serviço JWT não foi inicializado corretamente",
			))
		}
	}
	return auth.JWTAuthMiddleware(jwtService)
}

// Run inicia o servidor HTTP e encerra de forma graciosa quando ctx termina
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + a.cfg.HTTPPort,
		Handler:      a.router,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Servidor HTTP iniciado", "port", a.cfg.HTTPPort, "storage", a.cfg.Storage)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Encerrando servidor HTTP")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close libera os recursos da aplicação
func (a *App) Close() {
	if closer, ok := a.ledger.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("Erro ao fechar ledger", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
