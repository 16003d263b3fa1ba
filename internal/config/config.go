// Package config carrega a configuração do serviço a partir de variáveis de ambiente.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// ErrMissingDatabase ocorre quando STORAGE=postgres sem dados de conexão
var ErrMissingDatabase = errors.New("database connection not configured")

// Config reúne as configurações do processo
type Config struct {
	HTTPPort     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Storage        string
	DatabaseURL    string
	MigrationsPath string
	AutoMigrate    bool

	RedisURL   string
	SessionTTL time.Duration

	RabbitMQURL    string
	LedgerExchange string

	JWTSecret string

	AIRateLimit   float64
	AIBurst       int
	AIMaxFailures uint32
	AIOpenTimeout time.Duration
	CatalogTTL    time.Duration

	// DemoAIKey habilita a IA na loja de exemplo de STORAGE=memory
	DemoAIKey string

	LogLevel  string
	LogFormat string
}

// Load lê o arquivo .env (quando existir) e as variáveis de ambiente.
func Load(files ...string) (*Config, error) {
	// .env é opcional
	_ = godotenv.Load(files...)

	cfg := &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		ReadTimeout:  getDuration("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),

		Storage:        strings.ToLower(getEnv("STORAGE", StoragePostgres)),
		DatabaseURL:    databaseURL(),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		AutoMigrate:    getBool("AUTO_MIGRATE", true),

		RedisURL:   os.Getenv("REDIS_URL"),
		SessionTTL: getDuration("SESSION_TTL", 24*time.Hour),

		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		LedgerExchange: getEnv("LEDGER_EXCHANGE", "storefront.orders"),

		JWTSecret: os.Getenv("JWT_SECRET_KEY"),

		AIRateLimit:   getFloat("AI_RATE_LIMIT", 5),
		AIBurst:       getInt("AI_BURST", 10),
		AIMaxFailures: uint32(getInt("AI_MAX_FAILURES", 5)),
		AIOpenTimeout: getDuration("AI_OPEN_TIMEOUT", 30*time.Second),
		CatalogTTL:    getDuration("CATALOG_TTL", 30*time.Second),
		DemoAIKey:     os.Getenv("DEMO_AI_API_KEY"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate verifica combinações inválidas
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabase
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// databaseURL usa DATABASE_URL ou monta a URL a partir das variáveis DB_*
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		os.Getenv("DB_HOST"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "whatsapp_commerce"),
		getEnv("DB_SSL_MODE", "disable"),
	)
}

// getEnv retorna o valor de uma variável de ambiente ou um valor padrão
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

// getDuration aceita "30s", "24h" ou um número de segundos
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
