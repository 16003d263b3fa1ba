package main

import (
	"flag"
	"log"

	"github.com/hugohenrick/whatsapp-commerce/internal/config"
	"github.com/hugohenrick/whatsapp-commerce/internal/infrastructure/database"
	"github.com/hugohenrick/whatsapp-commerce/pkg/logger"
)

func main() {
	down := flag.Int("down", 0, "número de migrações a desfazer")
	flag.Parse()

	// Carregar variáveis de ambiente
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro de configuração: %v", err)
	}
	if cfg.Storage != config.StoragePostgres {
		log.Fatalf("Migrações exigem STORAGE=postgres, atual: %s", cfg.Storage)
	}

	lg := logger.NewLogger(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if *down > 0 {
		if err := database.RollbackMigrations(cfg.DatabaseURL, cfg.MigrationsPath, *down); err != nil {
			log.Fatalf("Erro ao desfazer migrações: %v", err)
		}
		lg.Info("Migrações desfeitas", "steps", *down)
		return
	}

	if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, lg); err != nil {
		log.Fatalf("Erro ao executar migrações: %v", err)
	}
	log.Println("Migrações executadas com sucesso!")
}
