package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hugohenrick/whatsapp-commerce/internal/config"
)

func main() {
	// Carregar variáveis de ambiente (.env é opcional)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro de configuração: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Criar aplicação
	app, err := NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Erro ao iniciar aplicação: %v", err)
	}
	defer app.Close()

	// Iniciar o servidor
	if err := app.Run(ctx); err != nil {
		log.Fatalf("Erro no servidor HTTP: %v", err)
	}
}
