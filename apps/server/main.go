package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"partyline/apps/server/internal/app"
	"partyline/apps/server/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("[Server] %v", err)
	}
	log.Printf("[Server] Stopped")
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	mux := http.NewServeMux()
	a.RegisterAll(mux)

	log.Printf("[Server] Ledger mode: %s", a.LedgerMode)
	log.Printf("[Server] Narrator enabled: %t", cfg.Narrator.Enabled())
	log.Printf("[Server] Starting server on %s", cfg.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	serveErr := a.Serve(ctx, mux)
	if err := a.Close(); err != nil {
		log.Printf("[Server] Close: %v", err)
	}
	return serveErr
}
