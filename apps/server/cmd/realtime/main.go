// Command realtime serves only the websocket gateway and health check. Use
// it when the history API and SSE viewers are served elsewhere.
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
		log.Fatalf("[Realtime] %v", err)
	}
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
	a.RegisterRealtime(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("[Realtime] Starting WebSocket server on %s (ledger: %s)", cfg.Addr, a.LedgerMode)
	serveErr := a.Serve(ctx, mux)
	if err := a.Close(); err != nil {
		log.Printf("[Realtime] Close: %v", err)
	}
	return serveErr
}
