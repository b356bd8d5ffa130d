// Package app wires the server's components from a config.Config. Both
// entry points build on it.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"partyline/apps/server/internal/config"
	"partyline/apps/server/internal/content"
	"partyline/apps/server/internal/fanout"
	"partyline/apps/server/internal/gateway"
	"partyline/apps/server/internal/ledger"
	"partyline/apps/server/internal/lobby"
	"partyline/apps/server/internal/narrator"
	"partyline/apps/server/internal/room"
	"partyline/apps/server/internal/sse"
	"partyline/commentary"
	"partyline/events"
	"partyline/game"
	"partyline/game/trivia"
	"partyline/game/wordvote"
)

type App struct {
	Config     config.Config
	Games      *game.Registry
	Ledger     ledger.Service
	LedgerMode string
	Router     *fanout.Router
	Lobby      *lobby.Lobby
	Commentary *commentary.Manager
	Gateway    *gateway.Gateway
	SSE        *sse.Handler
	History    *ledger.HTTPHandler
	started    time.Time
}

// NewRegistry registers every built-in game.
func NewRegistry(cfg config.Config) (*game.Registry, error) {
	reg := game.NewRegistry()
	wc, err := wordvote.NewContract(cfg.WordVote.Engine())
	if err != nil {
		return nil, fmt.Errorf("wordvote contract: %w", err)
	}
	tc, err := trivia.NewContract(cfg.Trivia.Engine())
	if err != nil {
		return nil, fmt.Errorf("trivia contract: %w", err)
	}
	for _, c := range []*game.Contract{wc, tc} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewPersonas returns the built-in personas, extended or overridden by the
// configured persona file.
func NewPersonas(cfg config.Commentary) (*commentary.PersonaRegistry, error) {
	reg := commentary.NewRegistry()
	for _, p := range commentary.DefaultPersonas() {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	if cfg.PersonaFile != "" {
		if err := reg.LoadFromFile(cfg.PersonaFile); err != nil {
			return nil, fmt.Errorf("load personas: %w", err)
		}
	}
	return reg, nil
}

func New(cfg config.Config) (*App, error) {
	games, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	ledgerService, ledgerMode, err := ledger.New(ledger.Options{
		Backend:     ledger.Backend(cfg.Ledger.Backend),
		SQLitePath:  cfg.Ledger.SQLitePath,
		PostgresDSN: cfg.Ledger.PostgresDSN,
		ListLimit:   cfg.Ledger.ListLimit,
	})
	if err != nil {
		return nil, err
	}
	personas, err := NewPersonas(cfg.Commentary)
	if err != nil {
		_ = ledgerService.Close()
		return nil, err
	}

	var orch *commentary.Orchestrator
	if cfg.Narrator.Enabled() {
		gen := narrator.New(narrator.Options{
			APIKey:      cfg.Narrator.APIKey,
			BaseURL:     cfg.Narrator.BaseURL,
			Model:       cfg.Narrator.Model,
			MaxTokens:   cfg.Narrator.MaxTokens,
			Temperature: cfg.Narrator.Temperature,
			MaxRetries:  cfg.Narrator.MaxRetries,
		})
		orch = commentary.NewOrchestrator(personas, gen, commentary.OrchestratorConfig{
			CallTimeout: cfg.Narrator.CallTimeout,
			MaxChars:    cfg.Narrator.MaxChars,
		}, cfg.Commentary.Seed)
	}

	// The manager delivers through the lobby, which needs the manager to
	// exist first.
	var lby *lobby.Lobby
	notes := commentary.NewManager(orch, cfg.Commentary.Limiter(), nil, func(code string, utts []commentary.Utterance) {
		lby.Deliver(code, utts)
	})

	contentClient := content.New(content.Options{
		QuestionsURL: cfg.Content.QuestionsURL,
		JudgeURL:     cfg.Content.JudgeURL,
		APIKey:       cfg.Content.APIKey,
		Timeout:      cfg.Content.Timeout,
	})

	router := fanout.New()
	lby = lobby.New(lobby.Config{
		IdleTimeout:   cfg.Rooms.IdleTimeout,
		IdleBuffer:    cfg.Rooms.IdleBuffer,
		SweepInterval: cfg.Rooms.SweepInterval,
	}, room.Deps{
		Games:     games,
		Questions: contentClient,
		Arbiter:   contentClient,
		Ledger:    ledgerService,
		Send:      router.Send,
		Detector: events.Config{
			IdleAfter:        cfg.Commentary.IdleAfter,
			StreakThresholds: cfg.Commentary.Streaks,
			FastAnswer:       cfg.Commentary.FastAnswer,
		},
		MaxNameLength: cfg.Rooms.MaxNameLength,
		CallTimeout:   cfg.Rooms.CallTimeout,
		TickInterval:  cfg.Rooms.TickInterval,
	}, notes)

	return &App{
		Config:     cfg,
		Games:      games,
		Ledger:     ledgerService,
		LedgerMode: ledgerMode,
		Router:     router,
		Lobby:      lby,
		Commentary: notes,
		Gateway: gateway.New(lby, router, gateway.Config{
			CodeLength:     cfg.Rooms.CodeLength,
			MaxNameLength:  cfg.Rooms.MaxNameLength,
			MaxTextLength:  cfg.Rooms.MaxTextLength,
			SendBuffer:     cfg.Rooms.SendBuffer,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		SSE:     sse.NewHandler(lby, router, cfg.Rooms.CodeLength),
		History: ledger.NewHTTPHandler(ledgerService, cfg.Rooms.CodeLength),
		started: time.Now(),
	}, nil
}

// RegisterRealtime mounts the websocket endpoint and health routes.
func (a *App) RegisterRealtime(mux *http.ServeMux) {
	mux.HandleFunc("/ws", a.Gateway.HandleWebSocket)
	mux.HandleFunc("/health", a.handleHealth)
}

// RegisterAll mounts every route of the combined server.
func (a *App) RegisterAll(mux *http.ServeMux) {
	a.RegisterRealtime(mux)
	a.SSE.RegisterRoutes(mux)
	a.History.RegisterRoutes(mux)
	mux.HandleFunc("/api/rooms", a.handleRooms)
}

// Run sweeps idle rooms until ctx is done.
func (a *App) Run(ctx context.Context) error {
	return a.Lobby.Run(ctx)
}

// Close stops every room, waits for pending commentary and closes the
// ledger.
func (a *App) Close() error {
	a.Lobby.Close()
	a.Commentary.Wait()
	return a.Ledger.Close()
}

type healthResponse struct {
	Status      string   `json:"status"`
	Ledger      string   `json:"ledger"`
	Games       []string `json:"games"`
	Rooms       int      `json:"rooms"`
	Connections int      `json:"connections"`
	Uptime      string   `json:"uptime"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	types := a.Games.Types()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	writeJSON(w, healthResponse{
		Status:      "ok",
		Ledger:      a.LedgerMode,
		Games:       names,
		Rooms:       len(a.Lobby.Rooms()),
		Connections: a.Gateway.Count(),
		Uptime:      time.Since(a.started).Truncate(time.Second).String(),
	})
}

func (a *App) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, struct {
		Rooms []room.Summary `json:"rooms"`
	}{Rooms: a.Lobby.Rooms()})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] write response failed: %v", err)
	}
}
