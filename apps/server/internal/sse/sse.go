// Package sse streams room envelopes to passive viewers over Server-Sent
// Events. Viewers cannot send anything back.
package sse

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"partyline/apps/server/internal/codec"
	"partyline/apps/server/internal/fanout"
	"partyline/apps/server/internal/lobby"
	"partyline/apps/server/internal/validate"
)

const (
	bufferSize       = 64
	defaultKeepAlive = 20 * time.Second
)

type Handler struct {
	lobby      *lobby.Lobby
	router     *fanout.Router
	codeLength int
	keepAlive  time.Duration
}

func NewHandler(lby *lobby.Lobby, router *fanout.Router, codeLength int) *Handler {
	return &Handler{lobby: lby, router: router, codeLength: codeLength, keepAlive: defaultKeepAlive}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/sse/{code}", h.HandleSSE)
}

type client struct {
	ch chan *codec.Envelope
}

func (c *client) Deliver(env *codec.Envelope) bool {
	select {
	case c.ch <- env:
		return true
	default:
		return false
	}
}

// HandleSSE streams every envelope of one room until the client goes away.
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	code, err := validate.RoomCode(r.PathValue("code"), h.codeLength)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if _, err := h.lobby.Get(code); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, lobby.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering in nginx/proxies
	flusher.Flush()

	sessionID := uuid.NewString()
	c := &client{ch: make(chan *codec.Envelope, bufferSize)}
	h.router.Register(sessionID, c)
	defer h.router.Unregister(sessionID, c)

	if _, err := h.lobby.Watch(code, sessionID); err != nil {
		log.Printf("[SSE] watch %s failed: %v", code, err)
		return
	}
	defer h.lobby.Unwatch(code, sessionID)
	log.Printf("[SSE] Watcher %s attached to room %s", sessionID, code)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[SSE] Watcher %s left room %s", sessionID, code)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case env := <-c.ch:
			data, err := codec.EncodeJSON(env)
			if err != nil {
				log.Printf("[SSE] %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, data)
			flusher.Flush()
		}
	}
}
