package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"partyline/apps/server/internal/validate"
)

type HTTPHandler struct {
	ledger     Service
	codeLength int
}

type errorResponse struct {
	Error string `json:"error"`
}

type roundsResponse struct {
	RoomCode string      `json:"room_code"`
	Rounds   []RoundItem `json:"rounds"`
}

func NewHTTPHandler(ledgerService Service, codeLength int) *HTTPHandler {
	return &HTTPHandler{
		ledger:     ledgerService,
		codeLength: codeLength,
	}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/history/{code}/rounds", h.handleRounds)
}

func (h *HTTPHandler) handleRounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	code, err := validate.RoomCode(r.PathValue("code"), h.codeLength)
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Reason)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid room code")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.ledger.ListRounds(ctx, code, limit)
	if err != nil {
		log.Printf("[Ledger] list rounds failed: room=%s err=%v", code, err)
		writeError(w, http.StatusInternalServerError, "query rounds failed")
		return
	}
	writeJSON(w, http.StatusOK, roundsResponse{RoomCode: code, Rounds: items})
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
