// Package api provides the HTTP surface of the Alisa backend.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/miravel/alisa/internal/chat"
	"github.com/miravel/alisa/internal/companion"
	"github.com/miravel/alisa/internal/habits"
	"github.com/miravel/alisa/internal/hinglish"
	"github.com/miravel/alisa/internal/memory"
	"github.com/miravel/alisa/internal/store"
)

// Handler serves the REST endpoints next to the WebSocket chat.
type Handler struct {
	repo   store.Repository
	buffer *memory.Buffer
	coord  *chat.Coordinator
	policy *companion.Policy
	habits *habits.Memory
}

// NewHandler creates a Handler with its dependencies.
func NewHandler(repo store.Repository, buffer *memory.Buffer, coord *chat.Coordinator, policy *companion.Policy, habitMemory *habits.Memory) *Handler {
	return &Handler{
		repo:   repo,
		buffer: buffer,
		coord:  coord,
		policy: policy,
		habits: habitMemory,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Root is the liveness endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "Alisa online"})
}

// HistorySummary reports persisted turn and memory counts.
func (h *Handler) HistorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.HistorySummary(r.Context())
	if err != nil {
		slog.Error("Failed to summarize history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to summarize history")
		return
	}
	JSON(w, http.StatusOK, summary)
}

// HistoryClear wipes the persisted history and the rolling window.
func (h *Handler) HistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.ClearHistory(r.Context()); err != nil {
		slog.Error("Failed to clear history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	h.buffer.Clear()
	JSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type normalizeRequest struct {
	Text string `json:"text"`
}

type normalizeResponse struct {
	Text     string `json:"text"`
	Hinglish bool   `json:"hinglish"`
	Voice    string `json:"voice"`
	Rate     string `json:"rate"`
	Pitch    string `json:"pitch"`
}

// NormalizeHinglish detects Hinglish, canonicalizes spelling variants, and
// returns the matching TTS voice profile.
func (h *Handler) NormalizeHinglish(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile := hinglish.ProfileFor(req.Text)
	JSON(w, http.StatusOK, normalizeResponse{
		Text:     hinglish.Normalize(req.Text),
		Hinglish: hinglish.Detect(req.Text),
		Voice:    profile.Voice,
		Rate:     profile.Rate,
		Pitch:    profile.Pitch,
	})
}

type companionStats struct {
	Session companion.Stats `json:"session"`
	Habits  habits.Insights `json:"habits"`
}

// CompanionStats is a debugging snapshot of the idle-speech policy and
// learned habits.
func (h *Handler) CompanionStats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, companionStats{
		Session: h.coord.Stats(h.policy),
		Habits:  h.habits.Snapshot(),
	})
}
