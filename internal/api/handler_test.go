package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/miravel/alisa/internal/chat"
	"github.com/miravel/alisa/internal/companion"
	"github.com/miravel/alisa/internal/domain"
	"github.com/miravel/alisa/internal/habits"
	"github.com/miravel/alisa/internal/memory"
	"github.com/miravel/alisa/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()

	repo, err := store.NewSQLite(filepath.Join(dir, "alisa.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	habitMemory, err := habits.New(filepath.Join(dir, "task_memory.json"))
	if err != nil {
		t.Fatalf("habits: %v", err)
	}

	return NewHandler(
		repo,
		memory.NewBuffer(uuid.NewString(), repo),
		chat.NewCoordinator(nil),
		companion.NewPolicy(companion.DefaultPolicyConfig()),
		habitMemory,
	)
}

func TestRoot(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)
	w := httptest.NewRecorder()
	h.Root(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "Alisa online" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestHistorySummaryAndClear(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)
	ctx := context.Background()

	if err := h.buffer.Add(ctx, domain.RoleUser, "hello"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.repo.SaveMemory(ctx, "happy", "a memory"); err != nil {
		t.Fatalf("save memory: %v", err)
	}

	w := httptest.NewRecorder()
	h.HistorySummary(w, httptest.NewRequest(http.MethodGet, "/history/summary", nil))
	var summary domain.HistorySummary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TurnCount != 1 || summary.MemoryCount != 1 {
		t.Errorf("summary = %+v", summary)
	}

	w = httptest.NewRecorder()
	h.HistoryClear(w, httptest.NewRequest(http.MethodPost, "/history/clear", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if h.buffer.Len() != 0 {
		t.Error("buffer must be cleared")
	}

	w = httptest.NewRecorder()
	h.HistorySummary(w, httptest.NewRequest(http.MethodGet, "/history/summary", nil))
	summary = domain.HistorySummary{}
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TurnCount != 0 || summary.MemoryCount != 0 {
		t.Errorf("summary after clear = %+v", summary)
	}
}

func TestNormalizeHinglish(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/normalize_hinglish/", strings.NewReader(`{"text":"accha thik hai yaar"}`))
	h.NormalizeHinglish(w, req)

	var resp normalizeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Hinglish {
		t.Error("expected hinglish detection")
	}
	if resp.Text != "acha theek hai yaar" {
		t.Errorf("normalized = %q", resp.Text)
	}
	if resp.Voice != "en-IN-NeerjaNeural" {
		t.Errorf("voice = %q", resp.Voice)
	}
}

func TestNormalizeHinglishEnglishText(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/normalize_hinglish/", strings.NewReader(`{"text":"good morning"}`))
	h.NormalizeHinglish(w, req)

	var resp normalizeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Hinglish {
		t.Error("plain english must not be hinglish")
	}
	if resp.Voice != "en-US-AnaNeural" {
		t.Errorf("voice = %q", resp.Voice)
	}
}

func TestNormalizeHinglishBadBody(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/normalize_hinglish/", strings.NewReader("{oops"))
	h.NormalizeHinglish(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestCompanionStats(t *testing.T) {
	t.Parallel()
	h := newTestHandler(t)

	w := httptest.NewRecorder()
	h.CompanionStats(w, httptest.NewRequest(http.MethodGet, "/companion/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats companionStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Session.CompanionModeActive {
		t.Error("fresh session must not be in companion mode")
	}
}
