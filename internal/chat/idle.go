package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/miravel/alisa/internal/prompt"
)

// DefaultIdleInterval is how often the idle loop re-evaluates the
// spontaneous-speech decision.
const DefaultIdleInterval = 30 * time.Second

// RunIdleLoop periodically asks the companion policy and the habit system
// whether Alisa should speak unprompted, and streams an utterance when both
// agree. Blocks until ctx is cancelled.
func (h *Handler) RunIdleLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultIdleInterval
	}
	slog.Info("Idle companion loop started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Idle companion loop stopped")
			return
		case <-ticker.C:
			h.idleCheck(ctx)
		}
	}
}

func (h *Handler) idleCheck(ctx context.Context) {
	if h.hub.Count() == 0 {
		return
	}

	ok, reason := h.coord.EvaluateSpeech(h.policy)
	if !ok {
		slog.Debug("Idle check declined", "reason", reason)
		return
	}

	if habitsOK, habitsReason := h.habits.ShouldInterrupt(); !habitsOK {
		slog.Debug("Idle check vetoed by habits", "reason", habitsReason)
		return
	}

	kind := h.coord.SpeechContext(h.policy)
	slog.Info("Idle check passed", "reason", reason, "context", kind)

	sys := prompt.Companion(kind, h.coord.Mode(), h.coord.LastEmotion())
	h.speakUnprompted(ctx, sys, string(kind))
}
