package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/miravel/alisa/internal/actions"
	"github.com/miravel/alisa/internal/companion"
	"github.com/miravel/alisa/internal/domain"
	"github.com/miravel/alisa/internal/emotion"
	"github.com/miravel/alisa/internal/habits"
	"github.com/miravel/alisa/internal/llm"
	"github.com/miravel/alisa/internal/memory"
	"github.com/miravel/alisa/internal/prompt"
	"github.com/miravel/alisa/internal/store"
)

const (
	keepaliveInterval = 20 * time.Second
	memoryRecallLimit = 5

	// Silences shorter than this are ordinary conversational pauses, not
	// worth teaching the habit system.
	silenceObservationMin = 2 * time.Minute
)

// fallbackReply covers the model returning a bare emotion word or nothing.
const fallbackReply = "Hmph. I lost my train of thought... don't look at me like that."

// Handler is the WebSocket chat orchestrator.
type Handler struct {
	hub     *Hub
	coord   *Coordinator
	policy  *companion.Policy
	buffer  *memory.Buffer
	repo    store.Repository
	llm     *llm.Client
	gateway *actions.Gateway
	habits  *habits.Memory

	allowedOrigin string
}

// NewHandler wires the orchestrator.
func NewHandler(
	hub *Hub,
	coord *Coordinator,
	policy *companion.Policy,
	buffer *memory.Buffer,
	repo store.Repository,
	client *llm.Client,
	gateway *actions.Gateway,
	habitMemory *habits.Memory,
	allowedOrigin string,
) *Handler {
	return &Handler{
		hub:           hub,
		coord:         coord,
		policy:        policy,
		buffer:        buffer,
		repo:          repo,
		llm:           client,
		gateway:       gateway,
		habits:        habitMemory,
		allowedOrigin: allowedOrigin,
	}
}

// ServeHTTP upgrades the connection and runs its read loop until the client
// goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if h.allowedOrigin != "" {
		opts.OriginPatterns = []string{h.allowedOrigin}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "session ended")
	}()

	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.keepalive(ctx, conn)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			slog.Debug("Chat connection closed", "error", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		h.handleFrame(ctx, conn, string(data))
	}
}

func (h *Handler) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, conn *websocket.Conn, text string) {
	switch {
	case text == "":
		// Client keepalive.

	case text == frameSpeechStart:
		h.coord.SetAvatarTalking(true)
		h.hub.Broadcast(ctx, text, conn)

	case text == frameSpeechEnd:
		h.coord.SetAvatarTalking(false)
		h.hub.Broadcast(ctx, text, conn)

	case strings.HasPrefix(text, prefixVisionFace):
		h.handleFace(ctx, strings.TrimPrefix(text, prefixVisionFace))

	case strings.HasPrefix(text, prefixVisionDesktop):
		h.handleDesktop(ctx, strings.TrimPrefix(text, prefixVisionDesktop))

	case strings.HasPrefix(text, prefixMode):
		h.handleModeSwitch(ctx, conn, text)

	default:
		h.handleChat(ctx, text)
	}
}

func (h *Handler) handleModeSwitch(ctx context.Context, conn *websocket.Conn, text string) {
	fields := strings.Fields(text)
	mode := fields[len(fields)-1]
	if !h.coord.SetMode(mode) {
		slog.Warn("Ignoring unknown personality mode", "mode", mode)
	}
	h.send(ctx, conn, frameModeChanged)
	h.send(ctx, conn, frameEnd)
}

func (h *Handler) handleFace(ctx context.Context, state string) {
	away, react := h.coord.ApplyFaceUpdate(parseFaceState(state))
	if !react {
		return
	}
	sys := fmt.Sprintf(
		"You are Alisa, a tsundere companion. The user just came back after being away for about %d minutes. "+
			"Acknowledge their return in one short sentence, in character: act like you didn't really notice, but you clearly did. "+
			"Start your reply with the usual <emotion=...> tag.",
		int(away.Minutes()),
	)
	h.speakUnprompted(ctx, sys, "return_reaction")
}

func (h *Handler) handleDesktop(ctx context.Context, payload string) {
	obs := parseDesktopPayload(payload)
	if obs.Task == "" {
		return
	}

	actCtx := habits.ActivityContext{App: obs.App, FileType: obs.FileType, Task: obs.Window}
	h.habits.ObserveActivity(obs.Task, actCtx)

	sig := habits.Signature(obs.Task, actCtx)
	if prev, switched := h.coord.NoteTaskSignature(sig); switched {
		h.habits.ObserveContextSwitch(prev, sig)
	}

	if obs.OfferHelp && obs.HasError {
		if ok, reason := h.habits.ShouldInterrupt(); !ok {
			slog.Debug("Suppressed help offer", "reason", reason)
			return
		}
		sys := fmt.Sprintf(
			"You are Alisa, a tsundere companion. The user seems stuck on an error while working in %s. "+
				"Softly offer to help in one short sentence, in character, without commanding them. "+
				"Start your reply with the usual <emotion=...> tag.",
			obs.App,
		)
		h.speakUnprompted(ctx, sys, "help_offer")
	}
}

func (h *Handler) handleChat(ctx context.Context, text string) {
	if ended := h.coord.NoteUserActivity(); ended >= silenceObservationMin {
		h.habits.ObserveSilence(ended)
	}
	h.habits.ObserveInteraction()

	if res := h.gateway.HandleUtterance(ctx, text); res.Handled {
		if err := h.buffer.Add(ctx, domain.RoleUser, text); err != nil {
			slog.Warn("Failed to persist user turn", "error", err)
		}
		if err := h.buffer.Add(ctx, domain.RoleAssistant, res.Reply); err != nil {
			slog.Warn("Failed to persist action reply", "error", err)
		}
		h.coord.SetLastEmotion(res.Emotion)
		h.hub.Broadcast(ctx, res.Reply, nil)
		h.hub.Broadcast(ctx, frameEmotion+string(res.Emotion), nil)
		h.hub.Broadcast(ctx, frameEnd, nil)
		return
	}

	if err := h.buffer.Add(ctx, domain.RoleUser, text); err != nil {
		slog.Warn("Failed to persist user turn", "error", err)
	}

	memories, err := h.repo.RecentMemories(ctx, memoryRecallLimit)
	if err != nil {
		slog.Warn("Failed to fetch memories", "error", err)
	}

	messages := h.conversation(prompt.Build(h.coord.Mode(), memories, h.coord.VisionContext()))

	acquired := h.coord.TryStartSpeaking()
	h.streamReply(ctx, messages)
	if acquired {
		h.coord.FinishSpeaking(false)
	}
}

// conversation builds the LLM message list: system prompt plus the rolling
// window.
func (h *Handler) conversation(systemPrompt string) []llm.Message {
	turns := h.buffer.Get()
	messages := make([]llm.Message, 0, len(turns)+1)
	messages = append(messages, llm.Message{Role: string(domain.RoleSystem), Content: systemPrompt})
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return messages
}

// streamReply streams one completion to every client and finalizes it with
// the emotion and end frames. A stream failure turns into an error frame;
// the connection stays up.
func (h *Handler) streamReply(ctx context.Context, messages []llm.Message) {
	var full strings.Builder
	err := h.llm.Stream(ctx, messages, func(token string) error {
		full.WriteString(token)
		h.hub.Broadcast(ctx, token, nil)
		return nil
	})
	if err != nil {
		slog.Error("LLM stream failed", "error", err)
		h.hub.Broadcast(ctx, frameError, nil)
		h.hub.Broadcast(ctx, frameEnd, nil)
		return
	}

	mood, clean := emotion.Parse(full.String())
	if clean == "" {
		mood, clean = emotion.Neutral, fallbackReply
		h.hub.Broadcast(ctx, clean, nil)
	}

	if err := h.buffer.Add(ctx, domain.RoleAssistant, clean); err != nil {
		slog.Warn("Failed to persist assistant turn", "error", err)
	}
	if err := h.repo.SaveMemory(ctx, string(mood), clean); err != nil {
		slog.Warn("Failed to save memory", "error", err)
	}
	h.coord.SetLastEmotion(mood)

	h.hub.Broadcast(ctx, frameEmotion+string(mood), nil)
	h.hub.Broadcast(ctx, frameEnd, nil)
}

// speakUnprompted streams one spontaneous utterance guarded by the speak
// state, so reactions, help offers, and idle thoughts never overlap replies.
func (h *Handler) speakUnprompted(ctx context.Context, systemPrompt, kind string) {
	if !h.coord.TryStartSpeaking() {
		slog.Debug("Skipping spontaneous speech, already speaking", "kind", kind)
		return
	}
	defer h.coord.FinishSpeaking(true)

	slog.Info("Speaking spontaneously", "kind", kind)
	h.streamReply(ctx, []llm.Message{{Role: string(domain.RoleSystem), Content: systemPrompt}})
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, text string) {
	if err := conn.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		slog.Debug("Write failed", "error", err)
	}
}
