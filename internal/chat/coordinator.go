package chat

import (
	"sync"
	"time"

	"github.com/miravel/alisa/internal/companion"
	"github.com/miravel/alisa/internal/domain"
	"github.com/miravel/alisa/internal/emotion"
	"github.com/miravel/alisa/internal/prompt"
)

const (
	returnReactionMinAway = time.Minute
	visionReactionGap     = 2 * time.Minute
)

// Coordinator owns all mutable conversation state shared between the
// connection handlers and the idle loop: vision, companion session, speak
// state, personality mode, and the last task signature. One mutex guards
// everything; handlers run on real goroutines, so this replaces the
// original's single-threaded assumptions.
type Coordinator struct {
	mu            sync.Mutex
	now           func() time.Time
	vision        domain.VisionState
	session       *companion.Session
	state         companion.SpeakState
	avatarTalking bool
	mode          string
	lastEmotion   emotion.Emotion
	lastTaskSig   string
}

// NewCoordinator starts coordinator state for one process lifetime.
func NewCoordinator(now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		now:         now,
		vision:      domain.NewVisionState(),
		session:     companion.NewSession(now()),
		mode:        prompt.DefaultMode,
		lastEmotion: emotion.Neutral,
	}
}

// Mode returns the active personality mode.
func (c *Coordinator) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches the personality mode. Unknown modes are ignored and
// reported as false.
func (c *Coordinator) SetMode(mode string) bool {
	if !prompt.ValidMode(mode) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	return true
}

// Vision returns a copy of the current vision state.
func (c *Coordinator) Vision() domain.VisionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vision
}

// LastEmotion is the emotion of the most recent assistant utterance.
func (c *Coordinator) LastEmotion() emotion.Emotion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEmotion
}

// SetLastEmotion records the emotion of an utterance that just finished.
func (c *Coordinator) SetLastEmotion(e emotion.Emotion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e != "" {
		c.lastEmotion = e
	}
}

// NoteUserActivity records a user turn and returns the silence period that
// just ended.
func (c *Coordinator) NoteUserActivity() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.NoteUserActivity(c.now())
}

// EvaluateSpeech runs the spontaneous-speech policy against the current
// session, vision, and mode under the coordinator lock.
func (c *Coordinator) EvaluateSpeech(p *companion.Policy) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	speaking := c.state == companion.StateSpeaking || c.avatarTalking
	return p.ShouldSpeak(c.session, c.vision, c.mode, speaking)
}

// SpeechContext classifies the current silence for prompt selection.
func (c *Coordinator) SpeechContext(p *companion.Policy) companion.ContextKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return p.ContextType(c.vision, c.session.SilenceDuration(c.now()))
}

// Stats snapshots the companion session for the debug endpoint.
func (c *Coordinator) Stats(p *companion.Policy) companion.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot(c.now(), p)
}

// Speaking reports whether any utterance is in flight, either a streaming
// reply or the avatar still voicing one.
func (c *Coordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == companion.StateSpeaking || c.avatarTalking
}

// TryStartSpeaking transitions to the speaking state. It fails when an
// utterance is already in flight, which is what keeps spontaneous speech
// from overlapping replies.
func (c *Coordinator) TryStartSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != companion.StateIdle {
		return false
	}
	c.state = companion.StateSpeaking
	return true
}

// FinishSpeaking leaves the speaking state. Spontaneous utterances also
// stamp the cooldown via MarkSpoke.
func (c *Coordinator) FinishSpeaking(spontaneous bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = companion.StateIdle
	if spontaneous {
		c.session.MarkSpoke(c.now())
	}
}

// SetAvatarTalking tracks the client-side TTS playback window reported via
// speech-start and speech-end frames.
func (c *Coordinator) SetAvatarTalking(talking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avatarTalking = talking
}

// ApplyFaceUpdate mutates the vision state from one face frame and reports
// whether the transition deserves a spoken reaction: returning after at
// least a minute away, rate-limited to one reaction per two minutes.
func (c *Coordinator) ApplyFaceUpdate(up faceUpdate) (reactAway time.Duration, react bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	prev := c.vision

	switch {
	case up.presence != "":
		c.vision.Presence = up.presence
	case up.attention != "":
		c.vision.Attention = up.attention
	case up.emotion != "":
		c.vision.Emotion = up.emotion
	}

	if up.presence == domain.PresencePresent && prev.Presence == domain.PresenceAbsent {
		away := now.Sub(prev.LastUpdate)
		if away >= returnReactionMinAway && now.Sub(c.vision.LastReaction) >= visionReactionGap {
			c.vision.LastReaction = now
			c.vision.LastUpdate = now
			return away, true
		}
	}
	c.vision.LastUpdate = now
	return 0, false
}

// NoteTaskSignature records the current desktop task and returns the
// previous one when the context switched.
func (c *Coordinator) NoteTaskSignature(sig string) (prev string, switched bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.lastTaskSig
	c.lastTaskSig = sig
	return prev, prev != "" && prev != sig
}

// VisionContext renders the vision state as passive prompt context, or ""
// when nothing is known.
func (c *Coordinator) VisionContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts := make([]string, 0, 3)
	if c.vision.Presence != domain.PresenceUnknown {
		parts = append(parts, "The user is "+string(c.vision.Presence)+".")
	}
	if c.vision.Attention != domain.AttentionUnknown {
		parts = append(parts, "They seem "+string(c.vision.Attention)+".")
	}
	if c.vision.Emotion != "" {
		parts = append(parts, "They look "+c.vision.Emotion+".")
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}
