package companion

import (
	"time"
)

// SpeakState is the explicit utterance state. Modeling it as an enum keeps
// overlapping spontaneous utterances unrepresentable.
type SpeakState int

const (
	// StateIdle means no utterance is in flight.
	StateIdle SpeakState = iota
	// StateSpeaking means tokens are being streamed to clients.
	StateSpeaking
	// StateCooldown means an utterance just finished and the avatar/TTS
	// pipeline may still be playing it out.
	StateCooldown
)

func (s SpeakState) String() string {
	switch s {
	case StateSpeaking:
		return "speaking"
	case StateCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// Session tracks per-process companion state: how chatty the session has
// been, when the user last spoke, and when Alisa last spoke unprompted.
// It has a single writer (the chat coordinator); methods take an explicit
// now so the policy's injected clock drives every duration.
type Session struct {
	sessionStart      time.Time
	silenceStart      time.Time
	lastUserActivity  time.Time
	lastSpontaneous   time.Time
	conversationCount int
}

// NewSession starts a companion session at the given time.
func NewSession(now time.Time) *Session {
	return &Session{
		sessionStart:     now,
		silenceStart:     now,
		lastUserActivity: now,
	}
}

// NoteUserActivity records that the user spoke or interacted. Returns the
// silence period that just ended, so callers can feed it to habit learning.
func (s *Session) NoteUserActivity(now time.Time) time.Duration {
	ended := now.Sub(s.silenceStart)
	s.lastUserActivity = now
	s.silenceStart = now
	s.conversationCount++
	return ended
}

// SilenceDuration is how long the user has been quiet.
func (s *Session) SilenceDuration(now time.Time) time.Duration {
	return now.Sub(s.silenceStart)
}

// SinceLastSpontaneous is the time since Alisa last spoke unprompted.
func (s *Session) SinceLastSpontaneous(now time.Time) time.Duration {
	if s.lastSpontaneous.IsZero() {
		return now.Sub(s.sessionStart)
	}
	return now.Sub(s.lastSpontaneous)
}

// MarkSpoke records a spontaneous utterance.
func (s *Session) MarkSpoke(now time.Time) {
	s.lastSpontaneous = now
}

// CompanionModeActive reports whether sustained interaction has unlocked
// short/medium-silence speech.
func (s *Session) CompanionModeActive(threshold int) bool {
	return s.conversationCount >= threshold
}

// ConversationCount is the number of user turns this session.
func (s *Session) ConversationCount() int {
	return s.conversationCount
}

// ChattinessPerMinute is user messages per minute of session, floored at
// one minute so brand-new sessions do not look hyperactive.
func (s *Session) ChattinessPerMinute(now time.Time) float64 {
	minutes := now.Sub(s.sessionStart).Minutes()
	if minutes < 1 {
		minutes = 1
	}
	return float64(s.conversationCount) / minutes
}

// Stats is a debugging snapshot of the session.
type Stats struct {
	CompanionModeActive  bool    `json:"companion_mode_active"`
	SilenceSeconds       float64 `json:"silence_seconds"`
	SilenceCategory      string  `json:"silence_category"`
	ConversationCount    int     `json:"conversation_count"`
	SinceLastSpontaneous float64 `json:"since_last_spontaneous_seconds"`
	SessionSeconds       float64 `json:"session_seconds"`
}

// Snapshot returns the current session stats.
func (s *Session) Snapshot(now time.Time, p *Policy) Stats {
	silence := s.SilenceDuration(now)
	return Stats{
		CompanionModeActive:  s.CompanionModeActive(p.cfg.CompanionModeTurns),
		SilenceSeconds:       silence.Seconds(),
		SilenceCategory:      string(p.Categorize(silence)),
		ConversationCount:    s.conversationCount,
		SinceLastSpontaneous: s.SinceLastSpontaneous(now).Seconds(),
		SessionSeconds:       now.Sub(s.sessionStart).Seconds(),
	}
}
