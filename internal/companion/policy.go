// Package companion decides whether, when, and how Alisa may speak without
// being asked. The policy is deliberately conservative: a companion that
// respects silence, not a chatbot that fills it.
package companion

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/miravel/alisa/internal/domain"
)

// SilenceCategory is a coarse bucket of elapsed idle duration.
type SilenceCategory string

const (
	SilenceNone     SilenceCategory = ""
	SilenceShort    SilenceCategory = "short"
	SilenceMedium   SilenceCategory = "medium"
	SilenceLong     SilenceCategory = "long"
	SilenceVeryLong SilenceCategory = "very_long"
)

// PolicyConfig holds every tunable of the spontaneous-speech decision as
// named values, so the tables can be tested in isolation from control flow.
type PolicyConfig struct {
	// Silence thresholds. Durations below Short never qualify.
	ShortSilence    time.Duration
	MediumSilence   time.Duration
	LongSilence     time.Duration
	VeryLongSilence time.Duration

	// Cooldown is the minimum gap between spontaneous utterances.
	Cooldown time.Duration

	// CompanionModeTurns is how many user turns activate companion mode,
	// which short/medium silences require.
	CompanionModeTurns int

	// BaseProbability per silence category.
	BaseProbability map[SilenceCategory]float64

	// Vision multipliers.
	AbsentMultiplier     float64
	DistractedMultiplier float64
	FocusedMultiplier    float64

	// Personality-mode multipliers; missing modes count as 1.0.
	ModeMultipliers map[string]float64

	// Time-of-day multipliers.
	LateNightMultiplier    float64 // 00:00-06:00
	EarlyMorningMultiplier float64 // 06:00-09:00
	EveningMultiplier      float64 // 22:00-24:00

	// Session-chattiness multipliers, keyed on messages per minute.
	VeryActiveChatMultiplier float64 // > 2 msgs/min
	ActiveChatMultiplier     float64 // > 1 msg/min
}

// DefaultPolicyConfig returns the tuned production tables.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		ShortSilence:       2 * time.Minute,
		MediumSilence:      5 * time.Minute,
		LongSilence:        10 * time.Minute,
		VeryLongSilence:    30 * time.Minute,
		Cooldown:           90 * time.Second,
		CompanionModeTurns: 3,
		BaseProbability: map[SilenceCategory]float64{
			SilenceShort:    0.08,
			SilenceMedium:   0.15,
			SilenceLong:     0.25,
			SilenceVeryLong: 0.40,
		},
		AbsentMultiplier:     0.3,
		DistractedMultiplier: 1.2,
		FocusedMultiplier:    0.7,
		ModeMultipliers: map[string]float64{
			"serious": 0.6,
			"teasing": 1.2,
			"calm":    0.8,
		},
		LateNightMultiplier:      0.2,
		EarlyMorningMultiplier:   0.7,
		EveningMultiplier:        0.5,
		VeryActiveChatMultiplier: 0.7,
		ActiveChatMultiplier:     0.85,
	}
}

// Policy evaluates the spontaneous-speech decision.
type Policy struct {
	cfg  PolicyConfig
	now  func() time.Time
	roll func() float64
}

// PolicyOption customizes a Policy.
type PolicyOption func(*Policy)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) PolicyOption {
	return func(p *Policy) { p.now = now }
}

// WithRoll overrides the uniform random draw (tests).
func WithRoll(roll func() float64) PolicyOption {
	return func(p *Policy) { p.roll = roll }
}

// NewPolicy creates a Policy with the given tables.
func NewPolicy(cfg PolicyConfig, opts ...PolicyOption) *Policy {
	p := &Policy{
		cfg:  cfg,
		now:  time.Now,
		roll: rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Categorize buckets a silence duration.
func (p *Policy) Categorize(silence time.Duration) SilenceCategory {
	switch {
	case silence < p.cfg.ShortSilence:
		return SilenceNone
	case silence < p.cfg.MediumSilence:
		return SilenceShort
	case silence < p.cfg.LongSilence:
		return SilenceMedium
	case silence < p.cfg.VeryLongSilence:
		return SilenceLong
	default:
		return SilenceVeryLong
	}
}

// ShouldSpeak decides whether Alisa speaks spontaneously right now. The
// reason string is for logs and tests, never control flow. On a true result
// the caller must record the utterance with Session.MarkSpoke.
func (p *Policy) ShouldSpeak(sess *Session, vision domain.VisionState, mode string, speaking bool) (bool, string) {
	if speaking {
		return false, "already_speaking"
	}

	silence := sess.SilenceDuration(p.now())
	category := p.Categorize(silence)
	if category == SilenceNone {
		return false, "too_soon"
	}

	if sess.SinceLastSpontaneous(p.now()) < p.cfg.Cooldown {
		return false, "spoke_recently"
	}

	probability := p.Probability(category, vision, mode, sess.ChattinessPerMinute(p.now()), p.now().Hour())

	if (category == SilenceShort || category == SilenceMedium) && !sess.CompanionModeActive(p.cfg.CompanionModeTurns) {
		return false, "companion_mode_inactive"
	}

	if p.roll() > probability {
		return false, fmt.Sprintf("probability_gate_%.2f", probability)
	}

	return true, fmt.Sprintf("%s_silence_%.0fs_prob_%.2f", category, silence.Seconds(), probability)
}

// Probability computes the final speak probability for the given context.
// Exposed separately so the multiplier tables are testable on their own.
func (p *Policy) Probability(category SilenceCategory, vision domain.VisionState, mode string, chattiness float64, hour int) float64 {
	prob := p.cfg.BaseProbability[category]
	prob *= p.visionMultiplier(vision)
	prob *= p.modeMultiplier(mode)
	prob *= p.hourMultiplier(hour)
	prob *= p.chattinessMultiplier(chattiness)
	return prob
}

func (p *Policy) visionMultiplier(vision domain.VisionState) float64 {
	switch {
	case vision.Presence == domain.PresenceAbsent:
		// User is away, they cannot hear anyway.
		return p.cfg.AbsentMultiplier
	case vision.Attention == domain.AttentionDistracted:
		// Present but drifting; a gentle nudge is acceptable.
		return p.cfg.DistractedMultiplier
	case vision.Presence == domain.PresencePresent && vision.Attention == domain.AttentionFocused:
		// Respect their flow.
		return p.cfg.FocusedMultiplier
	default:
		return 1.0
	}
}

func (p *Policy) modeMultiplier(mode string) float64 {
	if m, ok := p.cfg.ModeMultipliers[mode]; ok {
		return m
	}
	return 1.0
}

func (p *Policy) hourMultiplier(hour int) float64 {
	switch {
	case hour >= 0 && hour < 6:
		return p.cfg.LateNightMultiplier
	case hour >= 6 && hour < 9:
		return p.cfg.EarlyMorningMultiplier
	case hour >= 22:
		return p.cfg.EveningMultiplier
	default:
		return 1.0
	}
}

func (p *Policy) chattinessMultiplier(messagesPerMinute float64) float64 {
	switch {
	case messagesPerMinute > 2:
		return p.cfg.VeryActiveChatMultiplier
	case messagesPerMinute > 1:
		return p.cfg.ActiveChatMultiplier
	default:
		return 1.0
	}
}
