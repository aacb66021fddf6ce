package companion

import (
	"time"

	"github.com/miravel/alisa/internal/domain"
)

// ContextKind names the situation a spontaneous utterance should fit.
// It selects the prompt guidance, never the decision itself.
type ContextKind string

const (
	ContextUserAwayLong  ContextKind = "user_away_long"
	ContextVeryQuietLong ContextKind = "very_quiet_long"
	ContextQuietWorking  ContextKind = "quiet_working"
	ContextDistracted    ContextKind = "user_distracted"
	ContextFocused       ContextKind = "focused_silence"
	ContextLateNight     ContextKind = "late_night_silence"
	ContextGeneral       ContextKind = "general_silence"
	ContextSoftPresence  ContextKind = "soft_presence"
)

// ContextType determines what kind of spontaneous speech fits the current
// silence and vision state.
func (p *Policy) ContextType(vision domain.VisionState, silence time.Duration) ContextKind {
	hour := p.now().Hour()

	switch {
	case silence > p.cfg.VeryLongSilence:
		if vision.Presence == domain.PresenceAbsent {
			return ContextUserAwayLong
		}
		return ContextVeryQuietLong
	case silence > p.cfg.LongSilence:
		if vision.Attention == domain.AttentionDistracted {
			return ContextDistracted
		}
		return ContextQuietWorking
	case silence > p.cfg.MediumSilence:
		if hour < 6 {
			return ContextLateNight
		}
		if vision.Attention == domain.AttentionFocused {
			return ContextFocused
		}
		return ContextGeneral
	default:
		return ContextSoftPresence
	}
}
