package companion

import (
	"testing"
	"time"

	"github.com/miravel/alisa/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// daytime returns a reference instant at 14:00 so the hour multiplier is 1.
func daytime() time.Time {
	return time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
}

func alwaysSpeak() float64 { return 0.0 }
func neverSpeak() float64  { return 1.0 }

func TestCategorizeBins(t *testing.T) {
	t.Parallel()
	p := NewPolicy(DefaultPolicyConfig())

	tests := []struct {
		silence time.Duration
		want    SilenceCategory
	}{
		{0, SilenceNone},
		{119 * time.Second, SilenceNone},
		{120 * time.Second, SilenceShort},
		{299 * time.Second, SilenceShort},
		{300 * time.Second, SilenceMedium},
		{599 * time.Second, SilenceMedium},
		{600 * time.Second, SilenceLong},
		{1799 * time.Second, SilenceLong},
		{1800 * time.Second, SilenceVeryLong},
		{4 * time.Hour, SilenceVeryLong},
	}
	for _, tt := range tests {
		if got := p.Categorize(tt.silence); got != tt.want {
			t.Errorf("Categorize(%v) = %q, want %q", tt.silence, got, tt.want)
		}
	}
}

func TestShouldSpeakRefusesWhileSpeaking(t *testing.T) {
	t.Parallel()
	now := daytime()
	p := NewPolicy(DefaultPolicyConfig(), WithClock(fixedClock(now)), WithRoll(alwaysSpeak))
	sess := NewSession(now.Add(-time.Hour))

	ok, reason := p.ShouldSpeak(sess, domain.NewVisionState(), "teasing", true)
	if ok || reason != "already_speaking" {
		t.Fatalf("got (%v, %q), want (false, already_speaking)", ok, reason)
	}
}

func TestShouldSpeakTooSoon(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)
	now := start.Add(119 * time.Second)
	p := NewPolicy(DefaultPolicyConfig(), WithClock(fixedClock(now)), WithRoll(alwaysSpeak))

	ok, reason := p.ShouldSpeak(sess, domain.NewVisionState(), "teasing", false)
	if ok || reason != "too_soon" {
		t.Fatalf("got (%v, %q), want (false, too_soon)", ok, reason)
	}
}

func TestShouldSpeakCooldownWinsOverLongSilence(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)
	now := start.Add(31 * time.Minute)
	sess.MarkSpoke(now.Add(-30 * time.Second))

	p := NewPolicy(DefaultPolicyConfig(), WithClock(fixedClock(now)), WithRoll(alwaysSpeak))
	ok, reason := p.ShouldSpeak(sess, domain.NewVisionState(), "teasing", false)
	if ok || reason != "spoke_recently" {
		t.Fatalf("got (%v, %q), want (false, spoke_recently)", ok, reason)
	}
}

func TestShouldSpeakCompanionModeGate(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)
	now := start.Add(3 * time.Minute) // short silence
	p := NewPolicy(DefaultPolicyConfig(), WithClock(fixedClock(now)), WithRoll(alwaysSpeak))

	ok, reason := p.ShouldSpeak(sess, domain.NewVisionState(), "teasing", false)
	if ok || reason != "companion_mode_inactive" {
		t.Fatalf("before turns: got (%v, %q), want (false, companion_mode_inactive)", ok, reason)
	}

	// Three user turns unlock companion mode. Re-establish the silence
	// window afterwards so the category is still short.
	for range 3 {
		sess.NoteUserActivity(start)
	}
	ok, _ = p.ShouldSpeak(sess, domain.NewVisionState(), "teasing", false)
	if !ok {
		t.Fatal("after three turns short silence should pass the gate")
	}
}

func TestShouldSpeakLongSilenceIgnoresCompanionMode(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)
	now := start.Add(11 * time.Minute)
	p := NewPolicy(DefaultPolicyConfig(), WithClock(fixedClock(now)), WithRoll(alwaysSpeak))

	ok, _ := p.ShouldSpeak(sess, domain.NewVisionState(), "teasing", false)
	if !ok {
		t.Fatal("long silence must not require companion mode")
	}
}

func TestShouldSpeakProbabilityGate(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)
	now := start.Add(11 * time.Minute)
	p := NewPolicy(DefaultPolicyConfig(), WithClock(fixedClock(now)), WithRoll(neverSpeak))

	ok, reason := p.ShouldSpeak(sess, domain.NewVisionState(), "teasing", false)
	if ok {
		t.Fatal("roll of 1.0 must never speak")
	}
	if want := "probability_gate_0.30"; reason != want {
		t.Errorf("reason = %q, want %q", reason, want)
	}
}

func TestProbabilityVisionMultipliers(t *testing.T) {
	t.Parallel()
	p := NewPolicy(DefaultPolicyConfig())

	absent := domain.NewVisionState()
	absent.Presence = domain.PresenceAbsent

	distracted := domain.NewVisionState()
	distracted.Presence = domain.PresencePresent
	distracted.Attention = domain.AttentionDistracted

	focused := domain.NewVisionState()
	focused.Presence = domain.PresencePresent
	focused.Attention = domain.AttentionFocused

	tests := []struct {
		name   string
		vision domain.VisionState
		want   float64
	}{
		{"unknown", domain.NewVisionState(), 0.25},
		{"absent", absent, 0.25 * 0.3},
		{"distracted", distracted, 0.25 * 1.2},
		{"focused", focused, 0.25 * 0.7},
	}
	for _, tt := range tests {
		got := p.Probability(SilenceLong, tt.vision, "", 0, 14)
		if !closeTo(got, tt.want) {
			t.Errorf("%s: probability = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestProbabilityModeAndHourAndChattiness(t *testing.T) {
	t.Parallel()
	p := NewPolicy(DefaultPolicyConfig())
	base := domain.NewVisionState()

	if got := p.Probability(SilenceLong, base, "serious", 0, 14); !closeTo(got, 0.25*0.6) {
		t.Errorf("serious mode: %v", got)
	}
	if got := p.Probability(SilenceLong, base, "unknown-mode", 0, 14); !closeTo(got, 0.25) {
		t.Errorf("unknown mode should be neutral: %v", got)
	}
	if got := p.Probability(SilenceLong, base, "", 0, 3); !closeTo(got, 0.25*0.2) {
		t.Errorf("late night: %v", got)
	}
	if got := p.Probability(SilenceLong, base, "", 0, 7); !closeTo(got, 0.25*0.7) {
		t.Errorf("early morning: %v", got)
	}
	if got := p.Probability(SilenceLong, base, "", 0, 23); !closeTo(got, 0.25*0.5) {
		t.Errorf("evening: %v", got)
	}
	if got := p.Probability(SilenceLong, base, "", 2.5, 14); !closeTo(got, 0.25*0.7) {
		t.Errorf("very chatty: %v", got)
	}
	if got := p.Probability(SilenceLong, base, "", 1.5, 14); !closeTo(got, 0.25*0.85) {
		t.Errorf("chatty: %v", got)
	}
}

func closeTo(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

func TestSessionSilenceTracking(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)

	ended := sess.NoteUserActivity(start.Add(5 * time.Minute))
	if ended != 5*time.Minute {
		t.Fatalf("ended silence = %v, want 5m", ended)
	}
	if got := sess.SilenceDuration(start.Add(7 * time.Minute)); got != 2*time.Minute {
		t.Errorf("silence = %v, want 2m", got)
	}
	if sess.ConversationCount() != 1 {
		t.Errorf("count = %d, want 1", sess.ConversationCount())
	}
}

func TestSessionSpontaneousFallsBackToStart(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)

	if got := sess.SinceLastSpontaneous(start.Add(time.Hour)); got != time.Hour {
		t.Errorf("never spoke: %v, want 1h", got)
	}
	sess.MarkSpoke(start.Add(time.Hour))
	if got := sess.SinceLastSpontaneous(start.Add(time.Hour + time.Minute)); got != time.Minute {
		t.Errorf("after MarkSpoke: %v, want 1m", got)
	}
}

func TestChattinessFloorsAtOneMinute(t *testing.T) {
	t.Parallel()
	start := daytime()
	sess := NewSession(start)
	sess.NoteUserActivity(start.Add(time.Second))
	sess.NoteUserActivity(start.Add(2 * time.Second))

	if got := sess.ChattinessPerMinute(start.Add(3 * time.Second)); got != 2.0 {
		t.Errorf("chattiness = %v, want 2.0 (floored minute)", got)
	}
}

func TestContextType(t *testing.T) {
	t.Parallel()
	night := time.Date(2025, 6, 10, 2, 0, 0, 0, time.UTC)
	day := daytime()

	absent := domain.NewVisionState()
	absent.Presence = domain.PresenceAbsent
	distracted := domain.NewVisionState()
	distracted.Attention = domain.AttentionDistracted
	focused := domain.NewVisionState()
	focused.Attention = domain.AttentionFocused

	tests := []struct {
		name    string
		now     time.Time
		vision  domain.VisionState
		silence time.Duration
		want    ContextKind
	}{
		{"away very long", day, absent, 31 * time.Minute, ContextUserAwayLong},
		{"present very long", day, domain.NewVisionState(), 31 * time.Minute, ContextVeryQuietLong},
		{"distracted long", day, distracted, 11 * time.Minute, ContextDistracted},
		{"working long", day, domain.NewVisionState(), 11 * time.Minute, ContextQuietWorking},
		{"late night medium", night, domain.NewVisionState(), 6 * time.Minute, ContextLateNight},
		{"focused medium", day, focused, 6 * time.Minute, ContextFocused},
		{"general medium", day, domain.NewVisionState(), 6 * time.Minute, ContextGeneral},
		{"soft presence", day, domain.NewVisionState(), time.Minute, ContextSoftPresence},
	}
	for _, tt := range tests {
		p := NewPolicy(DefaultPolicyConfig(), WithClock(fixedClock(tt.now)))
		if got := p.ContextType(tt.vision, tt.silence); got != tt.want {
			t.Errorf("%s: ContextType = %q, want %q", tt.name, got, tt.want)
		}
	}
}
