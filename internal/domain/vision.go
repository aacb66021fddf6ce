package domain

import (
	"time"
)

// Presence is whether the user is visible to the webcam pipeline.
type Presence string

const (
	PresencePresent Presence = "present"
	PresenceAbsent  Presence = "absent"
	PresenceUnknown Presence = "unknown"
)

// Attention is whether the user appears focused on the screen.
type Attention string

const (
	AttentionFocused    Attention = "focused"
	AttentionDistracted Attention = "distracted"
	AttentionUnknown    Attention = "unknown"
)

// VisionState is the latest passive visual context reported by the vision
// client. It is ambient awareness for the companion policy, never persisted.
type VisionState struct {
	Presence     Presence  `json:"presence"`
	Attention    Attention `json:"attention"`
	Emotion      string    `json:"emotion"`
	LastUpdate   time.Time `json:"last_update"`
	LastReaction time.Time `json:"last_reaction"`
}

// NewVisionState returns a state with everything unknown.
func NewVisionState() VisionState {
	return VisionState{
		Presence:  PresenceUnknown,
		Attention: AttentionUnknown,
	}
}

// DesktopObservation is one parsed [VISION_DESKTOP] payload: a snapshot of
// what the user is doing on screen.
type DesktopObservation struct {
	Task      string
	App       string
	FileType  string
	HasError  bool
	OfferHelp bool
	Window    string
	Text      string
}
