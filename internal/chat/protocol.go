// Package chat is the control plane: it owns the WebSocket endpoint,
// demultiplexes the frame protocol, fans out LLM tokens to connected
// clients, and runs the idle-speech loop.
package chat

import (
	"strings"

	"github.com/miravel/alisa/internal/domain"
)

// Control frames. Everything is a plain text frame; control messages are
// distinguished by their bracketed prefix.
const (
	frameSpeechStart = "[SPEECH_START]"
	frameSpeechEnd   = "[SPEECH_END]"
	frameEnd         = "[END]"
	frameError       = "[ERROR]"
	frameEmotion     = "[EMOTION]"
	frameModeChanged = "[MODE CHANGED]"

	prefixVisionFace    = "[VISION_FACE]"
	prefixVisionDesktop = "[VISION_DESKTOP]"
	prefixMode          = "/mode"
)

// faceUpdate is one parsed [VISION_FACE] payload. Exactly one of the fields
// is set per frame.
type faceUpdate struct {
	presence  domain.Presence
	attention domain.Attention
	emotion   string
}

func parseFaceState(state string) faceUpdate {
	switch state {
	case "present":
		return faceUpdate{presence: domain.PresencePresent}
	case "absent":
		return faceUpdate{presence: domain.PresenceAbsent}
	case "focused":
		return faceUpdate{attention: domain.AttentionFocused}
	case "distracted":
		return faceUpdate{attention: domain.AttentionDistracted}
	default:
		return faceUpdate{emotion: state}
	}
}

// parseDesktopPayload splits a [VISION_DESKTOP] payload into its seven pipe
// fields: task|app|file_type|has_error|offer|window|text. Short payloads are
// tolerated; missing fields stay zero. The free-text last field may itself
// contain pipes, so it absorbs the remainder.
func parseDesktopPayload(payload string) domain.DesktopObservation {
	fields := strings.SplitN(payload, "|", 7)
	var obs domain.DesktopObservation
	for i, f := range fields {
		switch i {
		case 0:
			obs.Task = f
		case 1:
			obs.App = f
		case 2:
			obs.FileType = f
		case 3:
			obs.HasError = f == "true" || f == "True" || f == "1"
		case 4:
			obs.OfferHelp = f == "true" || f == "True" || f == "1"
		case 5:
			obs.Window = f
		case 6:
			obs.Text = f
		}
	}
	return obs
}
