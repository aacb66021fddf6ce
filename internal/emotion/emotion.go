// Package emotion extracts the leading emotion tag from LLM output.
//
// The model is instructed to start every reply with "<emotion=NAME>" on the
// first line. Local models forget, garble, or reduce the reply to a bare
// emotion word often enough that the overlay and voice pipelines cannot
// depend on the format, so Parse repairs whatever arrives and always returns
// a usable (emotion, text) pair.
package emotion

import (
	"strings"
)

// Emotion is one of the fixed labels attached to every assistant utterance.
type Emotion string

const (
	Happy   Emotion = "happy"
	Calm    Emotion = "calm"
	Teasing Emotion = "teasing"
	Shy     Emotion = "shy"
	Serious Emotion = "serious"
	Sad     Emotion = "sad"
	Neutral Emotion = "neutral"
)

// All lists the valid emotions in a stable order.
var All = []Emotion{Happy, Calm, Teasing, Shy, Serious, Sad, Neutral}

// Valid reports whether e is a recognized emotion label.
func (e Emotion) Valid() bool {
	switch e {
	case Happy, Calm, Teasing, Shy, Serious, Sad, Neutral:
		return true
	}
	return false
}

const tagPrefix = "<emotion="

// Parse splits raw assistant output into an emotion and clean display text.
// It never fails; unparseable input comes back as (Neutral, trimmed input).
func Parse(raw string) (Emotion, string) {
	trimmed := strings.TrimSpace(raw)

	// Case 1: well-formed "<emotion=NAME>" prefix.
	if strings.HasPrefix(trimmed, tagPrefix) {
		if end := strings.Index(trimmed, ">"); end > len(tagPrefix)-1 {
			name := Emotion(strings.ToLower(strings.TrimSpace(trimmed[len(tagPrefix):end])))
			clean := strings.TrimSpace(trimmed[end+1:])
			if !name.Valid() {
				name = Neutral
			}
			return name, clean
		}
	}

	// Case 2: the entire reply is a bare emotion word. The model broke; keep
	// the word visible but do not trust it as the actual emotion.
	if Emotion(strings.ToLower(trimmed)).Valid() {
		return Neutral, trimmed
	}

	// Case 3: reply starts with an emotion word and then real content.
	lower := strings.ToLower(trimmed)
	for _, e := range All {
		word := string(e)
		if strings.HasPrefix(lower, word+" ") || strings.HasPrefix(lower, word+"\n") {
			clean := strings.TrimSpace(trimmed[len(word):])
			if clean != "" {
				return e, clean
			}
		}
	}

	// Case 4: no tag at all.
	return Neutral, trimmed
}
