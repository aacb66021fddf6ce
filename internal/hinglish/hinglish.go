// Package hinglish detects Romanized Hindi mixed into English text and
// picks the matching TTS voice profile.
package hinglish

import (
	"regexp"
	"strings"
)

// Word-list match over the most common Hinglish vocabulary: verbs and
// question words, adverbs, colloquial terms, quantities, possessives,
// pronouns. Kept as one alternation so a single scan decides.
var hinglishWords = regexp.MustCompile(`\b(hai|hain|ho|hoon|tha|thi|kya|kaise|kaisa|kyun|kab|kahan|` +
	`acha|accha|theek|thik|bilkul|zaroor|shayad|abhi|kabhi|phir|` +
	`bhai|yaar|dost|beta|ji|na|haan|nahi|nai|` +
	`bahut|bohat|itna|utna|kitna|jyada|kam|zyada|` +
	`dekh|dekho|suno|bolo|karo|hoga|hogi|hoge|` +
	`mera|meri|mere|tera|teri|tere|uska|uski|uske|tumhara|tumhari|tumhare|` +
	`apna|apni|apne|koi|kuch|sab|sabhi|main|mein|tum|aap)\b`)

var devanagari = regexp.MustCompile(`[\x{0900}-\x{097F}]`)

// Detect reports whether the text reads as Hinglish: either Romanized
// Hindi vocabulary or Devanagari script.
func Detect(text string) bool {
	if devanagari.MatchString(text) {
		return true
	}
	return hinglishWords.MatchString(strings.ToLower(text))
}

// Variant spellings folded to one canonical form so TTS pronounces them
// consistently.
var variants = map[string]string{
	"accha": "acha",
	"thik":  "theek",
	"nai":   "nahi",
	"bohat": "bahut",
	"zyada": "jyada",
}

var wordSplit = regexp.MustCompile(`\s+`)

// Normalize canonicalizes variant spellings and collapses whitespace.
// Case is preserved for words that need no folding.
func Normalize(text string) string {
	words := wordSplit.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		bare, prefix, suffix := stripPunct(w)
		if canon, ok := variants[strings.ToLower(bare)]; ok {
			w = prefix + canon + suffix
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func stripPunct(w string) (bare, prefix, suffix string) {
	start, end := 0, len(w)
	for start < end && isPunct(w[start]) {
		start++
	}
	for end > start && isPunct(w[end-1]) {
		end--
	}
	return w[start:end], w[:start], w[end:]
}

func isPunct(b byte) bool {
	switch b {
	case '.', ',', '!', '?', ';', ':', '"', '\'', ')', '(':
		return true
	}
	return false
}

// VoiceProfile is the edge-TTS configuration the frontend should use for a
// given piece of text.
type VoiceProfile struct {
	Voice string `json:"voice"`
	Rate  string `json:"rate"`
	Pitch string `json:"pitch"`
}

var (
	defaultProfile  = VoiceProfile{Voice: "en-US-AnaNeural", Rate: "+15%", Pitch: "+10Hz"}
	hinglishProfile = VoiceProfile{Voice: "en-IN-NeerjaNeural", Rate: "+20%", Pitch: "+15Hz"}
)

// ProfileFor picks the voice profile matching the text's language mix.
func ProfileFor(text string) VoiceProfile {
	if Detect(text) {
		return hinglishProfile
	}
	return defaultProfile
}
