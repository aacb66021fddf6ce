// Package domain contains core domain types for the Alisa companion backend.
package domain

import (
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single message in the conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EstimatedTokens approximates the token cost of a turn. The LLM endpoint
// does not expose its tokenizer, so length/4 is used as a working estimate.
func (t Turn) EstimatedTokens() int {
	return len(t.Content) / 4
}

// MemoryEntry is a long-term memory row: an assistant utterance kept beyond
// the rolling conversation window, tagged with the emotion it carried.
type MemoryEntry struct {
	ID        int64     `json:"id"`
	Emotion   string    `json:"emotion"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistorySummary describes the persisted conversation history.
type HistorySummary struct {
	TurnCount   int64      `json:"turn_count"`
	MemoryCount int64      `json:"memory_count"`
	OldestTurn  *time.Time `json:"oldest_turn,omitempty"`
	NewestTurn  *time.Time `json:"newest_turn,omitempty"`
}
