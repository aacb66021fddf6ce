// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/miravel/alisa/internal/domain"
)

// Repository defines the interface for persisting conversation history and
// long-term memories.
type Repository interface {
	// AddTurn appends a conversation turn for a chat session.
	AddTurn(ctx context.Context, sessionID string, turn domain.Turn) error

	// RecentTurns returns the newest turns for a session, oldest first.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)

	// SaveMemory stores an assistant utterance as a long-term memory.
	SaveMemory(ctx context.Context, emotion, content string) error

	// RecentMemories returns the newest memory contents, newest first.
	RecentMemories(ctx context.Context, limit int) ([]string, error)

	// HistorySummary describes the persisted history.
	HistorySummary(ctx context.Context) (domain.HistorySummary, error)

	// ClearHistory deletes all persisted turns and memories.
	ClearHistory(ctx context.Context) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
