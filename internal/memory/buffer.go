// Package memory implements the bounded conversation window sent to the LLM.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/miravel/alisa/internal/domain"
	"github.com/miravel/alisa/internal/store"
)

const (
	defaultMaxTurns  = 6
	defaultMaxTokens = 1500
)

// Buffer holds the rolling conversation window. Every turn is written through
// to the repository; the in-memory window is what prompt building sees.
//
// Two independent caps apply: a turn-count cap (maxTurns user/assistant
// pairs, so 2*maxTurns messages) and an approximate token budget. Oldest
// turns are evicted first until both hold. A single turn larger than the
// whole token budget is allowed to stand alone rather than emptying the
// window.
type Buffer struct {
	mu        sync.Mutex
	turns     []domain.Turn
	maxTurns  int
	maxTokens int
	sessionID string
	repo      store.Repository
}

// Option customizes a Buffer.
type Option func(*Buffer)

// WithMaxTurns overrides the turn-pair cap.
func WithMaxTurns(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxTurns = n
		}
	}
}

// WithMaxTokens overrides the approximate token budget.
func WithMaxTokens(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxTokens = n
		}
	}
}

// NewBuffer creates a conversation buffer that persists turns under the
// given session id. repo may be nil for a purely in-memory buffer.
func NewBuffer(sessionID string, repo store.Repository, opts ...Option) *Buffer {
	b := &Buffer{
		maxTurns:  defaultMaxTurns,
		maxTokens: defaultMaxTokens,
		sessionID: sessionID,
		repo:      repo,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends a turn and writes it through to the repository. The returned
// error reports persistence failure only; the in-memory window is always
// updated, so callers can log the error and keep going.
func (b *Buffer) Add(ctx context.Context, role domain.Role, content string) error {
	turn := domain.Turn{Role: role, Content: content, Timestamp: time.Now()}

	b.mu.Lock()
	b.turns = append(b.turns, turn)
	b.trimLocked()
	b.mu.Unlock()

	if b.repo == nil {
		return nil
	}
	if err := b.repo.AddTurn(ctx, b.sessionID, turn); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}
	return nil
}

// trimLocked evicts oldest turns until both caps are satisfied.
func (b *Buffer) trimLocked() {
	maxMessages := b.maxTurns * 2
	for len(b.turns) > maxMessages {
		b.turns = b.turns[1:]
	}
	for len(b.turns) > 1 && b.totalTokensLocked() > b.maxTokens {
		b.turns = b.turns[1:]
	}
}

func (b *Buffer) totalTokensLocked() int {
	total := 0
	for _, turn := range b.turns {
		total += turn.EstimatedTokens()
	}
	return total
}

// Get returns a copy of the current window, oldest first.
func (b *Buffer) Get() []domain.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Len returns the number of messages in the window.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.turns)
}

// Clear empties the in-memory window. Persisted history is untouched.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = nil
}
