package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/miravel/alisa/internal/domain"
	"github.com/miravel/alisa/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const (
	writeRetryAttempts = 3
	writeRetryDelay    = 100 * time.Millisecond
)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);

	CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		emotion TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AddTurn appends a conversation turn for a chat session.
func (s *SQLiteStore) AddTurn(ctx context.Context, sessionID string, turn domain.Turn) error {
	query := `INSERT INTO turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	err := shared.RetrySQLite(ctx, writeRetryAttempts, writeRetryDelay, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			sessionID, string(turn.Role), turn.Content, turn.Timestamp.Unix())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest turns for a session, oldest first.
func (s *SQLiteStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	query := `
		SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at
			FROM turns WHERE session_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var turn domain.Turn
		var role string
		var createdAt int64
		if err := rows.Scan(&role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn.Role = domain.Role(role)
		turn.Timestamp = time.Unix(createdAt, 0)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// SaveMemory stores an assistant utterance as a long-term memory.
func (s *SQLiteStore) SaveMemory(ctx context.Context, emotion, content string) error {
	query := `INSERT INTO memories (emotion, content, created_at) VALUES (?, ?, ?)`
	err := shared.RetrySQLite(ctx, writeRetryAttempts, writeRetryDelay, func() error {
		_, execErr := s.db.ExecContext(ctx, query, emotion, content, time.Now().Unix())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// RecentMemories returns the newest memory contents, newest first.
func (s *SQLiteStore) RecentMemories(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT content FROM memories ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent memories: %w", err)
	}
	defer rows.Close()

	var memories []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		memories = append(memories, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return memories, nil
}

// HistorySummary describes the persisted history.
func (s *SQLiteStore) HistorySummary(ctx context.Context) (domain.HistorySummary, error) {
	var summary domain.HistorySummary

	var oldest, newest sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at), MAX(created_at) FROM turns`)
	if err := row.Scan(&summary.TurnCount, &oldest, &newest); err != nil {
		return summary, fmt.Errorf("scan turn summary: %w", err)
	}
	if oldest.Valid {
		ts := time.Unix(oldest.Int64, 0)
		summary.OldestTurn = &ts
	}
	if newest.Valid {
		ts := time.Unix(newest.Int64, 0)
		summary.NewestTurn = &ts
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`)
	if err := row.Scan(&summary.MemoryCount); err != nil {
		return summary, fmt.Errorf("scan memory count: %w", err)
	}
	return summary, nil
}

// ClearHistory deletes all persisted turns and memories.
func (s *SQLiteStore) ClearHistory(ctx context.Context) error {
	err := shared.RetrySQLite(ctx, writeRetryAttempts, writeRetryDelay, func() error {
		if _, execErr := s.db.ExecContext(ctx, `DELETE FROM turns`); execErr != nil {
			return execErr
		}
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM memories`)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
