package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteConflictError(t *testing.T) {
	t.Parallel()
	if IsSQLiteConflictError(nil) {
		t.Error("nil is not a conflict")
	}
	if !IsSQLiteConflictError(errors.New("SQLITE_BUSY (5)")) {
		t.Error("SQLITE_BUSY must be a conflict")
	}
	if !IsSQLiteConflictError(errors.New("database is locked")) {
		t.Error("locked database must be a conflict")
	}
	if IsSQLiteConflictError(errors.New("no such table: turns")) {
		t.Error("schema errors are not conflicts")
	}
}

func TestRetrySQLiteStopsOnSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	err := RetrySQLite(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RetrySQLite failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetrySQLiteReturnsNonConflictImmediately(t *testing.T) {
	t.Parallel()
	calls := 0
	wantErr := errors.New("no such table: turns")
	err := RetrySQLite(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrySQLiteExhaustsAttempts(t *testing.T) {
	t.Parallel()
	calls := 0
	err := RetrySQLite(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
