package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miravel/alisa/internal/domain"
	"github.com/miravel/alisa/internal/emotion"
)

// fakeExecutor records intents and succeeds with a canned message.
type fakeExecutor struct {
	calls []Intent
	fail  bool
}

func (f *fakeExecutor) Do(_ context.Context, intent Intent) (bool, string) {
	f.calls = append(f.calls, intent)
	if f.fail {
		return false, "Failed: no display"
	}
	if intent.Type == domain.ActionOpenApp {
		return true, fmt.Sprintf("Opened %s", intent.Params["app_name"])
	}
	return true, "done"
}

func newTestGateway(t *testing.T, exec Executor, now *time.Time) *Gateway {
	t.Helper()
	dir := t.TempDir()
	return NewGateway(exec,
		WithClock(func() time.Time { return *now }),
		WithNotesDir(filepath.Join(dir, "notes")),
		WithSafeDirs([]string{dir}),
	)
}

func TestDetectIntent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text   string
		typ    domain.ActionType
		direct bool
		param  map[string]string
	}{
		{"open chrome", domain.ActionOpenApp, true, map[string]string{"app_name": "chrome"}},
		{"can you open chrome", domain.ActionOpenApp, false, map[string]string{"app_name": "chrome"}},
		{"Open Chrome please?", domain.ActionOpenApp, true, map[string]string{"app_name": "chrome"}},
		{"close firefox", domain.ActionCloseApp, true, map[string]string{"app_name": "firefox"}},
		{"go to https://github.com", domain.ActionBrowserNavigate, true, map[string]string{"url": "https://github.com"}},
		{"open a new tab", domain.ActionBrowserNewTab, true, nil},
		{"close this tab", domain.ActionBrowserCloseTab, true, nil},
		{"next tab", domain.ActionBrowserSwitchTab, false, map[string]string{"direction": "next"}},
		{"scroll down", domain.ActionScroll, true, map[string]string{"direction": "down"}},
		{"press enter", domain.ActionPressKey, true, map[string]string{"key": "enter"}},
		{"read file /tmp/notes.txt", domain.ActionReadFile, true, map[string]string{"path": "/tmp/notes.txt"}},
		{"take a note: buy milk", domain.ActionWriteNote, true, map[string]string{"content": "buy milk"}},
		{"run ls -la", domain.ActionRunCommand, true, map[string]string{"command": "ls -la"}},
		{"could you run ls", domain.ActionRunCommand, false, map[string]string{"command": "ls"}},
	}
	for _, tt := range tests {
		intent, direct, ok := DetectIntent(tt.text)
		if !ok {
			t.Errorf("%q: no intent detected", tt.text)
			continue
		}
		if intent.Type != tt.typ {
			t.Errorf("%q: type = %s, want %s", tt.text, intent.Type, tt.typ)
		}
		if direct != tt.direct {
			t.Errorf("%q: direct = %v, want %v", tt.text, direct, tt.direct)
		}
		for k, v := range tt.param {
			if intent.Params[k] != v {
				t.Errorf("%q: param %s = %q, want %q", tt.text, k, intent.Params[k], v)
			}
		}
	}
}

func TestDetectIntentIgnoresChat(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"how are you today?",
		"I spent the whole day debugging",
		"what do you think about go generics",
		"",
	} {
		if _, _, ok := DetectIntent(text); ok {
			t.Errorf("%q: unexpected intent", text)
		}
	}
}

func TestIsActionSafe(t *testing.T) {
	t.Parallel()
	now := time.Now()
	g := newTestGateway(t, &fakeExecutor{}, &now)

	if ok, _ := g.IsActionSafe(domain.ActionOpenApp, map[string]string{"app_name": "chrome"}); !ok {
		t.Error("open_app chrome should be safe")
	}
	if ok, reason := g.IsActionSafe(domain.ActionRunCommand, map[string]string{"command": "shutdown /s"}); ok {
		t.Error("shutdown must be blocked")
	} else if reason != "Dangerous command blocked" {
		t.Errorf("reason = %q", reason)
	}
	if ok, _ := g.IsActionSafe(domain.ActionRunCommand, map[string]string{"command": "sudo rm -rf /"}); ok {
		t.Error("rm -rf must be blocked")
	}
	if ok, _ := g.IsActionSafe(domain.ActionType("format_disk"), nil); ok {
		t.Error("unknown action type must be rejected")
	}
	if ok, _ := g.IsActionSafe(domain.ActionWriteNote, map[string]string{"path": "/etc/passwd"}); ok {
		t.Error("write outside safe dirs must be rejected")
	}
}

func TestRateLimitKicksInAfterGrace(t *testing.T) {
	t.Parallel()
	now := time.Now()
	exec := &fakeExecutor{}
	g := newTestGateway(t, exec, &now)

	// Burn through the grace allowance, spaced out so no window trips.
	for i := 0; i < 21; i++ {
		now = now.Add(time.Minute)
		res := g.HandleUtterance(context.Background(), "open chrome")
		if !res.Handled || !strings.HasPrefix(res.Reply, "Opened") {
			t.Fatalf("action %d: %+v", i, res)
		}
	}

	// Now 11 rapid actions in one window trip the limit.
	for i := 0; i < 11; i++ {
		now = now.Add(time.Second)
		g.HandleUtterance(context.Background(), "open chrome")
	}
	now = now.Add(time.Second)
	res := g.HandleUtterance(context.Background(), "open chrome")
	if !res.Handled || !strings.Contains(res.Reply, "Too many actions") {
		t.Fatalf("expected rate limit, got %+v", res)
	}
}

func TestDirectImperativeExecutesImmediately(t *testing.T) {
	t.Parallel()
	now := time.Now()
	exec := &fakeExecutor{}
	g := newTestGateway(t, exec, &now)

	res := g.HandleUtterance(context.Background(), "open chrome")
	if !res.Handled {
		t.Fatal("imperative should be handled")
	}
	if !strings.Contains(res.Reply, "Opened chrome") {
		t.Errorf("reply = %q, want Opened chrome", res.Reply)
	}
	if res.Emotion != emotion.Teasing {
		t.Errorf("emotion = %s, want teasing", res.Emotion)
	}
	if len(exec.calls) != 1 || exec.calls[0].Type != domain.ActionOpenApp {
		t.Fatalf("executor calls = %+v", exec.calls)
	}
	if g.Pending() != nil {
		t.Error("no pending action expected after direct execution")
	}
}

func TestNonImperativeAsksThenExecutesOnYes(t *testing.T) {
	t.Parallel()
	now := time.Now()
	exec := &fakeExecutor{}
	g := newTestGateway(t, exec, &now)

	res := g.HandleUtterance(context.Background(), "can you open chrome")
	if !res.Handled || !res.NeedsConfirmation {
		t.Fatalf("expected confirmation request, got %+v", res)
	}
	if len(exec.calls) != 0 {
		t.Fatal("nothing should execute before confirmation")
	}
	if p := g.Pending(); p == nil || p.Type != domain.ActionOpenApp {
		t.Fatalf("pending = %+v", g.Pending())
	}

	res = g.HandleUtterance(context.Background(), "yes")
	if !res.Handled || !strings.Contains(res.Reply, "Opened chrome") {
		t.Fatalf("after yes: %+v", res)
	}
	if g.Pending() != nil {
		t.Error("pending must clear after execution")
	}
}

func TestNoCancelsPending(t *testing.T) {
	t.Parallel()
	now := time.Now()
	exec := &fakeExecutor{}
	g := newTestGateway(t, exec, &now)

	g.HandleUtterance(context.Background(), "can you open chrome")
	res := g.HandleUtterance(context.Background(), "no")
	if !res.Handled || !strings.Contains(res.Reply, "cancelled") {
		t.Fatalf("after no: %+v", res)
	}
	if len(exec.calls) != 0 {
		t.Error("declined action must not execute")
	}
	if g.Pending() != nil {
		t.Error("pending must clear on decline")
	}
}

func TestNewIntentWhilePendingIsRejected(t *testing.T) {
	t.Parallel()
	now := time.Now()
	exec := &fakeExecutor{}
	g := newTestGateway(t, exec, &now)

	g.HandleUtterance(context.Background(), "can you open chrome")
	res := g.HandleUtterance(context.Background(), "open firefox")
	if !res.Handled || !strings.Contains(res.Reply, "One thing at a time") {
		t.Fatalf("second intent: %+v", res)
	}
	if p := g.Pending(); p == nil || p.Params["app_name"] != "chrome" {
		t.Fatalf("original pending must survive, got %+v", p)
	}
	if len(exec.calls) != 0 {
		t.Error("neither action should have run")
	}
}

func TestUnrelatedChatDropsPending(t *testing.T) {
	t.Parallel()
	now := time.Now()
	g := newTestGateway(t, &fakeExecutor{}, &now)

	g.HandleUtterance(context.Background(), "can you open chrome")
	res := g.HandleUtterance(context.Background(), "anyway, how was your day?")
	if res.Handled {
		t.Fatal("plain chat must pass through to the model")
	}
	if g.Pending() != nil {
		t.Error("pending must clear at the next unrelated turn")
	}
}

func TestPendingExpires(t *testing.T) {
	t.Parallel()
	now := time.Now()
	exec := &fakeExecutor{}
	g := newTestGateway(t, exec, &now)

	g.HandleUtterance(context.Background(), "can you open chrome")
	now = now.Add(6 * time.Minute)
	res := g.HandleUtterance(context.Background(), "yes")
	if res.Handled {
		t.Fatalf("stale yes must not execute, got %+v", res)
	}
	if len(exec.calls) != 0 {
		t.Error("expired pending must not run")
	}
}

func TestWriteNoteAndReadFile(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, time.UTC)
	g := newTestGateway(t, &fakeExecutor{}, &now)

	res := g.HandleUtterance(context.Background(), "take a note: remember the milk")
	if !res.Handled || !strings.Contains(res.Reply, "Note saved to:") {
		t.Fatalf("write note: %+v", res)
	}
	path := strings.TrimPrefix(res.Reply, "Note saved to: ")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back note: %v", err)
	}
	if string(data) != "remember the milk" {
		t.Errorf("note content = %q", data)
	}
	if filepath.Base(path) != "note_20250610_143000.txt" {
		t.Errorf("note filename = %q", filepath.Base(path))
	}

	res = g.HandleUtterance(context.Background(), "read file "+path)
	if !res.Handled || !strings.Contains(res.Reply, "remember the milk") {
		t.Fatalf("read file: %+v", res)
	}
}

func TestReadFileTruncatesLongFiles(t *testing.T) {
	t.Parallel()
	now := time.Now()
	g := newTestGateway(t, &fakeExecutor{}, &now)

	path := filepath.Join(t.TempDir(), "big.txt")
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, content := g.readFile(path)
	if !ok {
		t.Fatalf("readFile: %s", content)
	}
	if !strings.Contains(content, "file truncated") {
		t.Error("expected truncation marker")
	}
	if strings.Contains(content, "line 51") {
		t.Error("content past the line cap leaked")
	}
}

func TestExecutorFailureReportsSad(t *testing.T) {
	t.Parallel()
	now := time.Now()
	g := newTestGateway(t, &fakeExecutor{fail: true}, &now)

	res := g.HandleUtterance(context.Background(), "open chrome")
	if !res.Handled || res.Emotion != emotion.Sad {
		t.Fatalf("failure path: %+v", res)
	}
}
