package actions

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/miravel/alisa/internal/domain"
	"github.com/miravel/alisa/internal/emotion"
)

const (
	pendingTTL       = 5 * time.Minute
	readFileMaxBytes = 1 << 20
	readFileMaxLines = 50
)

// Result is the gateway's answer to an utterance. Handled false means the
// text is ordinary chat and should flow to the model.
type Result struct {
	Handled           bool
	Reply             string
	Emotion           emotion.Emotion
	NeedsConfirmation bool
}

// Gateway is the permission-based desktop action pipeline. At most one
// pending action exists at a time; a new intent while one is pending is
// rejected rather than silently replacing it.
type Gateway struct {
	mu       sync.Mutex
	exec     Executor
	notesDir string
	safeDirs []string
	now      func() time.Time

	pending   *domain.PendingAction
	actionLog []time.Time
	total     int
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithNotesDir sets where write_note files land.
func WithNotesDir(dir string) Option {
	return func(g *Gateway) { g.notesDir = dir }
}

// WithSafeDirs overrides the directories write_note may target.
func WithSafeDirs(dirs []string) Option {
	return func(g *Gateway) {
		g.safeDirs = make([]string, 0, len(dirs))
		for _, d := range dirs {
			g.safeDirs = append(g.safeDirs, filepath.Clean(d))
		}
	}
}

// NewGateway creates a Gateway around the given executor. Default safe
// directories and the notes directory live under the user's home.
func NewGateway(exec Executor, opts ...Option) *Gateway {
	g := &Gateway{
		exec: exec,
		now:  time.Now,
	}
	if home, err := os.UserHomeDir(); err == nil {
		g.safeDirs = []string{
			filepath.Join(home, "Documents"),
			filepath.Join(home, "Desktop"),
			filepath.Join(home, "Downloads"),
		}
		g.notesDir = filepath.Join(home, "Documents", "Alisa Notes")
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HandleUtterance runs the utterance through the action pipeline: resolve a
// pending confirmation first, otherwise detect a fresh intent.
func (g *Gateway) HandleUtterance(ctx context.Context, text string) Result {
	g.mu.Lock()

	if g.pending != nil && g.pending.Expired(g.now(), pendingTTL) {
		g.pending = nil
	}

	if g.pending != nil {
		confirmed, answered := ParseConfirmation(text)
		if answered {
			if !confirmed {
				g.pending = nil
				g.mu.Unlock()
				return Result{Handled: true, Reply: "Theek hai, cancelled!", Emotion: emotion.Calm}
			}
			pending := g.pending
			g.pending = nil
			g.mu.Unlock()
			return g.execute(ctx, Intent{Type: pending.Type, Params: pending.Params})
		}

		if _, _, isIntent := DetectIntent(text); isIntent {
			typ := g.pending.Type
			g.mu.Unlock()
			return Result{
				Handled: true,
				Reply:   fmt.Sprintf("One thing at a time! Should I %s first, yes or no?", describeAction(typ)),
				Emotion: emotion.Teasing,
			}
		}

		// Unrelated chat drops the question instead of carrying it over.
		g.pending = nil
		g.mu.Unlock()
		return Result{}
	}
	g.mu.Unlock()

	intent, direct, ok := DetectIntent(text)
	if !ok {
		return Result{}
	}

	if safe, reason := g.IsActionSafe(intent.Type, intent.Params); !safe {
		return Result{Handled: true, Reply: reason, Emotion: emotion.Serious}
	}

	if direct {
		return g.execute(ctx, intent)
	}

	g.mu.Lock()
	g.pending = &domain.PendingAction{
		Type:      intent.Type,
		Params:    intent.Params,
		CreatedAt: g.now(),
	}
	g.mu.Unlock()
	return Result{
		Handled:           true,
		Reply:             fmt.Sprintf("Should I %s? Just say yes or no~", describeAction(intent.Type)),
		Emotion:           emotion.Shy,
		NeedsConfirmation: true,
	}
}

// Pending returns a copy of the pending action, or nil.
func (g *Gateway) Pending() *domain.PendingAction {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return nil
	}
	p := *g.pending
	return &p
}

// History returns how many actions ran this session.
func (g *Gateway) History() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

func (g *Gateway) execute(ctx context.Context, intent Intent) Result {
	// The safety gate runs again here so confirmed pending actions cannot
	// dodge it.
	if safe, reason := g.IsActionSafe(intent.Type, intent.Params); !safe {
		return Result{Handled: true, Reply: reason, Emotion: emotion.Serious}
	}

	var ok bool
	var msg string
	switch intent.Type {
	case domain.ActionReadFile:
		ok, msg = g.readFile(intent.Params["path"])
	case domain.ActionWriteNote:
		ok, msg = g.writeNote(intent.Params["content"], intent.Params["filename"])
	default:
		ok, msg = g.exec.Do(ctx, intent)
	}

	g.mu.Lock()
	g.recordActionLocked()
	g.mu.Unlock()

	mood := emotion.Teasing
	if !ok {
		mood = emotion.Sad
	}
	return Result{Handled: true, Reply: msg, Emotion: mood}
}

func (g *Gateway) readFile(path string) (bool, string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Sprintf("Failed to read file: %v", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return false, fmt.Sprintf("File not found: %s", path)
	}
	if info.Size() > readFileMaxBytes {
		return false, "File too large (>1MB)"
	}

	f, err := os.Open(abs)
	if err != nil {
		return false, fmt.Sprintf("Failed to read file: %v", err)
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), readFileMaxBytes)
	lines := 0
	for scanner.Scan() && lines < readFileMaxLines {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
		lines++
	}
	if lines == readFileMaxLines {
		fmt.Fprintf(&sb, "\n[... file truncated, showing first %d lines ...]", readFileMaxLines)
	}
	return true, sb.String()
}

func (g *Gateway) writeNote(content, filename string) (bool, string) {
	if err := os.MkdirAll(g.notesDir, 0o755); err != nil {
		return false, fmt.Sprintf("Failed to write note: %v", err)
	}
	if filename == "" {
		filename = "note_" + g.now().Format("20060102_150405") + ".txt"
	}
	if !strings.HasSuffix(filename, ".txt") {
		filename += ".txt"
	}

	path := filepath.Join(g.notesDir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Sprintf("Failed to write note: %v", err)
	}
	return true, fmt.Sprintf("Note saved to: %s", path)
}

func describeAction(typ domain.ActionType) string {
	switch typ {
	case domain.ActionOpenApp:
		return "open that app"
	case domain.ActionCloseApp:
		return "close that app"
	case domain.ActionBrowserNavigate:
		return "open that page"
	case domain.ActionBrowserNewTab:
		return "open a new tab"
	case domain.ActionBrowserCloseTab:
		return "close the tab"
	case domain.ActionBrowserSwitchTab:
		return "switch tabs"
	case domain.ActionSwitchWindow:
		return "switch windows"
	case domain.ActionScroll:
		return "scroll"
	case domain.ActionTypeText:
		return "type that for you"
	case domain.ActionPressKey:
		return "press that key"
	case domain.ActionReadFile:
		return "read that file"
	case domain.ActionWriteNote:
		return "save that note"
	case domain.ActionRunCommand:
		return "run that command"
	default:
		return string(typ)
	}
}
