package actions

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/miravel/alisa/internal/domain"
)

const (
	rateWindow     = time.Minute
	rateWindowMax  = 10
	rateGraceTotal = 20
)

var allowedActions = map[domain.ActionType]bool{
	domain.ActionOpenApp:          true,
	domain.ActionCloseApp:         true,
	domain.ActionSwitchWindow:     true,
	domain.ActionBrowserNavigate:  true,
	domain.ActionBrowserNewTab:    true,
	domain.ActionBrowserCloseTab:  true,
	domain.ActionBrowserSwitchTab: true,
	domain.ActionScroll:           true,
	domain.ActionTypeText:         true,
	domain.ActionPressKey:         true,
	domain.ActionReadFile:         true,
	domain.ActionWriteNote:        true,
	domain.ActionRunCommand:       true,
}

var dangerousCommands = []string{"rm -rf", "del /f", "format", "shutdown", "restart"}

// IsActionSafe validates an action before execution. The reason is
// user-facing on rejection.
func (g *Gateway) IsActionSafe(typ domain.ActionType, params map[string]string) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isActionSafeLocked(typ, params)
}

func (g *Gateway) isActionSafeLocked(typ domain.ActionType, params map[string]string) (bool, string) {
	if g.total > rateGraceTotal && g.recentActionsLocked() > rateWindowMax {
		return false, "Too many actions in a short time, give me a minute"
	}

	if !allowedActions[typ] {
		return false, fmt.Sprintf("Unknown action type: %s", typ)
	}

	if typ == domain.ActionRunCommand {
		command := strings.ToLower(params["command"])
		for _, pattern := range dangerousCommands {
			if strings.Contains(command, pattern) {
				return false, "Dangerous command blocked"
			}
		}
	}

	if typ == domain.ActionWriteNote {
		if path := params["path"]; path != "" && !g.pathAllowedLocked(path) {
			return false, "Can only write to Documents/Desktop/Downloads"
		}
	}

	return true, "Action is safe"
}

func (g *Gateway) pathAllowedLocked(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	abs = filepath.Clean(abs)
	for _, dir := range g.safeDirs {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (g *Gateway) recentActionsLocked() int {
	cutoff := g.now().Add(-rateWindow)
	n := 0
	for _, at := range g.actionLog {
		if at.After(cutoff) {
			n++
		}
	}
	return n
}

func (g *Gateway) recordActionLocked() {
	now := g.now()
	g.total++
	g.actionLog = append(g.actionLog, now)

	// Drop entries older than the window to bound the log.
	cutoff := now.Add(-rateWindow)
	i := 0
	for i < len(g.actionLog) && !g.actionLog[i].After(cutoff) {
		i++
	}
	g.actionLog = g.actionLog[i:]
}
