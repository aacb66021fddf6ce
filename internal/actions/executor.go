package actions

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/miravel/alisa/internal/domain"
)

const (
	commandTimeout   = 10 * time.Second
	commandOutputCap = 1000
)

// Executor performs host automation. Implementations never return an error;
// failures come back as (false, message) so nothing escapes to callers.
type Executor interface {
	Do(ctx context.Context, intent Intent) (bool, string)
}

// ShellExecutor drives the desktop through command-line tools: xdg-open and
// pkill for apps, xdotool for keyboard and window control.
type ShellExecutor struct{}

func (ShellExecutor) Do(ctx context.Context, intent Intent) (bool, string) {
	switch intent.Type {
	case domain.ActionOpenApp:
		app := intent.Params["app_name"]
		if err := exec.CommandContext(ctx, "xdg-open", app).Start(); err != nil {
			if err2 := exec.CommandContext(ctx, app).Start(); err2 != nil {
				return false, fmt.Sprintf("Failed to open %s: %v", app, err2)
			}
		}
		return true, fmt.Sprintf("Opened %s", app)

	case domain.ActionCloseApp:
		app := intent.Params["app_name"]
		if err := exec.CommandContext(ctx, "pkill", "-f", app).Run(); err != nil {
			return false, fmt.Sprintf("%s is not running", app)
		}
		return true, fmt.Sprintf("Closed %s", app)

	case domain.ActionSwitchWindow:
		keys := "alt+Tab"
		if intent.Params["direction"] == "previous" {
			keys = "alt+shift+Tab"
		}
		return xdotoolKey(ctx, keys, fmt.Sprintf("Switched to %s window", intent.Params["direction"]))

	case domain.ActionBrowserNewTab:
		return xdotoolKey(ctx, "ctrl+t", "Opened new tab")

	case domain.ActionBrowserCloseTab:
		return xdotoolKey(ctx, "ctrl+w", "Closed tab")

	case domain.ActionBrowserSwitchTab:
		keys := "ctrl+Tab"
		if intent.Params["direction"] == "previous" {
			keys = "ctrl+shift+Tab"
		}
		return xdotoolKey(ctx, keys, fmt.Sprintf("Switched to %s tab", intent.Params["direction"]))

	case domain.ActionBrowserNavigate:
		url := intent.Params["url"]
		if err := exec.CommandContext(ctx, "xdg-open", url).Start(); err != nil {
			return false, fmt.Sprintf("Failed to open %s: %v", url, err)
		}
		return true, fmt.Sprintf("Navigating to %s", url)

	case domain.ActionScroll:
		button := "5" // wheel down
		if intent.Params["direction"] == "up" {
			button = "4"
		}
		if err := exec.CommandContext(ctx, "xdotool", "click", button).Run(); err != nil {
			return false, fmt.Sprintf("Failed to scroll: %v", err)
		}
		return true, fmt.Sprintf("Scrolled %s", intent.Params["direction"])

	case domain.ActionTypeText:
		text := intent.Params["text"]
		if err := exec.CommandContext(ctx, "xdotool", "type", "--delay", "50", text).Run(); err != nil {
			return false, fmt.Sprintf("Failed to type: %v", err)
		}
		return true, fmt.Sprintf("Typed %d characters", len(text))

	case domain.ActionPressKey:
		return xdotoolKey(ctx, intent.Params["key"], fmt.Sprintf("Pressed %s", intent.Params["key"]))

	case domain.ActionRunCommand:
		return runCommand(ctx, intent.Params["command"])

	default:
		return false, fmt.Sprintf("Unknown action type: %s", intent.Type)
	}
}

func xdotoolKey(ctx context.Context, keys, okMsg string) (bool, string) {
	if err := exec.CommandContext(ctx, "xdotool", "key", keys).Run(); err != nil {
		return false, fmt.Sprintf("Failed to press %s: %v", keys, err)
	}
	return true, okMsg
}

func runCommand(ctx context.Context, command string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return false, "Command timed out (10s limit)"
	}

	msg := string(out)
	if len(msg) > commandOutputCap {
		msg = msg[:commandOutputCap]
	}
	if err != nil {
		if msg == "" {
			msg = fmt.Sprintf("Failed: %v", err)
		}
		return false, msg
	}
	return true, msg
}
