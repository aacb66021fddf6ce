package domain

import (
	"time"
)

// ActionType enumerates the desktop actions Alisa may perform.
type ActionType string

const (
	ActionOpenApp          ActionType = "open_app"
	ActionCloseApp         ActionType = "close_app"
	ActionSwitchWindow     ActionType = "switch_window"
	ActionBrowserNavigate  ActionType = "browser_navigate"
	ActionBrowserNewTab    ActionType = "browser_new_tab"
	ActionBrowserCloseTab  ActionType = "browser_close_tab"
	ActionBrowserSwitchTab ActionType = "browser_switch_tab"
	ActionScroll           ActionType = "scroll"
	ActionTypeText         ActionType = "type_text"
	ActionPressKey         ActionType = "press_key"
	ActionReadFile         ActionType = "read_file"
	ActionWriteNote        ActionType = "write_note"
	ActionRunCommand       ActionType = "run_command"
)

// PendingAction is a detected desktop action awaiting explicit yes/no
// confirmation from the user. At most one exists per process.
type PendingAction struct {
	Type      ActionType        `json:"type"`
	Params    map[string]string `json:"params"`
	CreatedAt time.Time         `json:"created_at"`
}

// Expired reports whether the pending action has outlived the confirmation
// window and should be discarded.
func (p *PendingAction) Expired(now time.Time, ttl time.Duration) bool {
	if p == nil {
		return false
	}
	return now.Sub(p.CreatedAt) > ttl
}
