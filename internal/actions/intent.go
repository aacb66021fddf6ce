// Package actions turns chat utterances into gated desktop actions. An
// utterance is matched against intent patterns; a detected action passes a
// safety gate and either runs immediately (direct imperative) or waits as a
// pending action for explicit yes/no confirmation.
package actions

import (
	"regexp"
	"strings"

	"github.com/miravel/alisa/internal/domain"
)

// Intent is a detected desktop action with its extracted parameters.
type Intent struct {
	Type   domain.ActionType
	Params map[string]string
}

type intentRule struct {
	re     *regexp.Regexp
	typ    domain.ActionType
	params func(m []string) map[string]string
}

// Patterns anchored at the string start are the imperative forms; the
// leading verb is what makes an utterance direct.
var intentRules = []intentRule{
	{
		re:  regexp.MustCompile(`(?:go to|navigate to|open) ((?:https?://|www\.)\S+)`),
		typ: domain.ActionBrowserNavigate,
		params: func(m []string) map[string]string {
			return map[string]string{"url": strings.TrimRight(m[1], "?.!")}
		},
	},
	{
		re:     regexp.MustCompile(`\b(?:open|new) tab\b`),
		typ:    domain.ActionBrowserNewTab,
		params: func([]string) map[string]string { return nil },
	},
	{
		re:     regexp.MustCompile(`\bclose (?:this |the )?tab\b`),
		typ:    domain.ActionBrowserCloseTab,
		params: func([]string) map[string]string { return nil },
	},
	{
		re:  regexp.MustCompile(`\b(next|previous|prev) tab\b`),
		typ: domain.ActionBrowserSwitchTab,
		params: func(m []string) map[string]string {
			dir := m[1]
			if dir == "prev" {
				dir = "previous"
			}
			return map[string]string{"direction": dir}
		},
	},
	{
		re:     regexp.MustCompile(`\bswitch (?:the )?window\b`),
		typ:    domain.ActionSwitchWindow,
		params: func([]string) map[string]string { return map[string]string{"direction": "next"} },
	},
	{
		re:  regexp.MustCompile(`\bscroll (up|down)\b`),
		typ: domain.ActionScroll,
		params: func(m []string) map[string]string {
			return map[string]string{"direction": m[1]}
		},
	},
	{
		re:  regexp.MustCompile(`^type (.+)$`),
		typ: domain.ActionTypeText,
		params: func(m []string) map[string]string {
			return map[string]string{"text": m[1]}
		},
	},
	{
		re:  regexp.MustCompile(`^press (?:the )?([a-z0-9+]+)(?: key)?[?.!]*$`),
		typ: domain.ActionPressKey,
		params: func(m []string) map[string]string {
			return map[string]string{"key": m[1]}
		},
	},
	{
		re:  regexp.MustCompile(`(?:^|\b(?:can|could|will|would) you |please )read (?:the )?file (\S+)`),
		typ: domain.ActionReadFile,
		params: func(m []string) map[string]string {
			return map[string]string{"path": strings.TrimRight(m[1], "?.!")}
		},
	},
	{
		re:  regexp.MustCompile(`(?:write|take|make) (?:a )?note[:,]? (.+)$`),
		typ: domain.ActionWriteNote,
		params: func(m []string) map[string]string {
			return map[string]string{"content": strings.TrimSpace(m[1])}
		},
	},
	{
		re:  regexp.MustCompile(`(?:^|\b(?:can|could|will|would) you |please )(?:run|execute) (?:the )?(?:command )?(.+)$`),
		typ: domain.ActionRunCommand,
		params: func(m []string) map[string]string {
			return map[string]string{"command": strings.Trim(strings.TrimSpace(m[1]), "`")}
		},
	},
	{
		re:  regexp.MustCompile(`(?:^|\b(?:can|could|will|would) you |please )(?:open|launch|start) (?:up )?([a-z0-9][a-z0-9 ._-]*?)(?:\s+(?:for me|please))?[?.!]*$`),
		typ: domain.ActionOpenApp,
		params: func(m []string) map[string]string {
			return map[string]string{"app_name": strings.TrimSpace(m[1])}
		},
	},
	{
		re:  regexp.MustCompile(`(?:^|\b(?:can|could|will|would) you |please )(?:close|quit|kill) ([a-z0-9][a-z0-9 ._-]*?)(?:\s+(?:for me|please))?[?.!]*$`),
		typ: domain.ActionCloseApp,
		params: func(m []string) map[string]string {
			return map[string]string{"app_name": strings.TrimSpace(m[1])}
		},
	},
}

var imperativeStart = regexp.MustCompile(`^(open|launch|start|close|quit|kill|go|navigate|scroll|type|press|read|run|execute|write|take|make|switch|new)\b`)

// DetectIntent matches an utterance against the known action phrasings.
// direct reports whether the phrasing is a leading imperative, which skips
// the confirmation step.
func DetectIntent(text string) (Intent, bool, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Intent{}, false, false
	}

	for _, rule := range intentRules {
		m := rule.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		return Intent{Type: rule.typ, Params: rule.params(m)}, imperativeStart.MatchString(lower), true
	}
	return Intent{}, false, false
}

var confirmWords = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true, "sure": true,
	"ok": true, "okay": true, "haan": true, "ha": true, "do it": true,
	"go ahead": true, "yes please": true,
}

var declineWords = map[string]bool{
	"no": true, "nope": true, "nah": true, "nahi": true, "cancel": true,
	"stop": true, "don't": true, "dont": true, "no thanks": true,
	"mat karo": true,
}

// ParseConfirmation interprets an utterance as a yes/no answer to a pending
// action. answered is false when the text is neither.
func ParseConfirmation(text string) (confirmed, answered bool) {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.TrimRight(norm, "?.!")
	if confirmWords[norm] {
		return true, true
	}
	if declineWords[norm] {
		return false, true
	}
	return false, false
}
