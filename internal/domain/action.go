package domain

import "encoding/json"

// ActionKind tags the window action variants.
type ActionKind string

const (
	ActionDoNothing    ActionKind = "doNothing"
	ActionShow         ActionKind = "show"
	ActionHide         ActionKind = "hide"
	ActionMinimize     ActionKind = "minimize"
	ActionBringToFront ActionKind = "bringToFront"
	ActionHotkey       ActionKind = "hotkey"
	ActionGlobalHotkey ActionKind = "globalHotkey"
)

// KeyCodeUnset marks a hotkey whose key code was never chosen. Such an
// action must never dispatch a synthetic key event.
const KeyCodeUnset = -1

// HotkeyPayload carries the hotkey and globalHotkey variant payload.
// RestoreWindow and WaitForFrontmost were added after the first persisted
// format; rules saved before that decode with both set to false.
type HotkeyPayload struct {
	KeyCode          int
	Modifiers        uint32
	RestoreWindow    bool
	WaitForFrontmost bool
}

// ActionItem is a tagged variant over the window actions. Hotkey is non-nil
// only for the hotkey and globalHotkey kinds. Ordering is positional within
// the owning list; execution is strictly in sequence.
type ActionItem struct {
	Kind   ActionKind
	Hotkey *HotkeyPayload
}

// actionJSON is the flat persisted shape of an ActionItem. KeyCode is a
// pointer so that its absence in older persisted rules maps to
// KeyCodeUnset rather than key code 0 (a real key).
type actionJSON struct {
	Type             ActionKind `json:"type"`
	KeyCode          *int       `json:"keyCode,omitempty"`
	Modifiers        uint32     `json:"modifiers,omitempty"`
	RestoreWindow    bool       `json:"restoreWindow,omitempty"`
	WaitForFrontmost bool       `json:"waitForFrontmost,omitempty"`
}

// MarshalJSON flattens the variant into its tagged persisted form.
func (a ActionItem) MarshalJSON() ([]byte, error) {
	raw := actionJSON{Type: a.Kind}
	if a.Hotkey != nil {
		code := a.Hotkey.KeyCode
		raw.KeyCode = &code
		raw.Modifiers = a.Hotkey.Modifiers
		raw.RestoreWindow = a.Hotkey.RestoreWindow
		raw.WaitForFrontmost = a.Hotkey.WaitForFrontmost
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes the tagged form, supplying defaults for payload
// fields that older persisted rules do not carry.
func (a *ActionItem) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Kind = raw.Type
	a.Hotkey = nil
	if raw.Type == ActionHotkey || raw.Type == ActionGlobalHotkey {
		code := KeyCodeUnset
		if raw.KeyCode != nil {
			code = *raw.KeyCode
		}
		a.Hotkey = &HotkeyPayload{
			KeyCode:          code,
			Modifiers:        raw.Modifiers,
			RestoreWindow:    raw.RestoreWindow,
			WaitForFrontmost: raw.WaitForFrontmost,
		}
	}
	return nil
}

// SimpleAction builds a payload-free action item (show, hide, minimize,
// bringToFront, doNothing).
func SimpleAction(kind ActionKind) ActionItem {
	return ActionItem{Kind: kind}
}

// HotkeyAction builds an app-targeted hotkey action.
func HotkeyAction(keyCode int, modifiers uint32, restoreWindow, waitForFrontmost bool) ActionItem {
	return ActionItem{
		Kind: ActionHotkey,
		Hotkey: &HotkeyPayload{
			KeyCode:          keyCode,
			Modifiers:        modifiers,
			RestoreWindow:    restoreWindow,
			WaitForFrontmost: waitForFrontmost,
		},
	}
}

// GlobalHotkeyAction builds a hotkey action dispatched without any
// app-activation precondition.
func GlobalHotkeyAction(keyCode int, modifiers uint32) ActionItem {
	return ActionItem{
		Kind:   ActionGlobalHotkey,
		Hotkey: &HotkeyPayload{KeyCode: keyCode, Modifiers: modifiers},
	}
}
