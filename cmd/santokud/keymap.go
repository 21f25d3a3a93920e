package main

import (
	"fmt"
	"sort"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// ============================================================================
// Keymap - physical keys to logical actions
// ============================================================================

// KeyAction is a logical action bound to a physical key.
type KeyAction int

const (
	ActionNone KeyAction = iota
	ActionSettingsUp
	ActionSettingsDown
	ActionSettingsLeft
	ActionSettingsRight
	ActionSettingsSelect
	ActionSettingsToggle
	ActionPinkyShift
	ActionAltTab
	ActionOverview
	ActionMouseUpdateToggle
)

var keyActionNames = map[KeyAction]string{
	ActionSettingsUp:        "settings_up",
	ActionSettingsDown:      "settings_down",
	ActionSettingsLeft:      "settings_left",
	ActionSettingsRight:     "settings_right",
	ActionSettingsSelect:    "settings_select",
	ActionSettingsToggle:    "settings_toggle",
	ActionPinkyShift:        "pinky_shift",
	ActionAltTab:            "alt_tab",
	ActionOverview:          "overview",
	ActionMouseUpdateToggle: "mouse_update_toggle",
}

func (a KeyAction) String() string {
	if name, ok := keyActionNames[a]; ok {
		return name
	}
	return "none"
}

// parseKeyAction parses a logical action name as used in config and IPC.
func parseKeyAction(s string) (KeyAction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range keyActionNames {
		if name == s {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("unknown key action %q", s)
}

// keyActionList returns every action name, sorted (for usage text).
func keyActionList() []string {
	names := make([]string, 0, len(keyActionNames))
	for _, name := range keyActionNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Buttons accepted by name in addition to the KEY_* table.
var buttonCodes = map[string]uint16{
	"BTN_LEFT":   BTN_LEFT,
	"BTN_RIGHT":  BTN_RIGHT,
	"BTN_MIDDLE": BTN_MIDDLE,
	"BTN_SIDE":   0x113,
	"BTN_EXTRA":  0x114,
}

// parseKeyName resolves a key name ("KEY_SLASH", "slash", "BTN_MIDDLE") to an evdev code.
func parseKeyName(name string) (uint16, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return 0, fmt.Errorf("empty key name")
	}
	if code, ok := buttonCodes[n]; ok {
		return code, nil
	}
	if !strings.HasPrefix(n, "KEY_") {
		n = "KEY_" + n
	}
	code, ok := evdev.KEYFromString[n]
	if !ok {
		return 0, fmt.Errorf("unknown key name %q", name)
	}
	return uint16(code), nil
}

// keyName renders an evdev key code for logs.
func keyName(code uint16) string {
	ev := evdev.InputEvent{Type: evdev.EV_KEY, Code: evdev.EvCode(code)}
	return ev.CodeName()
}

// Keymap holds the resolved key tables.
type Keymap struct {
	Base     map[uint16]KeyAction
	Settings map[uint16]KeyAction
}

// Lookup resolves code for the current layer. The settings table is
// consulted first while the settings layer is active.
func (k Keymap) Lookup(code uint16, settingsActive bool) KeyAction {
	if settingsActive {
		if a, ok := k.Settings[code]; ok {
			return a
		}
	}
	if a, ok := k.Base[code]; ok {
		return a
	}
	return ActionNone
}

// isNavigatorAction reports whether a moves the settings cursor or edits a
// tunable. Those act only in settings mode.
func isNavigatorAction(a KeyAction) bool {
	switch a {
	case ActionSettingsUp, ActionSettingsDown, ActionSettingsLeft, ActionSettingsRight, ActionSettingsSelect:
		return true
	}
	return false
}

// buildKeymap resolves the config's name-based tables.
func buildKeymap(kc KeymapConfig) (Keymap, error) {
	base, err := resolveKeyTable("keymap.base", kc.Base)
	if err != nil {
		return Keymap{}, err
	}
	for code, a := range base {
		if isNavigatorAction(a) {
			return Keymap{}, fmt.Errorf("keymap.base[%s]: %s only works in keymap.settings", keyName(code), a)
		}
	}
	settings, err := resolveKeyTable("keymap.settings", kc.Settings)
	if err != nil {
		return Keymap{}, err
	}
	return Keymap{Base: base, Settings: settings}, nil
}

func resolveKeyTable(section string, table map[string]string) (map[uint16]KeyAction, error) {
	out := make(map[uint16]KeyAction, len(table))
	for name, actionName := range table {
		code, err := parseKeyName(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", section, err)
		}
		action, err := parseKeyAction(actionName)
		if err != nil {
			return nil, fmt.Errorf("%s[%s]: %w", section, name, err)
		}
		if _, dup := out[code]; dup {
			return nil, fmt.Errorf("%s: key %s bound more than once", section, name)
		}
		out[code] = action
	}
	return out, nil
}

func defaultKeymapConfig() KeymapConfig {
	return KeymapConfig{
		Base: map[string]string{
			"KEY_F13": "settings_toggle",
			"KEY_F14": "alt_tab",
			"KEY_F15": "overview",
			"KEY_F16": "mouse_update_toggle",
			"KEY_F17": "pinky_shift",
		},
		Settings: map[string]string{
			"KEY_K":     "settings_up",
			"KEY_J":     "settings_down",
			"KEY_H":     "settings_left",
			"KEY_L":     "settings_right",
			"KEY_ENTER": "settings_select",
			"KEY_SLASH": "settings_toggle",
		},
	}
}
