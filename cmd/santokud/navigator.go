package main

import "fmt"

// ============================================================================
// Settings Navigator
// ============================================================================
// The settings layer shows an ordered registry of settings in a fixed-height
// window. Up/down moves the cursor (and the window with it), left/right
// adjusts the selected setting's backing parameter.
//
// Cursor and offset are always clamped, never circular. Individual setting
// values follow the bound policy declared by their parameter's domain.
// ============================================================================

// SettingKind is the tagged variant that decides how a setting is adjusted
// and rendered.
type SettingKind int

const (
	KindBar         SettingKind = iota // level parameter shown as a progress bar
	KindRawInt                         // numeric parameter shown as a number
	KindBool                           // Yes/No toggle
	KindPlaceholder                    // reserved row, inert
)

func (k SettingKind) String() string {
	switch k {
	case KindBar:
		return "bar"
	case KindRawInt:
		return "raw_int"
	case KindBool:
		return "bool"
	case KindPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Setting is one row of the settings registry.
type Setting struct {
	ID    string      `json:"id"`
	Label string      `json:"label"`
	Kind  SettingKind `json:"kind"`
	Param ParamID     `json:"-"` // unused for KindPlaceholder
}

// defaultRegistry is the settings menu, in display order.
var defaultRegistry = []Setting{
	{ID: "tp_rotate", Label: "TP Rotate", Kind: KindRawInt, Param: ParamRotation},
	{ID: "tp_accel", Label: "TP Accel", Kind: KindBar, Param: ParamAccel},
	{ID: "tp_speed", Label: "TP Speed", Kind: KindBar, Param: ParamSpeed},
	{ID: "tp_scroll", Label: "TP Scroll", Kind: KindBar, Param: ParamScroll},
	{ID: "pinky_shift", Label: "Pinky Shift", Kind: KindBool, Param: ParamPinkyShift},
	{ID: "alt_tab_ms", Label: "AltTab ms", Kind: KindRawInt, Param: ParamAltTabTimeout},
	{ID: "exp_mouse_send", Label: "ExpMouseSend", Kind: KindPlaceholder},
}

// NavigatorState is the cursor and scroll offset of the settings window.
type NavigatorState struct {
	Cursor int `json:"cursor"`
	Offset int `json:"offset"`
}

// Move shifts cursor and offset together by one row in dir (-1 up, +1 down),
// then clamps each independently. n is the registry size.
func (nav *NavigatorState) Move(dir, n, visibleRows int) {
	if dir == 0 || n <= 0 {
		return
	}
	if dir < 0 {
		dir = -1
	} else {
		dir = 1
	}

	nav.Cursor += dir
	nav.Offset += dir

	if nav.Cursor < 0 {
		nav.Cursor = 0
	}
	if nav.Cursor > n-1 {
		nav.Cursor = n - 1
	}

	maxOffset := n - visibleRows
	if maxOffset < 0 {
		maxOffset = 0
	}
	if nav.Offset < 0 {
		nav.Offset = 0
	}
	if nav.Offset > maxOffset {
		nav.Offset = maxOffset
	}
}

// Select is reserved for a confirm action; the current menu has nothing to confirm.
func (nav *NavigatorState) Select() {}

// Adjust applies dir (-1 decrease, +1 increase) to the selected setting and
// reports whether a parameter changed.
func Adjust(registry []Setting, nav NavigatorState, dir int, params *Params) bool {
	if params == nil || nav.Cursor < 0 || nav.Cursor >= len(registry) || dir == 0 {
		return false
	}
	if dir < 0 {
		dir = -1
	} else {
		dir = 1
	}

	setting := registry[nav.Cursor]
	switch setting.Kind {
	case KindBar, KindRawInt:
		return params.StepParam(setting.Param, dir)
	case KindBool:
		return params.Toggle(setting.Param)
	case KindPlaceholder:
		return false
	default:
		return false
	}
}

var progressBars = [levelCount]string{
	"[=     ]",
	"[==    ]",
	"[===   ]",
	"[====  ]",
	"[===== ]",
	"[=PLAID]",
}

// renderSettingValue formats the current value of a setting for the OLED.
func renderSettingValue(setting Setting, params *Params) string {
	switch setting.Kind {
	case KindBar:
		v, _ := params.Int(setting.Param)
		return progressBars[clampLevel(v)]
	case KindRawInt:
		v, _ := params.Int(setting.Param)
		return fmt.Sprintf("%5d", v)
	case KindBool:
		if b, _ := params.Bool(setting.Param); b {
			return "Yes"
		}
		return "No"
	case KindPlaceholder:
		return ""
	default:
		return ""
	}
}
