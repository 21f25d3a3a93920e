package main

import (
	"fmt"
	"strings"
)

// ============================================================================
// OLED Display Model
// ============================================================================
// The keyboard's 128x64 OLED fits 8 lines of 21 characters. The daemon keeps
// the screen as text so any viewer (terminal, browser) can draw it. Every line
// is padded to the full width; inverted lines are drawn in reverse video.
// ============================================================================

const (
	settingsHeader = "Options"
	settingsFooter = "SELECT HJKL,  EXIT /"
	baseHeader     = "QWERTY"
	baseHint       = "  Fn+/ for Options"
	altTabBanner   = "ALT-TAB ACTIVE"
)

// renderDisplay returns exactly displayLines lines for a snapshot.
func renderDisplay(snap StateSnapshot) []DisplayLine {
	var lines []DisplayLine
	add := func(text string, inverted bool) {
		lines = append(lines, DisplayLine{Text: padLine(text), Inverted: inverted})
	}

	switch {
	case snap.Splash:
		add("", false)
		add("   Santoku Keyboard", false)
		add("", false)
		add("     Hello, World", false)

	case snap.AltTabActive:
		add(centerLine(altTabBanner), true)

	case snap.Mode == ModeSettings.String():
		add(centerLine(settingsHeader), true)

		visible := snap.VisibleRows
		if visible <= 0 || visible > displayLines-2 {
			visible = displayLines - 2
		}
		for i := snap.Nav.Offset; i < snap.Nav.Offset+visible; i++ {
			if i < 0 || i >= len(snap.Settings) {
				add("", false)
				continue
			}
			row := snap.Settings[i]
			add(settingRowText(row), row.Selected)
		}
		add(settingsFooter, true)

	default:
		p := snap.Params
		add(centerLine(baseHeader), true)
		add(fmt.Sprintf("Rot %3d   AltTab %4d", p.RotationDeg, p.AltTabTimeoutMS), false)
		add("Acc "+progressBars[clampLevel(p.AccelLevel)], false)
		add("Spd "+progressBars[clampLevel(p.SpeedLevel)], false)
		add("Scr "+progressBars[clampLevel(p.ScrollLevel)], false)
		add(fmt.Sprintf("Shift %-3s  Upd %s", yesNo(p.PinkyShift), yesNo(p.MouseUpdate)), false)
		add("", false)
		add(baseHint, false)
	}

	for len(lines) < displayLines {
		add("", false)
	}
	return lines[:displayLines]
}

func settingRowText(row SettingRow) string {
	if row.Value == "" {
		return row.Label
	}
	return fmt.Sprintf("%-12s%s", row.Label, row.Value)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// padLine truncates or right-pads text to the display width.
func padLine(text string) string {
	r := []rune(text)
	if len(r) > displayColumns {
		return string(r[:displayColumns])
	}
	return text + strings.Repeat(" ", displayColumns-len(r))
}

func centerLine(text string) string {
	n := len([]rune(text))
	if n >= displayColumns {
		return text
	}
	left := (displayColumns - n) / 2
	return strings.Repeat(" ", left) + text
}
