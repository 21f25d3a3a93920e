package main

import "time"

// DaemonState is the top-level, daemon-owned state container.
//
// Goals:
//   - Keep all reducer-owned state in one place (pure reducer, no external mutation).
//   - The tunables, the navigator and the limiter counter are plain fields:
//     only the daemon goroutine touches them, so there are no locks or atomics.
//   - Make it easy to publish a coherent snapshot to other clients (IPC/UI/etc).
type DaemonState struct {
	// Params are the live tunables read by the pointer pipeline.
	Params Params

	// Mode is the active layer (base or settings).
	Mode Mode

	// Nav is the settings window cursor/offset.
	Nav NavigatorState

	// Limiter is the drag-scroll rate limiter counter.
	Limiter ScrollLimiter

	// AltTab tracks the held-alt window switcher.
	AltTab AltTabState

	// Encoder is the scroll encoder smoothing and pacing state.
	Encoder EncoderState

	// DragScroll tracks the drag-scroll button on the pointer device.
	DragScroll DragScrollState

	// PinkyShiftHeld is true while the pinky-shift key holds KEY_LEFTSHIFT down.
	PinkyShiftHeld bool

	// Passthrough is the set of keys whose press was forwarded unchanged.
	// Their releases are always forwarded, even after a layer change.
	Passthrough map[uint16]bool

	// Bound maps held keys to the action they triggered on press.
	Bound map[uint16]KeyAction

	StartedAt  time.Time
	SplashDone bool

	// Now is the latest time seen by the reducer.
	Now time.Time

	// Version counts changes to what display clients can see. Viewers use it
	// to discard frames older than the state they already show.
	Version uint64

	Stats DaemonStats
}

// Mode is the active keyboard layer as far as the daemon is concerned.
type Mode int

const (
	ModeBase Mode = iota
	ModeSettings
)

func (m Mode) String() string {
	if m == ModeSettings {
		return "settings"
	}
	return "base"
}

// AltTabState is the reducer-owned alt-tab state.
type AltTabState struct {
	// Pressed is true while the alt-tab key is physically held.
	Pressed bool

	// AltHeld is true while KEY_LEFTALT is held on the virtual device.
	AltHeld bool

	// ReleasedAt is when the alt-tab key was last released.
	ReleasedAt time.Time
}

// DragScrollState tracks the drag-scroll button.
type DragScrollState struct {
	Held  bool
	Moved bool // motion seen since the press; suppresses the click on release
}

// DaemonStats are monotonically increasing counters for diagnostics.
type DaemonStats struct {
	PointerReports uint64 `json:"pointer_reports"`
	KeysForwarded  uint64 `json:"keys_forwarded"`
	ScrollsEmitted uint64 `json:"scrolls_emitted"`
	OutputErrors   uint64 `json:"output_errors"`
}

// NewDaemonState returns the initial state for a daemon started at now.
func NewDaemonState(params Params, now time.Time) *DaemonState {
	return &DaemonState{
		Params:      params,
		Mode:        ModeBase,
		Passthrough: make(map[uint16]bool),
		Bound:       make(map[uint16]KeyAction),
		StartedAt:   now,
		Now:         now,
	}
}

func (s *DaemonState) boundKeys() map[uint16]KeyAction {
	if s.Bound == nil {
		s.Bound = make(map[uint16]KeyAction)
	}
	return s.Bound
}

// ============================================================================
// Snapshots
// ============================================================================

// SettingRow is one rendered registry row.
type SettingRow struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Kind     string `json:"kind"`
	Selected bool   `json:"selected"`
}

// DisplayLine is one line of the OLED text model.
type DisplayLine struct {
	Text     string `json:"text"`
	Inverted bool   `json:"inverted"`
}

// StateSnapshot is a read-only copy of daemon state for display clients.
// It never shares memory with DaemonState.
type StateSnapshot struct {
	Params       Params         `json:"params"`
	Mode         string         `json:"mode"`
	Nav          NavigatorState `json:"nav"`
	VisibleRows  int            `json:"visible_rows"`
	Settings     []SettingRow   `json:"settings"`
	AltTabActive bool           `json:"alt_tab_active"`
	AltHeld      bool           `json:"alt_held"`
	Splash       bool           `json:"splash"`
	Stats        DaemonStats    `json:"stats"`
	Lines        []DisplayLine  `json:"lines"`
	Version      uint64         `json:"version"`
	At           time.Time      `json:"at"`
}

// Snapshot builds a StateSnapshot, including the rendered display lines.
func (s *DaemonState) Snapshot(cfg ReducerConfig) StateSnapshot {
	rows := make([]SettingRow, 0, len(cfg.Registry))
	for i, setting := range cfg.Registry {
		rows = append(rows, SettingRow{
			ID:       setting.ID,
			Label:    setting.Label,
			Value:    renderSettingValue(setting, &s.Params),
			Kind:     setting.Kind.String(),
			Selected: i == s.Nav.Cursor,
		})
	}

	snap := StateSnapshot{
		Params:       s.Params,
		Mode:         s.Mode.String(),
		Nav:          s.Nav,
		VisibleRows:  cfg.VisibleRows,
		Settings:     rows,
		AltTabActive: s.AltTab.Pressed,
		AltHeld:      s.AltTab.AltHeld,
		Splash:       !s.SplashDone,
		Stats:        s.Stats,
		Version:      s.Version,
		At:           s.Now,
	}
	snap.Lines = renderDisplay(snap)
	return snap
}
