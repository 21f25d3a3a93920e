package main

import "time"

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (device input, IPC, ticks, reloads, output failures)
//   - Commands: side effects requested by the reducer (virtual HID writes, snapshot replies)
//   - Broadcasts: state notifications for display clients
//   - Reduce(): computes next state + commands + broadcasts, without performing I/O
//
// The reducer must be pure. It never reads the clock (the daemon stamps events
// with TimedEvent) and never touches the output device. The daemon loop executes
// Commands and feeds failures back as Events.

// ReducerConfig is the static policy the reducer applies.
type ReducerConfig struct {
	Registry         []Setting
	VisibleRows      int
	Curves           PointerCurves
	Keymap           Keymap
	DragScrollButton uint16 // 0 disables drag scroll
	Encoder          EncoderConfig
	Splash           time.Duration
}

// defaultReducerConfig mirrors DefaultConfig().ToReducerConfig() without needing a file.
func defaultReducerConfig() ReducerConfig {
	c := DefaultConfig()
	return c.ToReducerConfig()
}

// ReduceResult is the output of Reduce(): next state plus Commands to execute
// and Broadcasts to fan out.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// visibleState is the part of DaemonState that display clients can see.
// A change in it produces a BroadcastStateChanged.
type visibleState struct {
	Params     Params
	Mode       Mode
	Nav        NavigatorState
	AltTab     bool
	SplashDone bool
}

func (s *DaemonState) visible() visibleState {
	return visibleState{
		Params:     s.Params,
		Mode:       s.Mode,
		Nav:        s.Nav,
		AltTab:     s.AltTab.Pressed,
		SplashDone: s.SplashDone,
	}
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
//
// The daemon loop must:
// - execute Commands
// - translate failures into Events
// - feed those Events back into Reduce()
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = NewDaemonState(DefaultParams(), time.Time{})
	}
	if s.Passthrough == nil {
		s.Passthrough = make(map[uint16]bool)
	}

	if te, ok := e.(TimedEvent); ok {
		if !te.At.IsZero() {
			s.Now = te.At
		}
		e = te.Event
	}

	before := s.visible()
	r := &reduction{s: s, cfg: cfg}

	switch ev := e.(type) {
	case Tick:
		r.tick(ev.Now)

	case KeyInput:
		r.key(ev.Code, ev.Value)

	case KeyActionInput:
		action, err := parseKeyAction(ev.Action)
		if err != nil {
			break
		}
		value := int32(evValueRelease)
		if ev.Pressed {
			value = evValuePress
		}
		r.action(action, value)

	case PointerReport:
		r.pointer(ev.PointerSample)

	case PointerButton:
		r.button(ev.Code, ev.Pressed)

	case EncoderTurn:
		if scroll, ok := s.Encoder.Turn(ev.Clockwise, s.Now, cfg.Encoder); ok {
			r.scroll(scroll)
		}

	// Remote navigation obeys the same rule as keys: nothing moves or
	// changes until settings mode is on.
	case SettingsMove:
		if s.Mode != ModeSettings {
			break
		}
		dir := 1
		if ev.Direction == DirUp {
			dir = -1
		}
		s.Nav.Move(dir, len(cfg.Registry), cfg.VisibleRows)

	case SettingsAdjust:
		if s.Mode != ModeSettings {
			break
		}
		dir := 1
		if ev.Direction == DirDecrease {
			dir = -1
		}
		Adjust(cfg.Registry, s.Nav, dir, &s.Params)

	case SettingsSelect:
		if s.Mode == ModeSettings {
			s.Nav.Select()
		}

	case SettingsMode:
		if ev.Active {
			s.Mode = ModeSettings
		} else {
			s.Mode = ModeBase
		}

	case TuningReloaded:
		// Invalid seeds never reach the pipeline.
		if err := ev.Params.Validate(); err == nil {
			s.Params = ev.Params
		}

	case RequestStateSnapshot:
		r.cmds = append(r.cmds, CmdPublishStateSnapshot{
			Snapshot: s.Snapshot(cfg),
			Reply:    ev.Reply,
		})

	case OutputFailed:
		// Keep state as-is; output failures are logged by the effects layer.
		s.Stats.OutputErrors++

	default:
		// Unknown event type: no-op.
	}

	after := s.visible()
	if after != before {
		s.Version++
	}
	if after.AltTab != before.AltTab {
		r.bcasts = append(r.bcasts, BroadcastAltTabChanged{Active: after.AltTab, Version: s.Version, At: s.Now})
	}
	if after != before {
		r.bcasts = append(r.bcasts, BroadcastStateChanged{Snapshot: s.Snapshot(cfg), At: s.Now})
	}

	return ReduceResult{
		State:      s,
		Commands:   r.cmds,
		Broadcasts: r.bcasts,
	}
}

// reduction accumulates the outputs of a single Reduce call.
type reduction struct {
	s      *DaemonState
	cfg    ReducerConfig
	cmds   []Command
	bcasts []StateBroadcast
}

func (r *reduction) emit(cmds ...Command) {
	r.cmds = append(r.cmds, cmds...)
}

// ============================================================================
// Tick
// ============================================================================

func (r *reduction) tick(now time.Time) {
	s := r.s
	if !now.IsZero() {
		s.Now = now
	}

	if !s.SplashDone && s.Now.Sub(s.StartedAt) >= r.cfg.Splash {
		s.SplashDone = true
	}

	// Alt is released once the alt-tab key has been up for longer than the timeout.
	timeout := time.Duration(s.Params.AltTabTimeoutMS) * time.Millisecond
	if s.AltTab.AltHeld && !s.AltTab.Pressed && s.Now.Sub(s.AltTab.ReleasedAt) > timeout {
		s.AltTab.AltHeld = false
		r.emit(CmdKey{Code: KEY_LEFTALT, Value: evValueRelease})
	}

	for _, scroll := range s.Encoder.Release(s.Now) {
		r.scroll(scroll)
	}
}

// ============================================================================
// Keys
// ============================================================================

// key routes a physical key event. Keys bound to an action keep that action
// until release, so a layer change between press and release can't strand a
// modifier. Unbound keys pass through outside the settings layer.
func (r *reduction) key(code uint16, value int32) {
	s := r.s
	settings := s.Mode == ModeSettings

	switch value {
	case evValuePress:
		if action := r.cfg.Keymap.Lookup(code, settings); action != ActionNone {
			s.boundKeys()[code] = action
			r.action(action, value)
			return
		}
		if settings {
			return
		}
		s.Passthrough[code] = true
		r.forward(code, value)

	case evValueRepeat:
		if action, ok := s.boundKeys()[code]; ok {
			r.action(action, value)
			return
		}
		if s.Passthrough[code] && !settings {
			r.forward(code, value)
		}

	case evValueRelease:
		if action, ok := s.boundKeys()[code]; ok {
			delete(s.boundKeys(), code)
			r.action(action, value)
			return
		}
		if s.Passthrough[code] {
			delete(s.Passthrough, code)
			r.forward(code, value)
			return
		}
		// Key went down before the grab; let the host see it come up.
		if !settings {
			r.forward(code, value)
		}
	}
}

func (r *reduction) forward(code uint16, value int32) {
	r.s.Stats.KeysForwarded++
	r.emit(CmdKey{Code: code, Value: value})
}

// action applies a logical key action. value is the evdev key value
// (press, repeat or release).
func (r *reduction) action(action KeyAction, value int32) {
	s := r.s
	press := value == evValuePress
	repeatable := value == evValuePress || value == evValueRepeat

	if isNavigatorAction(action) && s.Mode != ModeSettings {
		return
	}

	switch action {
	case ActionSettingsUp:
		if repeatable {
			s.Nav.Move(-1, len(r.cfg.Registry), r.cfg.VisibleRows)
		}
	case ActionSettingsDown:
		if repeatable {
			s.Nav.Move(1, len(r.cfg.Registry), r.cfg.VisibleRows)
		}
	case ActionSettingsLeft:
		if repeatable {
			Adjust(r.cfg.Registry, s.Nav, -1, &s.Params)
		}
	case ActionSettingsRight:
		if repeatable {
			Adjust(r.cfg.Registry, s.Nav, 1, &s.Params)
		}
	case ActionSettingsSelect:
		if press {
			s.Nav.Select()
		}
	case ActionSettingsToggle:
		if press {
			if s.Mode == ModeSettings {
				s.Mode = ModeBase
			} else {
				s.Mode = ModeSettings
			}
		}

	case ActionPinkyShift:
		switch {
		case press && s.Params.PinkyShift && !s.PinkyShiftHeld:
			s.PinkyShiftHeld = true
			r.emit(CmdKey{Code: KEY_LEFTSHIFT, Value: evValuePress})
		case value == evValueRelease && s.PinkyShiftHeld:
			s.PinkyShiftHeld = false
			r.emit(CmdKey{Code: KEY_LEFTSHIFT, Value: evValueRelease})
		}

	case ActionAltTab:
		switch value {
		case evValuePress:
			s.AltTab.Pressed = true
			if !s.AltTab.AltHeld {
				s.AltTab.AltHeld = true
				r.emit(CmdKey{Code: KEY_LEFTALT, Value: evValuePress})
			}
			r.emit(CmdTap{Code: KEY_TAB})
		case evValueRelease:
			s.AltTab.Pressed = false
			s.AltTab.ReleasedAt = s.Now
		}

	case ActionOverview:
		if press {
			r.emit(
				CmdKey{Code: KEY_LEFTMETA, Value: evValuePress},
				CmdTap{Code: KEY_F5},
				CmdKey{Code: KEY_LEFTMETA, Value: evValueRelease},
				CmdTap{Code: KEY_RIGHT},
				CmdTap{Code: KEY_RIGHT},
			)
		}

	case ActionMouseUpdateToggle:
		if press {
			s.Params.Toggle(ParamMouseUpdate)
		}

	case ActionNone:
	}
}

// ============================================================================
// Pointer + encoder
// ============================================================================

func (r *reduction) pointer(sample PointerSample) {
	s := r.s
	s.Stats.PointerReports++

	if s.DragScroll.Held {
		if sample.X != 0 || sample.Y != 0 {
			s.DragScroll.Moved = true
		}
		sample.V = -sample.Y
		sample.H = sample.X
		sample.X = 0
		sample.Y = 0
	}

	r.cfg.Curves.Transform(&sample, &s.Params, &s.Limiter)

	if !sample.IsZero() {
		r.emit(CmdEmitPointer{Sample: sample})
	}
}

func (r *reduction) button(code uint16, pressed bool) {
	s := r.s
	if r.cfg.DragScrollButton != 0 && code == r.cfg.DragScrollButton {
		if pressed {
			s.DragScroll = DragScrollState{Held: true}
			return
		}
		moved := s.DragScroll.Moved
		s.DragScroll = DragScrollState{}
		if !moved {
			r.emit(CmdTap{Code: code})
		}
		return
	}

	value := int32(evValueRelease)
	if pressed {
		value = evValuePress
	}
	r.emit(CmdKey{Code: code, Value: value})
}

func (r *reduction) scroll(scroll EncoderScroll) {
	r.s.Stats.ScrollsEmitted++
	r.emit(CmdEmitScroll{Scroll: scroll})
	if r.s.Params.MouseUpdate {
		r.emit(CmdSync{})
	}
}
