package main

import (
	"testing"
	"time"
)

var testT0 = time.Unix(1000, 0).UTC()

// newTestState returns a base-layer state with the splash already gone.
func newTestState() *DaemonState {
	s := NewDaemonState(DefaultParams(), testT0)
	s.SplashDone = true
	return s
}

func mustKey(t *testing.T, name string) uint16 {
	t.Helper()
	code, err := parseKeyName(name)
	if err != nil {
		t.Fatalf("parseKeyName(%q): %v", name, err)
	}
	return code
}

// reduceAt reduces ev as if it arrived d after testT0.
func reduceAt(s *DaemonState, d time.Duration, ev Event, cfg ReducerConfig) ReduceResult {
	return Reduce(s, TimedEvent{Event: ev, At: testT0.Add(d)}, cfg)
}

func tickAt(s *DaemonState, d time.Duration, cfg ReducerConfig) ReduceResult {
	return Reduce(s, Tick{Now: testT0.Add(d), Dt: 0.005}, cfg)
}

func expectCommands(t *testing.T, got []Command, want ...Command) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d commands %v, got %d: %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

// TestReduce_AltTab_ReleasesAltAfterTimeout tests that alt stays held until
// the alt-tab key has been up for longer than the timeout.
func TestReduce_AltTab_ReleasesAltAfterTimeout(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	f14 := mustKey(t, "F14")

	rr := reduceAt(s, 0, KeyInput{Code: f14, Value: evValuePress}, cfg)
	expectCommands(t, rr.Commands,
		CmdKey{Code: KEY_LEFTALT, Value: evValuePress},
		CmdTap{Code: KEY_TAB},
	)
	if !rr.State.AltTab.AltHeld || !rr.State.AltTab.Pressed {
		t.Fatalf("expected alt held and key pressed, got %+v", rr.State.AltTab)
	}

	rr = reduceAt(rr.State, 10*time.Millisecond, KeyInput{Code: f14, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands)

	// 300ms default timeout: still held 200ms after release.
	rr = tickAt(rr.State, 210*time.Millisecond, cfg)
	expectCommands(t, rr.Commands)
	if !rr.State.AltTab.AltHeld {
		t.Fatalf("alt released before timeout")
	}

	rr = tickAt(rr.State, 320*time.Millisecond, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: KEY_LEFTALT, Value: evValueRelease})
	if rr.State.AltTab.AltHeld {
		t.Fatalf("expected alt released after timeout")
	}

	// Nothing more on later ticks.
	rr = tickAt(rr.State, time.Second, cfg)
	expectCommands(t, rr.Commands)
}

// TestReduce_AltTab_RepressWithinTimeoutOnlyTapsTab tests cycling windows
// while alt is still held.
func TestReduce_AltTab_RepressWithinTimeoutOnlyTapsTab(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	f14 := mustKey(t, "F14")

	rr := reduceAt(s, 0, KeyInput{Code: f14, Value: evValuePress}, cfg)
	rr = reduceAt(rr.State, 20*time.Millisecond, KeyInput{Code: f14, Value: evValueRelease}, cfg)
	rr = reduceAt(rr.State, 120*time.Millisecond, KeyInput{Code: f14, Value: evValuePress}, cfg)
	expectCommands(t, rr.Commands, CmdTap{Code: KEY_TAB})

	// Held key never times out.
	rr = tickAt(rr.State, 2*time.Second, cfg)
	expectCommands(t, rr.Commands)
}

// TestReduce_AltTab_TimeoutFollowsParam tests that the live parameter is used.
func TestReduce_AltTab_TimeoutFollowsParam(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	s.Params.AltTabTimeoutMS = 100

	rr := reduceAt(s, 0, KeyActionInput{Action: "alt_tab", Pressed: true}, cfg)
	rr = reduceAt(rr.State, 0, KeyActionInput{Action: "alt_tab", Pressed: false}, cfg)
	rr = tickAt(rr.State, 110*time.Millisecond, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: KEY_LEFTALT, Value: evValueRelease})
}

// TestReduce_Passthrough_ReleaseSurvivesLayerChange tests that a key pressed
// in the base layer is released on the host even if settings opened meanwhile.
func TestReduce_Passthrough_ReleaseSurvivesLayerChange(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	keyA := mustKey(t, "A")

	rr := reduceAt(s, 0, KeyInput{Code: keyA, Value: evValuePress}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: keyA, Value: evValuePress})

	rr = reduceAt(rr.State, 0, KeyInput{Code: keyA, Value: evValueRepeat}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: keyA, Value: evValueRepeat})

	rr = reduceAt(rr.State, 0, KeyInput{Code: mustKey(t, "F13"), Value: evValuePress}, cfg)
	if rr.State.Mode != ModeSettings {
		t.Fatalf("expected settings mode, got %v", rr.State.Mode)
	}

	rr = reduceAt(rr.State, 0, KeyInput{Code: keyA, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: keyA, Value: evValueRelease})
	if len(rr.State.Passthrough) != 0 {
		t.Fatalf("expected empty passthrough set, got %v", rr.State.Passthrough)
	}
	if rr.State.Stats.KeysForwarded != 3 {
		t.Errorf("expected 3 forwarded key events, got %d", rr.State.Stats.KeysForwarded)
	}
}

// TestReduce_Settings_SwallowsUnmappedKeys tests that typing does not reach
// the host while the menu is open.
func TestReduce_Settings_SwallowsUnmappedKeys(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	s.Mode = ModeSettings
	keyA := mustKey(t, "A")

	rr := reduceAt(s, 0, KeyInput{Code: keyA, Value: evValuePress}, cfg)
	expectCommands(t, rr.Commands)
	rr = reduceAt(rr.State, 0, KeyInput{Code: keyA, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands)
}

// TestReduce_UnknownReleaseForwardedInBase tests the key-down-before-grab case.
func TestReduce_UnknownReleaseForwardedInBase(t *testing.T) {
	cfg := defaultReducerConfig()
	keyA := mustKey(t, "A")

	rr := reduceAt(newTestState(), 0, KeyInput{Code: keyA, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: keyA, Value: evValueRelease})
}

// TestReduce_Settings_NavigateAndAdjust tests the HJKL bindings end to end.
func TestReduce_Settings_NavigateAndAdjust(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	s.Mode = ModeSettings

	press := func(name string, value int32) {
		t.Helper()
		rr := reduceAt(s, 0, KeyInput{Code: mustKey(t, name), Value: value}, cfg)
		if len(rr.Commands) != 0 {
			t.Fatalf("%s: expected no output, got %v", name, rr.Commands)
		}
		s = rr.State
	}

	press("J", evValuePress)
	press("J", evValueRelease)
	press("J", evValuePress)
	press("J", evValueRelease)
	if s.Nav.Cursor != 2 {
		t.Fatalf("expected cursor 2 (TP Speed), got %d", s.Nav.Cursor)
	}

	// Adjust acts on press and repeat, not on release.
	press("L", evValuePress)
	press("L", evValueRepeat)
	press("L", evValueRelease)
	if s.Params.SpeedLevel != 4 {
		t.Fatalf("expected speed level 4, got %d", s.Params.SpeedLevel)
	}

	press("H", evValuePress)
	press("H", evValueRelease)
	if s.Params.SpeedLevel != 3 {
		t.Fatalf("expected speed level 3, got %d", s.Params.SpeedLevel)
	}

	press("K", evValuePress)
	press("K", evValueRelease)
	if s.Nav.Cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", s.Nav.Cursor)
	}

	press("SLASH", evValuePress)
	if s.Mode != ModeBase {
		t.Fatalf("expected base mode after exit, got %v", s.Mode)
	}
	// The release is routed to the action that took the press, so nothing
	// leaks to the host even though SLASH is unbound in the base layer.
	press("SLASH", evValueRelease)
}

// TestReduce_SettingsEvents_FromIPC tests the remote-control events.
func TestReduce_SettingsEvents_FromIPC(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()

	rr := Reduce(s, SettingsMode{Active: true}, cfg)
	rr = Reduce(rr.State, SettingsMove{Direction: DirUp}, cfg)
	if rr.State.Nav.Cursor != 0 {
		t.Fatalf("expected cursor clamped at 0, got %d", rr.State.Nav.Cursor)
	}

	// Rotation wraps: 350 + 10 steps -> 0.
	for i := 0; i < 10; i++ {
		rr = Reduce(rr.State, SettingsAdjust{Direction: DirIncrease}, cfg)
	}
	if rr.State.Params.RotationDeg != 0 {
		t.Fatalf("expected rotation 0, got %d", rr.State.Params.RotationDeg)
	}
	rr = Reduce(rr.State, SettingsAdjust{Direction: DirDecrease}, cfg)
	if rr.State.Params.RotationDeg != 359 {
		t.Fatalf("expected rotation 359, got %d", rr.State.Params.RotationDeg)
	}

	rr = Reduce(rr.State, SettingsSelect{}, cfg)
	rr = Reduce(rr.State, SettingsMode{Active: false}, cfg)
	if rr.State.Mode != ModeBase {
		t.Fatalf("expected base mode, got %v", rr.State.Mode)
	}
}

// TestReduce_NavigatorIgnoredOutsideSettings tests that no route edits a
// tunable or moves the cursor while the device is in the base layer.
func TestReduce_NavigatorIgnoredOutsideSettings(t *testing.T) {
	cfg := defaultReducerConfig()
	// A base binding that config validation would reject.
	f18 := mustKey(t, "F18")
	cfg.Keymap.Base[f18] = ActionSettingsRight

	s := newTestState()
	want := s.Params
	events := []Event{
		KeyInput{Code: f18, Value: evValuePress},
		KeyInput{Code: f18, Value: evValueRepeat},
		KeyInput{Code: f18, Value: evValueRelease},
		KeyActionInput{Action: "settings_right", Pressed: true},
		KeyActionInput{Action: "settings_down", Pressed: true},
		SettingsAdjust{Direction: DirIncrease},
		SettingsMove{Direction: DirDown},
		SettingsSelect{},
	}
	for _, ev := range events {
		rr := reduceAt(s, 0, ev, cfg)
		s = rr.State
		if len(rr.Broadcasts) != 0 {
			t.Fatalf("%#v: expected no broadcast in base mode, got %v", ev, rr.Broadcasts)
		}
	}

	if s.Mode != ModeBase {
		t.Fatalf("expected base mode, got %v", s.Mode)
	}
	if s.Params != want {
		t.Fatalf("expected params unchanged %+v, got %+v", want, s.Params)
	}
	if s.Nav != (NavigatorState{}) {
		t.Fatalf("expected navigator untouched, got %+v", s.Nav)
	}

	// The same adjust lands once settings mode is on.
	rr := Reduce(s, SettingsMode{Active: true}, cfg)
	rr = Reduce(rr.State, SettingsAdjust{Direction: DirIncrease}, cfg)
	if got := rr.State.Params.RotationDeg; got != want.RotationDeg+1 {
		t.Fatalf("expected rotation %d in settings mode, got %d", want.RotationDeg+1, got)
	}
}

// TestReduce_PinkyShift tests the held shift and its enable flag.
func TestReduce_PinkyShift(t *testing.T) {
	cfg := defaultReducerConfig()
	f17 := mustKey(t, "F17")

	rr := reduceAt(newTestState(), 0, KeyInput{Code: f17, Value: evValuePress}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: KEY_LEFTSHIFT, Value: evValuePress})
	rr = reduceAt(rr.State, 0, KeyInput{Code: f17, Value: evValueRepeat}, cfg)
	expectCommands(t, rr.Commands)
	rr = reduceAt(rr.State, 0, KeyInput{Code: f17, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: KEY_LEFTSHIFT, Value: evValueRelease})

	disabled := newTestState()
	disabled.Params.PinkyShift = false
	rr = reduceAt(disabled, 0, KeyInput{Code: f17, Value: evValuePress}, cfg)
	expectCommands(t, rr.Commands)
	rr = reduceAt(rr.State, 0, KeyInput{Code: f17, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands)
}

// TestReduce_PinkyShift_ReleasedEvenIfDisabledWhileHeld tests that turning
// the option off never strands a held shift.
func TestReduce_PinkyShift_ReleasedEvenIfDisabledWhileHeld(t *testing.T) {
	cfg := defaultReducerConfig()
	f17 := mustKey(t, "F17")

	rr := reduceAt(newTestState(), 0, KeyInput{Code: f17, Value: evValuePress}, cfg)
	rr.State.Params.PinkyShift = false
	rr = reduceAt(rr.State, 0, KeyInput{Code: f17, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: KEY_LEFTSHIFT, Value: evValueRelease})
}

// TestReduce_Overview_EmitsSequence tests the overview macro.
func TestReduce_Overview_EmitsSequence(t *testing.T) {
	cfg := defaultReducerConfig()
	f15 := mustKey(t, "F15")

	rr := reduceAt(newTestState(), 0, KeyInput{Code: f15, Value: evValuePress}, cfg)
	expectCommands(t, rr.Commands,
		CmdKey{Code: KEY_LEFTMETA, Value: evValuePress},
		CmdTap{Code: KEY_F5},
		CmdKey{Code: KEY_LEFTMETA, Value: evValueRelease},
		CmdTap{Code: KEY_RIGHT},
		CmdTap{Code: KEY_RIGHT},
	)
	rr = reduceAt(rr.State, 0, KeyInput{Code: f15, Value: evValueRelease}, cfg)
	expectCommands(t, rr.Commands)
}

// TestReduce_Pointer_TransformedAndEmitted tests that reports go through the
// pipeline and zero results are dropped.
func TestReduce_Pointer_TransformedAndEmitted(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	s.Params.RotationDeg = 0

	rr := Reduce(s, PointerReport{PointerSample{X: 10}}, cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %v", rr.Commands)
	}
	cmd, ok := rr.Commands[0].(CmdEmitPointer)
	if !ok {
		t.Fatalf("expected CmdEmitPointer, got %T", rr.Commands[0])
	}
	if cmd.Sample.X <= 10 || cmd.Sample.Y != 0 {
		t.Errorf("expected boosted X > 10 and Y 0, got %s", cmd.Sample)
	}

	rr = Reduce(rr.State, PointerReport{}, cfg)
	expectCommands(t, rr.Commands)
	if rr.State.Stats.PointerReports != 2 {
		t.Errorf("expected 2 pointer reports counted, got %d", rr.State.Stats.PointerReports)
	}
}

// TestReduce_DragScroll tests that motion becomes scroll while the drag
// button is held, and that an unmoved press still clicks.
func TestReduce_DragScroll(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()
	// Next sample lands on the wrap point, which every period passes.
	s.Limiter.Counter = limiterWrap(cfg.Curves.ScrollPeriods) - 1

	rr := Reduce(s, PointerButton{Code: BTN_MIDDLE, Pressed: true}, cfg)
	expectCommands(t, rr.Commands)

	rr = Reduce(rr.State, PointerReport{PointerSample{X: 0, Y: -5}}, cfg)
	expectCommands(t, rr.Commands, CmdEmitPointer{Sample: PointerSample{V: 5}})

	rr = Reduce(rr.State, PointerButton{Code: BTN_MIDDLE, Pressed: false}, cfg)
	expectCommands(t, rr.Commands)

	// Press and release without motion is a middle click.
	rr = Reduce(rr.State, PointerButton{Code: BTN_MIDDLE, Pressed: true}, cfg)
	rr = Reduce(rr.State, PointerButton{Code: BTN_MIDDLE, Pressed: false}, cfg)
	expectCommands(t, rr.Commands, CmdTap{Code: BTN_MIDDLE})

	// Other buttons pass straight through.
	rr = Reduce(rr.State, PointerButton{Code: BTN_LEFT, Pressed: true}, cfg)
	expectCommands(t, rr.Commands, CmdKey{Code: BTN_LEFT, Value: evValuePress})
}

// TestReduce_Encoder_PacedByTick tests that a fast second detent is held
// back until the hard delay has passed.
func TestReduce_Encoder_PacedByTick(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()

	rr := reduceAt(s, 0, EncoderTurn{Clockwise: true}, cfg)
	expectCommands(t, rr.Commands, CmdEmitScroll{Scroll: EncoderScroll{HiRes: 72, Detents: 0}})

	rr = reduceAt(rr.State, 10*time.Millisecond, EncoderTurn{Clockwise: true}, cfg)
	expectCommands(t, rr.Commands)

	rr = tickAt(rr.State, 20*time.Millisecond, cfg)
	expectCommands(t, rr.Commands)

	rr = tickAt(rr.State, 30*time.Millisecond, cfg)
	expectCommands(t, rr.Commands, CmdEmitScroll{Scroll: EncoderScroll{HiRes: 288, Detents: 3}})
	if rr.State.Stats.ScrollsEmitted != 2 {
		t.Errorf("expected 2 scrolls emitted, got %d", rr.State.Stats.ScrollsEmitted)
	}
}

// TestReduce_Encoder_MouseUpdateAddsSync tests the experimental sync.
func TestReduce_Encoder_MouseUpdateAddsSync(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()

	rr := reduceAt(s, 0, KeyInput{Code: mustKey(t, "F16"), Value: evValuePress}, cfg)
	if !rr.State.Params.MouseUpdate {
		t.Fatalf("expected mouse update enabled")
	}

	rr = reduceAt(rr.State, 0, EncoderTurn{Clockwise: false}, cfg)
	expectCommands(t, rr.Commands,
		CmdEmitScroll{Scroll: EncoderScroll{HiRes: -72, Detents: 0}},
		CmdSync{},
	)
}

// TestReduce_Splash_ExpiresOnTick tests splash expiry.
func TestReduce_Splash_ExpiresOnTick(t *testing.T) {
	cfg := defaultReducerConfig()
	s := NewDaemonState(DefaultParams(), testT0)

	rr := tickAt(s, time.Second, cfg)
	if rr.State.SplashDone {
		t.Fatalf("splash ended too early")
	}
	rr = tickAt(rr.State, cfg.Splash, cfg)
	if !rr.State.SplashDone {
		t.Fatalf("expected splash to end after %v", cfg.Splash)
	}
}

// TestReduce_TuningReloaded tests that only valid seeds are applied.
func TestReduce_TuningReloaded(t *testing.T) {
	cfg := defaultReducerConfig()
	s := newTestState()

	bad := DefaultParams()
	bad.AccelLevel = 9
	rr := Reduce(s, TuningReloaded{Params: bad}, cfg)
	if rr.State.Params != DefaultParams() {
		t.Fatalf("invalid reload applied: %+v", rr.State.Params)
	}
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("expected no broadcast for rejected reload, got %d", len(rr.Broadcasts))
	}

	good := DefaultParams()
	good.RotationDeg = 15
	good.ScrollLevel = 5
	rr = Reduce(rr.State, TuningReloaded{Params: good}, cfg)
	if rr.State.Params != good {
		t.Fatalf("expected %+v, got %+v", good, rr.State.Params)
	}
}

// TestReduce_RequestStateSnapshot tests the snapshot command.
func TestReduce_RequestStateSnapshot(t *testing.T) {
	cfg := defaultReducerConfig()
	reply := make(chan StateSnapshot, 1)

	rr := Reduce(newTestState(), RequestStateSnapshot{Reply: reply}, cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rr.Commands))
	}
	cmd, ok := rr.Commands[0].(CmdPublishStateSnapshot)
	if !ok {
		t.Fatalf("expected CmdPublishStateSnapshot, got %T", rr.Commands[0])
	}
	if cmd.Snapshot.Mode != "base" {
		t.Errorf("expected mode base, got %q", cmd.Snapshot.Mode)
	}
	if len(cmd.Snapshot.Settings) != len(defaultRegistry) {
		t.Errorf("expected %d setting rows, got %d", len(defaultRegistry), len(cmd.Snapshot.Settings))
	}
	if len(cmd.Snapshot.Lines) != displayLines {
		t.Errorf("expected %d display lines, got %d", displayLines, len(cmd.Snapshot.Lines))
	}
}

// TestReduce_OutputFailed_Counted tests that output failures are not fatal.
func TestReduce_OutputFailed_Counted(t *testing.T) {
	cfg := defaultReducerConfig()
	rr := Reduce(newTestState(), OutputFailed{Command: CmdSync{}, Err: errNoOutput{}}, cfg)
	if rr.State.Stats.OutputErrors != 1 {
		t.Fatalf("expected 1 output error, got %d", rr.State.Stats.OutputErrors)
	}
	expectCommands(t, rr.Commands)
}
