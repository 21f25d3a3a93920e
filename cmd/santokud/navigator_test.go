package main

import "testing"

// TestNavigator_MoveDownToBottom tests that N downward moves land on the last row
// and a further move is a no-op
func TestNavigator_MoveDownToBottom(t *testing.T) {
	n := len(defaultRegistry)
	visible := defaultVisibleRow

	var nav NavigatorState
	for i := 0; i < n; i++ {
		nav.Move(1, n, visible)
	}

	wantOffset := n - visible
	if wantOffset < 0 {
		wantOffset = 0
	}
	if nav.Cursor != n-1 {
		t.Errorf("expected cursor=%d, got %d", n-1, nav.Cursor)
	}
	if nav.Offset != wantOffset {
		t.Errorf("expected offset=%d, got %d", wantOffset, nav.Offset)
	}

	before := nav
	nav.Move(1, n, visible)
	if nav != before {
		t.Errorf("expected no change at bottom, got %+v (was %+v)", nav, before)
	}
}

// TestNavigator_MoveUpClampsAtTop tests that moving up from the first row stays put
func TestNavigator_MoveUpClampsAtTop(t *testing.T) {
	var nav NavigatorState
	nav.Move(-1, len(defaultRegistry), defaultVisibleRow)

	if nav.Cursor != 0 || nav.Offset != 0 {
		t.Errorf("expected (0,0), got (%d,%d)", nav.Cursor, nav.Offset)
	}
}

// TestNavigator_LockstepOffset tests that the offset follows the cursor and both clamp independently
func TestNavigator_LockstepOffset(t *testing.T) {
	n := 10
	visible := 4

	nav := NavigatorState{}
	nav.Move(1, n, visible)
	nav.Move(1, n, visible)
	if nav.Cursor != 2 || nav.Offset != 2 {
		t.Errorf("expected (2,2), got (%d,%d)", nav.Cursor, nav.Offset)
	}

	for i := 0; i < 20; i++ {
		nav.Move(1, n, visible)
	}
	if nav.Cursor != 9 || nav.Offset != 6 {
		t.Errorf("expected (9,6), got (%d,%d)", nav.Cursor, nav.Offset)
	}

	// Moving up brings both back in lockstep
	nav.Move(-1, n, visible)
	if nav.Cursor != 8 || nav.Offset != 5 {
		t.Errorf("expected (8,5), got (%d,%d)", nav.Cursor, nav.Offset)
	}
}

// TestNavigator_SmallRegistryNeverScrolls tests that offset stays 0 when everything fits
func TestNavigator_SmallRegistryNeverScrolls(t *testing.T) {
	var nav NavigatorState
	for i := 0; i < 5; i++ {
		nav.Move(1, 3, 6)
	}
	if nav.Cursor != 2 || nav.Offset != 0 {
		t.Errorf("expected (2,0), got (%d,%d)", nav.Cursor, nav.Offset)
	}
}

// TestAdjust_CircularRotation tests 0-1 -> 359 and 359+1 -> 0
func TestAdjust_CircularRotation(t *testing.T) {
	params := DefaultParams()
	nav := NavigatorState{Cursor: 0} // TP Rotate

	params.RotationDeg = 0
	if !Adjust(defaultRegistry, nav, -1, &params) {
		t.Fatal("expected change")
	}
	if params.RotationDeg != 359 {
		t.Errorf("expected 359, got %d", params.RotationDeg)
	}

	Adjust(defaultRegistry, nav, 1, &params)
	if params.RotationDeg != 0 {
		t.Errorf("expected 0, got %d", params.RotationDeg)
	}
}

// TestAdjust_CircularAltTab tests 100-25 -> 1200 and 1200+25 -> 100
func TestAdjust_CircularAltTab(t *testing.T) {
	params := DefaultParams()
	nav := NavigatorState{Cursor: 5} // AltTab ms

	params.AltTabTimeoutMS = 100
	Adjust(defaultRegistry, nav, -1, &params)
	if params.AltTabTimeoutMS != 1200 {
		t.Errorf("expected 1200, got %d", params.AltTabTimeoutMS)
	}

	Adjust(defaultRegistry, nav, 1, &params)
	if params.AltTabTimeoutMS != 100 {
		t.Errorf("expected 100, got %d", params.AltTabTimeoutMS)
	}

	Adjust(defaultRegistry, nav, 1, &params)
	if params.AltTabTimeoutMS != 125 {
		t.Errorf("expected 125, got %d", params.AltTabTimeoutMS)
	}
}

// TestAdjust_ClampedLevels tests that bar settings hold at both ends
func TestAdjust_ClampedLevels(t *testing.T) {
	for cursor := 1; cursor <= 3; cursor++ {
		params := DefaultParams()
		nav := NavigatorState{Cursor: cursor}
		id := defaultRegistry[cursor].Param

		params.setInt(id, 5)
		if Adjust(defaultRegistry, nav, 1, &params) {
			t.Errorf("%s: expected no change at max", id)
		}
		if v, _ := params.Int(id); v != 5 {
			t.Errorf("%s: expected 5, got %d", id, v)
		}

		params.setInt(id, 0)
		if Adjust(defaultRegistry, nav, -1, &params) {
			t.Errorf("%s: expected no change at min", id)
		}
		if v, _ := params.Int(id); v != 0 {
			t.Errorf("%s: expected 0, got %d", id, v)
		}
	}
}

// TestAdjust_BoolToggleTwiceRestores tests that pinky shift flips regardless of direction
func TestAdjust_BoolToggleTwiceRestores(t *testing.T) {
	params := DefaultParams()
	nav := NavigatorState{Cursor: 4} // Pinky Shift
	orig := params.PinkyShift

	Adjust(defaultRegistry, nav, 1, &params)
	if params.PinkyShift == orig {
		t.Error("expected pinky shift to flip")
	}
	Adjust(defaultRegistry, nav, -1, &params)
	if params.PinkyShift != orig {
		t.Errorf("expected pinky shift=%v after two toggles, got %v", orig, params.PinkyShift)
	}
}

// TestAdjust_PlaceholderIsNoop tests that the reserved row changes nothing
func TestAdjust_PlaceholderIsNoop(t *testing.T) {
	params := DefaultParams()
	before := params
	nav := NavigatorState{Cursor: 6} // ExpMouseSend

	if Adjust(defaultRegistry, nav, 1, &params) {
		t.Error("expected no change")
	}
	if params != before {
		t.Errorf("expected params unchanged, got %+v", params)
	}
}

// TestAdjust_OutOfRangeCursor tests that a stale cursor is ignored
func TestAdjust_OutOfRangeCursor(t *testing.T) {
	params := DefaultParams()
	if Adjust(defaultRegistry, NavigatorState{Cursor: 42}, 1, &params) {
		t.Error("expected no change for out-of-range cursor")
	}
}

// TestRenderSettingValue tests each setting kind's rendering
func TestRenderSettingValue(t *testing.T) {
	params := DefaultParams()

	tests := []struct {
		cursor int
		want   string
	}{
		{0, "  350"},
		{1, "[===   ]"},
		{4, "Yes"},
		{5, "  300"},
		{6, ""},
	}
	for _, tt := range tests {
		got := renderSettingValue(defaultRegistry[tt.cursor], &params)
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", defaultRegistry[tt.cursor].Label, tt.want, got)
		}
	}

	for level, want := range progressBars {
		params.SpeedLevel = level
		if got := renderSettingValue(defaultRegistry[2], &params); got != want {
			t.Errorf("level %d: expected %q, got %q", level, want, got)
		}
	}
}
