package main

import (
	"fmt"
	"time"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
// In this codebase, those are writes to the virtual uinput device.
type Command interface {
	commandMarker()
	String() string
}

// CmdEmitPointer writes transformed pointer motion and scroll, then SYN_REPORT.
type CmdEmitPointer struct {
	Sample PointerSample
}

func (CmdEmitPointer) commandMarker() {}
func (c CmdEmitPointer) String() string {
	return fmt.Sprintf("CmdEmitPointer%s", c.Sample)
}

// CmdEmitScroll writes a smoothed encoder scroll (hi-res plus whole detents).
type CmdEmitScroll struct {
	Scroll EncoderScroll
}

func (CmdEmitScroll) commandMarker() {}
func (c CmdEmitScroll) String() string {
	return fmt.Sprintf("CmdEmitScroll(hires=%d detents=%d)", c.Scroll.HiRes, c.Scroll.Detents)
}

// CmdKey writes a single key event (press, release or repeat) followed by SYN_REPORT.
type CmdKey struct {
	Code  uint16
	Value int32
}

func (CmdKey) commandMarker() {}
func (c CmdKey) String() string {
	return fmt.Sprintf("CmdKey(code=%d value=%d)", c.Code, c.Value)
}

// CmdTap presses and releases a key.
type CmdTap struct {
	Code uint16
}

func (CmdTap) commandMarker()   {}
func (c CmdTap) String() string { return fmt.Sprintf("CmdTap(code=%d)", c.Code) }

// CmdSync writes an empty SYN_REPORT (the experimental "mouse update").
type CmdSync struct{}

func (CmdSync) commandMarker() {}
func (CmdSync) String() string { return "CmdSync()" }

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan<- StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// ==============================
// Broadcasts (state fan-out)
// ==============================

// StateBroadcast is a reducer-emitted notification for display clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastStateChanged carries the full snapshot after any visible change.
type BroadcastStateChanged struct {
	Snapshot StateSnapshot
	At       time.Time
}

func (BroadcastStateChanged) broadcastMarker() {}

// BroadcastAltTabChanged reports the alt-tab banner turning on or off.
type BroadcastAltTabChanged struct {
	Active  bool
	Version uint64
	At      time.Time
}

func (BroadcastAltTabChanged) broadcastMarker() {}
