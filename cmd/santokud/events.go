package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - inputs to the reducer
// ============================================================================
// Events come from the input readers (evdev), the IPC socket, the config
// watcher, the state websocket and the daemon's own ticker. The daemon loop
// is the only consumer.
// ============================================================================

// Event is a marker interface for everything the reducer consumes.
type Event interface {
	eventMarker()
}

// TimedEvent stamps an event with its arrival time so the reducer never
// reads the clock itself.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop at a fixed cadence.
// Dt is wall-clock delta in seconds between ticks.
type Tick struct {
	Now time.Time
	Dt  float64
}

func (Tick) eventMarker() {}

// ============================================================================
// Device Events (from evdev readers)
// ============================================================================

// KeyInput is a raw EV_KEY event from a keyboard-role device.
type KeyInput struct {
	Code  uint16 `json:"code"`
	Value int32  `json:"value"` // 0 release, 1 press, 2 repeat
}

func (KeyInput) eventMarker() {}

// PointerReport is one SYN_REPORT worth of pointer motion and scroll.
type PointerReport struct {
	PointerSample
}

func (PointerReport) eventMarker() {}

// PointerButton is an EV_KEY button event from a pointer-role device.
type PointerButton struct {
	Code    uint16 `json:"code"`
	Pressed bool   `json:"pressed"`
}

func (PointerButton) eventMarker() {}

// EncoderTurn is one detent of the scroll encoder.
type EncoderTurn struct {
	Clockwise bool `json:"clockwise"`
}

func (EncoderTurn) eventMarker() {}

// ============================================================================
// Settings Events (IPC / remote control of the settings layer)
// ============================================================================

// Direction values accepted on the wire.
const (
	DirUp       = "up"
	DirDown     = "down"
	DirDecrease = "decrease"
	DirIncrease = "increase"
)

// SettingsMove moves the settings cursor one row.
type SettingsMove struct {
	Direction string `json:"direction"` // "up" or "down"
}

func (SettingsMove) eventMarker() {}

// SettingsAdjust adjusts the selected setting one step.
type SettingsAdjust struct {
	Direction string `json:"direction"` // "decrease" or "increase"
}

func (SettingsAdjust) eventMarker() {}

// SettingsSelect confirms the selected setting.
type SettingsSelect struct{}

func (SettingsSelect) eventMarker() {}

// SettingsMode enters or leaves the settings layer.
type SettingsMode struct {
	Active bool `json:"active"`
}

func (SettingsMode) eventMarker() {}

// KeyActionInput triggers a logical key action without a physical key.
type KeyActionInput struct {
	Action  string `json:"action"` // e.g. "alt_tab", "overview"
	Pressed bool   `json:"pressed"`
}

func (KeyActionInput) eventMarker() {}

// ============================================================================
// Internal Events
// ============================================================================

// TuningReloaded carries the re-parsed tuning section after a config file change.
type TuningReloaded struct {
	Params Params
}

func (TuningReloaded) eventMarker() {}

// RequestStateSnapshot asks the reducer for a coherent snapshot.
// The reply is delivered by the effects layer without blocking.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// OutputFailed is emitted when executing a Command fails.
type OutputFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (OutputFailed) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps events for JSON serialization/deserialization.
// Since Go doesn't have union types, we use a type discriminator.
// Only externally-injectable events have a wire form.
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "settings_move":
		var e SettingsMove
		if err := unmarshalData(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SettingsMove: %w", err)
		}
		if e.Direction != DirUp && e.Direction != DirDown {
			return nil, fmt.Errorf("settings_move: direction must be %q or %q", DirUp, DirDown)
		}
		return e, nil

	case "settings_adjust":
		var e SettingsAdjust
		if err := unmarshalData(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SettingsAdjust: %w", err)
		}
		if e.Direction != DirDecrease && e.Direction != DirIncrease {
			return nil, fmt.Errorf("settings_adjust: direction must be %q or %q", DirDecrease, DirIncrease)
		}
		return e, nil

	case "settings_select":
		return SettingsSelect{}, nil

	case "settings_mode":
		var e SettingsMode
		if err := unmarshalData(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SettingsMode: %w", err)
		}
		return e, nil

	case "key_action":
		var e KeyActionInput
		if err := unmarshalData(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal KeyActionInput: %w", err)
		}
		if _, err := parseKeyAction(e.Action); err != nil {
			return nil, fmt.Errorf("key_action: %w", err)
		}
		return e, nil

	case "pointer_sample":
		var s PointerSample
		if err := unmarshalData(env.Data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal PointerReport: %w", err)
		}
		return PointerReport{PointerSample: s}, nil

	case "encoder_turn":
		var e EncoderTurn
		if err := unmarshalData(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal EncoderTurn: %w", err)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope
	var payload any

	switch e := e.(type) {
	case SettingsMove:
		env.Type = "settings_move"
		payload = e
	case SettingsAdjust:
		env.Type = "settings_adjust"
		payload = e
	case SettingsSelect:
		env.Type = "settings_select"
	case SettingsMode:
		env.Type = "settings_mode"
		payload = e
	case KeyActionInput:
		env.Type = "key_action"
		payload = e
	case PointerReport:
		env.Type = "pointer_sample"
		payload = e.PointerSample
	case EncoderTurn:
		env.Type = "encoder_turn"
		payload = e
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}
