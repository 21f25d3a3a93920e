package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// decodeInputEvents decodes every whole input_event in buf.
func decodeInputEvents(buf []byte) []inputEvent {
	n := len(buf) / inputEventSize
	if n == 0 {
		return nil
	}
	out := make([]inputEvent, 0, n)
	reader := bytes.NewReader(buf[:n*inputEventSize])
	for i := 0; i < n; i++ {
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			break
		}
		out = append(out, ev)
	}
	return out
}

// ============================================================================
// Input devices
// ============================================================================

// inputDevice is an opened evdev node plus its role translator.
type inputDevice struct {
	file *os.File
	cfg  InputDeviceConfig
	tr   *deviceTranslator
}

// openInputDevices opens (and optionally grabs) every configured device.
// On error, devices opened so far are closed.
func openInputDevices(cfgs []InputDeviceConfig) ([]*inputDevice, error) {
	var devs []*inputDevice
	for _, c := range cfgs {
		f, err := os.Open(c.Path)
		if err != nil {
			closeInputDevices(devs)
			return nil, fmt.Errorf("open input device %s: %w", c.Path, err)
		}
		if c.Grab {
			if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, 1); err != nil {
				f.Close()
				closeInputDevices(devs)
				return nil, fmt.Errorf("grab input device %s: %w", c.Path, err)
			}
		}
		devs = append(devs, &inputDevice{
			file: f,
			cfg:  c,
			tr:   newDeviceTranslator(c.Role),
		})
	}
	return devs, nil
}

// closeInputDevices releases grabs and closes files.
func closeInputDevices(devs []*inputDevice) {
	for _, d := range devs {
		if d.cfg.Grab {
			_ = unix.IoctlSetInt(int(d.file.Fd()), eviocgrab, 0)
		}
		_ = d.file.Close()
	}
}

// ============================================================================
// Translation (raw evdev -> daemon events)
// ============================================================================

// Upper bound on encoder detents taken from a single event.
const maxDetentsPerEvent = 16

// deviceTranslator turns raw events from one device into daemon events
// according to the device's role.
type deviceTranslator struct {
	role    string
	pending PointerSample
	dirty   bool
}

func newDeviceTranslator(role string) *deviceTranslator {
	return &deviceTranslator{role: role}
}

// translate returns the daemon events produced by ev, if any.
func (t *deviceTranslator) translate(ev inputEvent) []Event {
	switch t.role {
	case RoleKeyboard:
		if ev.Type == EV_KEY {
			return []Event{KeyInput{Code: ev.Code, Value: ev.Value}}
		}

	case RolePointer:
		switch ev.Type {
		case EV_REL:
			switch ev.Code {
			case REL_X:
				t.pending.X += ev.Value
			case REL_Y:
				t.pending.Y += ev.Value
			case REL_WHEEL:
				t.pending.V += ev.Value
			case REL_HWHEEL:
				t.pending.H += ev.Value
			default:
				return nil
			}
			t.dirty = true
		case EV_KEY:
			if ev.Value == evValueRepeat {
				return nil
			}
			return []Event{PointerButton{Code: ev.Code, Pressed: ev.Value == evValuePress}}
		case EV_SYN:
			if ev.Code == SYN_REPORT && t.dirty {
				out := []Event{PointerReport{PointerSample: t.pending}}
				t.pending = PointerSample{}
				t.dirty = false
				return out
			}
		}

	case RoleEncoder:
		if ev.Type == EV_REL && (ev.Code == REL_WHEEL || ev.Code == REL_DIAL) && ev.Value != 0 {
			n := ev.Value
			clockwise := n > 0
			if n < 0 {
				n = -n
			}
			if n > maxDetentsPerEvent {
				n = maxDetentsPerEvent
			}
			out := make([]Event, 0, n)
			for i := int32(0); i < n; i++ {
				out = append(out, EncoderTurn{Clockwise: clockwise})
			}
			return out
		}
	}
	return nil
}
