package main

import (
	"fmt"
	"log/slog"
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

// ============================================================================
// Virtual HID output (uinput)
// ============================================================================
// One virtual device carries both keyboard and mouse capabilities, so the
// transformed pointer, the encoder wheel and passthrough keys all appear to
// the host as a single input device.
// ============================================================================

// uinputOutput writes events to a uinput device created through go-evdev.
type uinputOutput struct {
	mu     sync.Mutex
	dev    *evdev.InputDevice
	logger *slog.Logger
}

// outputCapabilities lists every event the virtual device can emit.
func outputCapabilities() map[evdev.EvType][]evdev.EvCode {
	keys := make([]evdev.EvCode, 0, keyPassthroughMax+(BTN_TASK-BTN_LEFT+1))
	for code := 1; code <= keyPassthroughMax; code++ {
		keys = append(keys, evdev.EvCode(code))
	}
	for code := BTN_LEFT; code <= BTN_TASK; code++ {
		keys = append(keys, evdev.EvCode(code))
	}

	return map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: keys,
		evdev.EV_REL: {
			evdev.EvCode(REL_X),
			evdev.EvCode(REL_Y),
			evdev.EvCode(REL_WHEEL),
			evdev.EvCode(REL_HWHEEL),
			evdev.EvCode(REL_WHEEL_HI_RES),
			evdev.EvCode(REL_HWHEEL_HI_RES),
		},
	}
}

// newUinputOutput creates the virtual device. Requires write access to /dev/uinput.
func newUinputOutput(name string, logger *slog.Logger) (*uinputOutput, error) {
	id := evdev.InputID{
		BusType: 0x03, // BUS_USB
		Vendor:  0x5354,
		Product: 0x4b44,
		Version: 1,
	}
	dev, err := evdev.CreateDevice(name, id, outputCapabilities())
	if err != nil {
		return nil, fmt.Errorf("create uinput device %q: %w", name, err)
	}
	logger.Info("virtual HID device created", "name", name)
	return &uinputOutput{dev: dev, logger: logger}, nil
}

func (o *uinputOutput) write(typ, code uint16, value int32) error {
	return o.dev.WriteOne(&evdev.InputEvent{
		Type:  evdev.EvType(typ),
		Code:  evdev.EvCode(code),
		Value: value,
	})
}

func (o *uinputOutput) syn() error {
	return o.write(EV_SYN, SYN_REPORT, 0)
}

// relValue is one EV_REL write of a pointer report.
type relValue struct {
	code  uint16
	value int32
}

// pointerRels lists the non-zero relative axes of one report. Plain wheel
// detents get a matching hi-res value, since hosts that see REL_WHEEL_HI_RES
// ignore REL_WHEEL.
func pointerRels(sample PointerSample, wheelHiRes int32) []relValue {
	if wheelHiRes == 0 && sample.V != 0 {
		wheelHiRes = mulSaturated(sample.V, wheelHiResPerDetent)
	}

	all := [...]relValue{
		{REL_X, sample.X},
		{REL_Y, sample.Y},
		{REL_WHEEL, sample.V},
		{REL_WHEEL_HI_RES, wheelHiRes},
		{REL_HWHEEL, sample.H},
		{REL_HWHEEL_HI_RES, mulSaturated(sample.H, wheelHiResPerDetent)},
	}
	rels := make([]relValue, 0, len(all))
	for _, r := range all {
		if r.value != 0 {
			rels = append(rels, r)
		}
	}
	return rels
}

// EmitPointer writes one pointer report followed by SYN_REPORT.
func (o *uinputOutput) EmitPointer(sample PointerSample, wheelHiRes int32) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, r := range pointerRels(sample, wheelHiRes) {
		if err := o.write(EV_REL, r.code, r.value); err != nil {
			return fmt.Errorf("write rel %d: %w", r.code, err)
		}
	}
	return o.syn()
}

func (o *uinputOutput) Key(code uint16, value int32) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.write(EV_KEY, code, value); err != nil {
		return fmt.Errorf("write key %s: %w", keyName(code), err)
	}
	return o.syn()
}

func (o *uinputOutput) Sync() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.syn()
}

func (o *uinputOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dev == nil {
		return nil
	}
	err := o.dev.Close()
	o.dev = nil
	return err
}
