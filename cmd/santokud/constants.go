package main

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02

	SYN_REPORT = 0x00

	REL_X             = 0x00
	REL_Y             = 0x01
	REL_HWHEEL        = 0x06
	REL_DIAL          = 0x07
	REL_WHEEL         = 0x08
	REL_WHEEL_HI_RES  = 0x0b
	REL_HWHEEL_HI_RES = 0x0c

	KEY_TAB       = 15
	KEY_LEFTSHIFT = 42
	KEY_LEFTALT   = 56
	KEY_F5        = 63
	KEY_RIGHT     = 106
	KEY_LEFTMETA  = 125

	BTN_LEFT   = 0x110
	BTN_RIGHT  = 0x111
	BTN_MIDDLE = 0x112
	BTN_TASK   = 0x117
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// EVIOCGRAB ioctl request (_IOW('E', 0x90, int))
const eviocgrab = 0x40044590

// Keyboard key codes below this value are registered on the virtual device.
// Codes from 0x100 up are buttons; only the mouse buttons are registered.
const keyPassthroughMax = 0xff

// Daemon defaults
const (
	defaultTickHz     = 200  // Tick cadence (Hz): alt-tab timeout, encoder pacing, splash expiry
	defaultSplashMS   = 3000 // Splash screen duration (ms)
	defaultVisibleRow = 6    // Settings rows visible between the OLED header and footer

	defaultIPCSocket  = "/tmp/santokud.sock"
	defaultHTTPListen = "127.0.0.1:3010"
	defaultOutputName = "santokud virtual HID"
)

// Encoder smoothing defaults
const (
	defaultEncoderDebounceMS  = 30  // Direction reversals within this window keep the previous direction
	defaultEncoderHardDelayMS = 30  // Upper bound for pacing consecutive encoder scrolls
	encoderStepBucketMS       = 20  // Width of each step-table bucket
	encoderSlowThresholdMS    = 100 // Above this, the slowest step is used
	wheelHiResPerDetent       = 120 // REL_WHEEL_HI_RES units per detent
)

// Display geometry (128x64 OLED with the 6x8 font)
const (
	displayColumns = 21
	displayLines   = 8
)
