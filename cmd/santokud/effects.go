package main

import (
	"log/slog"
	"time"
)

// HIDOutput is the virtual keyboard/mouse the daemon writes to.
// Key and EmitPointer each end their batch with SYN_REPORT.
// EmitPointer writes sample.V as REL_WHEEL and wheelHiRes as REL_WHEEL_HI_RES.
type HIDOutput interface {
	EmitPointer(sample PointerSample, wheelHiRes int32) error
	Key(code uint16, value int32) error
	Sync() error
	Close() error
}

// runEffect executes a single reducer-emitted Command (side effect) against the
// virtual HID device and reports failures via onEvent.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly; it only emits Events to be reduced by the daemon loop.
// - The daemon loop is responsible for sequencing: Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(
	out HIDOutput,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		// No place to report failures; nothing sensible to do.
		return
	}

	now := time.Now()
	fail := func(err error) {
		onEvent(OutputFailed{Command: cmd, Err: err, At: now})
	}

	// Snapshot replies don't need the device.
	if c, ok := cmd.(CmdPublishStateSnapshot); ok {
		// Deliver reducer-produced snapshot to the requester.
		// This keeps the reducer pure by moving the channel send into the effects layer.
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the effects worker indefinitely.
		select {
		case c.Reply <- c.Snapshot:
			// delivered
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}
		return
	}

	if out == nil {
		logger.Debug("no output device, dropping command", "command", cmd.String())
		fail(errNoOutput{})
		return
	}

	switch c := cmd.(type) {
	case CmdEmitPointer:
		if err := out.EmitPointer(c.Sample, 0); err != nil {
			logger.Error("uinput pointer write failed", "error", err, "sample", c.Sample.String())
			fail(err)
		}

	case CmdEmitScroll:
		if err := out.EmitPointer(PointerSample{V: c.Scroll.Detents}, c.Scroll.HiRes); err != nil {
			logger.Error("uinput scroll write failed", "error", err, "hires", c.Scroll.HiRes)
			fail(err)
		}

	case CmdKey:
		if err := out.Key(c.Code, c.Value); err != nil {
			logger.Error("uinput key write failed", "error", err, "key", keyName(c.Code), "value", c.Value)
			fail(err)
		}

	case CmdTap:
		if err := out.Key(c.Code, evValuePress); err != nil {
			logger.Error("uinput key tap failed", "error", err, "key", keyName(c.Code))
			fail(err)
			return
		}
		if err := out.Key(c.Code, evValueRelease); err != nil {
			logger.Error("uinput key tap release failed", "error", err, "key", keyName(c.Code))
			fail(err)
		}

	case CmdSync:
		if err := out.Sync(); err != nil {
			logger.Error("uinput sync failed", "error", err)
			fail(err)
		}

	default:
		// Unknown command: record failure so reducer can react (if desired).
		logger.Warn("unknown command type", "command", cmd.String())
		fail(errUnknownCommand{cmd: cmd})
	}
}

// errNoOutput indicates the daemon was asked to execute a command without an output device.
type errNoOutput struct{}

func (errNoOutput) Error() string { return "no virtual HID output" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
