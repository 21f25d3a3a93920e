package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop - Reducer-driven "Daemon Brain"
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands + broadcasts.
//   - The daemon loop is the only place that executes side effects (uinput writes).
//   - Effect failures are turned into Events and fed back into the reducer.
//   - Every incoming event is stamped with its arrival time (TimedEvent).
//
// The loop uses an explicit event queue and command queue, so effects never
// re-enter the reducer.
//
// ============================================================================

// runDaemon is the main daemon loop that:
//   - Receives Events from multiple sources
//   - Emits Tick events on a fixed cadence
//   - Reduces events into (state, commands, broadcasts)
//   - Executes commands against the virtual HID device
//   - Forwards broadcasts to the display broadcaster without blocking
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	out HIDOutput,
	cfg ReducerConfig,
	state *DaemonState,
	tickHz int,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	// Guard: reducer-driven daemon expects a state container.
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}
	if tickHz <= 0 {
		tickHz = defaultTickHz
	}

	// Configure tick cadence.
	tickInterval := time.Second / time.Duration(tickHz)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastTick := time.Now()

	// Explicit queues:
	// - eventQueue holds events awaiting reduction
	// - cmdQueue holds commands awaiting execution
	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}
	enqueueCommands := func(cmds []Command) {
		if len(cmds) == 0 {
			return
		}
		cmdQueue = append(cmdQueue, cmds...)
	}
	publish := func(bcasts []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcasts {
			select {
			case broadcasts <- b:
			default:
				logger.Debug("broadcast channel full, dropping", "broadcast", b)
			}
		}
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			enqueueCommands(rr.Commands)
			publish(rr.Broadcasts)
		}
	}

	// Execute all queued commands, enqueuing failure events.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(out, cmd, logger, func(obs Event) {
				enqueueEvent(obs)
			})

			// Failures are reduced promptly to keep state coherent.
			flushEvents()
		}
	}

	// Initial tick: expires a zero-length splash and publishes the first state.
	enqueueEvent(Tick{Now: lastTick})
	flushEvents()
	flushCommands()

	// Main loop
	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			releaseHeld(state, out, logger)
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				releaseHeld(state, out, logger)
				return
			}
			logger.Debug("event", "type", eventName(ev))
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			dt := now.Sub(lastTick).Seconds()
			lastTick = now
			enqueueEvent(Tick{Now: now, Dt: dt})
			flushEvents()
			flushCommands()
		}
	}
}

// releaseHeld lifts every key the daemon is holding on the virtual device so
// nothing stays stuck after shutdown.
func releaseHeld(state *DaemonState, out HIDOutput, logger *slog.Logger) {
	if state == nil || out == nil {
		return
	}
	var held []uint16
	if state.AltTab.AltHeld {
		held = append(held, KEY_LEFTALT)
	}
	if state.PinkyShiftHeld {
		held = append(held, KEY_LEFTSHIFT)
	}
	for code := range state.Passthrough {
		held = append(held, code)
	}
	for _, code := range held {
		if err := out.Key(code, evValueRelease); err != nil {
			logger.Warn("release on shutdown failed", "key", keyName(code), "error", err)
		}
	}
	if len(held) > 0 {
		_ = out.Sync()
	}
}

func eventName(ev Event) string {
	switch ev.(type) {
	case KeyInput:
		return "key"
	case PointerReport:
		return "pointer"
	case PointerButton:
		return "button"
	case EncoderTurn:
		return "encoder"
	case SettingsMove, SettingsAdjust, SettingsSelect, SettingsMode:
		return "settings"
	case KeyActionInput:
		return "key_action"
	case TuningReloaded:
		return "tuning_reloaded"
	case RequestStateSnapshot:
		return "snapshot_request"
	default:
		return "other"
	}
}
