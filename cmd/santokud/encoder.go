package main

import (
	"math"
	"time"
)

// ============================================================================
// Encoder Scroll Smoothing
// ============================================================================
// The scroll encoder reports bursty, occasionally reversed detents. The
// reducer smooths them before they become wheel events:
//
//   - a reversal within the debounce window keeps the previous direction
//   - step size depends on the time since the previous detent
//   - detents closer than hard_delay are held back and released on Tick
//
// Nothing here blocks; the pacing queue is bounded and drained by Tick.
// ============================================================================

// Step sizes (in detents) indexed by elapsed/encoderStepBucketMS.
var encoderStepTable = [...]float64{2.4, 2.2, 2.0, 1.8, 1.6, 1.4, 1.2, 1.0, 0.8, 0.6}

// maxPendingScrolls bounds the pacing queue. When full, new scrolls are
// merged into the newest pending entry.
const maxPendingScrolls = 16

// EncoderConfig holds encoder smoothing parameters.
type EncoderConfig struct {
	Debounce  time.Duration
	HardDelay time.Duration
}

func defaultEncoderConfig() EncoderConfig {
	return EncoderConfig{
		Debounce:  defaultEncoderDebounceMS * time.Millisecond,
		HardDelay: defaultEncoderHardDelayMS * time.Millisecond,
	}
}

// EncoderScroll is one smoothed wheel emission.
type EncoderScroll struct {
	HiRes   int32 // REL_WHEEL_HI_RES units
	Detents int32 // whole REL_WHEEL detents completed by this emission
}

// PendingScroll is a scroll held back by pacing.
type PendingScroll struct {
	Due    time.Time
	Scroll EncoderScroll
}

// EncoderState is the reducer-owned smoothing state.
type EncoderState struct {
	LastAt    time.Time
	LastDir   int // -1, +1, or 0 before the first detent
	Residual  int32
	Pending   []PendingScroll
	Reversals int // debounced reversals, for diagnostics
}

// encoderStep returns the step size for a detent arriving elapsed after the previous one.
func encoderStep(elapsed time.Duration) float64 {
	ms := elapsed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	if ms > encoderSlowThresholdMS {
		return encoderStepTable[len(encoderStepTable)-1]
	}
	idx := int(ms / encoderStepBucketMS)
	if idx >= len(encoderStepTable) {
		idx = len(encoderStepTable) - 1
	}
	return encoderStepTable[idx]
}

// Turn records one detent. It returns the scroll to emit now, if any;
// otherwise the scroll has been queued and will be released by Release.
func (e *EncoderState) Turn(clockwise bool, now time.Time, cfg EncoderConfig) (EncoderScroll, bool) {
	dir := -1
	if clockwise {
		dir = 1
	}

	first := e.LastAt.IsZero()
	elapsed := now.Sub(e.LastAt)
	if first {
		elapsed = time.Duration(encoderSlowThresholdMS+1) * time.Millisecond
	}

	if !first && e.LastDir != 0 && dir != e.LastDir && elapsed < cfg.Debounce {
		dir = e.LastDir
		e.Reversals++
	}

	hiRes := int32(math.Round(encoderStep(elapsed)*wheelHiResPerDetent)) * int32(dir)
	e.Residual += hiRes
	detents := e.Residual / wheelHiResPerDetent
	e.Residual -= detents * wheelHiResPerDetent

	scroll := EncoderScroll{HiRes: hiRes, Detents: detents}

	e.LastAt = now
	e.LastDir = dir

	if first || elapsed >= cfg.HardDelay {
		return scroll, true
	}

	due := now.Add(cfg.HardDelay - elapsed)
	if len(e.Pending) >= maxPendingScrolls {
		last := &e.Pending[len(e.Pending)-1]
		last.Scroll.HiRes += scroll.HiRes
		last.Scroll.Detents += scroll.Detents
		return EncoderScroll{}, false
	}
	e.Pending = append(e.Pending, PendingScroll{Due: due, Scroll: scroll})
	return EncoderScroll{}, false
}

// Release pops every pending scroll that is due at now, in order.
func (e *EncoderState) Release(now time.Time) []EncoderScroll {
	if len(e.Pending) == 0 {
		return nil
	}
	var out []EncoderScroll
	i := 0
	for ; i < len(e.Pending); i++ {
		if e.Pending[i].Due.After(now) {
			break
		}
		out = append(out, e.Pending[i].Scroll)
	}
	if i == len(e.Pending) {
		e.Pending = e.Pending[:0]
	} else {
		e.Pending = append(e.Pending[:0], e.Pending[i:]...)
	}
	return out
}
