package main

import (
	"fmt"
	"math"
)

// ============================================================================
// Pointer Transform Pipeline
// ============================================================================
// Every pointer report from the pointing stick passes through three stages,
// in order: rotation, acceleration/scaling, drag-scroll rate limiting.
// Stages read the live Params on every call, so changes made through the
// settings layer take effect on the next sample.
// ============================================================================

// PointerSample is one poll's worth of relative motion and scroll.
type PointerSample struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	V int32 `json:"v"` // vertical scroll
	H int32 `json:"h"` // horizontal scroll
}

func (s PointerSample) String() string {
	return fmt.Sprintf("(x=%d y=%d v=%d h=%d)", s.X, s.Y, s.V, s.H)
}

// IsZero reports whether the sample carries neither motion nor scroll.
func (s PointerSample) IsZero() bool {
	return s.X == 0 && s.Y == 0 && s.V == 0 && s.H == 0
}

// Curve tables indexed by level (0..levelCount-1).
var (
	accelCurve    = [levelCount]float64{0.6, 0.8, 1.0, 1.2, 1.4, 1.6}
	speedCurve    = [levelCount]float64{2.4, 2.2, 2.0, 1.8, 1.6, 1.4}
	scrollPeriods = [levelCount]int{8, 7, 6, 5, 4, 3}
)

// PointerCurves holds the lookup tables the pipeline uses.
type PointerCurves struct {
	Accel         [levelCount]float64 // exponents, ascending
	Speed         [levelCount]float64 // divisors, descending
	ScrollPeriods [levelCount]int     // one scroll event passes every N samples
}

// DefaultPointerCurves returns the fixed production tables.
func DefaultPointerCurves() PointerCurves {
	return PointerCurves{
		Accel:         accelCurve,
		Speed:         speedCurve,
		ScrollPeriods: scrollPeriods,
	}
}

// ScrollLimiter is the drag-scroll rate limiter state.
// Counter stays in [0, Wrap()) where Wrap is the lcm of the period table,
// so every period divides the wrap point and no phase glitch occurs at wrap.
type ScrollLimiter struct {
	Counter int `json:"counter"`
}

// limiterWrap returns lcm(periods).
func limiterWrap(periods [levelCount]int) int {
	l := 1
	for _, p := range periods {
		if p <= 0 {
			continue
		}
		l = l / gcd(l, p) * p
	}
	return l
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Transform mutates sample in place. It never fails: params are validated
// before they can reach the pipeline.
func (c PointerCurves) Transform(sample *PointerSample, params *Params, limiter *ScrollLimiter) {
	if sample == nil || params == nil {
		return
	}

	// Rotation
	if params.RotationDeg != 0 {
		sample.X, sample.Y = rotate(sample.X, sample.Y, params.RotationDeg)
	}

	// Acceleration/scaling
	if sample.X != 0 || sample.Y != 0 {
		sample.X, sample.Y = c.accelerate(sample.X, sample.Y, params.AccelLevel, params.SpeedLevel)
	}

	// Drag-scroll rate limiting
	if limiter != nil && (sample.V != 0 || sample.H != 0) {
		wrap := limiterWrap(c.ScrollPeriods)
		limiter.Counter = (limiter.Counter + 1) % wrap
		period := c.ScrollPeriods[clampLevel(params.ScrollLevel)]
		if period > 0 && limiter.Counter%period != 0 {
			sample.V = 0
			sample.H = 0
		}
	}
}

// rotate applies a 2D rotation by deg degrees, rounding each component.
// Both inputs are read before either output is produced.
func rotate(x, y int32, deg int) (int32, int32) {
	theta := float64(deg) * math.Pi / 180.0
	sin, cos := math.Sincos(theta)
	fx, fy := float64(x), float64(y)
	rx := math.Round(fx*cos - fy*sin)
	ry := math.Round(fx*sin + fy*cos)
	return saturateInt32(rx), saturateInt32(ry)
}

// accelerate adds a boost along the motion direction on top of the raw delta.
// The sum truncates toward zero like the integer report fields it feeds.
func (c PointerCurves) accelerate(x, y int32, accelLevel, speedLevel int) (int32, int32) {
	fx, fy := float64(x), float64(y)
	boost := c.boost(math.Hypot(fx, fy), accelLevel, speedLevel)
	phi := math.Atan2(fy, fx)
	return saturateInt32(fx + boost*math.Cos(phi)), saturateInt32(fy + boost*math.Sin(phi))
}

// boost returns the scaled magnitude s = h^accel[L] / speed[S].
func (c PointerCurves) boost(h float64, accelLevel, speedLevel int) float64 {
	div := c.Speed[clampLevel(speedLevel)]
	if div == 0 {
		return 0
	}
	return math.Pow(h, c.Accel[clampLevel(accelLevel)]) / div
}

// saturateInt32 converts f toward zero, pinning out-of-range values to the
// int32 limits so an oversized delta never flips sign. NaN maps to 0.
func saturateInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// mulSaturated returns v*k pinned to the int32 range.
func mulSaturated(v, k int32) int32 {
	p := int64(v) * int64(k)
	switch {
	case p > math.MaxInt32:
		return math.MaxInt32
	case p < math.MinInt32:
		return math.MinInt32
	}
	return int32(p)
}

func clampLevel(l int) int {
	if l < 0 {
		return 0
	}
	if l >= levelCount {
		return levelCount - 1
	}
	return l
}
