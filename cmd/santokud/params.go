package main

import "fmt"

// ============================================================================
// Shared Tunable Parameters
// ============================================================================
// Params is the single tunables struct read by the pointer pipeline and
// mutated by the settings navigator. It lives inside DaemonState and is owned
// by the daemon goroutine, so there is no locking here.
// ============================================================================

// ParamID identifies a numeric or boolean tunable.
type ParamID int

const (
	ParamRotation ParamID = iota
	ParamAccel
	ParamSpeed
	ParamScroll
	ParamPinkyShift
	ParamAltTabTimeout
	ParamMouseUpdate
)

func (id ParamID) String() string {
	switch id {
	case ParamRotation:
		return "rotation"
	case ParamAccel:
		return "accel"
	case ParamSpeed:
		return "speed"
	case ParamScroll:
		return "scroll"
	case ParamPinkyShift:
		return "pinky_shift"
	case ParamAltTabTimeout:
		return "alt_tab_timeout"
	case ParamMouseUpdate:
		return "mouse_update"
	default:
		return fmt.Sprintf("param(%d)", int(id))
	}
}

// BoundPolicy is the strategy used when an adjustment would leave a domain.
type BoundPolicy int

const (
	// BoundClamped holds at the bound; further input in the same direction is a no-op.
	BoundClamped BoundPolicy = iota
	// BoundCircular wraps past the minimum to the maximum and vice versa.
	BoundCircular
)

func (p BoundPolicy) String() string {
	switch p {
	case BoundClamped:
		return "clamped"
	case BoundCircular:
		return "circular"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Step applies delta to value within [min, max].
func (p BoundPolicy) Step(value, delta, min, max int) int {
	next := value + delta
	switch p {
	case BoundCircular:
		if next < min {
			return max
		}
		if next > max {
			return min
		}
	case BoundClamped:
		if next < min {
			return min
		}
		if next > max {
			return max
		}
	}
	return next
}

// ParamDomain declares the range, step size and bound policy of a numeric parameter.
type ParamDomain struct {
	Min    int
	Max    int
	Step   int
	Policy BoundPolicy
}

// Contains reports whether v is inside the domain.
func (d ParamDomain) Contains(v int) bool {
	return v >= d.Min && v <= d.Max
}

// Curve table size shared by the level parameters.
const levelCount = 6

var paramDomains = map[ParamID]ParamDomain{
	ParamRotation:      {Min: 0, Max: 359, Step: 1, Policy: BoundCircular},
	ParamAccel:         {Min: 0, Max: levelCount - 1, Step: 1, Policy: BoundClamped},
	ParamSpeed:         {Min: 0, Max: levelCount - 1, Step: 1, Policy: BoundClamped},
	ParamScroll:        {Min: 0, Max: levelCount - 1, Step: 1, Policy: BoundClamped},
	ParamAltTabTimeout: {Min: 100, Max: 1200, Step: 25, Policy: BoundCircular},
}

// domainOf returns the declared domain of a numeric parameter.
func domainOf(id ParamID) (ParamDomain, bool) {
	d, ok := paramDomains[id]
	return d, ok
}

// Params holds the live tunables. Field tags match the `tuning` config section.
type Params struct {
	RotationDeg     int  `json:"rotation_deg" yaml:"rotation_deg" toml:"rotation_deg"`
	AccelLevel      int  `json:"accel_level" yaml:"accel_level" toml:"accel_level"`
	SpeedLevel      int  `json:"speed_level" yaml:"speed_level" toml:"speed_level"`
	ScrollLevel     int  `json:"scroll_level" yaml:"scroll_level" toml:"scroll_level"`
	PinkyShift      bool `json:"pinky_shift" yaml:"pinky_shift" toml:"pinky_shift"`
	AltTabTimeoutMS int  `json:"alt_tab_timeout_ms" yaml:"alt_tab_timeout_ms" toml:"alt_tab_timeout_ms"`
	MouseUpdate     bool `json:"mouse_update" yaml:"mouse_update" toml:"mouse_update"`
}

// DefaultParams returns the startup tunables.
func DefaultParams() Params {
	return Params{
		RotationDeg:     350,
		AccelLevel:      2,
		SpeedLevel:      2,
		ScrollLevel:     2,
		PinkyShift:      true,
		AltTabTimeoutMS: 300,
		MouseUpdate:     false,
	}
}

// Int returns the value of a numeric parameter.
func (p *Params) Int(id ParamID) (int, bool) {
	switch id {
	case ParamRotation:
		return p.RotationDeg, true
	case ParamAccel:
		return p.AccelLevel, true
	case ParamSpeed:
		return p.SpeedLevel, true
	case ParamScroll:
		return p.ScrollLevel, true
	case ParamAltTabTimeout:
		return p.AltTabTimeoutMS, true
	default:
		return 0, false
	}
}

func (p *Params) setInt(id ParamID, v int) {
	switch id {
	case ParamRotation:
		p.RotationDeg = v
	case ParamAccel:
		p.AccelLevel = v
	case ParamSpeed:
		p.SpeedLevel = v
	case ParamScroll:
		p.ScrollLevel = v
	case ParamAltTabTimeout:
		p.AltTabTimeoutMS = v
	}
}

// Bool returns the value of a boolean parameter.
func (p *Params) Bool(id ParamID) (bool, bool) {
	switch id {
	case ParamPinkyShift:
		return p.PinkyShift, true
	case ParamMouseUpdate:
		return p.MouseUpdate, true
	default:
		return false, false
	}
}

// Toggle flips a boolean parameter. It reports false for non-boolean ids.
func (p *Params) Toggle(id ParamID) bool {
	switch id {
	case ParamPinkyShift:
		p.PinkyShift = !p.PinkyShift
		return true
	case ParamMouseUpdate:
		p.MouseUpdate = !p.MouseUpdate
		return true
	default:
		return false
	}
}

// StepParam moves a numeric parameter one domain step in dir (-1 or +1)
// using the parameter's declared bound policy. It reports whether the value changed.
func (p *Params) StepParam(id ParamID, dir int) bool {
	d, ok := domainOf(id)
	if !ok {
		return false
	}
	cur, _ := p.Int(id)
	next := d.Policy.Step(cur, dir*d.Step, d.Min, d.Max)
	if next == cur {
		return false
	}
	p.setInt(id, next)
	return true
}

// Validate checks that every numeric parameter is inside its domain.
func (p *Params) Validate() error {
	for _, id := range []ParamID{ParamRotation, ParamAccel, ParamSpeed, ParamScroll, ParamAltTabTimeout} {
		d, _ := domainOf(id)
		v, _ := p.Int(id)
		if !d.Contains(v) {
			return fmt.Errorf("tuning.%s must be between %d and %d (got %d)", id, d.Min, d.Max, v)
		}
		if d.Step > 1 && (v-d.Min)%d.Step != 0 {
			return fmt.Errorf("tuning.%s must be a multiple of %d from %d (got %d)", id, d.Step, d.Min, v)
		}
	}
	return nil
}
