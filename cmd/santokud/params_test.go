package main

import (
	"strings"
	"testing"
)

// TestBoundPolicy_Step tests both named strategies at and away from the bounds
func TestBoundPolicy_Step(t *testing.T) {
	tests := []struct {
		name   string
		policy BoundPolicy
		value  int
		delta  int
		want   int
	}{
		{"circular below min", BoundCircular, 0, -1, 359},
		{"circular above max", BoundCircular, 359, 1, 0},
		{"circular inside", BoundCircular, 10, 1, 11},
		{"clamped below min", BoundClamped, 0, -1, 0},
		{"clamped above max", BoundClamped, 359, 1, 359},
		{"clamped inside", BoundClamped, 10, -1, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.policy.Step(tt.value, tt.delta, 0, 359)
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

// TestParams_Defaults tests the startup values
func TestParams_Defaults(t *testing.T) {
	p := DefaultParams()
	if p.RotationDeg != 350 || p.AccelLevel != 2 || p.SpeedLevel != 2 || p.ScrollLevel != 2 {
		t.Errorf("unexpected numeric defaults: %+v", p)
	}
	if !p.PinkyShift || p.MouseUpdate || p.AltTabTimeoutMS != 300 {
		t.Errorf("unexpected flag defaults: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

// TestParams_ValidateRejectsOutOfDomain tests config seeds outside a domain
func TestParams_ValidateRejectsOutOfDomain(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		substr string
	}{
		{"rotation", func(p *Params) { p.RotationDeg = 360 }, "tuning.rotation"},
		{"accel", func(p *Params) { p.AccelLevel = 6 }, "tuning.accel"},
		{"speed", func(p *Params) { p.SpeedLevel = -1 }, "tuning.speed"},
		{"scroll", func(p *Params) { p.ScrollLevel = 9 }, "tuning.scroll"},
		{"alt tab range", func(p *Params) { p.AltTabTimeoutMS = 50 }, "tuning.alt_tab_timeout"},
		{"alt tab step", func(p *Params) { p.AltTabTimeoutMS = 310 }, "multiple of 25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("expected error containing %q, got %v", tt.substr, err)
			}
		})
	}
}

// TestParams_ToggleNonBool tests that Toggle refuses numeric ids
func TestParams_ToggleNonBool(t *testing.T) {
	p := DefaultParams()
	if p.Toggle(ParamAccel) {
		t.Error("expected Toggle(accel) to report false")
	}
	if !p.Toggle(ParamMouseUpdate) || !p.MouseUpdate {
		t.Error("expected mouse update to toggle on")
	}
}
