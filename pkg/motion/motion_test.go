package motion

import (
	"math"
	"testing"
)

const floatTolerance = 1e-4

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestCompute_Deadzone(t *testing.T) {
	samples := []struct{ x, y float64 }{
		{0, 0},
		{0.1, 0.1},
		{-0.14, 0.14},
		{0.149, -0.149},
	}
	for _, s := range samples {
		v, a := Compute(s.x, s.y, 0.15, 1.0)
		if v != 0 || a != 0 {
			t.Errorf("Compute(%v, %v) = (%v, %v), want (0, 0)", s.x, s.y, v, a)
		}
	}
}

func TestCompute_PureForward(t *testing.T) {
	// normalized = (0.5-0.15)/0.85 ≈ 0.4118; medium speed 0.6 → ≈ 0.2471
	v, a := Compute(0, 0.5, 0.15, 0.6)
	if !floatEquals(v, 0.2471) {
		t.Errorf("velocity = %v, want ≈ 0.2471", v)
	}
	if a != 0 {
		t.Errorf("angle = %v, want 0", a)
	}
}

func TestCompute_PureBackward(t *testing.T) {
	v, a := Compute(0, -0.5, 0.15, 0.6)
	if !floatEquals(v, -0.2471) {
		t.Errorf("velocity = %v, want ≈ -0.2471", v)
	}
	if a != 0 {
		t.Errorf("angle = %v, want 0", a)
	}
}

func TestCompute_RotationInPlace(t *testing.T) {
	tests := []struct {
		name      string
		x, y      float64
		wantAngle float64
	}{
		{"right", 0.5, 0, 90},
		{"left", -0.5, 0, -90},
		{"hard right", 1.0, 0.1, 90},
		{"hard left", -1.0, -0.1, -90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, a := Compute(tt.x, tt.y, 0.15, 1.0)
			if v != 0 {
				t.Errorf("velocity = %v, want 0", v)
			}
			if a != tt.wantAngle {
				t.Errorf("angle = %v, want %v", a, tt.wantAngle)
			}
		})
	}
}

func TestCompute_CombinedQuadrant(t *testing.T) {
	v, a := Compute(0.5, 0.5, 0.15, 1.0)
	if !floatEquals(a, 45.0) {
		t.Errorf("angle = %v, want 45.0", a)
	}
	wantV := (math.Sqrt(0.5) - 0.15) / 0.85
	if !floatEquals(v, wantV) {
		t.Errorf("velocity = %v, want ≈ %v", v, wantV)
	}
}

func TestCompute_CombinedReverseMirrorsX(t *testing.T) {
	// Moving backward mirrors x so the heading convention matches
	// the forward case.
	_, fwd := Compute(0.5, 0.5, 0.15, 1.0)
	v, rev := Compute(0.5, -0.5, 0.15, 1.0)
	if !floatEquals(math.Abs(fwd), math.Abs(180-math.Abs(rev))) {
		t.Errorf("reverse angle = %v, forward = %v, want mirrored convention", rev, fwd)
	}
	if v >= 0 {
		t.Errorf("velocity = %v, want negative when y < 0", v)
	}
}

func TestCompute_VelocityAlwaysClamped(t *testing.T) {
	for _, speed := range []float64{0.1, 0.6, 1.0, 2.5} {
		for x := -1.0; x <= 1.0; x += 0.25 {
			for y := -1.0; y <= 1.0; y += 0.25 {
				v, _ := Compute(x, y, 0.15, speed)
				if v < -1 || v > 1 {
					t.Fatalf("Compute(%v, %v, 0.15, %v) velocity %v out of [-1,1]", x, y, speed, v)
				}
			}
		}
	}
}

func TestCompute_NormalizationFloorsAtZero(t *testing.T) {
	// Just past the deadzone edge the normalized value must not go
	// negative or invert the direction.
	v, _ := Compute(0, 0.1501, 0.15, 1.0)
	if v < 0 {
		t.Errorf("velocity = %v, want >= 0 at deadzone boundary", v)
	}
}

func TestSpeedLevels(t *testing.T) {
	s := DefaultSpeedLevels()
	if s.Index() != 1 || !floatEquals(s.Current(), 0.6) {
		t.Fatalf("default = (%d, %v), want (1, 0.6)", s.Index(), s.Current())
	}
	if err := s.SetIndex(2); err != nil {
		t.Fatalf("SetIndex(2) error: %v", err)
	}
	if !floatEquals(s.Current(), 1.0) {
		t.Errorf("Current() = %v, want 1.0", s.Current())
	}
	if err := s.SetIndex(3); err == nil {
		t.Error("SetIndex(3) should fail")
	}
	if err := s.SetIndex(-1); err == nil {
		t.Error("SetIndex(-1) should fail")
	}
}
