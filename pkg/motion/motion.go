// Package motion converts raw 2D joystick samples into robot motion
// commands. It is pure math: no state, no I/O, no failure modes.
//
// The mapping splits the stick range into four bands: a dead center,
// a mostly-vertical band (drive forward/back), a mostly-horizontal
// band (rotate in place), and everything else (combined velocity and
// heading). Rotation in place is intentionally binary (±90°) rather
// than scaled by deflection - the robot firmware treats the angle as
// a turn direction, not a turn rate.
package motion

import (
	"fmt"
	"math"
)

// DefaultDeadzone is the stick radius treated as centered. Absorbs
// drift and noise from cheap gamepads.
const DefaultDeadzone = 0.15

// Compute maps a joystick sample (x, y in [-1, 1]) to a (velocity, angle)
// command. maxSpeed scales the velocity output; angle is in degrees.
// Velocity is always clamped to [-1, 1].
func Compute(x, y, deadzone, maxSpeed float64) (velocity, angle float64) {
	absX, absY := math.Abs(x), math.Abs(y)

	// Dead center - no movement.
	if absX < deadzone && absY < deadzone {
		return 0.0, 0.0
	}

	// Mostly vertical - drive straight forward or back.
	if absY > deadzone && absX < deadzone*1.5 {
		v := normalize(absY, deadzone) * maxSpeed
		if y < 0 {
			v = -v
		}
		return clamp(v, -1, 1), 0.0
	}

	// Mostly horizontal - rotate in place. Direction only, no
	// magnitude scaling.
	if absX > deadzone && absY < deadzone*1.5 {
		if x > 0 {
			return 0.0, 90.0
		}
		return 0.0, -90.0
	}

	// Combined movement. Mirror x when reversing so the angle
	// convention stays consistent driving backward.
	correctedX := x
	if y < 0 {
		correctedX = -x
	}
	angle = math.Atan2(correctedX, y) * 180 / math.Pi

	magnitude := math.Sqrt(x*x + y*y)
	v := normalize(magnitude, deadzone) * maxSpeed
	if y < 0 {
		v = -v
	}
	return clamp(v, -1, 1), angle
}

// normalize rescales an axis magnitude so the usable range starts at
// the deadzone edge. Values just past the edge must floor at 0, never
// go negative.
func normalize(value, deadzone float64) float64 {
	return math.Max(0, value-deadzone) / (1 - deadzone)
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SpeedLevels holds the three discrete speed presets (low, medium,
// high) and the currently selected index.
type SpeedLevels struct {
	levels [3]float64
	index  int
}

// DefaultSpeedLevels returns the stock low/medium/high presets with
// medium selected.
func DefaultSpeedLevels() *SpeedLevels {
	return &SpeedLevels{levels: [3]float64{0.1, 0.6, 1.0}, index: 1}
}

// NewSpeedLevels builds a preset table from three speed values.
func NewSpeedLevels(low, medium, high float64) *SpeedLevels {
	return &SpeedLevels{levels: [3]float64{low, medium, high}, index: 1}
}

// Current returns the selected maximum speed.
func (s *SpeedLevels) Current() float64 {
	return s.levels[s.index]
}

// Index returns the selected preset index.
func (s *SpeedLevels) Index() int {
	return s.index
}

// SetIndex selects a preset. Index must be 0, 1 or 2.
func (s *SpeedLevels) SetIndex(i int) error {
	if i < 0 || i >= len(s.levels) {
		return fmt.Errorf("speed index %d out of range [0,%d]", i, len(s.levels)-1)
	}
	s.index = i
	return nil
}
