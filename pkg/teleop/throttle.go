// Package teleop turns a stream of joystick samples into robot motion.
// It composes the motion mapper, a caller-side send throttle and a
// valetudo.Channel into per-robot sessions, tracked by a registry.
package teleop

import (
	"math"
	"sync"
	"time"
)

// Throttle defaults, tuned for a UI ticking at 20-60 Hz.
const (
	DefaultSendInterval    = 100 * time.Millisecond
	DefaultVelocityEpsilon = 0.02
	DefaultAngleEpsilon    = 3.0
)

// Throttle decides whether a mapped (velocity, angle) pair is worth
// transmitting. The channel itself records what was sent; deciding
// whether to send at all is this caller-side policy:
//
//   - the first command always passes
//   - a transition to zero velocity passes immediately (stopping must
//     never wait on the rate limit)
//   - otherwise a command passes only when the minimum send interval
//     has elapsed AND the change against the last forwarded pair
//     exceeds the velocity or angle epsilon
type Throttle struct {
	interval    time.Duration
	velocityEps float64
	angleEps    float64

	now func() time.Time // stubbed in tests

	mu       sync.Mutex
	lastTime time.Time
	lastV    float64
	lastA    float64
	sent     bool
}

// NewThrottle builds a throttle; zero arguments select the defaults.
func NewThrottle(interval time.Duration, velocityEps, angleEps float64) *Throttle {
	if interval <= 0 {
		interval = DefaultSendInterval
	}
	if velocityEps <= 0 {
		velocityEps = DefaultVelocityEpsilon
	}
	if angleEps <= 0 {
		angleEps = DefaultAngleEpsilon
	}
	return &Throttle{
		interval:    interval,
		velocityEps: velocityEps,
		angleEps:    angleEps,
		now:         time.Now,
	}
}

// ShouldSend reports whether the pair should be forwarded and, when
// it should, records it as the new comparison baseline. Recording is
// optimistic: a failed send is not retried, matching the overall
// no-retry policy.
func (t *Throttle) ShouldSend(velocity, angle float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if !t.sent {
		t.record(now, velocity, angle)
		return true
	}

	// Stop transitions bypass the rate limit.
	if velocity == 0 && t.lastV != 0 {
		t.record(now, velocity, angle)
		return true
	}

	if now.Sub(t.lastTime) < t.interval {
		return false
	}
	if math.Abs(velocity-t.lastV) <= t.velocityEps && math.Abs(angle-t.lastA) <= t.angleEps {
		return false
	}

	t.record(now, velocity, angle)
	return true
}

// Reset clears the baseline so the next command passes unconditionally.
// Used when manual control is re-enabled after a pause.
func (t *Throttle) Reset() {
	t.mu.Lock()
	t.sent = false
	t.mu.Unlock()
}

func (t *Throttle) record(now time.Time, velocity, angle float64) {
	t.lastTime = now
	t.lastV = velocity
	t.lastA = angle
	t.sent = true
}
