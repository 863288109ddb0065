package teleop

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"valetudo-teleop/internal/metrics"
	"valetudo-teleop/pkg/motion"
	"valetudo-teleop/pkg/valetudo"
)

// SessionConfig describes one robot teleoperation session.
type SessionConfig struct {
	// ID identifies the robot instance. Generated when empty.
	ID string

	// Name is a human-readable label for the robot.
	Name string

	// Channel parameters for the robot.
	Robot valetudo.Config

	// Deadzone for the motion mapper. Zero selects the default.
	Deadzone float64

	// Speed presets. Nil selects the defaults.
	Speeds *motion.SpeedLevels

	// Throttle policy. Nil selects the defaults.
	Throttle *Throttle
}

// Session owns everything needed to drive one robot from a joystick:
// the command channel, the speed preset selection and the send
// throttle. One robot, one session, one implicit sequence of
// in-flight requests.
type Session struct {
	id       string
	name     string
	channel  *valetudo.Channel
	throttle *Throttle
	deadzone float64

	mu     sync.Mutex
	speeds *motion.SpeedLevels
}

// NewSession builds a session and its channel from the config.
func NewSession(cfg SessionConfig) *Session {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	deadzone := cfg.Deadzone
	if deadzone <= 0 {
		deadzone = motion.DefaultDeadzone
	}
	speeds := cfg.Speeds
	if speeds == nil {
		speeds = motion.DefaultSpeedLevels()
	}
	throttle := cfg.Throttle
	if throttle == nil {
		throttle = NewThrottle(0, 0, 0)
	}
	return &Session{
		id:       id,
		name:     cfg.Name,
		channel:  valetudo.NewChannel(cfg.Robot),
		throttle: throttle,
		deadzone: deadzone,
		speeds:   speeds,
	}
}

// ID returns the robot instance identifier.
func (s *Session) ID() string { return s.id }

// Name returns the robot's display name.
func (s *Session) Name() string { return s.name }

// Channel exposes the underlying command channel for operations that
// bypass the joystick path (dock, locate, presets, polling).
func (s *Session) Channel() *valetudo.Channel { return s.channel }

// HandleSample maps a joystick sample and forwards the resulting
// command when the throttle lets it through. Returns false only when
// a send was attempted and failed; suppressed samples count as
// success.
func (s *Session) HandleSample(ctx context.Context, x, y float64) bool {
	s.mu.Lock()
	maxSpeed := s.speeds.Current()
	s.mu.Unlock()

	velocity, angle := motion.Compute(x, y, s.deadzone, maxSpeed)
	if !s.throttle.ShouldSend(velocity, angle) {
		metrics.ThrottleSkips.Inc()
		return true
	}
	return s.channel.SendMotion(ctx, velocity, angle)
}

// Stop sends an immediate zero-motion command, bypassing the mapper.
// Called when a joystick client disconnects or manual control is
// switched off.
func (s *Session) Stop(ctx context.Context) bool {
	s.throttle.ShouldSend(0, 0) // keep the baseline consistent
	return s.channel.SendMotion(ctx, 0, 0)
}

// SetSpeedIndex selects one of the three speed presets.
func (s *Session) SetSpeedIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speeds.SetIndex(i)
}

// SpeedIndex returns the selected preset index.
func (s *Session) SpeedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speeds.Index()
}
