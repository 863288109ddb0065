// Package poll periodically refreshes robot state and fans the result
// out to subscribers. Each poller owns one channel's polling cadence;
// consumers (gateway, MQTT announcer) register callbacks instead of
// talking to the robot themselves.
package poll

import (
	"context"
	"sync"
	"time"

	"valetudo-teleop/internal/log"
	"valetudo-teleop/internal/metrics"
	"valetudo-teleop/pkg/valetudo"
)

// DefaultInterval is the host-driven poll cadence.
const DefaultInterval = 30 * time.Second

// Snapshot is the last known robot state. Fields stay at their
// previous value when an individual fetch fails, so a single dropped
// poll does not blank the UI.
type Snapshot struct {
	RobotID       string    `json:"robot_id"`
	Battery       *int      `json:"battery,omitempty"`
	ManualControl *bool     `json:"manual_control,omitempty"`
	Status        string    `json:"status,omitempty"`
	Reachable     bool      `json:"reachable"`
	Updated       time.Time `json:"updated"`
}

// Subscriber receives a snapshot after every poll.
type Subscriber func(Snapshot)

// Poller owns one robot's refresh loop.
type Poller struct {
	robotID  string
	channel  *valetudo.Channel
	interval time.Duration

	mu       sync.Mutex
	snapshot Snapshot
	subs     map[int]Subscriber
	nextSub  int
}

// New builds a poller for the given channel. interval <= 0 selects
// the default 30 s cadence.
func New(robotID string, channel *valetudo.Channel, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		robotID:  robotID,
		channel:  channel,
		interval: interval,
		snapshot: Snapshot{RobotID: robotID},
		subs:     make(map[int]Subscriber),
	}
}

// Subscribe registers a callback and returns an unsubscribe func.
// The callback is invoked synchronously from the poll loop; slow
// subscribers should hand off to their own goroutine.
func (p *Poller) Subscribe(fn Subscriber) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Snapshot returns the latest snapshot.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Run polls until the context is canceled. An immediate first poll
// primes the snapshot before the first tick.
func (p *Poller) Run(ctx context.Context) {
	p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh performs one poll cycle and notifies subscribers.
// Individual fetch failures keep the previous value; a cycle where
// nothing could be fetched marks the robot unreachable.
func (p *Poller) Refresh(ctx context.Context) Snapshot {
	state := p.channel.RobotState(ctx)
	manual, manualOK := p.channel.ManualControlState(ctx)

	p.mu.Lock()
	snap := p.snapshot

	anyOK := false
	if state != nil {
		anyOK = true
		if level, ok := state.BatteryLevel(); ok {
			snap.Battery = &level
			metrics.BatteryLevel.WithLabelValues(p.robotID).Set(float64(level))
		}
		if status, ok := state.StatusValue(); ok {
			snap.Status = status
		}
	}
	if manualOK {
		anyOK = true
		snap.ManualControl = &manual
	}

	snap.Reachable = anyOK
	snap.Updated = time.Now()
	if !anyOK {
		metrics.PollFailures.Inc()
		log.Warn("poll cycle failed", "robot", p.robotID)
	}

	p.snapshot = snap
	subs := make([]Subscriber, 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}
