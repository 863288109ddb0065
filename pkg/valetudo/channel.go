// Package valetudo is a client for the Valetudo robot vacuum HTTP API.
//
// The Channel is deliberately fail-soft: every runtime operation
// converts transport faults, timeouts and unexpected statuses into a
// false/absent result after logging. A joystick session must never
// crash because the vacuum drove under a couch and dropped off WiFi.
// The one exception is Validate, which the setup flow uses and which
// needs to distinguish bad credentials from an unreachable host.
package valetudo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"valetudo-teleop/internal/httpc"
	"valetudo-teleop/internal/log"
	"valetudo-teleop/internal/metrics"
)

// Valetudo REST endpoints, relative to the base URL.
const (
	pathState         = "/api/v2/robot/state"
	pathManualControl = "/api/v2/robot/capabilities/HighResolutionManualControlCapability"
	pathBasicControl  = "/api/v2/robot/capabilities/BasicControlCapability"
	pathLocate        = "/api/v2/robot/capabilities/LocateCapability"
	pathWaterUsage    = "/api/v2/robot/capabilities/WaterUsageControlCapability"
	pathWaterPreset   = pathWaterUsage + "/preset"
)

// Setup-time probe errors. Runtime operations never return these;
// they are fail-soft by contract.
var (
	ErrCannotConnect = errors.New("cannot connect to robot")
	ErrInvalidAuth   = errors.New("invalid credentials")
)

// Channel is a stateful client for one robot. It remembers the last
// successfully sent motion command and whether manual control was
// enabled through it. That bookkeeping is an optimization hint for
// callers, not a correctness guarantee: concurrent senders race
// last-writer-wins and that is acceptable.
type Channel struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	log      *slog.Logger

	mu            sync.Mutex
	lastVelocity  float64
	lastAngle     float64
	lastSendTime  time.Time
	sentOnce      bool
	manualControl bool
}

// NewChannel builds a channel from the given config.
func NewChannel(cfg Config) *Channel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := NormalizeBaseURL(cfg.BaseURL)
	return &Channel{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http:     httpc.NewClient(timeout),
		log:      log.With("robot", base),
	}
}

// BaseURL returns the normalized robot address.
func (c *Channel) BaseURL() string {
	return c.baseURL
}

// SendMotion issues a move command. Velocity is clamped to [-1, 1]
// and rounded to 3 decimals, angle to 1 decimal, before sending.
// Returns true only on HTTP 200; on success the rounded pair and the
// send time are recorded as "last sent". The channel does not decide
// whether a send is worth making - that throttling is the caller's
// job (see pkg/teleop).
func (c *Channel) SendMotion(ctx context.Context, velocity, angle float64) bool {
	velocity = roundTo(clamp(velocity, -1, 1), 3)
	angle = roundTo(angle, 1)

	payload := moveRequest{
		Action: "move",
		Vector: moveVector{Velocity: velocity, Angle: angle},
	}
	ok := c.put(ctx, "move", pathManualControl, payload)
	if ok {
		c.mu.Lock()
		c.lastVelocity = velocity
		c.lastAngle = angle
		c.lastSendTime = time.Now()
		c.sentOnce = true
		c.mu.Unlock()
	}
	return ok
}

// LastSent reports the most recent successfully transmitted motion
// command. ok is false until the first successful send.
func (c *Channel) LastSent() (velocity, angle float64, at time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastVelocity, c.lastAngle, c.lastSendTime, c.sentOnce
}

// RobotState fetches and parses the robot state document.
// Returns nil on any failure.
func (c *Channel) RobotState(ctx context.Context) *State {
	data, ok := c.get(ctx, "state", pathState)
	if !ok {
		return nil
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		c.log.Warn("malformed robot state document", "err", err)
		return nil
	}
	return &state
}

// BatteryLevel derives the battery charge from the state document.
func (c *Channel) BatteryLevel(ctx context.Context) (int, bool) {
	state := c.RobotState(ctx)
	if state == nil {
		return 0, false
	}
	return state.BatteryLevel()
}

// ManualControlState reports whether the robot currently has manual
// control enabled.
func (c *Channel) ManualControlState(ctx context.Context) (bool, bool) {
	data, ok := c.get(ctx, "manual_control", pathManualControl)
	if !ok {
		return false, false
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		c.log.Warn("malformed manual control document", "err", err)
		return false, false
	}
	return body.Enabled, true
}

// SetManualControl enables or disables teleoperation on the robot.
func (c *Channel) SetManualControl(ctx context.Context, enable bool) bool {
	action := "disable"
	if enable {
		action = "enable"
	}
	ok := c.put(ctx, "manual_control", pathManualControl, actionRequest{Action: action})
	if ok {
		c.mu.Lock()
		c.manualControl = enable
		c.mu.Unlock()
	}
	return ok
}

// ManualControlEnabled reports the last state set through this
// channel. The robot is the source of truth; use ManualControlState
// to ask it.
func (c *Channel) ManualControlEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manualControl
}

// Dock sends the robot home.
func (c *Channel) Dock(ctx context.Context) bool {
	return c.put(ctx, "dock", pathBasicControl, actionRequest{Action: "home"})
}

// Locate plays the robot's locate sound.
func (c *Channel) Locate(ctx context.Context) bool {
	return c.put(ctx, "locate", pathLocate, actionRequest{Action: "locate"})
}

// WaterUsagePreset returns the current mopping water preset name.
func (c *Channel) WaterUsagePreset(ctx context.Context) (string, bool) {
	data, ok := c.get(ctx, "water_preset", pathWaterUsage)
	if !ok {
		return "", false
	}
	var body struct {
		CurrentPreset struct {
			Name string `json:"name"`
		} `json:"currentPreset"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		c.log.Warn("malformed water usage document", "err", err)
		return "", false
	}
	return body.CurrentPreset.Name, true
}

// SetWaterUsagePreset selects a mopping water preset by name.
func (c *Channel) SetWaterUsagePreset(ctx context.Context, name string) bool {
	return c.put(ctx, "water_preset", pathWaterPreset, presetRequest{Name: name})
}

// Validate probes the robot during setup and returns a display title
// derived from the robot information attribute. Unlike the runtime
// operations this returns errors: the setup flow needs to tell bad
// credentials (ErrInvalidAuth) apart from an unreachable host
// (ErrCannotConnect).
func (c *Channel) Validate(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathState, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrInvalidAuth
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", ErrCannotConnect, resp.StatusCode)
	}

	var state State
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&state); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotConnect, err)
	}
	if info, ok := state.InformationAttribute(); ok {
		return info.Manufacturer + " " + info.Model, nil
	}
	return "Valetudo Robot", nil
}

// Wire payloads.

type moveVector struct {
	Velocity float64 `json:"velocity"`
	Angle    float64 `json:"angle"`
}

type moveRequest struct {
	Action string     `json:"action"`
	Vector moveVector `json:"vector"`
}

type actionRequest struct {
	Action string `json:"action"`
}

type presetRequest struct {
	Name string `json:"name"`
}

// maxBodySize bounds response reads; state documents are a few KB.
const maxBodySize = 1 << 20

// get fetches a path, absorbing every failure into (nil, false).
func (c *Channel) get(ctx context.Context, op, path string) ([]byte, bool) {
	metrics.CommandsTotal.WithLabelValues(op).Inc()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return c.fail(op, "building request failed", err), false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(op, "request failed", err), false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("unexpected status", "op", op, "status", resp.StatusCode)
		metrics.CommandFailures.WithLabelValues(op).Inc()
		return nil, false
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return c.fail(op, "reading response failed", err), false
	}
	return data, true
}

// put sends a JSON payload, absorbing every failure into false.
func (c *Channel) put(ctx context.Context, op, path string, payload any) bool {
	metrics.CommandsTotal.WithLabelValues(op).Inc()

	body, err := json.Marshal(payload)
	if err != nil {
		c.fail(op, "marshaling payload failed", err)
		return false
	}
	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		c.fail(op, "building request failed", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.fail(op, "request failed", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("unexpected status", "op", op, "status", resp.StatusCode)
		metrics.CommandFailures.WithLabelValues(op).Inc()
		return false
	}
	return true
}

func (c *Channel) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// fail logs a transport-level failure and bumps the failure counter.
// Always returns nil so get call sites can return it directly.
func (c *Channel) fail(op, msg string, err error) []byte {
	c.log.Error(msg, "op", op, "err", err)
	metrics.CommandFailures.WithLabelValues(op).Inc()
	return nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
