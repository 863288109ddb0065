// Package metrics exposes Prometheus instruments for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Bridge-wide instruments. Labels: op is the channel operation name
// (move, dock, locate, manual_control, water_preset, state).
var (
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teleop_commands_total",
		Help: "Robot commands attempted, by operation.",
	}, []string{"op"})

	CommandFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "teleop_command_failures_total",
		Help: "Robot commands that failed (transport error, timeout or non-200).",
	}, []string{"op"})

	ThrottleSkips = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "teleop_throttle_skips_total",
		Help: "Joystick samples suppressed by the send-interval/epsilon throttle.",
	})

	PollFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "teleop_poll_failures_total",
		Help: "Periodic state polls where every fetch came back empty.",
	})

	BatteryLevel = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "teleop_battery_level_percent",
		Help: "Last known robot battery level.",
	}, []string{"robot"})
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		CommandFailures,
		ThrottleSkips,
		PollFailures,
		BatteryLevel,
	)
}
