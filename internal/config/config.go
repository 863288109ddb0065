// Package config provides configuration helpers for valetudo-teleop commands.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Default bridge configuration.
const (
	DefaultListenAddr = ":8600"
	DefaultMQTTPort   = "1883"
)

// Env returns the value of key, falling back to def when unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvBool returns the boolean value of key, falling back to def when
// unset or unparseable.
func EnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// RobotURLRequired returns the robot base URL from ROBOT_URL.
// Exits with usage help when not set.
func RobotURLRequired() string {
	url := os.Getenv("ROBOT_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: ROBOT_URL environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: ROBOT_URL=192.168.1.42 go run ./cmd/...")
		os.Exit(1)
	}
	return url
}

// MQTTBrokerURL builds a tcp:// broker URL from host and port.
func MQTTBrokerURL(host, port string) string {
	if port == "" {
		port = DefaultMQTTPort
	}
	return fmt.Sprintf("tcp://%s:%s", host, port)
}
