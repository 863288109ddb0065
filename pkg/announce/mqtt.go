// Package announce publishes poll snapshots over MQTT so
// home-automation hosts can consume the bridge without polling it.
// Discovery configs follow the Home Assistant MQTT discovery
// convention, which makes the battery sensor and manual-control
// switch appear automatically.
package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"valetudo-teleop/internal/log"
	"valetudo-teleop/pkg/poll"
)

// Options configures the MQTT publisher.
type Options struct {
	// BrokerURL, e.g. "tcp://127.0.0.1:1883".
	BrokerURL string

	// ClientID for the broker session. Defaults to "valetudo-teleop".
	ClientID string

	// TopicPrefix for all published topics. Defaults to
	// "valetudo-teleop".
	TopicPrefix string

	// DiscoveryPrefix for Home Assistant discovery configs.
	// Defaults to "homeassistant".
	DiscoveryPrefix string

	Username string
	Password string
}

// CommandHandler reacts to a manual-control command arriving over
// MQTT for the given robot.
type CommandHandler func(robotID string, enable bool)

// Publisher bridges poll snapshots to an MQTT broker.
type Publisher struct {
	opts   Options
	client mqtt.Client
	onCmd  CommandHandler
}

// NewPublisher prepares a publisher; Connect must be called before use.
func NewPublisher(opts Options, onCmd CommandHandler) *Publisher {
	if opts.ClientID == "" {
		opts.ClientID = "valetudo-teleop"
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "valetudo-teleop"
	}
	if opts.DiscoveryPrefix == "" {
		opts.DiscoveryPrefix = "homeassistant"
	}
	return &Publisher{opts: opts, onCmd: onCmd}
}

// Connect dials the broker with auto-reconnect and retry enabled.
func (p *Publisher) Connect(ctx context.Context) error {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(p.opts.BrokerURL).
		SetClientID(p.opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if p.opts.Username != "" {
		clientOpts.SetUsername(p.opts.Username)
		clientOpts.SetPassword(p.opts.Password)
	}
	clientOpts.OnConnect = func(mqtt.Client) {
		log.Info("connected to MQTT broker", "broker", p.opts.BrokerURL)
		p.subscribeCommands()
	}
	clientOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("MQTT connection lost", "err", err)
	}

	p.client = mqtt.NewClient(clientOpts)
	token := p.client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connecting to MQTT broker: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}

// stateTopic is where a robot's retained snapshot lives.
func (p *Publisher) stateTopic(robotID string) string {
	return fmt.Sprintf("%s/%s/state", p.opts.TopicPrefix, robotID)
}

// commandTopic receives manual-control toggles from the outside.
func (p *Publisher) commandTopic() string {
	return fmt.Sprintf("%s/+/set/manual_control", p.opts.TopicPrefix)
}

// PublishSnapshot publishes a retained state document for the robot.
// Intended as a poll.Subscriber: poller.Subscribe(func(s poll.Snapshot)
// { pub.PublishSnapshot(s) }).
func (p *Publisher) PublishSnapshot(snap poll.Snapshot) {
	if p.client == nil || !p.client.IsConnectionOpen() {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Error("marshaling snapshot failed", "err", err)
		return
	}
	p.client.Publish(p.stateTopic(snap.RobotID), 0, true, payload)
}

// PublishDiscovery announces the robot's entities to Home Assistant.
func (p *Publisher) PublishDiscovery(robotID, name string) {
	if p.client == nil {
		return
	}
	stateTopic := p.stateTopic(robotID)

	battery := map[string]any{
		"name":                fmt.Sprintf("%s Battery", name),
		"unique_id":           fmt.Sprintf("%s_battery", robotID),
		"state_topic":         stateTopic,
		"device_class":        "battery",
		"unit_of_measurement": "%",
		"value_template":      "{{ value_json.battery }}",
	}
	p.publishConfig("sensor", robotID, "battery", battery)

	sw := map[string]any{
		"name":           fmt.Sprintf("%s Manual Control", name),
		"unique_id":      fmt.Sprintf("%s_manual_control", robotID),
		"state_topic":    stateTopic,
		"command_topic":  fmt.Sprintf("%s/%s/set/manual_control", p.opts.TopicPrefix, robotID),
		"value_template": "{{ 'ON' if value_json.manual_control else 'OFF' }}",
		"payload_on":     "ON",
		"payload_off":    "OFF",
		"icon":           "mdi:gamepad-variant",
	}
	p.publishConfig("switch", robotID, "manual_control", sw)
}

func (p *Publisher) publishConfig(component, robotID, object string, cfg map[string]any) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		log.Error("marshaling discovery config failed", "err", err)
		return
	}
	topic := fmt.Sprintf("%s/%s/%s_%s/config", p.opts.DiscoveryPrefix, component, robotID, object)
	p.client.Publish(topic, 0, true, payload)
}

// subscribeCommands listens for manual-control toggles. Topic layout:
// <prefix>/<robot-id>/set/manual_control with payload ON/OFF.
func (p *Publisher) subscribeCommands() {
	if p.onCmd == nil {
		return
	}
	token := p.client.Subscribe(p.commandTopic(), 0, func(_ mqtt.Client, msg mqtt.Message) {
		robotID, ok := robotIDFromTopic(msg.Topic())
		if !ok {
			return
		}
		switch string(msg.Payload()) {
		case "ON", "on", "true", "1":
			p.onCmd(robotID, true)
		case "OFF", "off", "false", "0":
			p.onCmd(robotID, false)
		default:
			log.Warn("unrecognized manual control payload", "payload", string(msg.Payload()))
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		log.Error("subscribing to command topic failed", "err", err)
	}
}

// robotIDFromTopic extracts the robot id from
// <prefix>/<robot-id>/set/manual_control.
func robotIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return "", false
	}
	return parts[len(parts)-3], true
}
