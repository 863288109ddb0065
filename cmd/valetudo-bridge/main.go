// valetudo-bridge drives a Valetudo robot vacuum from home-automation
// consumers: a REST/WebSocket gateway for joystick clients, a periodic
// state poller and an optional MQTT announcer.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"valetudo-teleop/internal/config"
	"valetudo-teleop/internal/log"
	"valetudo-teleop/pkg/announce"
	"valetudo-teleop/pkg/gateway"
	"valetudo-teleop/pkg/poll"
	"valetudo-teleop/pkg/teleop"
	"valetudo-teleop/pkg/valetudo"
)

func main() {
	robotURL := flag.String("robot", config.Env("ROBOT_URL", ""), "Robot base URL or host (or set ROBOT_URL)")
	username := flag.String("username", config.Env("ROBOT_USERNAME", ""), "Basic auth username")
	password := flag.String("password", config.Env("ROBOT_PASSWORD", ""), "Basic auth password")
	name := flag.String("name", "", "Robot display name (derived from the robot when empty)")
	listen := flag.String("listen", config.Env("LISTEN_ADDR", config.DefaultListenAddr), "Gateway listen address")
	pollInterval := flag.Duration("poll-interval", poll.DefaultInterval, "State poll cadence")
	mqttBroker := flag.String("mqtt-broker", config.Env("MQTT_BROKER", ""), "MQTT broker URL, empty disables MQTT")
	mqttUser := flag.String("mqtt-username", config.Env("MQTT_USERNAME", ""), "MQTT username")
	mqttPass := flag.String("mqtt-password", config.Env("MQTT_PASSWORD", ""), "MQTT password")
	level := flag.String("log-level", config.Env("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.Parse()

	log.Init(*level)

	if *robotURL == "" {
		*robotURL = config.RobotURLRequired()
	}

	robotCfg := valetudo.Config{
		BaseURL:  *robotURL,
		Username: *username,
		Password: *password,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Probe the robot once so misconfiguration surfaces at startup.
	// An unreachable robot is not fatal - it may simply be docked in
	// a dead WiFi corner - but bad credentials are.
	title := probe(ctx, robotCfg)
	if *name == "" {
		*name = title
	}

	registry := teleop.NewRegistry()
	session := teleop.NewSession(teleop.SessionConfig{
		Name:  *name,
		Robot: robotCfg,
	})
	registry.Add(session)
	log.Info("robot registered", "id", session.ID(), "name", *name, "url", session.Channel().BaseURL())

	poller := poll.New(session.ID(), session.Channel(), *pollInterval)

	if *mqttBroker != "" {
		publisher := announce.NewPublisher(announce.Options{
			BrokerURL: *mqttBroker,
			Username:  *mqttUser,
			Password:  *mqttPass,
		}, func(robotID string, enable bool) {
			sess, ok := registry.Get(robotID)
			if !ok {
				return
			}
			opCtx, opCancel := context.WithTimeout(ctx, 10*time.Second)
			defer opCancel()
			if sess.Channel().SetManualControl(opCtx, enable) && !enable {
				sess.Stop(opCtx)
			}
		})
		if err := publisher.Connect(ctx); err != nil {
			log.Error("MQTT connect failed", "err", err)
			os.Exit(1)
		}
		defer publisher.Close()
		publisher.PublishDiscovery(session.ID(), *name)
		poller.Subscribe(publisher.PublishSnapshot)
	}

	server := gateway.NewServer(*listen, registry)
	server.RegisterPoller(session.ID(), poller)
	poller.Subscribe(server.BroadcastSnapshot)

	go poller.Run(ctx)

	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
		registry.Remove(context.Background(), session.ID())
		server.Shutdown()
	}()

	log.Info("gateway listening", "addr", *listen)
	if err := server.Serve(ctx); err != nil {
		log.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}

// probe validates the robot connection and returns a display title.
func probe(ctx context.Context, cfg valetudo.Config) string {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	channel := valetudo.NewChannel(cfg)
	title, err := channel.Validate(probeCtx)
	switch {
	case err == nil:
		return title
	case errors.Is(err, valetudo.ErrInvalidAuth):
		log.Error("robot rejected the configured credentials", "url", channel.BaseURL())
		os.Exit(1)
	default:
		log.Warn("robot not reachable at startup, continuing", "url", channel.BaseURL(), "err", err)
	}
	return "Valetudo Robot"
}
