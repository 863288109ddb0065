// teleop reads a local gamepad and streams joystick samples to a
// valetudo-bridge over WebSocket. Buttons map to dock and locate.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/splace/joysticks"

	"valetudo-teleop/internal/config"
	"valetudo-teleop/internal/httpc"
	"valetudo-teleop/internal/log"
	"valetudo-teleop/pkg/protocol"
)

func main() {
	bridge := flag.String("bridge", config.Env("BRIDGE_ADDR", "127.0.0.1:8600"), "Bridge host:port")
	robotID := flag.String("robot", "", "Robot id (defaults to the bridge's only robot)")
	device := flag.Int("device", 1, "Joystick device index")
	hat := flag.Int("hat", 1, "Hat/stick index used for motion")
	dockButton := flag.Int("dock-button", 2, "Button that docks the robot")
	locateButton := flag.Int("locate-button", 3, "Button that plays the locate sound")
	level := flag.String("log-level", config.Env("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	log.Init(*level)

	httpClient := httpc.NewClient(5 * time.Second)

	id := *robotID
	if id == "" {
		var err error
		id, err = defaultRobotID(httpClient, *bridge)
		if err != nil {
			log.Error("could not determine robot id", "err", err)
			os.Exit(1)
		}
	}

	js := joysticks.Connect(*device)
	if js == nil {
		log.Error("no joystick found", "device", *device)
		os.Exit(1)
	}
	if !js.HatExists(uint8(*hat)) {
		log.Error("joystick has no such hat", "hat", *hat)
		os.Exit(1)
	}
	log.Info("joystick connected", "device", *device, "hat", *hat)

	wsURL := fmt.Sprintf("ws://%s/ws/joystick/%s", *bridge, id)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Error("connecting to bridge failed", "url", wsURL, "err", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Info("streaming to bridge", "url", wsURL)

	// Log acks from the bridge; a failed send shows up here.
	go readAcks(conn)

	move := js.OnMove(uint8(*hat))
	dock := js.OnClose(uint8(*dockButton))
	locate := js.OnClose(uint8(*locateButton))
	go js.ParcelOutEvents()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// The bridge drops silent connections; an idle gamepad still has
	// to show signs of life.
	keepalive := time.NewTicker(20 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case ev := <-move:
			coords, ok := ev.(joysticks.CoordsEvent)
			if !ok {
				continue
			}
			// HID y grows downward; the robot expects up = forward.
			sendSample(conn, float64(coords.X), -float64(coords.Y))

		case <-dock:
			postCommand(httpClient, *bridge, id, "dock")

		case <-locate:
			postCommand(httpClient, *bridge, id, "locate")

		case <-keepalive.C:
			sendPing(conn)

		case <-sigChan:
			// Final stop so the robot does not keep driving.
			sendSample(conn, 0, 0)
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			log.Info("goodbye")
			return
		}
	}
}

func sendSample(conn *websocket.Conn, x, y float64) {
	msg, err := protocol.NewMessage(protocol.TypeSample, protocol.SampleData{X: x, Y: y})
	if err != nil {
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("sample write failed", "err", err)
	}
}

func sendPing(conn *websocket.Conn) {
	msg, err := protocol.NewMessage(protocol.TypePing, nil)
	if err != nil {
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("keepalive write failed", "err", err)
	}
}

func readAcks(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.ParseMessage(raw)
		if err != nil || msg.Type != protocol.TypeAck {
			continue
		}
		var ack protocol.AckData
		if err := msg.ParseData(&ack); err == nil && !ack.OK {
			log.Warn("bridge reported failure", "reason", ack.Error)
		}
	}
}

func postCommand(client *http.Client, bridge, robotID, cmd string) {
	url := fmt.Sprintf("http://%s/api/robots/%s/%s", bridge, robotID, cmd)
	resp, err := client.Post(url, "application/json", nil)
	if err != nil {
		log.Warn("command failed", "cmd", cmd, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Warn("command rejected", "cmd", cmd, "status", resp.StatusCode)
	}
}

// defaultRobotID asks the bridge for its robot list and picks the
// single entry.
func defaultRobotID(client *http.Client, bridge string) (string, error) {
	resp, err := client.Get(fmt.Sprintf("http://%s/api/robots", bridge))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var robots []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&robots); err != nil {
		return "", err
	}
	if len(robots) != 1 {
		return "", fmt.Errorf("bridge has %d robots, pass -robot", len(robots))
	}
	return robots[0].ID, nil
}
