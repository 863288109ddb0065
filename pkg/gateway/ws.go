package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/websocket/v2"

	"valetudo-teleop/internal/log"
	"valetudo-teleop/pkg/protocol"
	"valetudo-teleop/pkg/teleop"
)

// joystickReadWait is how long the bridge tolerates silence before it
// treats the client as gone and stops the robot. Any inbound frame
// refreshes it; an idle CLI keeps the connection alive with pings.
// A var so tests can shorten it.
var joystickReadWait = 60 * time.Second

// maxJoystickFrame bounds inbound joystick frames.
const maxJoystickFrame = 1024

// handleJoystickWS consumes a joystick sample stream for one robot.
// One connection drives one session; when the client goes away the
// robot gets a final stop so it never keeps driving on a stale
// command.
func (s *Server) handleJoystickWS(c *websocket.Conn) {
	robotID := c.Params("id")
	sess, ok := s.registry.Get(robotID)
	if !ok {
		s.writeAck(c, false, "unknown robot")
		c.Close()
		return
	}

	logger := log.With("robot", robotID)
	logger.Info("joystick client connected")
	defer func() {
		sess.Stop(context.Background())
		logger.Info("joystick client disconnected")
	}()

	// A silently dead client must not hold the session: without a
	// deadline the robot would keep its last command until the OS
	// notices the peer is gone.
	c.SetReadLimit(maxJoystickFrame)
	c.SetReadDeadline(time.Now().Add(joystickReadWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(joystickReadWait))
		return nil
	})

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}
		c.SetReadDeadline(time.Now().Add(joystickReadWait))
		msg, err := protocol.ParseMessage(raw)
		if err != nil {
			s.writeAck(c, false, "malformed message")
			continue
		}
		s.dispatch(c, sess, msg, logger)
	}
}

func (s *Server) dispatch(c *websocket.Conn, sess *teleop.Session, msg *protocol.Message, logger *slog.Logger) {
	ctx := context.Background()

	switch msg.Type {
	case protocol.TypeSample:
		var sample protocol.SampleData
		if err := msg.ParseData(&sample); err != nil {
			s.writeAck(c, false, "malformed sample")
			return
		}
		if !sess.HandleSample(ctx, clampAxis(sample.X), clampAxis(sample.Y)) {
			// Fail-soft: the client learns the send failed, the
			// stream keeps going.
			s.writeAck(c, false, "send failed")
		}

	case protocol.TypeSpeed:
		var speed protocol.SpeedData
		if err := msg.ParseData(&speed); err != nil {
			s.writeAck(c, false, "malformed speed")
			return
		}
		if err := sess.SetSpeedIndex(speed.Index); err != nil {
			s.writeAck(c, false, err.Error())
			return
		}
		s.writeAck(c, true, "")

	case protocol.TypePing:
		if reply, err := protocol.NewMessage(protocol.TypePong, nil); err == nil {
			data, _ := reply.Bytes()
			c.WriteMessage(websocket.TextMessage, data)
		}

	default:
		logger.Warn("unhandled message type", "type", msg.Type)
	}
}

func (s *Server) writeAck(c *websocket.Conn, ok bool, errMsg string) {
	msg, err := protocol.NewMessage(protocol.TypeAck, protocol.AckData{OK: ok, Error: errMsg})
	if err != nil {
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	c.WriteMessage(websocket.TextMessage, data)
}

// clampAxis bounds a client-supplied axis value to [-1, 1].
func clampAxis(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
