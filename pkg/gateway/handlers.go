package gateway

import (
	"github.com/gofiber/fiber/v2"

	"valetudo-teleop/pkg/teleop"
)

// robotInfo is the list entry for GET /api/robots.
type robotInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleListRobots(c *fiber.Ctx) error {
	sessions := s.registry.List()
	out := make([]robotInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, robotInfo{ID: sess.ID(), Name: sess.Name()})
	}
	return c.JSON(out)
}

// session resolves the :id path parameter, replying 404 when unknown.
func (s *Server) session(c *fiber.Ctx) (*teleop.Session, error) {
	sess, ok := s.registry.Get(c.Params("id"))
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "unknown robot",
		})
	}
	return sess, nil
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	p, ok := s.poller(sess.ID())
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no poller for robot",
		})
	}
	return c.JSON(p.Snapshot())
}

// commandResult converts a channel's fail-soft boolean into an HTTP
// reply: 200 on success, 502 when the robot refused or was
// unreachable.
func commandResult(c *fiber.Ctx, ok bool) error {
	if !ok {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"ok": false})
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleDock(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	return commandResult(c, sess.Channel().Dock(c.Context()))
}

func (s *Server) handleLocate(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	return commandResult(c, sess.Channel().Locate(c.Context()))
}

func (s *Server) handleGetManualControl(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	enabled, ok := sess.Channel().ManualControlState(c.Context())
	if !ok {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "robot unreachable",
		})
	}
	return c.JSON(fiber.Map{"enabled": enabled})
}

func (s *Server) handleSetManualControl(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	var req struct {
		Enable bool `json:"enable"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	if req.Enable {
		return commandResult(c, sess.Channel().SetManualControl(c.Context(), true))
	}
	// Halt the robot while manual control still accepts move commands;
	// once it is disabled the firmware rejects them.
	sess.Stop(c.Context())
	return commandResult(c, sess.Channel().SetManualControl(c.Context(), false))
}

func (s *Server) handleGetWaterPreset(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	preset, ok := sess.Channel().WaterUsagePreset(c.Context())
	if !ok {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "robot unreachable",
		})
	}
	if preset == "" {
		preset = "off"
	}
	return c.JSON(fiber.Map{"preset": preset})
}

func (s *Server) handleSetWaterPreset(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	var req struct {
		Preset string `json:"preset"`
	}
	if err := c.BodyParser(&req); err != nil || req.Preset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	return commandResult(c, sess.Channel().SetWaterUsagePreset(c.Context(), req.Preset))
}

func (s *Server) handleSetSpeed(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	if err := sess.SetSpeedIndex(req.Index); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"index": sess.SpeedIndex()})
}

// handleMotion is the raw service call: a pre-mapped (velocity,
// angle) pair sent straight to the robot, bypassing mapper and
// throttle.
func (s *Server) handleMotion(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if sess == nil {
		return err
	}
	var req struct {
		Velocity float64 `json:"velocity"`
		Angle    float64 `json:"angle"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	return commandResult(c, sess.Channel().SendMotion(c.Context(), req.Velocity, req.Angle))
}
