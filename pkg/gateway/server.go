// Package gateway exposes the bridge's HTTP and WebSocket surface:
// REST endpoints for the discrete robot operations (dock, locate,
// manual control, presets) and a WebSocket stream for joystick
// samples.
package gateway

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"valetudo-teleop/pkg/hub"
	"valetudo-teleop/pkg/poll"
	"valetudo-teleop/pkg/teleop"
)

// Server is the bridge's HTTP front.
type Server struct {
	app       *fiber.App
	addr      string
	registry  *teleop.Registry
	statusHub *hub.Hub

	mu      sync.RWMutex
	pollers map[string]*poll.Poller
}

// NewServer wires up routes for the given session registry.
func NewServer(addr string, registry *teleop.Registry) *Server {
	s := &Server{
		addr:      addr,
		registry:  registry,
		statusHub: hub.New("status"),
		pollers:   make(map[string]*poll.Poller),
	}

	app := fiber.New(fiber.Config{
		AppName:               "valetudo-teleop",
		DisableStartupMessage: true,
	})

	// CORS so a dashboard served elsewhere can drive the bridge.
	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/robots", s.handleListRobots)
	api.Get("/robots/:id/status", s.handleStatus)
	api.Post("/robots/:id/dock", s.handleDock)
	api.Post("/robots/:id/locate", s.handleLocate)
	api.Get("/robots/:id/manual-control", s.handleGetManualControl)
	api.Put("/robots/:id/manual-control", s.handleSetManualControl)
	api.Get("/robots/:id/water-preset", s.handleGetWaterPreset)
	api.Put("/robots/:id/water-preset", s.handleSetWaterPreset)
	api.Put("/robots/:id/speed", s.handleSetSpeed)
	api.Post("/robots/:id/motion", s.handleMotion)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/joystick/:id", websocket.New(s.handleJoystickWS))
	app.Get("/ws/status", websocket.New(func(c *websocket.Conn) {
		hub.NewClient(s.statusHub, c).Run()
	}))

	s.app = app
	return s
}

// BroadcastSnapshot pushes a poll snapshot to all status observers.
// Intended as a poll.Subscriber.
func (s *Server) BroadcastSnapshot(snap poll.Snapshot) {
	s.statusHub.BroadcastJSON(snap)
}

// RegisterPoller attaches a poller so status requests can serve the
// cached snapshot instead of hitting the robot.
func (s *Server) RegisterPoller(robotID string, p *poll.Poller) {
	s.mu.Lock()
	s.pollers[robotID] = p
	s.mu.Unlock()
}

func (s *Server) poller(robotID string) (*poll.Poller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pollers[robotID]
	return p, ok
}

// Serve starts the status hub and blocks serving HTTP until Shutdown
// is called or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
