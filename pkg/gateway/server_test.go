package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"valetudo-teleop/pkg/poll"
	"valetudo-teleop/pkg/teleop"
	"valetudo-teleop/pkg/valetudo"
)

// stubVacuum fakes just enough of the Valetudo API for the gateway.
// Manual-control PUTs are recorded in arrival order so tests can
// check both the vectors sent and the ordering of move vs. enable
// and disable.
type stubVacuum struct {
	fail        bool
	waterPreset string

	mu      sync.Mutex
	moves   [][2]float64
	actions []string
}

func (v *stubVacuum) recordedMoves() [][2]float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][2]float64(nil), v.moves...)
}

func (v *stubVacuum) recordedActions() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.actions...)
}

func (v *stubVacuum) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/state"):
			json.NewEncoder(w).Encode(map[string]any{
				"attributes": []map[string]any{
					{"__class": "BatteryStateAttribute", "level": 64},
				},
			})
		case strings.HasSuffix(r.URL.Path, "WaterUsageControlCapability") && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"currentPreset": map[string]any{"name": v.waterPreset},
			})
		case strings.HasSuffix(r.URL.Path, "/preset"):
			var req struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			v.waterPreset = req.Name
		case strings.HasSuffix(r.URL.Path, "HighResolutionManualControlCapability") && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"enabled": true})
		case strings.HasSuffix(r.URL.Path, "HighResolutionManualControlCapability") && r.Method == http.MethodPut:
			var req struct {
				Action string `json:"action"`
				Vector struct {
					Velocity float64 `json:"velocity"`
					Angle    float64 `json:"angle"`
				} `json:"vector"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			v.mu.Lock()
			v.actions = append(v.actions, req.Action)
			if req.Action == "move" {
				v.moves = append(v.moves, [2]float64{req.Vector.Velocity, req.Vector.Angle})
			}
			v.mu.Unlock()
		}
	})
}

func newTestServer(t *testing.T, vacuum *stubVacuum) (*Server, *teleop.Session) {
	t.Helper()
	srv := httptest.NewServer(vacuum.handler())
	t.Cleanup(srv.Close)

	sess := teleop.NewSession(teleop.SessionConfig{
		ID:    "vac-1",
		Name:  "Living Room",
		Robot: valetudo.Config{BaseURL: srv.URL, Timeout: 2 * time.Second},
	})
	registry := teleop.NewRegistry()
	registry.Add(sess)

	gw := NewServer(":0", registry)
	return gw, sess
}

func doJSON(t *testing.T, gw *Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := gw.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if len(data) > 0 && data[0] == '{' {
		json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}

func TestGateway_ListRobots(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{waterPreset: "off"})

	req := httptest.NewRequest(http.MethodGet, "/api/robots", nil)
	resp, err := gw.App().Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var robots []robotInfo
	if err := json.NewDecoder(resp.Body).Decode(&robots); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(robots) != 1 || robots[0].ID != "vac-1" || robots[0].Name != "Living Room" {
		t.Errorf("robots = %+v", robots)
	}
}

func TestGateway_UnknownRobot(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{})

	resp, _ := doJSON(t, gw, http.MethodPost, "/api/robots/nope/dock", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGateway_Dock(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{})

	resp, body := doJSON(t, gw, http.MethodPost, "/api/robots/vac-1/dock", "")
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Errorf("status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestGateway_DockFailsSoft(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{fail: true})

	resp, body := doJSON(t, gw, http.MethodPost, "/api/robots/vac-1/dock", "")
	if resp.StatusCode != http.StatusBadGateway || body["ok"] != false {
		t.Errorf("status = %d, body = %v, want 502 and ok=false", resp.StatusCode, body)
	}
}

func TestGateway_WaterPresetRoundTrip(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{waterPreset: "off"})

	resp, body := doJSON(t, gw, http.MethodPut, "/api/robots/vac-1/water-preset", `{"preset":"eco"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, gw, http.MethodGet, "/api/robots/vac-1/water-preset", "")
	if resp.StatusCode != http.StatusOK || body["preset"] != "eco" {
		t.Errorf("GET status = %d, body = %v, want preset eco", resp.StatusCode, body)
	}
}

func TestGateway_WaterPresetDefaultsToOff(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{waterPreset: ""})

	resp, body := doJSON(t, gw, http.MethodGet, "/api/robots/vac-1/water-preset", "")
	if resp.StatusCode != http.StatusOK || body["preset"] != "off" {
		t.Errorf("status = %d, body = %v, want preset off", resp.StatusCode, body)
	}
}

func TestGateway_SetSpeed(t *testing.T) {
	gw, sess := newTestServer(t, &stubVacuum{})

	resp, _ := doJSON(t, gw, http.MethodPut, "/api/robots/vac-1/speed", `{"index":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if sess.SpeedIndex() != 2 {
		t.Errorf("speed index = %d, want 2", sess.SpeedIndex())
	}

	resp, _ = doJSON(t, gw, http.MethodPut, "/api/robots/vac-1/speed", `{"index":7}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range index: status = %d, want 400", resp.StatusCode)
	}
}

func TestGateway_Motion(t *testing.T) {
	gw, sess := newTestServer(t, &stubVacuum{})

	resp, body := doJSON(t, gw, http.MethodPost, "/api/robots/vac-1/motion", `{"velocity":0.5,"angle":45}`)
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}
	v, a, _, ok := sess.Channel().LastSent()
	if !ok || v != 0.5 || a != 45 {
		t.Errorf("LastSent = (%v, %v, %v), want (0.5, 45, true)", v, a, ok)
	}
}

func TestGateway_ManualControl(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{})

	resp, body := doJSON(t, gw, http.MethodGet, "/api/robots/vac-1/manual-control", "")
	if resp.StatusCode != http.StatusOK || body["enabled"] != true {
		t.Errorf("GET status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, gw, http.MethodPut, "/api/robots/vac-1/manual-control", `{"enable":true}`)
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Errorf("PUT status = %d, body = %v", resp.StatusCode, body)
	}
}

// Disabling manual control must halt the robot first: once control is
// off the firmware rejects move commands, so a stop sent afterwards
// would be a no-op.
func TestGateway_DisableManualControlStopsFirst(t *testing.T) {
	vacuum := &stubVacuum{}
	gw, _ := newTestServer(t, vacuum)

	resp, body := doJSON(t, gw, http.MethodPut, "/api/robots/vac-1/manual-control", `{"enable":false}`)
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}

	actions := vacuum.recordedActions()
	if len(actions) != 2 || actions[0] != "move" || actions[1] != "disable" {
		t.Fatalf("actions = %v, want [move disable]", actions)
	}
	moves := vacuum.recordedMoves()
	if len(moves) != 1 || moves[0] != [2]float64{0, 0} {
		t.Errorf("moves = %v, want one (0, 0) stop", moves)
	}
}

func TestGateway_Status(t *testing.T) {
	vacuum := &stubVacuum{}
	gw, sess := newTestServer(t, vacuum)

	p := poll.New(sess.ID(), sess.Channel(), time.Minute)
	p.Refresh(context.Background())
	gw.RegisterPoller(sess.ID(), p)

	resp, body := doJSON(t, gw, http.MethodGet, "/api/robots/vac-1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["battery"] != float64(64) {
		t.Errorf("battery = %v, want 64", body["battery"])
	}
	if body["reachable"] != true {
		t.Errorf("reachable = %v, want true", body["reachable"])
	}
}

func TestGateway_Health(t *testing.T) {
	gw, _ := newTestServer(t, &stubVacuum{})

	resp, body := doJSON(t, gw, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("status = %d, body = %v", resp.StatusCode, body)
	}
}
