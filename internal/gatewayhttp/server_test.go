package gatewayhttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
)

type fakeClient struct{ enabled bool }

func (f *fakeClient) Enable() error                 { f.enabled = true; return nil }
func (f *fakeClient) Disable() error                { f.enabled = false; return nil }
func (f *fakeClient) Blackout() error                { return nil }
func (f *fakeClient) SetChannel(int, uint8) error    { return nil }
func (f *fakeClient) SetChannels(int, []byte) error  { return nil }
func (f *fakeClient) Status() (coordinator.RTStatus, error) {
	return coordinator.RTStatus{Enabled: f.enabled}, nil
}

func testServer() *Server {
	cfg := &gatewayconfig.Config{
		Server: gatewayconfig.ServerConfig{HTTP: ":0"},
		Lights: map[string]map[string][]gatewayconfig.Channel{
			"veg": {"bar1": {{Ch: 1, Color: "red", Name: "red"}}},
		},
	}
	state := coordinator.New(cfg, &fakeClient{}, logger.Nop())
	return NewServer(cfg, state, logger.Nop())
}

func TestHandleAPIRejectsNonPost(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestHandleAPIStatus(t *testing.T) {
	s := testServer()
	body, _ := json.Marshal(map[string]string{"cmd": "status"})
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["type"] != "status" {
		t.Fatalf("expected status type, got %+v", resp)
	}
}

func TestHandleLightGet(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/lights/veg/bar1", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleLightNotFound(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/lights/nope/nothing", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandleEnableRequiresPost(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/enable", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.NumCPU == 0 {
		t.Fatal("expected a non-zero NumCPU")
	}
}

func TestHandleScheduleWithoutScheduler(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleMetricsEndpoint(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
