package gatewaymqtt

import (
	"testing"

	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
)

type fakeClient struct{ enabled bool }

func (f *fakeClient) Enable() error                { f.enabled = true; return nil }
func (f *fakeClient) Disable() error                { f.enabled = false; return nil }
func (f *fakeClient) Blackout() error                { return nil }
func (f *fakeClient) SetChannel(int, uint8) error    { return nil }
func (f *fakeClient) SetChannels(int, []byte) error  { return nil }
func (f *fakeClient) Status() (coordinator.RTStatus, error) {
	return coordinator.RTStatus{Enabled: f.enabled}, nil
}

func testState() *coordinator.State {
	cfg := &gatewayconfig.Config{
		Lights: map[string]map[string][]gatewayconfig.Channel{
			"veg": {"bar1": {{Ch: 1, Color: "red", Name: "red"}}},
		},
	}
	return coordinator.New(cfg, &fakeClient{}, logger.Nop())
}

func TestNewClientDefaultsPrefixAndID(t *testing.T) {
	c := NewClient(&gatewayconfig.MQTTConfig{Broker: "tcp://localhost:1883"}, testState(), logger.Nop())
	if c.cfg.TopicPrefix != "dmx" {
		t.Fatalf("expected default topic prefix dmx, got %q", c.cfg.TopicPrefix)
	}
	if c.cfg.ClientID != "dmx-gateway" {
		t.Fatalf("expected default client id dmx-gateway, got %q", c.cfg.ClientID)
	}
}

func TestNewClientKeepsExplicitPrefixAndID(t *testing.T) {
	cfg := &gatewayconfig.MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "grow1", ClientID: "grow1-gw"}
	c := NewClient(cfg, testState(), logger.Nop())
	if c.cfg.TopicPrefix != "grow1" {
		t.Fatalf("expected explicit topic prefix to survive, got %q", c.cfg.TopicPrefix)
	}
	if c.cfg.ClientID != "grow1-gw" {
		t.Fatalf("expected explicit client id to survive, got %q", c.cfg.ClientID)
	}
}

func TestStopBeforeStartDoesNotPanic(t *testing.T) {
	c := NewClient(&gatewayconfig.MQTTConfig{Broker: "tcp://localhost:1883"}, testState(), logger.Nop())
	c.Stop()
}

func TestPublishEventWithoutConnectionIsNoOp(t *testing.T) {
	c := NewClient(&gatewayconfig.MQTTConfig{Broker: "tcp://localhost:1883"}, testState(), logger.Nop())
	c.publishEvent([]byte(`{"type":"state"}`))
}

func TestPublishStatusWithoutConnectionIsNoOp(t *testing.T) {
	c := NewClient(&gatewayconfig.MQTTConfig{Broker: "tcp://localhost:1883"}, testState(), logger.Nop())
	c.publishStatus()
}
