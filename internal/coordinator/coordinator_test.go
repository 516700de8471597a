package coordinator

import (
	"sync"
	"testing"
	"time"

	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
)

type fakeRTClient struct {
	mu       sync.Mutex
	enabled  bool
	channels [512]uint8
	calls    int
	failNext bool

	// block, when non-nil, is read from once per SetChannel call before it
	// proceeds, so tests can hold a call open to probe lock behavior.
	block <-chan struct{}
}

func (f *fakeRTClient) Enable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = true
	return nil
}

func (f *fakeRTClient) Disable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = false
	return nil
}

func (f *fakeRTClient) Blackout() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.channels {
		f.channels[i] = 0
	}
	return nil
}

func (f *fakeRTClient) SetChannel(channel int, value uint8) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNext {
		f.failNext = false
		return errFake
	}
	f.channels[channel-1] = value
	return nil
}

func (f *fakeRTClient) SetChannels(start int, values []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range values {
		f.channels[start-1+i] = v
	}
	return nil
}

func (f *fakeRTClient) Status() (RTStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return RTStatus{Enabled: f.enabled, FrameCount: 42, FPS: 44}, nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errFake = fakeErr("fake failure")

func testConfig() *gatewayconfig.Config {
	return &gatewayconfig.Config{
		DMX: gatewayconfig.DMXConfig{ThrottleMs: 0},
		Lights: map[string]map[string][]gatewayconfig.Channel{
			"veg": {
				"bar1": {
					{Ch: 1, Color: "red", Name: "red"},
					{Ch: 2, Color: "blue", Name: "blue"},
				},
			},
		},
	}
}

func newTestState() (*State, *fakeRTClient) {
	client := &fakeRTClient{}
	s := New(testConfig(), client, logger.Nop())
	return s, client
}

func TestBuildLightsCache(t *testing.T) {
	s, _ := newTestState()
	if len(s.GetLightKeys()) != 1 {
		t.Fatalf("expected 1 light, got %d", len(s.GetLightKeys()))
	}
	if len(s.GetGroups()) != 1 {
		t.Fatalf("expected 1 group, got %d", len(s.GetGroups()))
	}
	light := s.GetLight("veg", "bar1")
	if light == nil || len(light.Channels) != 2 {
		t.Fatalf("expected light with 2 channels, got %+v", light)
	}
}

func TestEnableDisable(t *testing.T) {
	s, client := newTestState()
	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !s.IsEnabled() {
		t.Fatal("expected enabled after Enable()")
	}
	if !client.enabled {
		t.Fatal("expected client.enabled after Enable()")
	}
	if err := s.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if s.IsEnabled() {
		t.Fatal("expected disabled after Disable()")
	}
}

func TestSetChannelOutOfRangeIsNoOp(t *testing.T) {
	s, client := newTestState()
	if err := s.SetChannel(0, 5); err != nil {
		t.Fatalf("expected nil error for out-of-range channel, got %v", err)
	}
	if err := s.SetChannel(513, 5); err != nil {
		t.Fatalf("expected nil error for out-of-range channel, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("expected no client calls for out-of-range channels, got %d", client.calls)
	}
}

func TestSetChannelUpdatesLightValues(t *testing.T) {
	s, _ := newTestState()
	if err := s.SetChannel(1, 200); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}
	light := s.GetLight("veg", "bar1")
	if light.Values["red"] != 200 {
		t.Fatalf("expected red=200, got %d", light.Values["red"])
	}
	channels := s.GetChannels()
	if channels[0] != 200 {
		t.Fatalf("expected channels[0]=200, got %d", channels[0])
	}
}

func TestSetLightByName(t *testing.T) {
	s, _ := newTestState()
	if err := s.SetLight("veg", "bar1", map[string]uint8{"blue": 77}); err != nil {
		t.Fatalf("SetLight: %v", err)
	}
	light := s.GetLight("veg", "bar1")
	if light.Values["blue"] != 77 {
		t.Fatalf("expected blue=77, got %d", light.Values["blue"])
	}
}

func TestSetGroup(t *testing.T) {
	s, _ := newTestState()
	if err := s.SetGroup("veg", map[string]uint8{"red": 10, "blue": 20}); err != nil {
		t.Fatalf("SetGroup: %v", err)
	}
	light := s.GetLight("veg", "bar1")
	if light.Values["red"] != 10 || light.Values["blue"] != 20 {
		t.Fatalf("unexpected values: %+v", light.Values)
	}
}

func TestBlackoutZeroesChannels(t *testing.T) {
	s, _ := newTestState()
	_ = s.SetChannel(1, 255)
	if err := s.Blackout(); err != nil {
		t.Fatalf("Blackout: %v", err)
	}
	light := s.GetLight("veg", "bar1")
	if light.Values["red"] != 0 {
		t.Fatalf("expected red=0 after blackout, got %d", light.Values["red"])
	}
}

func TestSubscribeReceivesBroadcast(t *testing.T) {
	s, _ := newTestState()
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	if err := s.SetChannel(1, 9); err != nil {
		t.Fatalf("SetChannel: %v", err)
	}

	select {
	case data := <-ch:
		if len(data) == 0 {
			t.Fatal("expected non-empty broadcast payload")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestThrottleDelaysSuccessiveCalls(t *testing.T) {
	cfg := testConfig()
	cfg.DMX.ThrottleMs = 20
	client := &fakeRTClient{}
	s := New(cfg, client, logger.Nop())

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.SetChannel(1, byte(i)); err != nil {
			t.Fatalf("SetChannel: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected throttling to take at least 80ms, took %v", elapsed)
	}
}

func TestRefreshDoesNotHoldMirrorLockDuringSetChannel(t *testing.T) {
	cfg := testConfig()
	block := make(chan struct{})
	client := &fakeRTClient{block: block}
	s := New(cfg, client, logger.Nop())
	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.refresh()
		close(done)
	}()

	// Give refresh a moment to reach the (now unlocked) SetChannel call.
	time.Sleep(20 * time.Millisecond)

	readDone := make(chan struct{})
	go func() {
		s.GetChannels()
		s.IsEnabled()
		close(readDone)
	}()

	select {
	case <-readDone:
	case <-time.After(time.Second):
		t.Fatal("reader blocked: refresh appears to hold s.mu across SetChannel")
	}

	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh did not complete after unblocking SetChannel")
	}
}

func TestGetStatusReflectsClient(t *testing.T) {
	s, _ := newTestState()
	_ = s.Enable()
	status := s.GetStatus()
	if !status.Enabled {
		t.Fatal("expected enabled status")
	}
	if status.FrameCount != 42 {
		t.Fatalf("expected frame count 42, got %d", status.FrameCount)
	}
}
