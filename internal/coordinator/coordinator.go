package coordinator

import (
	"encoding/json"
	"sync"
	"time"

	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
)

// stateUpdate has the same JSON shape as WSStateMessage, so the wire shape
// stays identical regardless of transport (WS/MQTT/internal poll).
type stateUpdate struct {
	Type    string                      `json:"type"`
	Enabled bool                        `json:"enabled"`
	Values  map[string]map[string]uint8 `json:"values"`
}

// State holds the authoritative mirror of DMX channel and light values.
// Every lights/channels data structure is built once in buildLightsCache
// and mutated in place thereafter, and the Get* accessors return those
// structures without copying. The Set* paths do allocate: every broadcast
// marshals a fresh JSON payload, and SetLight/SetGroup look their channels
// up through gatewayconfig, which builds new slices on each call.
type State struct {
	cfg    *gatewayconfig.Config
	client RTClient
	log    *logger.Log

	mu       sync.RWMutex
	channels [512]uint8
	enabled  bool

	lights     map[string]*LightState
	lightKeys  []string
	groupNames []string

	channelToLight [512][]channelMapping

	subsMu sync.RWMutex
	subs   map[chan []byte]struct{}

	valuesCache map[string]map[string]uint8

	throttleMu  sync.Mutex
	throttleDur time.Duration
	lastCall    time.Time

	stopRefresh chan struct{}
}

// New creates a coordinator with every lights/channels structure
// pre-allocated from cfg.
func New(cfg *gatewayconfig.Config, client RTClient, log *logger.Log) *State {
	s := &State{
		cfg:         cfg,
		client:      client,
		log:         log.Module("coordinator"),
		throttleDur: time.Duration(cfg.DMX.ThrottleMs) * time.Millisecond,
		subs:        make(map[chan []byte]struct{}),
		lights:      make(map[string]*LightState),
	}
	s.buildLightsCache()
	return s
}

func (s *State) buildLightsCache() {
	resolved := s.cfg.ResolveLights()

	s.lightKeys = make([]string, 0, len(resolved))
	groupSet := make(map[string]struct{})

	for _, light := range resolved {
		key := gatewayconfig.LightKey(light.Group, light.Name)
		s.lightKeys = append(s.lightKeys, key)
		groupSet[light.Group] = struct{}{}

		ls := &LightState{
			Key:      key,
			Group:    light.Group,
			Name:     light.Name,
			Channels: make([]ChannelState, len(light.Channels)),
			Values:   make(map[string]uint8, len(light.Channels)),
		}

		for i, ch := range light.Channels {
			ls.Channels[i] = ChannelState{Ch: ch.Ch, Color: ch.Color, Name: ch.Name}
			ls.Values[ch.Name] = 0

			s.channelToLight[ch.Ch-1] = append(s.channelToLight[ch.Ch-1], channelMapping{
				lightKey:     key,
				channelIndex: i,
			})
		}

		s.lights[key] = ls
	}

	s.valuesCache = make(map[string]map[string]uint8, len(s.lights))
	for key, ls := range s.lights {
		s.valuesCache[key] = ls.Values
	}

	s.groupNames = make([]string, 0, len(groupSet))
	for g := range groupSet {
		s.groupNames = append(s.groupNames, g)
	}

	s.log.With(logger.Fields{"lights": len(s.lights), "groups": len(s.groupNames)}).Info("lights cache built")
}

// throttle blocks until throttleDur has elapsed since the previous call,
// serializing outbound real-time invocations independently of the state
// mirror lock.
func (s *State) throttle() {
	if s.throttleDur <= 0 {
		return
	}
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	elapsed := time.Since(s.lastCall)
	if elapsed < s.throttleDur {
		time.Sleep(s.throttleDur - elapsed)
	}
	s.lastCall = time.Now()
}

// Subscribe returns a channel that receives pre-marshaled JSON state
// updates after every successful mutation.
func (s *State) Subscribe() chan []byte {
	ch := make(chan []byte, 100)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *State) Unsubscribe(ch chan []byte) {
	s.subsMu.Lock()
	delete(s.subs, ch)
	close(ch)
	s.subsMu.Unlock()
}

func (s *State) broadcastState() {
	s.subsMu.RLock()
	if len(s.subs) == 0 {
		s.subsMu.RUnlock()
		return
	}
	s.subsMu.RUnlock()

	s.mu.RLock()
	data, _ := json.Marshal(stateUpdate{
		Type:    "state",
		Enabled: s.enabled,
		Values:  s.valuesCache,
	})
	s.mu.RUnlock()

	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// Enable starts DMX transmission on the real-time core.
func (s *State) Enable() error {
	s.throttle()
	if err := s.client.Enable(); err != nil {
		return err
	}
	s.mu.Lock()
	s.enabled = true
	s.mu.Unlock()

	s.broadcastState()
	return nil
}

// Disable stops DMX transmission.
func (s *State) Disable() error {
	s.throttle()
	if err := s.client.Disable(); err != nil {
		return err
	}
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()

	s.broadcastState()
	return nil
}

// Blackout zeroes every channel, on the mirror and on hardware.
func (s *State) Blackout() error {
	s.throttle()
	if err := s.client.Blackout(); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.channels {
		s.channels[i] = 0
	}
	for _, ls := range s.lights {
		for i := range ls.Channels {
			ls.Channels[i].Value = 0
		}
		for k := range ls.Values {
			ls.Values[k] = 0
		}
	}
	s.mu.Unlock()

	s.broadcastState()
	return nil
}

// SetChannel sets one 1-based DMX channel. Out-of-range channels are a
// silent no-op, not an error.
func (s *State) SetChannel(channel int, value uint8) error {
	if channel < 1 || channel > 512 {
		return nil
	}

	s.mu.Lock()
	s.channels[channel-1] = value
	for _, mapping := range s.channelToLight[channel-1] {
		if ls, ok := s.lights[mapping.lightKey]; ok {
			ls.Channels[mapping.channelIndex].Value = value
			ls.Values[ls.Channels[mapping.channelIndex].Name] = value
		}
	}
	s.mu.Unlock()

	s.throttle()
	if err := s.client.SetChannel(channel, value); err != nil {
		return err
	}

	s.broadcastState()
	return nil
}

// SetLight sets named channel values on one light, resolved by group/name.
func (s *State) SetLight(group, name string, values map[string]uint8) error {
	key := gatewayconfig.LightKey(group, name)

	s.mu.Lock()
	ls, ok := s.lights[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	for i := range ls.Channels {
		ch := &ls.Channels[i]
		if val, exists := values[ch.Name]; exists {
			s.channels[ch.Ch-1] = val
			ch.Value = val
			ls.Values[ch.Name] = val
		}
	}
	s.mu.Unlock()

	channels := s.cfg.GetLight(group, name)
	for _, ch := range channels {
		if val, exists := values[ch.Name]; exists {
			s.throttle()
			if err := s.client.SetChannel(ch.Ch, val); err != nil {
				s.log.With(logger.Fields{"ch": ch.Ch, "error": err}).Warn("failed to set channel")
			}
		}
	}

	s.broadcastState()
	return nil
}

// SetGroup applies values to every light in a group.
func (s *State) SetGroup(groupName string, values map[string]uint8) error {
	lightNames := s.cfg.GetGroupLights(groupName)
	if lightNames == nil {
		return nil
	}
	for _, name := range lightNames {
		if err := s.SetLight(groupName, name, values); err != nil {
			s.log.With(logger.Fields{"light": name, "error": err}).Warn("failed to set light in group")
		}
	}
	return nil
}

// GetStatus returns the current enabled flag plus whatever the real-time
// core last reported.
func (s *State) GetStatus() StatusResponse {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()

	resp := StatusResponse{Enabled: enabled}
	if st, err := s.client.Status(); err == nil {
		resp.FPS = st.FPS
		resp.FrameCount = st.FrameCount
	}
	return resp
}

// GetLights returns a direct reference to the pre-allocated lights map.
func (s *State) GetLights() map[string]*LightState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lights
}

// GetLight returns one light, or nil if group/name is unknown.
func (s *State) GetLight(group, name string) *LightState {
	key := gatewayconfig.LightKey(group, name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lights[key]
}

// GetLightKeys returns the pre-allocated ordered list of light keys.
func (s *State) GetLightKeys() []string { return s.lightKeys }

// GetChannels returns a copy of all 512 raw channel values.
func (s *State) GetChannels() [512]uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels
}

// GetConfig returns the backing configuration.
func (s *State) GetConfig() *gatewayconfig.Config { return s.cfg }

// IsEnabled reports whether DMX output is currently enabled.
func (s *State) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// GetGroups returns the pre-allocated group name list.
func (s *State) GetGroups() []string { return s.groupNames }

// GetInitMessage builds the full catalogue message sent once to a new
// subscriber.
func (s *State) GetInitMessage() WSInitMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return WSInitMessage{
		Type:    "init",
		Enabled: s.enabled,
		Groups:  s.groupNames,
		Lights:  s.lights,
	}
}

// StartRefresh periodically re-broadcasts state and, if enabled, re-pushes
// every configured channel to the real-time core.
func (s *State) StartRefresh(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.stopRefresh = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.log.With(logger.Fields{"interval": interval}).Info("refresh started")
		for {
			select {
			case <-ticker.C:
				s.refresh()
			case <-s.stopRefresh:
				s.log.Info("refresh stopped")
				return
			}
		}
	}()
}

// StopRefresh stops the periodic refresh goroutine started by
// StartRefresh.
func (s *State) StopRefresh() {
	if s.stopRefresh != nil {
		close(s.stopRefresh)
		s.stopRefresh = nil
	}
}

func (s *State) refresh() {
	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()

	s.broadcastState()
	if !enabled {
		return
	}

	type chanValue struct {
		ch    int
		value uint8
	}

	s.mu.RLock()
	snapshot := make([]chanValue, 0, len(s.channelToLight))
	for _, ls := range s.lights {
		for _, ch := range ls.Channels {
			snapshot = append(snapshot, chanValue{ch: ch.Ch, value: ch.Value})
		}
	}
	s.mu.RUnlock()

	// The throttle/SetChannel calls happen outside the mirror lock: they may
	// block on throttleDur or on a slow real-time core, and holding s.mu here
	// would stall every other reader and writer for the whole refresh cycle.
	for _, cv := range snapshot {
		s.throttle()
		if err := s.client.SetChannel(cv.ch, cv.value); err != nil {
			s.log.With(logger.Fields{"ch": cv.ch, "error": err}).Warn("refresh failed")
		}
	}
	s.log.Debug("state refreshed")
}
