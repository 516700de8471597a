// Package coordinator holds the authoritative mirror of DMX channel and
// light state, serializes mutations to the real-time core, and fans out
// state changes to subscribers (WebSocket, MQTT, etc.) without allocating
// on the hot path.
package coordinator

// RTStatus is the real-time core's reported status.
type RTStatus struct {
	Enabled    bool
	FPS        float64
	FrameCount uint64
}

// RTClient is the boundary between the coordinator and the real-time
// core. DirectClient adapts an internal/dmxclient.Client to it;
// internal/rtsubprocess.Client satisfies it by shelling out to dmxctl.
// Tests use an in-memory fake.
type RTClient interface {
	Enable() error
	Disable() error
	Blackout() error
	SetChannel(channel int, value uint8) error
	SetChannels(start int, values []byte) error
	Status() (RTStatus, error)
}

// StatusResponse is the client-facing status payload.
type StatusResponse struct {
	Enabled    bool    `json:"enabled"`
	FPS        float64 `json:"fps,omitempty"`
	FrameCount uint64  `json:"frame_count,omitempty"`
}

// ChannelState is one channel's current resolved state.
type ChannelState struct {
	Ch    int    `json:"ch"`
	Color string `json:"color"`
	Name  string `json:"name"`
	Value uint8  `json:"value"`
}

// LightState is a light's full state, pre-allocated at startup and
// mutated in place thereafter.
type LightState struct {
	Key      string           `json:"key"`
	Group    string           `json:"group"`
	Name     string           `json:"name"`
	Channels []ChannelState   `json:"channels"`
	Values   map[string]uint8 `json:"values"`
}

// WSInitMessage is sent once when a subscriber attaches: the full
// catalogue plus current values.
type WSInitMessage struct {
	Type    string                 `json:"type"`
	Enabled bool                   `json:"enabled"`
	Groups  []string               `json:"groups"`
	Lights  map[string]*LightState `json:"lights"`
}

// WSStateMessage is broadcast on every successful mutation: values only.
type WSStateMessage struct {
	Type    string                      `json:"type"`
	Enabled bool                        `json:"enabled"`
	Values  map[string]map[string]uint8 `json:"values"`
}

type channelMapping struct {
	lightKey     string
	channelIndex int
}
