// Package gatewayconfig loads and validates the gateway daemon's YAML
// configuration: server endpoints, the subprocess DMX client, the lights
// catalogue, and the optional Modbus/MQTT/schedule blocks.
package gatewayconfig

// Config is the root configuration structure. Lights are organized as
// group -> light -> channels.
type Config struct {
	Server   ServerConfig                    `yaml:"server"`
	DMX      DMXConfig                       `yaml:"dmx"`
	Modbus   *ModbusConfig                   `yaml:"modbus,omitempty"`
	MQTT     *MQTTConfig                     `yaml:"mqtt,omitempty"`
	Schedule *ScheduleConfig                 `yaml:"schedule,omitempty"`
	Logging  LoggingConfig                   `yaml:"logging,omitempty"`
	Lights   map[string]map[string][]Channel `yaml:"lights"`
}

// LoggingConfig controls the shared logger (internal/logger).
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // defaults to "info"
}

// ServerConfig defines server endpoints.
type ServerConfig struct {
	HTTP string `yaml:"http"`
}

// DMXConfig defines the subprocess DMX client invocation.
type DMXConfig struct {
	Client     string `yaml:"client"`               // path to the dmxctl-style binary
	Device     string `yaml:"device,omitempty"`     // RPMSG device, empty = client default
	ThrottleMs int    `yaml:"throttle_ms"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	RefreshMs  int    `yaml:"refresh_ms"` // periodic state refresh, 0 = disabled
	AutoEnable bool   `yaml:"auto_enable,omitempty"`
}

// ModbusConfig enables the Modbus/TCP façade when present.
type ModbusConfig struct {
	Port string `yaml:"port"` // ":502" or ":5020"
}

// MQTTConfig enables the MQTT façade when present.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // tcp://host:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // defaults to "dmx"
}

// ScheduleConfig defines scheduler settings.
type ScheduleConfig struct {
	Timezone string          `yaml:"timezone"` // e.g. "Europe/Paris", defaults to local
	Events   []ScheduleEvent `yaml:"events"`
}

// ScheduleEvent defines one scheduled action.
type ScheduleEvent struct {
	Time     string                      `yaml:"time"` // "HH:MM" or "HH:MM:SS"
	Set      map[string]map[string]uint8 `yaml:"set,omitempty"`
	Blackout bool                        `yaml:"blackout,omitempty"`
}

// Channel defines a single DMX channel with its color in the source YAML.
type Channel struct {
	Ch    int    `yaml:"ch"`
	Color string `yaml:"color"`
	Name  string `yaml:"name,omitempty"` // defaults to color
}

// ResolvedChannel is a Channel with its color resolved to hex and name
// defaulted.
type ResolvedChannel struct {
	Ch    int    `json:"ch"`
	Color string `json:"color"`
	Name  string `json:"name"`
	Value uint8  `json:"value"`
}

// ResolvedLight is a light with every channel resolved.
type ResolvedLight struct {
	Group    string            `json:"group"`
	Name     string            `json:"name"`
	Channels []ResolvedChannel `json:"channels"`
}

// ColorPalette maps known color names to their hex value. Anything not in
// this map (and not already a "#RRGGBB" literal) resolves to "#FFFFFF".
var ColorPalette = map[string]string{
	"uv":      "#7F00FF",
	"blue":    "#0047AB",
	"cyan":    "#00CED1",
	"green":   "#32CD32",
	"yellow":  "#FFD700",
	"red":     "#FF2400",
	"far_red": "#8B0000",
	"ir":      "#300000",

	"warm":  "#FFE4B5",
	"white": "#FFFAF0",
	"cool":  "#F0F8FF",

	"amber":   "#FFBF00",
	"magenta": "#FF00FF",
	"pink":    "#FF69B4",
}

// LightKey returns the "group/light" key used throughout the coordinator.
func LightKey(group, light string) string {
	return group + "/" + light
}
