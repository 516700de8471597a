package gatewayconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the gateway configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gatewayconfig: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("gatewayconfig: parse: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gatewayconfig: validate: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTP == "" {
		c.Server.HTTP = ":8080"
	}
	if c.DMX.Client == "" {
		c.DMX.Client = "/usr/bin/dmxctl"
	}
	if c.DMX.ThrottleMs == 0 {
		c.DMX.ThrottleMs = 25
	}
	if c.DMX.TimeoutMs == 0 {
		c.DMX.TimeoutMs = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.MQTT != nil && c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "dmx"
	}
}

// Validate rejects unknown slot ranges, duplicate slot usage, and empty
// lights/groups. Unknown colors are not rejected here: ResolveColor
// resolves them to "#FFFFFF" at read time instead.
func (c *Config) Validate() error {
	if len(c.Lights) == 0 {
		return fmt.Errorf("no lights defined")
	}

	usedChannels := make(map[int]string)

	for groupName, lights := range c.Lights {
		if len(lights) == 0 {
			return fmt.Errorf("group %q has no lights", groupName)
		}

		for lightName, channels := range lights {
			fullName := groupName + "/" + lightName
			if len(channels) == 0 {
				return fmt.Errorf("light %q has no channels", fullName)
			}

			for _, ch := range channels {
				if ch.Ch < 1 || ch.Ch > 512 {
					return fmt.Errorf("light %q: channel %d out of range (1-512)", fullName, ch.Ch)
				}
				if ch.Color == "" {
					return fmt.Errorf("light %q: channel %d missing color", fullName, ch.Ch)
				}
				if existing, ok := usedChannels[ch.Ch]; ok {
					return fmt.Errorf("channel %d used by both %q and %q", ch.Ch, existing, fullName)
				}
				usedChannels[ch.Ch] = fullName
			}
		}
	}

	if c.Schedule != nil {
		for _, ev := range c.Schedule.Events {
			if ev.Time == "" {
				return fmt.Errorf("schedule event missing time")
			}
		}
	}

	return nil
}

// ResolveColor converts a color name to hex; an already-hex value passes
// through; anything unrecognized resolves to "#FFFFFF".
func ResolveColor(color string) string {
	if strings.HasPrefix(color, "#") {
		return color
	}
	if hex, ok := ColorPalette[color]; ok {
		return hex
	}
	return "#FFFFFF"
}

// ResolveLights returns every light with its channels resolved.
func (c *Config) ResolveLights() []ResolvedLight {
	var result []ResolvedLight

	for groupName, lights := range c.Lights {
		for lightName, channels := range lights {
			rl := ResolvedLight{
				Group:    groupName,
				Name:     lightName,
				Channels: make([]ResolvedChannel, len(channels)),
			}
			for i, ch := range channels {
				name := ch.Name
				if name == "" {
					name = ch.Color
				}
				rl.Channels[i] = ResolvedChannel{
					Ch:    ch.Ch,
					Color: ResolveColor(ch.Color),
					Name:  name,
				}
			}
			result = append(result, rl)
		}
	}
	return result
}

// GetLight returns the resolved channels for one light.
func (c *Config) GetLight(group, name string) []ResolvedChannel {
	lights, ok := c.Lights[group]
	if !ok {
		return nil
	}
	channels, ok := lights[name]
	if !ok {
		return nil
	}
	result := make([]ResolvedChannel, len(channels))
	for i, ch := range channels {
		n := ch.Name
		if n == "" {
			n = ch.Color
		}
		result[i] = ResolvedChannel{Ch: ch.Ch, Color: ResolveColor(ch.Color), Name: n}
	}
	return result
}

// GetGroupLights returns the light names within a group.
func (c *Config) GetGroupLights(group string) []string {
	lights, ok := c.Lights[group]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(lights))
	for name := range lights {
		names = append(names, name)
	}
	return names
}

// GroupNames returns every group name.
func (c *Config) GroupNames() []string {
	names := make([]string, 0, len(c.Lights))
	for name := range c.Lights {
		names = append(names, name)
	}
	return names
}
