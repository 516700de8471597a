// Package gatewaymetrics exposes the gateway's Prometheus metrics.
package gatewaymetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChannelValue is the current value of one DMX channel.
	ChannelValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dmx_channel_value",
			Help: "Current DMX channel value (0-255)",
		},
		[]string{"channel", "group", "light", "color"},
	)

	// Enabled is 1 when DMX output is enabled, 0 otherwise.
	Enabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmx_enabled",
			Help: "DMX output enabled (1) or disabled (0)",
		},
	)

	// FPS is the real-time core's last reported frame rate.
	FPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmx_fps",
			Help: "DMX frames per second",
		},
	)

	// FrameCount is the dmx_frames_total counter. It is registered but
	// nothing in the gateway increments it.
	FrameCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmx_frames_total",
			Help: "Total DMX frames sent",
		},
	)

	// CommandsTotal counts gateway commands by type.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmx_commands_total",
			Help: "Total DMX commands by type",
		},
		[]string{"command"},
	)

	// ErrorsTotal counts errors by type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmx_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)
)

// SetEnabled sets the enabled gauge.
func SetEnabled(enabled bool) {
	if enabled {
		Enabled.Set(1)
	} else {
		Enabled.Set(0)
	}
}

// SetChannelValue sets one channel's value gauge.
func SetChannelValue(channel int, group, light, color string, value uint8) {
	ChannelValue.WithLabelValues(
		strconv.Itoa(channel),
		group,
		light,
		color,
	).Set(float64(value))
}
