// Package api implements the unified JSON request/response contract
// shared by the HTTP, WebSocket, and MQTT transports.
package api

import (
	"encoding/json"
	"strings"

	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewaymetrics"
)

// Request is the unified request shape accepted over every transport.
type Request struct {
	Cmd    string           `json:"cmd"`
	Target string           `json:"target,omitempty"`
	Values map[string]uint8 `json:"values,omitempty"`
}

// Response is the unified response shape returned over every transport.
type Response struct {
	Type   string      `json:"type"`
	Target string      `json:"target,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Handler dispatches Requests against a coordinator.State.
type Handler struct {
	state *coordinator.State
}

// NewHandler builds a Handler bound to state.
func NewHandler(state *coordinator.State) *Handler {
	return &Handler{state: state}
}

// Handle dispatches one request to its command handler.
func (h *Handler) Handle(req *Request) *Response {
	switch req.Cmd {
	case "enable":
		return h.handleEnable()
	case "disable":
		return h.handleDisable()
	case "blackout":
		return h.handleBlackout()
	case "set":
		return h.handleSet(req.Target, req.Values)
	case "get":
		return h.handleGet(req.Target)
	case "status":
		return h.handleStatus()
	case "lights":
		return h.handleLights()
	case "groups":
		return h.handleGroups()
	default:
		return &Response{Type: "error", Error: "unknown command: " + req.Cmd}
	}
}

// HandleJSON unmarshals req, dispatches it, and marshals the response.
func (h *Handler) HandleJSON(data []byte) []byte {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		out, _ := json.Marshal(&Response{Type: "error", Error: "invalid JSON: " + err.Error()})
		return out
	}
	out, _ := json.Marshal(h.Handle(&req))
	return out
}

var (
	dataEnabled  = coordinator.StatusResponse{Enabled: true}
	dataDisabled = coordinator.StatusResponse{Enabled: false}
)

func (h *Handler) handleEnable() *Response {
	if err := h.state.Enable(); err != nil {
		gatewaymetrics.ErrorsTotal.WithLabelValues("enable").Inc()
		return &Response{Type: "error", Error: err.Error()}
	}
	gatewaymetrics.SetEnabled(true)
	gatewaymetrics.CommandsTotal.WithLabelValues("enable").Inc()
	return &Response{Type: "ok", Data: dataEnabled}
}

func (h *Handler) handleDisable() *Response {
	if err := h.state.Disable(); err != nil {
		gatewaymetrics.ErrorsTotal.WithLabelValues("disable").Inc()
		return &Response{Type: "error", Error: err.Error()}
	}
	gatewaymetrics.SetEnabled(false)
	gatewaymetrics.CommandsTotal.WithLabelValues("disable").Inc()
	return &Response{Type: "ok", Data: dataDisabled}
}

func (h *Handler) handleBlackout() *Response {
	if err := h.state.Blackout(); err != nil {
		gatewaymetrics.ErrorsTotal.WithLabelValues("blackout").Inc()
		return &Response{Type: "error", Error: err.Error()}
	}
	gatewaymetrics.CommandsTotal.WithLabelValues("blackout").Inc()
	return &Response{Type: "ok"}
}

func (h *Handler) handleSet(target string, values map[string]uint8) *Response {
	if target == "" {
		return &Response{Type: "error", Error: "target required"}
	}
	if len(values) == 0 {
		return &Response{Type: "error", Error: "values required"}
	}

	group, light := parseTarget(target)

	var err error
	if light == "" {
		err = h.state.SetGroup(group, values)
	} else {
		err = h.state.SetLight(group, light, values)
	}
	if err != nil {
		gatewaymetrics.ErrorsTotal.WithLabelValues("set").Inc()
		return &Response{Type: "error", Target: target, Error: err.Error()}
	}

	gatewaymetrics.CommandsTotal.WithLabelValues("set").Inc()
	h.updateChannelMetrics(target, values)
	return &Response{Type: "ok", Target: target}
}

func (h *Handler) handleGet(target string) *Response {
	if target == "" {
		return &Response{Type: "lights", Data: h.state.GetLights()}
	}

	group, light := parseTarget(target)

	if light == "" {
		names := h.state.GetConfig().GetGroupLights(group)
		if names == nil {
			return &Response{Type: "error", Target: target, Error: "group not found"}
		}
		result := make(map[string]*coordinator.LightState, len(names))
		for _, name := range names {
			key := group + "/" + name
			result[key] = h.state.GetLight(group, name)
		}
		return &Response{Type: "lights", Target: target, Data: result}
	}

	data := h.state.GetLight(group, light)
	if data == nil {
		return &Response{Type: "error", Target: target, Error: "light not found"}
	}
	return &Response{Type: "light", Target: target, Data: data}
}

func (h *Handler) handleStatus() *Response {
	status := h.state.GetStatus()
	if status.FPS > 0 {
		gatewaymetrics.FPS.Set(status.FPS)
	}
	return &Response{Type: "status", Data: status}
}

func (h *Handler) handleLights() *Response {
	return &Response{Type: "lights", Data: h.state.GetLights()}
}

func (h *Handler) handleGroups() *Response {
	return &Response{Type: "groups", Data: h.state.GetGroups()}
}

func parseTarget(target string) (group, light string) {
	parts := strings.SplitN(target, "/", 2)
	group = parts[0]
	if len(parts) == 2 {
		light = parts[1]
	}
	return
}

func (h *Handler) updateChannelMetrics(target string, values map[string]uint8) {
	group, light := parseTarget(target)

	if light == "" {
		for _, lightName := range h.state.GetConfig().GetGroupLights(group) {
			for _, ch := range h.state.GetConfig().GetLight(group, lightName) {
				if val, ok := values[ch.Name]; ok {
					gatewaymetrics.SetChannelValue(ch.Ch, group, lightName, ch.Name, val)
				}
			}
		}
		return
	}

	for _, ch := range h.state.GetConfig().GetLight(group, light) {
		if val, ok := values[ch.Name]; ok {
			gatewaymetrics.SetChannelValue(ch.Ch, group, light, ch.Name, val)
		}
	}
}
