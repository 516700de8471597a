// Package gatewayhttp serves the gateway's HTTP, WebSocket, Prometheus,
// and legacy REST surfaces over a single net/http mux.
package gatewayhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dmx-gateway/internal/api"
	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
	"dmx-gateway/internal/scheduler"
)

var startTime = time.Now()

// HealthResponse is the typed /api/health payload.
type HealthResponse struct {
	UptimeSec  int     `json:"uptime_sec"`
	UptimeStr  string  `json:"uptime_str"`
	Goroutines int     `json:"goroutines"`
	CPULoad1m  float64 `json:"cpu_load_1m"`
	CPULoad5m  float64 `json:"cpu_load_5m"`
	CPULoad15m float64 `json:"cpu_load_15m"`
	MemAllocMB float64 `json:"mem_alloc_mb"`
	MemSysMB   float64 `json:"mem_sys_mb"`
	MemHeapMB  float64 `json:"mem_heap_mb"`
	GCRuns     uint32  `json:"gc_runs"`
	GoVersion  string  `json:"go_version"`
	NumCPU     int     `json:"num_cpu"`
}

// Server is the HTTP/WebSocket façade over a coordinator.State.
type Server struct {
	cfg       *gatewayconfig.Config
	state     *coordinator.State
	api       *api.Handler
	scheduler *scheduler.Scheduler
	log       *logger.Log
	server    *http.Server
	upgrader  websocket.Upgrader
}

// NewServer builds the mux and binds it to cfg.Server.HTTP.
func NewServer(cfg *gatewayconfig.Config, state *coordinator.State, log *logger.Log) *Server {
	s := &Server{
		cfg:   cfg,
		state: state,
		api:   api.NewHandler(state),
		log:   log.Module("gatewayhttp"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api", s.handleAPI)

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/enable", s.handleEnable)
	mux.HandleFunc("/api/disable", s.handleDisable)
	mux.HandleFunc("/api/blackout", s.handleBlackout)
	mux.HandleFunc("/api/lights", s.handleLights)
	mux.HandleFunc("/api/lights/", s.handleLight)
	mux.HandleFunc("/api/groups", s.handleGroups)
	mux.HandleFunc("/api/groups/", s.handleGroup)
	mux.HandleFunc("/api/schedule", s.handleSchedule)
	mux.HandleFunc("/api/schedule/next", s.handleScheduleNext)
	mux.HandleFunc("/api/health", s.handleHealth)

	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:    cfg.Server.HTTP,
		Handler: mux,
	}

	return s
}

// Start launches ListenAndServe in the background.
func (s *Server) Start() error {
	s.log.With(logger.Fields{"addr": s.cfg.Server.HTTP}).Info("starting HTTP server")
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.log.With(logger.Fields{"error": err}).Error("HTTP server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// SetScheduler wires the scheduler for /api/schedule* endpoints.
func (s *Server) SetScheduler(sched *scheduler.Scheduler) {
	s.scheduler = sched
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.cfg.Server.HTTP }

// ServeHTTP exposes the underlying mux for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.With(logger.Fields{"error": err}).Error("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.log.With(logger.Fields{"remote": r.RemoteAddr}).Debug("websocket client connected")

	updates := s.state.Subscribe()
	defer s.state.Unsubscribe(updates)

	outgoing := make(chan []byte, 100)
	done := make(chan struct{})

	s.sendInitialStateAsync(outgoing)

	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.log.With(logger.Fields{"error": err}).Debug("websocket read error")
				}
				return
			}
			s.handleWSMessage(message, outgoing)
		}
	}()

	for {
		select {
		case data := <-outgoing:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.With(logger.Fields{"error": err}).Debug("websocket write error")
				return
			}
		case data, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.With(logger.Fields{"error": err}).Debug("websocket write error")
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Server) sendInitialStateAsync(outgoing chan<- []byte) {
	data, _ := json.Marshal(s.state.GetInitMessage())
	outgoing <- data
}

// handleWSMessage accepts both the unified {cmd,...} envelope and a
// legacy {type,...} shape, replying on outgoing only for the unified
// form (legacy mutations are observed through the subscriber channel).
func (s *Server) handleWSMessage(message []byte, outgoing chan<- []byte) {
	var unified struct {
		Cmd string `json:"cmd"`
	}
	if err := json.Unmarshal(message, &unified); err == nil && unified.Cmd != "" {
		outgoing <- s.api.HandleJSON(message)
		return
	}

	var msg struct {
		Type    string                 `json:"type"`
		Key     string                 `json:"key,omitempty"`
		Group   string                 `json:"group,omitempty"`
		Channel int                    `json:"ch,omitempty"`
		Value   uint8                  `json:"value,omitempty"`
		Values  map[string]interface{} `json:"values,omitempty"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		s.log.With(logger.Fields{"error": err}).Debug("invalid websocket message")
		return
	}

	switch msg.Type {
	case "enable":
		s.state.Enable()
	case "disable":
		s.state.Disable()
	case "blackout":
		s.state.Blackout()
	case "set_channel":
		s.state.SetChannel(msg.Channel, msg.Value)
	case "set_light":
		group, name := parseKey(msg.Key)
		if group != "" && name != "" {
			s.state.SetLight(group, name, parseValues(msg.Values))
		}
	case "set_group":
		s.state.SetGroup(msg.Group, parseValues(msg.Values))
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	resp := s.api.HandleJSON(body)
	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

func parseKey(key string) (group, name string) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", ""
}

func parseValues(raw map[string]interface{}) map[string]uint8 {
	values := make(map[string]uint8)
	for k, v := range raw {
		switch val := v.(type) {
		case float64:
			values[k] = uint8(val)
		case int:
			values[k] = uint8(val)
		}
	}
	return values
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.state.GetStatus())
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.state.Enable(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.state.Disable(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleBlackout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.state.Blackout(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) handleLights(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.state.GetLights())
}

func (s *Server) handleLight(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/lights/")
	group, name := parseKey(path)
	if group == "" || name == "" {
		http.Error(w, "Invalid path, use /api/lights/group/name", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodPut {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.state.SetLight(group, name, parseValues(body)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, map[string]string{"status": "ok"})
		return
	}

	light := s.state.GetLight(group, name)
	if light == nil {
		http.Error(w, "Light not found", http.StatusNotFound)
		return
	}
	s.jsonResponse(w, light)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.state.GetGroups())
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	if name == "" {
		http.Error(w, "Missing group name", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodPut {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.state.SetGroup(name, parseValues(body)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, map[string]string{"status": "ok"})
		return
	}

	lights := s.cfg.GetGroupLights(name)
	if lights == nil {
		http.Error(w, "Group not found", http.StatusNotFound)
		return
	}
	s.jsonResponse(w, map[string]interface{}{"name": name, "lights": lights})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.jsonResponse(w, map[string]interface{}{"events": []interface{}{}})
		return
	}
	s.jsonResponse(w, map[string]interface{}{"events": s.scheduler.Events()})
}

func (s *Server) handleScheduleNext(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.jsonResponse(w, nil)
		return
	}
	s.jsonResponse(w, s.scheduler.NextEvent())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var load1, load5, load15 float64
	if data, err := os.ReadFile("/proc/loadavg"); err == nil {
		fmt.Sscanf(string(data), "%f %f %f", &load1, &load5, &load15)
	}

	s.jsonResponse(w, HealthResponse{
		UptimeSec:  int(time.Since(startTime).Seconds()),
		UptimeStr:  time.Since(startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		CPULoad1m:  load1,
		CPULoad5m:  load5,
		CPULoad15m: load15,
		MemAllocMB: float64(m.Alloc) / 1024 / 1024,
		MemSysMB:   float64(m.Sys) / 1024 / 1024,
		MemHeapMB:  float64(m.HeapAlloc) / 1024 / 1024,
		GCRuns:     m.NumGC,
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
