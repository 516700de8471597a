// Package rtsubprocess talks to the real-time core by shelling out to the
// dmxctl binary, one invocation per command, the way the gateway reaches a
// tty it does not want to hold open itself.
package rtsubprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/logger"
)

// Client wraps the dmxctl subprocess behind the coordinator.RTClient
// contract. Calls are serialized: only one dmxctl invocation runs at a
// time, matching the single-tty constraint of the real-time link.
type Client struct {
	path    string
	device  string
	timeout time.Duration
	mu      sync.Mutex
	log     *logger.Log
}

// New builds a subprocess RTClient. clientPath is the dmxctl binary path;
// device, if non-empty, is passed to every invocation via -d.
func New(clientPath, device string, timeout time.Duration, log *logger.Log) *Client {
	return &Client{path: clientPath, device: device, timeout: timeout, log: log}
}

func (c *Client) run(args ...string) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	full := append([]string{"--json"}, args...)
	if c.device != "" {
		full = append([]string{"-d", c.device}, full...)
	}

	cmd := exec.CommandContext(ctx, c.path, full...)
	out, err := cmd.Output()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("rtsubprocess: %v timed out after %v", args, c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("rtsubprocess: %v: %w", args, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(out, &payload); err != nil {
		return nil, fmt.Errorf("rtsubprocess: decode %v output: %w", args, err)
	}
	if status, _ := payload["status"].(string); status == "error" {
		msg, _ := payload["error"].(string)
		return nil, fmt.Errorf("rtsubprocess: %v: %s", args, msg)
	}
	return payload, nil
}

func (c *Client) Enable() error {
	c.log.Module("rtsubprocess").Debug("enable")
	_, err := c.run("enable")
	return err
}

func (c *Client) Disable() error {
	c.log.Module("rtsubprocess").Debug("disable")
	_, err := c.run("disable")
	return err
}

func (c *Client) Blackout() error {
	c.log.Module("rtsubprocess").Debug("blackout")
	_, err := c.run("blackout")
	return err
}

func (c *Client) SetChannel(channel int, value uint8) error {
	_, err := c.run("set", strconv.Itoa(channel), strconv.Itoa(int(value)))
	return err
}

func (c *Client) SetChannels(start int, values []byte) error {
	if len(values) == 0 {
		return nil
	}
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.Itoa(int(v))
	}
	_, err := c.run("set", strconv.Itoa(start), strings.Join(strs, ","))
	return err
}

func (c *Client) Status() (coordinator.RTStatus, error) {
	payload, err := c.run("status")
	if err != nil {
		return coordinator.RTStatus{}, err
	}
	var st coordinator.RTStatus
	if v, ok := payload["enabled"].(bool); ok {
		st.Enabled = v
	}
	if v, ok := payload["frame_count"].(float64); ok {
		st.FrameCount = uint64(v)
	}
	if v, ok := payload["fps"].(float64); ok {
		st.FPS = v
	}
	return st, nil
}

func (c *Client) SetTiming(hz, breakUs, mabUs uint16) error {
	_, err := c.run("timing", strconv.Itoa(int(hz)), strconv.Itoa(int(breakUs)), strconv.Itoa(int(mabUs)))
	return err
}
