// Command dmxctl is the CLI surface of the real-time core's client
// library: one subcommand per dispatcher command, plus flags controlling
// the device path and output format.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"dmx-gateway/internal/config"
	"dmx-gateway/internal/dmxclient"
	"dmx-gateway/internal/protocol"
)

type outputFormat int

const (
	formatHuman outputFormat = iota
	formatJSON
	formatQuiet
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	rc, _ := config.Load(config.DefaultPath())

	device := dmxclient.DefaultDevice
	if rc.Device != "" {
		device = rc.Device
	}
	format := parseFormat(rc.Format)

	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--json":
			format = formatJSON
		case "--quiet", "-q":
			format = formatQuiet
		case "--device", "-d":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: --device requires a value")
				return 1
			}
			device = args[i+1]
			i++
		case "--help", "-h", "help":
			printUsage()
			return 0
		default:
			positional = append(positional, args[i])
		}
	}

	if len(positional) == 0 {
		printUsage()
		return 1
	}

	c, err := dmxclient.Open(device)
	if err != nil {
		return fail(format, fmt.Sprintf("failed to open %s: %v", device, err))
	}
	defer c.Close()

	switch positional[0] {
	case "enable":
		return runSimple(format, c.Enable, "enabled")
	case "disable":
		return runSimple(format, c.Disable, "disabled")
	case "blackout":
		return runSimple(format, c.Blackout, "blackout applied")
	case "status":
		return runStatus(format, c)
	case "set":
		return runSet(format, c, positional[1:])
	case "timing":
		return runTiming(format, c, positional[1:])
	default:
		return fail(format, fmt.Sprintf("unknown command %q", positional[0]))
	}
}

func parseFormat(s string) outputFormat {
	switch s {
	case "json":
		return formatJSON
	case "quiet":
		return formatQuiet
	default:
		return formatHuman
	}
}

func runSimple(format outputFormat, fn func() error, okMsg string) int {
	if err := fn(); err != nil {
		return fail(format, err.Error())
	}
	return succeed(format, okMsg, nil)
}

func runStatus(format outputFormat, c *dmxclient.Client) int {
	s, err := c.Status()
	if err != nil {
		return fail(format, err.Error())
	}
	data := map[string]any{
		"enabled":     s.Enabled,
		"frame_count": s.FrameCount,
		"fps":         float64(s.FPSHundreds) / 100,
	}
	return succeed(format, fmt.Sprintf("enabled=%v frame_count=%d fps=%.2f", s.Enabled, s.FrameCount, float64(s.FPSHundreds)/100), data)
}

// runSet implements `set <slot> <v[,v,...]>`: a 1-based starting slot
// followed by one or more comma-separated channel values.
func runSet(format outputFormat, c *dmxclient.Client, args []string) int {
	if len(args) < 2 {
		return fail(format, "usage: set <slot> <v[,v,...]>")
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 1 || slot > protocol.MaxChannels {
		return fail(format, fmt.Sprintf("slot must be 1-%d", protocol.MaxChannels))
	}

	parts := strings.Split(args[1], ",")
	values := make([]byte, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return fail(format, fmt.Sprintf("value %q must be 0-255", p))
		}
		values[i] = byte(v)
	}

	if err := c.SetChannels(uint16(slot-1), values); err != nil {
		return fail(format, err.Error())
	}
	return succeed(format, fmt.Sprintf("set %d channel(s) starting at slot %d", len(values), slot), nil)
}

// runTiming implements `timing [hz [break [mab]]]`: with no args it reads
// back the current timing; with args it sets (0 = unchanged per field).
func runTiming(format outputFormat, c *dmxclient.Client, args []string) int {
	if len(args) == 0 {
		t, err := c.GetTiming()
		if err != nil {
			return fail(format, err.Error())
		}
		data := map[string]any{"hz": t.RefreshHz, "break_us": t.BreakUs, "mab_us": t.MABUs}
		return succeed(format, fmt.Sprintf("hz=%d break=%dus mab=%dus", t.RefreshHz, t.BreakUs, t.MABUs), data)
	}

	var t protocol.TimingPayload
	vals := []*uint16{&t.RefreshHz, &t.BreakUs, &t.MABUs}
	for i, a := range args {
		if i >= len(vals) {
			break
		}
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 || n > 65535 {
			return fail(format, fmt.Sprintf("invalid timing value %q", a))
		}
		*vals[i] = uint16(n)
	}

	if err := c.SetTiming(t); err != nil {
		return fail(format, err.Error())
	}
	return succeed(format, "timing updated", nil)
}

func succeed(format outputFormat, msg string, data map[string]any) int {
	switch format {
	case formatJSON:
		payload := map[string]any{"status": "ok"}
		for k, v := range data {
			payload[k] = v
		}
		if msg != "" {
			payload["message"] = msg
		}
		b, _ := json.Marshal(payload)
		fmt.Println(string(b))
	case formatQuiet:
		// exit code only
	default:
		fmt.Println(msg)
	}
	return 0
}

func fail(format outputFormat, detail string) int {
	switch format {
	case formatJSON:
		b, _ := json.Marshal(map[string]string{"status": "error", "error": detail})
		fmt.Println(string(b))
	case formatQuiet:
		// stderr/stdout suppressed
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", detail)
	}
	return 1
}

func printUsage() {
	fmt.Println(`Usage: dmxctl [flags] <command> [args]

Commands:
  enable                    Start continuous DMX frame emission
  disable                   Stop DMX frame emission
  blackout                  Set every channel to 0
  set <slot> <v[,v,...]>    Set channel values starting at slot (1-512)
  status                    Report enabled/frame_count/fps
  timing [hz [break [mab]]] Read (no args) or set frame timing

Flags:
  -d, --device <path>       RPMSG device path (default /dev/ttyRPMSG0)
  --json                    Emit machine-readable JSON
  -q, --quiet               Suppress output; rely on exit code
  -h, --help                Show this help`)
}
