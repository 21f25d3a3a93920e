package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
)

// ============================================================================
// santoku-ctl - Command-line IPC Client
// ============================================================================
// Sends settings and key-action events to santokud over its unix socket.
//
// Usage:
//   santoku-ctl settings on
//   santoku-ctl down
//   santoku-ctl increase
//   santoku-ctl action alt_tab tap
//   santoku-ctl state
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/santokud.sock)
// ============================================================================

const defaultSocketPath = "/tmp/santokud.sock"

// Event payloads (duplicated from the daemon for a standalone binary)

type SettingsMove struct {
	Direction string `json:"direction"`
}

type SettingsAdjust struct {
	Direction string `json:"direction"`
}

type SettingsMode struct {
	Active bool `json:"active"`
}

type KeyAction struct {
	Action  string `json:"action"`
	Pressed bool   `json:"pressed"`
}

type PointerSample struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	V int32 `json:"v"`
	H int32 `json:"h"`
}

type EncoderTurn struct {
	Clockwise bool `json:"clockwise"`
}

// Envelope wraps events for JSON
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

func newEnvelope(typ string, payload any) (Envelope, error) {
	env := Envelope{Type: typ}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("marshal %s: %w", typ, err)
	}
	env.Data = data
	return env, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fail("-socket requires an argument")
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	envs, err := buildEnvelopes(args)
	if err != nil {
		fail("%v", err)
	}
	if envs == nil {
		printUsage()
		return
	}

	resps, err := send(socketPath, envs)
	if err != nil {
		fail("%v", err)
	}

	for _, resp := range resps {
		if resp.Status != "ok" {
			fail("daemon error: %s", resp.Error)
		}
		if len(resp.State) > 0 {
			var pretty any
			if err := json.Unmarshal(resp.State, &pretty); err == nil {
				out, _ := json.MarshalIndent(pretty, "", "  ")
				fmt.Println(string(out))
				continue
			}
			fmt.Println(string(resp.State))
		}
	}

	if args[0] != "state" {
		fmt.Println("ok")
	}
}

// buildEnvelopes turns a command line into the events to send. A nil result
// without error means help was requested.
func buildEnvelopes(args []string) ([]Envelope, error) {
	one := func(typ string, payload any) ([]Envelope, error) {
		env, err := newEnvelope(typ, payload)
		if err != nil {
			return nil, err
		}
		return []Envelope{env}, nil
	}

	switch args[0] {
	case "up", "down":
		return one("settings_move", SettingsMove{Direction: args[0]})

	case "left", "decrease":
		return one("settings_adjust", SettingsAdjust{Direction: "decrease"})

	case "right", "increase":
		return one("settings_adjust", SettingsAdjust{Direction: "increase"})

	case "select":
		return one("settings_select", nil)

	case "settings":
		if len(args) < 2 {
			return nil, fmt.Errorf("settings requires on or off")
		}
		switch args[1] {
		case "on":
			return one("settings_mode", SettingsMode{Active: true})
		case "off":
			return one("settings_mode", SettingsMode{Active: false})
		default:
			return nil, fmt.Errorf("settings: expected on or off, got %q", args[1])
		}

	case "action":
		if len(args) < 2 {
			return nil, fmt.Errorf("action requires an action name")
		}
		mode := "tap"
		if len(args) > 2 {
			mode = args[2]
		}
		press, _ := newEnvelope("key_action", KeyAction{Action: args[1], Pressed: true})
		release, _ := newEnvelope("key_action", KeyAction{Action: args[1], Pressed: false})
		switch mode {
		case "press":
			return []Envelope{press}, nil
		case "release":
			return []Envelope{release}, nil
		case "tap":
			return []Envelope{press, release}, nil
		default:
			return nil, fmt.Errorf("action: expected press, release or tap, got %q", mode)
		}

	case "move":
		if len(args) < 3 {
			return nil, fmt.Errorf("move requires x and y")
		}
		var vals [4]int32
		for i, s := range args[1:] {
			if i >= len(vals) {
				return nil, fmt.Errorf("move takes at most x y v h")
			}
			n, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("move: invalid value %q: %w", s, err)
			}
			vals[i] = int32(n)
		}
		return one("pointer_sample", PointerSample{X: vals[0], Y: vals[1], V: vals[2], H: vals[3]})

	case "scroll":
		if len(args) < 2 {
			return nil, fmt.Errorf("scroll requires cw or ccw")
		}
		var cw bool
		switch args[1] {
		case "cw":
			cw = true
		case "ccw":
			cw = false
		default:
			return nil, fmt.Errorf("scroll: expected cw or ccw, got %q", args[1])
		}
		n := 1
		if len(args) > 2 {
			v, err := strconv.Atoi(args[2])
			if err != nil || v < 1 {
				return nil, fmt.Errorf("scroll: invalid count %q", args[2])
			}
			n = v
		}
		env, err := newEnvelope("encoder_turn", EncoderTurn{Clockwise: cw})
		if err != nil {
			return nil, err
		}
		envs := make([]Envelope, n)
		for i := range envs {
			envs[i] = env
		}
		return envs, nil

	case "state":
		return one("get_state", nil)

	case "help", "-h", "--help":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command: %s (see santoku-ctl help)", args[0])
	}
}

// send writes each envelope as one line and collects one response per line.
func send(socketPath string, envs []Envelope) ([]IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	dec := json.NewDecoder(bufio.NewReader(conn))
	resps := make([]IPCResponse, 0, len(envs))

	for _, env := range envs {
		data, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
		if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
			return nil, fmt.Errorf("send event: %w", err)
		}

		var resp IPCResponse
		if err := dec.Decode(&resp); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		resps = append(resps, resp)
	}

	return resps, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `santoku-ctl - Control the santokud daemon via IPC

Usage:
  santoku-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  settings on|off               Enter or leave the settings menu
  up, down                      Move the settings cursor
  left|decrease, right|increase Adjust the selected setting
  select                        Confirm the selected setting
                                (up/down/left/right/select act only in settings mode)
  action NAME [press|release|tap]
                                Trigger a key action (alt_tab, overview, pinky_shift,
                                mouse_update_toggle, settings_toggle, ...)
  move X Y [V H]                Inject a raw pointer sample
  scroll cw|ccw [N]             Inject N encoder detents
  state                         Print the daemon state as JSON
  help, -h, --help              Show this help message

Examples:
  santoku-ctl settings on
  santoku-ctl action alt_tab tap
  santoku-ctl -socket /run/santokud.sock state
`, defaultSocketPath)
}
