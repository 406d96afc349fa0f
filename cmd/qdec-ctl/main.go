package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// qdec-ctl - Command-line IPC client for qdecd
// ============================================================================
// Usage:
//   qdec-ctl read knob
//   qdec-ctl state
//   qdec-ctl sim-step knob -8
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/qdecd.sock)
// ============================================================================

// request mirrors the daemon's event envelope.
type request struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type encoderRef struct {
	Encoder string `json:"encoder"`
}

type simStep struct {
	Encoder string `json:"encoder"`
	Steps   int    `json:"steps"`
}

// ipcResponse represents the daemon's response
type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	socketPath := "/tmp/qdecd.sock"

	args := os.Args[1:]
	if len(args) >= 1 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	req, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}
	if req == nil {
		printUsage()
		return
	}

	data, err := send(socketPath, *req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(data) == 0 {
		fmt.Println("ok")
		return
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(out.String())
}

// parseCommand returns nil for help.
func parseCommand(args []string) (*request, error) {
	switch args[0] {
	case "read":
		if len(args) < 2 {
			return nil, fmt.Errorf("read requires an encoder name")
		}
		return &request{Type: "read_rotation", Data: encoderRef{Encoder: args[1]}}, nil

	case "state":
		return &request{Type: "get_state"}, nil

	case "sim-step":
		if len(args) < 3 {
			return nil, fmt.Errorf("sim-step requires an encoder name and a step count")
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("invalid step count: %v", err)
		}
		return &request{Type: "sim_step", Data: simStep{Encoder: args[1], Steps: n}}, nil

	case "help", "-h", "--help":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func send(socketPath string, req request) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", payload); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp.Data, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `qdec-ctl - Query and drive the qdecd daemon via IPC

Usage:
  qdec-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/qdecd.sock)

Commands:
  read <encoder>              Read and reset the accumulated rotation
  state                       Print the daemon state snapshot
  sim-step <encoder> <steps>  Turn a sim-backend encoder (negative = counter-clockwise)
  help, -h, --help            Show this help message

Examples:
  qdec-ctl read knob
  qdec-ctl -socket /run/qdecd.sock state
  qdec-ctl sim-step knob 8
`)
}
