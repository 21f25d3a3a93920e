package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// External clients (santoku-ctl, scripts, a status bar) drive the settings
// menu and key actions without touching the keyboard.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "settings_move", "data": {"direction": "down"}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
//
// The special request {"type": "get_state"} is answered with the current
// snapshot in the "state" field instead of being queued as an event.
// ============================================================================

const (
	ipcTypeGetState = "get_state"

	ipcSnapshotTimeout = 500 * time.Millisecond
)

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string         `json:"status"`          // "ok" or "error"
	Error  string         `json:"error,omitempty"` // error message if status == "error"
	State  *StateSnapshot `json:"state,omitempty"` // only for get_state
}

func ipcError(format string, args ...any) IPCResponse {
	return IPCResponse{Status: "error", Error: fmt.Sprintf(format, args...)}
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	// Remove a stale socket left by a crashed daemon
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Owner and group only; the socket can inject key actions.
	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection serves one client until it disconnects.
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	reply := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err, "status", resp.Status)
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		var env EventEnvelope
		if err := json.Unmarshal([]byte(line), &env); err == nil && env.Type == ipcTypeGetState {
			reply(requestSnapshot(ctx, events))
			continue
		}

		// Payload events only; the daemon stamps arrival time itself.
		ev, err := UnmarshalEvent([]byte(line))
		if err != nil {
			reply(ipcError("parse event: %v", err))
			continue
		}

		select {
		case events <- ev:
			reply(IPCResponse{Status: "ok"})
		default:
			reply(ipcError("event queue full"))
		}
	}

	logger.Debug("IPC connection closed")
}

// requestSnapshot asks the daemon loop for a snapshot and waits briefly for it.
func requestSnapshot(ctx context.Context, events chan<- Event) IPCResponse {
	snap, err := fetchSnapshot(ctx, events, ipcSnapshotTimeout)
	if err != nil {
		return ipcError("%v", err)
	}
	return IPCResponse{Status: "ok", State: &snap}
}

// fetchSnapshot round-trips a RequestStateSnapshot through the daemon loop.
// Shared by IPC get_state and the HTTP /api/state handler.
func fetchSnapshot(ctx context.Context, events chan<- Event, timeout time.Duration) (StateSnapshot, error) {
	replyCh := make(chan StateSnapshot, 1)

	select {
	case events <- RequestStateSnapshot{Reply: replyCh}:
	default:
		return StateSnapshot{}, errors.New("event queue full")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case snap := <-replyCh:
		return snap, nil
	case <-timer.C:
		return StateSnapshot{}, errors.New("timed out waiting for daemon state")
	case <-ctx.Done():
		return StateSnapshot{}, ctx.Err()
	}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCEvent sends an event to the daemon via IPC and returns the response
func SendIPCEvent(socketPath string, ev Event) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}

	return nil
}
