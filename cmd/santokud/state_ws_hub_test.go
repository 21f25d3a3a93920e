package main

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// Hub tests use viewer clients with a nil websocket conn: nothing here goes
// through the network, and the hub skips Close() on nil conns.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(discardLogger(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

// runTestHub starts hub.Run and returns a stop func that waits for it to exit.
func runTestHub(t *testing.T, hub *Hub) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("hub did not stop")
		}
	}
}

// attachViewer registers a fake display viewer and waits for the hub to see it.
func attachViewer(t *testing.T, hub *Hub, name string, sendBuf int) *Client {
	t.Helper()
	c := &Client{
		hub:        hub,
		send:       make(chan []byte, sendBuf),
		remoteAddr: name,
		logger:     discardLogger(),
	}
	want := hub.ClientCount() + 1
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool { return hub.ClientCount() == want },
		fmt.Sprintf("viewer %s not registered", name))
	return c
}

func expectFrame(t *testing.T, c *Client, want []byte) {
	t.Helper()
	select {
	case got, ok := <-c.send:
		if !ok {
			t.Fatalf("%s: send channel closed", c.remoteAddr)
		}
		if string(got) != string(want) {
			t.Fatalf("%s: got %q, want %q", c.remoteAddr, got, want)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("%s: no frame", c.remoteAddr)
	}
}

func TestHub_FansOutToEveryViewer(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	stop := runTestHub(t, hub)
	defer stop()

	terminal := attachViewer(t, hub, "oled_view", 4)
	browser := attachViewer(t, hub, "browser", 4)

	frames := [][]byte{
		[]byte(`{"type":"alt_tab_changed","data":{"active":true}}`),
		[]byte(`{"type":"state_changed","data":{"mode":"base","alt_tab_active":true}}`),
	}
	// Write straight to the queue; BroadcastBytes may drop under scheduling pressure.
	for _, f := range frames {
		hub.broadcast <- f
	}

	// Per-viewer order matches broadcast order.
	for _, f := range frames {
		expectFrame(t, terminal, f)
		expectFrame(t, browser, f)
	}
}

func TestHub_StalledViewerEvicted(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	stop := runTestHub(t, hub)
	defer stop()

	stalled := attachViewer(t, hub, "stalled", 1)
	live := attachViewer(t, hub, "live", 8)

	// stalled never drains, so its single slot is already taken.
	stalled.send <- []byte(`{"type":"state_init"}`)

	msg := []byte(`{"type":"state_changed","data":{"mode":"settings"}}`)
	hub.broadcast <- msg
	expectFrame(t, live, msg)

	waitUntil(t, 750*time.Millisecond, func() bool { return hub.ClientCount() == 1 }, "stalled viewer still registered")

	// Drain the queued init frame; the channel is then closed.
	<-stalled.send
	if _, ok := <-stalled.send; ok {
		t.Fatalf("expected stalled viewer's send channel to be closed")
	}
}

func TestHub_UnregisterAndShutdownCloseViewers(t *testing.T) {
	hub := newTestHub(t, 2, 8)
	stop := runTestHub(t, hub)

	gone := attachViewer(t, hub, "gone", 2)
	kept := attachViewer(t, hub, "kept", 2)

	hub.unregister <- gone
	waitUntil(t, 500*time.Millisecond, func() bool { return hub.ClientCount() == 1 }, "viewer not unregistered")
	if _, ok := <-gone.send; ok {
		t.Fatalf("expected unregistered viewer's channel closed")
	}

	// A second unregister of the same viewer is harmless.
	hub.unregister <- gone

	stop()
	if hub.ClientCount() != 0 {
		t.Fatalf("expected no viewers after shutdown, got %d", hub.ClientCount())
	}
	if _, ok := <-kept.send; ok {
		t.Fatalf("expected remaining viewer's channel closed on shutdown")
	}
}

func TestHub_BroadcastBytesDropsWhenQueueFull(t *testing.T) {
	// Hub not running: nothing drains the queue.
	hub := newTestHub(t, 1, 1)

	hub.BroadcastBytes([]byte(`first`))
	hub.BroadcastBytes([]byte(`second`)) // dropped, must not block

	if got := <-hub.broadcast; string(got) != "first" {
		t.Fatalf("expected first frame kept, got %q", got)
	}
	select {
	case got := <-hub.broadcast:
		t.Fatalf("expected second frame dropped, got %q", got)
	default:
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
