package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"qdecd/qdec"
)

// Hub tests use clients with a nil conn; the hub never writes to it.
func newFakeClient(hub *Hub, name string, buf int) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     testLogger(),
	}
}

func runHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func registerClient(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func TestHub_FanoutToAllClients(t *testing.T) {
	hub := NewHub(testLogger(), HubConfig{SendBuf: 4, BroadcastBuf: 8})
	runHub(t, hub)

	c1 := newFakeClient(hub, "c1", 4)
	c2 := newFakeClient(hub, "c2", 4)
	registerClient(t, hub, c1)
	registerClient(t, hub, c2)

	msg := []byte(`{"type":"encoder_idle","data":{"encoder":"knob"}}`)
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s", c.remoteAddr)
		}
	}
	if n := hub.Clients(); n != 2 {
		t.Fatalf("expected 2 clients, got %d", n)
	}
}

func TestHub_EvictsSlowClient(t *testing.T) {
	hub := NewHub(testLogger(), HubConfig{SendBuf: 1, BroadcastBuf: 8})
	runHub(t, hub)

	slow := newFakeClient(hub, "slow", 1)
	fast := newFakeClient(hub, "fast", 8)
	registerClient(t, hub, slow)
	registerClient(t, hub, fast)

	slow.send <- []byte(`"stuck"`)

	msg := []byte(`{"type":"rotation"}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast got %q", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client")
	}

	// Drain the stuck frame, then expect the channel to be closed.
	<-slow.send
	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow client to be closed")

	if n := hub.Clients(); n != 1 {
		t.Fatalf("expected 1 client left, got %d", n)
	}
}

func TestConvertBroadcast_Rotation(t *testing.T) {
	at := time.Unix(5000, 0).UTC()
	typ, gotAt, data, ok := convertBroadcast(BroadcastRotation{
		Encoder:    "knob",
		Reading:    qdec.Reading{Mode: qdec.ModeDegrees, Whole: 7, Frac: 500_000},
		TotalWhole: 22,
		TotalFrac:  500_000,
		At:         at,
	})
	if !ok || typ != "rotation" || !gotAt.Equal(at) {
		t.Fatalf("unexpected conversion: %q %v %v", typ, gotAt, ok)
	}
	d := data.(wsRotationData)
	if d.Mode != "degrees" || d.Whole != 7 || d.Frac != 500_000 || d.TotalWhole != 22 {
		t.Fatalf("unexpected data: %+v", d)
	}
	if d.Degrees == nil || *d.Degrees != 7.5 {
		t.Fatalf("expected 7.5 degrees, got %v", d.Degrees)
	}

	_, _, data, _ = convertBroadcast(BroadcastRotation{Reading: qdec.Reading{Mode: qdec.ModeTicks, Whole: 2}})
	if data.(wsRotationData).Degrees != nil {
		t.Fatalf("ticks readings must not carry degrees")
	}
}

func TestStateWS_InitThenRotation(t *testing.T) {
	h := startDaemon(t, simEncoder("knob", 24, 0))

	ws := NewStateServer(testLogger(), h.events, HubConfig{})
	runHub(t, ws.Hub())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go RunBroadcaster(ctx, ws.Hub(), h.sink, testLogger())

	srv := httptest.NewServer(newRouter(h.events, ws, testLogger()))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	read := func() frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		return f
	}

	f := read()
	if f.Type != "state_init" {
		t.Fatalf("expected state_init first, got %q", f.Type)
	}
	var snap StateSnapshot
	if err := json.Unmarshal(f.Data, &snap); err != nil || len(snap.Encoders) != 1 {
		t.Fatalf("bad state_init payload: %s (%v)", f.Data, err)
	}

	waitUntil(t, time.Second, func() bool { return ws.Hub().Clients() == 1 }, "client not registered")
	turn(t, h.set, "knob", 1)

	f = read()
	if f.Type != "rotation" {
		t.Fatalf("expected rotation, got %q", f.Type)
	}
	var d wsRotationData
	if err := json.Unmarshal(f.Data, &d); err != nil {
		t.Fatalf("decode rotation: %v", err)
	}
	if d.Encoder != "knob" || d.Whole != 15 {
		t.Fatalf("unexpected rotation: %+v", d)
	}
}
