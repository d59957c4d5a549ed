package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newEchoServer starts a websocket server that echoes every frame back.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSendAndReceiveRoundTrip(t *testing.T) {
	srv := newEchoServer(t)

	received := make(chan []byte, 8)
	conn, err := Dial(Options{
		URL:     wsURL(srv),
		OnEvent: func(raw []byte) { received <- raw },
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if conn.Status() != StatusConnected {
		t.Fatalf("Status = %v, want connected", conn.Status())
	}

	if ok := conn.Send(map[string]string{"type": "cancel", "sessionId": "S1"}); !ok {
		t.Fatal("Send returned false while connected")
	}

	select {
	case raw := <-received:
		if !strings.Contains(string(raw), `"type":"cancel"`) {
			t.Errorf("unexpected echo payload: %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestEventsDeliveredInOrder(t *testing.T) {
	srv := newEchoServer(t)

	var mu sync.Mutex
	var got []string
	conn, err := Dial(Options{
		URL: wsURL(srv),
		OnEvent: func(raw []byte) {
			mu.Lock()
			got = append(got, string(raw))
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	want := []string{`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`}
	for i := range want {
		if !conn.Send(map[string]int{"n": i + 1}) {
			t.Fatal("Send failed")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= len(want) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only received %d of %d frames", n, len(want))
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, m := range want {
		if got[i] != m {
			t.Errorf("frame %d = %s, want %s", i, got[i], m)
		}
	}
}

func TestSendReturnsFalseAfterClose(t *testing.T) {
	srv := newEchoServer(t)

	conn, err := Dial(Options{URL: wsURL(srv), OnEvent: func([]byte) {}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if conn.Send(map[string]string{"type": "cancel"}) {
		t.Error("Send returned true after Close")
	}
	if conn.Status() != StatusDisconnected {
		t.Errorf("Status = %v, want disconnected", conn.Status())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := newEchoServer(t)

	conn, err := Dial(Options{URL: wsURL(srv), OnEvent: func([]byte) {}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOnCloseFiresWhenServerDrops(t *testing.T) {
	dropped := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close() // drop immediately
	}))
	defer srv.Close()

	closeCh := make(chan error, 1)
	conn, err := Dial(Options{
		URL:     wsURL(srv),
		OnEvent: func([]byte) {},
		OnClose: func(err error) {
			closeCh <- err
			close(dropped)
		},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-dropped:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired")
	}
}

func TestDialFailsFastWithoutReconnect(t *testing.T) {
	if _, err := Dial(Options{URL: "ws://127.0.0.1:1/nope", OnEvent: func([]byte) {}}); err == nil {
		t.Error("expected dial error")
	}
}

func TestReconnectAfterServerRestart(t *testing.T) {
	// httptest's CloseClientConnections does not reach hijacked
	// connections, and every upgraded websocket is hijacked. Track the
	// upgraded conns so the test can drop them itself.
	var mu sync.Mutex
	var live []*websocket.Conn
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		live = append(live, ws)
		mu.Unlock()
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	statusCh := make(chan Status, 16)
	received := make(chan []byte, 8)
	conn, err := Dial(Options{
		URL:          wsURL(srv),
		OnEvent:      func(raw []byte) { received <- raw },
		OnStatus:     func(s Status) { statusCh <- s },
		Reconnect:    true,
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// Wait for the initial connect, then bounce every live connection.
	waitStatus(t, statusCh, StatusConnected)
	mu.Lock()
	for _, ws := range live {
		ws.Close()
	}
	live = nil
	mu.Unlock()
	waitStatus(t, statusCh, StatusDisconnected)
	waitStatus(t, statusCh, StatusConnected)

	// The reconnected transport still round-trips frames.
	deadline := time.Now().Add(2 * time.Second)
	for !conn.Send(map[string]int{"n": 1}) {
		if time.Now().After(deadline) {
			t.Fatal("Send never succeeded after reconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("no echo after reconnect")
	}
}

func waitStatus(t *testing.T, ch <-chan Status, want Status) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-ch:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("never reached status %v", want)
		}
	}
}
