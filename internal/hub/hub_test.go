package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

type chanQueue chan string

func (q chanQueue) Enqueue(id string) { q <- id }

func startHub(t *testing.T, opts ...Option) (*Hub, chanQueue) {
	t.Helper()
	q := make(chanQueue, 16)
	h := New(q, opts...)
	if err := h.Start(0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(h.Stop)
	return h, q
}

func dial(t *testing.T, h *Hub, path string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://127.0.0.1:%d%s", h.Port(), path)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", data, err)
	}
	return msg
}

func TestStartStop(t *testing.T) {
	h := New(make(chanQueue, 1))
	if h.IsRunning() {
		t.Fatal("IsRunning() before Start")
	}
	h.Stop() // no-op before Start

	if err := h.Start(0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !h.IsRunning() || h.Port() == 0 {
		t.Fatalf("IsRunning() = %v, Port() = %d", h.IsRunning(), h.Port())
	}
	if err := h.Start(0); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	h.Stop()
	h.Stop()
	if h.IsRunning() {
		t.Error("IsRunning() after Stop")
	}

	if err := h.Start(0); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if !h.IsRunning() {
		t.Error("IsRunning() false after restart")
	}
	h.Stop()
}

func TestStart_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	h := New(make(chanQueue, 1))
	if err := h.Start(port); err == nil {
		h.Stop()
		t.Fatal("Start() on a taken port returned nil")
	}
	if h.IsRunning() {
		t.Error("IsRunning() after failed bind")
	}
	h.Stop()
}

func TestInitialStateAndBroadcast(t *testing.T) {
	h, _ := startHub(t)
	h.Publish([]byte(`{"buttons":[],"layout":{"page_count":1}}`))

	a := dial(t, h, "/ws")
	b := dial(t, h, "/")
	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Type != TypeInitialState {
			t.Fatalf("first message type = %q, want initial_state", msg.Type)
		}
		if string(msg.Payload) != `{"buttons":[],"layout":{"page_count":1}}` {
			t.Errorf("initial payload = %s", msg.Payload)
		}
	}

	h.Publish([]byte(`{"buttons":[{"id":"x"}]}`))
	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg.Type != TypeStateUpdate {
			t.Fatalf("message type = %q, want state_update", msg.Type)
		}
		if string(msg.Payload) != `{"buttons":[{"id":"x"}]}` {
			t.Errorf("update payload = %s", msg.Payload)
		}
	}
}

func TestPublishBeforeStart(t *testing.T) {
	h := New(make(chanQueue, 1))
	h.Publish([]byte(`{"buttons":[]}`))
	if err := h.Start(0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(h.Stop)

	msg := readMessage(t, dial(t, h, "/ws"))
	if msg.Type != TypeInitialState || string(msg.Payload) != `{"buttons":[]}` {
		t.Errorf("first message = %s %s, want initial_state with the published snapshot", msg.Type, msg.Payload)
	}
}

// A client whose buffer is full misses the update without holding up the
// clients after it, and stays registered.
func TestBroadcastSkipsStalledClient(t *testing.T) {
	h := New(make(chanQueue, 1))
	stalled := &Client{id: "stalled", hub: h, send: make(chan []byte, 1)}
	stalled.send <- []byte("old")
	live := &Client{id: "live", hub: h, send: make(chan []byte, 1)}
	h.clients = []*Client{stalled, live}

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		h.loop(quit)
		close(done)
	}()

	h.Publish([]byte(`{"buttons":[{"id":"x"}]}`))

	select {
	case data := <-live.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		if msg.Type != TypeStateUpdate || string(msg.Payload) != `{"buttons":[{"id":"x"}]}` {
			t.Errorf("live client got %s %s", msg.Type, msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("live client never received the update")
	}

	close(quit)
	<-done

	if len(h.clients) != 2 || h.clients[0] != stalled || h.clients[1] != live {
		t.Errorf("clients after broadcast = %v, want both in registration order", h.clients)
	}
	if len(stalled.send) != 1 || string(<-stalled.send) != "old" {
		t.Error("stalled client's buffer changed")
	}
}

func TestPublishKeepsCopy(t *testing.T) {
	h, _ := startHub(t)
	state := []byte(`{"v":1}`)
	h.Publish(state)
	state[5] = '2'

	conn := dial(t, h, "/ws")
	if msg := readMessage(t, conn); string(msg.Payload) != `{"v":1}` {
		t.Errorf("payload = %s, want the published bytes", msg.Payload)
	}
}

func TestTriggerForwarded(t *testing.T) {
	h, q := startHub(t)
	conn := dial(t, h, "/ws")

	frames := []string{
		`not json`,
		`{"type":"hello"}`,
		`{"type":"button_press","payload":{}}`,
		`{"type":"button_press","payload":{"button_id":"btn_a"}}`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
	}

	select {
	case id := <-q:
		if id != "btn_a" {
			t.Errorf("enqueued %q, want btn_a", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trigger was not forwarded")
	}
	select {
	case id := <-q:
		t.Errorf("unexpected extra enqueue %q", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopClosesClients(t *testing.T) {
	h := New(make(chanQueue, 1))
	if err := h.Start(0); err != nil {
		t.Fatal(err)
	}
	port := h.Port()
	conn := dial(t, h, "/ws")

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	h.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client still readable after Stop")
	}
	if _, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://127.0.0.1:%d/ws", port), nil); err == nil {
		t.Error("Dial() succeeded after Stop")
	}
}

func TestWithRoutes(t *testing.T) {
	h, _ := startHub(t, WithRoutes(func(r *mux.Router) {
		r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		})
	}))

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", h.Port()))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `{"type":"button_press","payload":{"button_id":"a"}}`, want: "a"},
		{in: `{"type":"button_press","payload":{"button_id":""}}`, wantErr: true},
		{in: `{"type":"button_press"}`, wantErr: true},
		{in: `{"type":"state_update","payload":{}}`, wantErr: true},
		{in: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTrigger([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTrigger(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTrigger(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}

	frame, err := EncodeTrigger("b")
	if err != nil {
		t.Fatal(err)
	}
	if id, err := ParseTrigger(frame); err != nil || id != "b" {
		t.Errorf("round trip = %q, %v", id, err)
	}
}
