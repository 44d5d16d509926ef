// Package hub is the network side of the deck: one goroutine owns the
// listener and the set of connected clients, serves the current snapshot to
// each new client and broadcasts a fresh one whenever the owner publishes.
package hub

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
)

var ErrAlreadyStarted = errors.New("hub already started")

// Enqueuer receives button ids pressed by remote clients.
type Enqueuer interface {
	Enqueue(id string)
}

type Option func(*Hub)

// WithRoutes mounts extra handlers on the hub's router.
func WithRoutes(fn func(r *mux.Router)) Option {
	return func(h *Hub) { h.routes = fn }
}

// WithBindWait sets how long Start waits to learn whether the port was bound.
func WithBindWait(d time.Duration) Option {
	return func(h *Hub) { h.bindWait = d }
}

// Hub maintains the set of active clients and broadcasts snapshots to them.
type Hub struct {
	queue    Enqueuer
	routes   func(r *mux.Router)
	bindWait time.Duration

	state      atomic.Pointer[[]byte]
	running    atomic.Bool
	shouldStop atomic.Bool
	port       atomic.Int32
	nclients   atomic.Int32

	register   chan *Client
	unregister chan *Client
	pending    chan struct{}

	mu       sync.Mutex
	started  bool
	stopping bool
	quit     chan struct{}
	done     chan struct{}

	// owned by the loop goroutine, in registration order
	clients []*Client
}

func New(queue Enqueuer, opts ...Option) *Hub {
	h := &Hub{
		queue:      queue,
		bindWait:   time.Second,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pending:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the HTTP handler served on the hub's port. Websocket
// upgrades are accepted on / and /ws.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter().SkipClean(true)
	r.Use(middleware.RequestID, middleware.Logger, middleware.Recoverer)
	r.HandleFunc("/ws", h.serveWs)
	r.Path("/").HeadersRegexp("Upgrade", "(?i)websocket").HandlerFunc(h.serveWs)
	if h.routes != nil {
		h.routes(r)
	}
	return r
}

// Start binds port on a new goroutine and runs the loop there. It waits
// briefly for the bind result; a nil error after the wait means the bind was
// still in progress and IsRunning reports the outcome.
func (h *Hub) Start(port int) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return ErrAlreadyStarted
	}
	h.started = true
	h.stopping = false
	h.shouldStop.Store(false)
	h.quit = make(chan struct{})
	h.done = make(chan struct{})
	quit, done := h.quit, h.done
	h.mu.Unlock()

	ready := make(chan error, 1)
	go h.run(port, quit, done, ready)

	select {
	case err := <-ready:
		return err
	case <-time.After(h.bindWait):
		log.Printf("[hub] port %d not bound after %s", port, h.bindWait)
		return nil
	}
}

func (h *Hub) run(port int, quit, done chan struct{}, ready chan<- error) {
	defer close(done)
	defer func() {
		h.mu.Lock()
		if h.done == done {
			h.started = false
		}
		h.mu.Unlock()
	}()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		h.running.Store(false)
		log.Printf("[hub] failed to listen on port %d: %v", port, err)
		ready <- err
		return
	}
	h.port.Store(int32(ln.Addr().(*net.TCPAddr).Port))

	srv := &http.Server{Handler: h.Router(), ReadHeaderTimeout: 10 * time.Second}
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[hub] serve: %v", err)
		}
	}()

	h.running.Store(true)
	log.Printf("[hub] listening on %s", ln.Addr())
	ready <- nil

	h.loop(quit)

	// Listener and client sockets are closed here, on the loop goroutine.
	srv.Close()
	for _, c := range h.clients {
		close(c.send)
		c.close()
	}
	h.clients = nil
	h.nclients.Store(0)
	<-served
	h.running.Store(false)
	log.Printf("[hub] stopped")
}

func (h *Hub) loop(quit <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.clients = append(h.clients, c)
			h.nclients.Store(int32(len(h.clients)))
			log.Printf("[hub] client %s connected from %s (%d total)", c.id, c.conn.RemoteAddr(), len(h.clients))
			if msg := h.stateMessage(TypeInitialState); msg != nil {
				h.deliver(c, msg)
			}
		case c := <-h.unregister:
			h.remove(c)
		case <-h.pending:
			h.broadcast()
		case <-quit:
			return
		}
	}
}

func (h *Hub) remove(c *Client) {
	for i, cur := range h.clients {
		if cur == c {
			h.clients = append(h.clients[:i], h.clients[i+1:]...)
			close(c.send)
			h.nclients.Store(int32(len(h.clients)))
			log.Printf("[hub] client %s disconnected (%d total)", c.id, len(h.clients))
			return
		}
	}
}

func (h *Hub) stateMessage(typ string) []byte {
	state := h.state.Load()
	if state == nil {
		return nil
	}
	msg, err := encodeState(typ, *state)
	if err != nil {
		log.Printf("[hub] encode %s: %v", typ, err)
		return nil
	}
	return msg
}

// deliver never blocks the loop. A client whose buffer is full misses this
// message but stays connected.
func (h *Hub) deliver(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		log.Printf("[hub] client %s is not keeping up, message dropped", c.id)
	}
}

// broadcast sends the current snapshot to every client in registration order.
func (h *Hub) broadcast() {
	msg := h.stateMessage(TypeStateUpdate)
	if msg == nil {
		return
	}
	for _, c := range h.clients {
		h.deliver(c, msg)
	}
}

// Publish replaces the snapshot and asks the loop to broadcast it. state must
// be the JSON payload ({"buttons":...,"layout":...}); Publish keeps its own
// copy. It never blocks: pending broadcasts coalesce and always send the
// latest snapshot.
func (h *Hub) Publish(state []byte) {
	cp := append([]byte(nil), state...)
	h.state.Store(&cp)
	select {
	case h.pending <- struct{}{}:
	default:
	}
}

// Stop closes the listener and every client, then waits for the loop to
// exit. It is safe to call more than once but must not be called from a hub
// handler.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.shouldStop.Store(true)
	if !h.stopping {
		h.stopping = true
		close(h.quit)
	}
	done := h.done
	h.mu.Unlock()
	<-done
}

// accepting returns the current run's quit channel unless the hub is stopped
// or stopping.
func (h *Hub) accepting() (<-chan struct{}, bool) {
	if h.shouldStop.Load() {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started || h.stopping {
		return nil, false
	}
	return h.quit, true
}

// IsRunning reports whether the listener is bound and the loop is running.
func (h *Hub) IsRunning() bool { return h.running.Load() }

// Port is the bound port, useful after Start(0).
func (h *Hub) Port() int { return int(h.port.Load()) }

// Clients is the number of connected clients.
func (h *Hub) Clients() int { return int(h.nclients.Load()) }
