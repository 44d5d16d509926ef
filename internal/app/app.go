// Package app runs the owner loop. One goroutine holds the deck: it drains
// the dispatch queue on every tick, applies configuration changes submitted
// from other goroutines and publishes a fresh snapshot after each change.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"webdeck/internal/deck"
	"webdeck/internal/dispatch"
	"webdeck/internal/history"
	"webdeck/internal/static"
)

var ErrStopped = errors.New("owner loop is not running")

// Publisher receives every new snapshot payload. The hub implements it.
type Publisher interface {
	Publish(state []byte)
}

// Mirror forwards snapshots off-process. The Redis relay implements it.
type Mirror interface {
	Publish(ctx context.Context, state []byte) error
}

// Recorder stores drained requests.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

type Option func(*App)

func WithTick(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.tick = d
		}
	}
}

// WithIconsRoot sets the directory icon paths are mapped against in snapshots.
func WithIconsRoot(root string) Option {
	return func(a *App) { a.iconsRoot = root }
}

func WithMirror(m Mirror) Option {
	return func(a *App) { a.mirror = m }
}

func WithHistory(r Recorder) Option {
	return func(a *App) { a.history = r }
}

type command struct {
	fn     func(*deck.Deck) error
	notify bool
	reply  chan error
}

type App struct {
	deck      *deck.Deck
	queue     *dispatch.Queue
	exec      dispatch.Executor
	pub       Publisher
	mirror    Mirror
	history   Recorder
	iconsRoot string
	tick      time.Duration

	commands chan command
	mirrored chan []byte
	done     chan struct{}
}

func New(d *deck.Deck, q *dispatch.Queue, exec dispatch.Executor, pub Publisher, opts ...Option) *App {
	a := &App{
		deck:      d,
		queue:     q,
		exec:      exec,
		pub:       pub,
		iconsRoot: "assets/icons",
		tick:      16 * time.Millisecond,
		commands:  make(chan command),
		mirrored:  make(chan []byte, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run owns the deck until ctx ends. It publishes the current snapshot before
// serving anything.
func (a *App) Run(ctx context.Context) {
	defer close(a.done)

	if a.mirror != nil {
		go a.mirrorLoop(ctx)
	}
	a.NotifyChanged()

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Anything still queued is handled before the loop exits.
			a.drain(context.Background())
			return
		case <-ticker.C:
			a.drain(ctx)
		case cmd := <-a.commands:
			err := cmd.fn(a.deck)
			if cmd.notify && (err == nil || errors.Is(err, deck.ErrNotSaved)) {
				a.NotifyChanged()
			}
			cmd.reply <- err
		}
	}
}

// Do runs fn on the owner goroutine and waits for its result. When fn
// succeeds, or its change was applied but not saved, clients get a new
// snapshot. ctx only bounds the wait for the owner to take the command; once
// taken, Do returns fn's own result.
func (a *App) Do(ctx context.Context, fn func(d *deck.Deck) error) error {
	return a.submit(ctx, command{fn: fn, notify: true})
}

// View runs fn on the owner goroutine without publishing a snapshot. It is
// for reads and for work that does not change the deck, such as saving a
// preset.
func (a *App) View(ctx context.Context, fn func(d *deck.Deck) error) error {
	return a.submit(ctx, command{fn: fn})
}

func (a *App) submit(ctx context.Context, cmd command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd.reply = make(chan error, 1)
	select {
	case a.commands <- cmd:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Accepted commands always run to completion, so wait for the real result.
	return <-cmd.reply
}

// RequestAction queues a press of id. Safe from any goroutine.
func (a *App) RequestAction(id string) {
	a.queue.Enqueue(id)
}

// snapshot is the payload clients see.
func (a *App) snapshot() ([]byte, error) {
	doc := a.deck.Snapshot().MapIcons(func(p string) string {
		return static.WebIconPath(a.iconsRoot, p)
	})
	return json.Marshal(doc)
}

// NotifyChanged publishes the current snapshot. Owner goroutine only, or
// before Run has started.
func (a *App) NotifyChanged() {
	state, err := a.snapshot()
	if err != nil {
		log.Printf("[app] encode snapshot: %v", err)
		return
	}
	a.pub.Publish(state)
	if a.mirror != nil {
		// Only the owner sends, so after dropping a stale payload the send
		// cannot block.
		select {
		case a.mirrored <- state:
		default:
			select {
			case <-a.mirrored:
			default:
			}
			a.mirrored <- state
		}
	}
}

func (a *App) mirrorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-a.mirrored:
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := a.mirror.Publish(pctx, state); err != nil {
				log.Printf("[app] mirror snapshot: %v", err)
			}
			cancel()
		}
	}
}

func (a *App) drain(ctx context.Context) {
	if a.queue.Len() == 0 {
		return
	}
	for _, r := range a.queue.Drain(a.deck, a.exec) {
		a.record(ctx, r)
	}
}

func (a *App) record(ctx context.Context, r dispatch.Result) {
	if a.history == nil {
		return
	}
	e := history.Entry{
		ButtonID:    r.ID,
		ActionType:  r.Kind,
		ActionParam: r.Param,
		OK:          r.Err == nil,
		At:          r.At,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.history.Record(rctx, e); err != nil {
		log.Printf("[app] record history: %v", err)
	}
}
