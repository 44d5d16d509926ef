// Package dispatch hands button presses from any goroutine to the single
// owner goroutine that runs them.
package dispatch

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"webdeck/internal/registry"
)

var ErrUnknownButton = errors.New("unknown button")

// Resolver looks up the definition behind a queued id.
type Resolver interface {
	Button(id string) (registry.Button, bool)
}

// Executor runs one action.
type Executor interface {
	Execute(kind, param string) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(kind, param string) error

func (f ExecutorFunc) Execute(kind, param string) error { return f(kind, param) }

// Result records what happened to one drained request.
type Result struct {
	ID    string
	Kind  string
	Param string
	Err   error
	At    time.Time
}

// Queue is a FIFO of button ids. Enqueue is safe from any goroutine; Drain
// belongs to the owner.
type Queue struct {
	mu      sync.Mutex
	pending []string
}

func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	q.pending = append(q.pending, id)
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]
	return id, true
}

// Drain runs queued requests until the queue is empty. The lock is never held
// while resolving or executing, so an executor may enqueue more work; that work
// is drained by the same call. A failing or panicking executor is logged and
// does not stop the loop.
func (q *Queue) Drain(res Resolver, exec Executor) []Result {
	var results []Result
	for {
		id, ok := q.pop()
		if !ok {
			return results
		}
		r := Result{ID: id, At: time.Now()}
		b, found := res.Button(id)
		if !found {
			r.Err = fmt.Errorf("%w: %s", ErrUnknownButton, id)
			log.Printf("[dispatch] %v", r.Err)
			results = append(results, r)
			continue
		}
		r.Kind, r.Param = b.ActionType, b.ActionParam
		r.Err = run(exec, b.ActionType, b.ActionParam)
		if r.Err != nil {
			log.Printf("[dispatch] %s (%s %q) failed: %v", id, r.Kind, r.Param, r.Err)
		}
		results = append(results, r)
	}
}

func run(exec Executor, kind, param string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("executor panic: %v", p)
		}
	}()
	return exec.Execute(kind, param)
}
