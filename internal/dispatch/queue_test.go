package dispatch

import (
	"errors"
	"sync"
	"testing"

	"webdeck/internal/registry"
)

type buttons map[string]registry.Button

func (b buttons) Button(id string) (registry.Button, bool) {
	btn, ok := b[id]
	return btn, ok
}

type call struct{ kind, param string }

type recorder struct {
	calls []call
	fail  map[string]error
}

func (r *recorder) Execute(kind, param string) error {
	r.calls = append(r.calls, call{kind, param})
	return r.fail[kind]
}

var known = buttons{
	"a": {ID: "a", Name: "A", ActionType: "open_url", ActionParam: "https://a"},
	"b": {ID: "b", Name: "B", ActionType: "hotkey", ActionParam: "CTRL+B"},
}

func TestDrain_FIFO(t *testing.T) {
	var q Queue
	q.Enqueue("b")
	q.Enqueue("a")
	q.Enqueue("b")

	rec := &recorder{}
	results := q.Drain(known, rec)

	want := []call{{"hotkey", "CTRL+B"}, {"open_url", "https://a"}, {"hotkey", "CTRL+B"}}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, rec.calls[i], want[i])
		}
	}
	if len(results) != 3 || q.Len() != 0 {
		t.Errorf("results = %d, Len() = %d", len(results), q.Len())
	}
}

func TestDrain_UnknownIDDoesNotBlockOthers(t *testing.T) {
	var q Queue
	q.Enqueue("ghost")
	q.Enqueue("a")

	rec := &recorder{}
	results := q.Drain(known, rec)

	if len(rec.calls) != 1 || rec.calls[0].param != "https://a" {
		t.Fatalf("calls = %v, want only a", rec.calls)
	}
	if !errors.Is(results[0].Err, ErrUnknownButton) {
		t.Errorf("results[0].Err = %v, want ErrUnknownButton", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("results[1].Err = %v", results[1].Err)
	}
}

func TestDrain_ExecutorFailures(t *testing.T) {
	var q Queue
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("a")

	calls := 0
	exec := ExecutorFunc(func(kind, param string) error {
		calls++
		switch kind {
		case "open_url":
			return errors.New("no browser")
		case "hotkey":
			panic("boom")
		}
		return nil
	})
	results := q.Drain(known, exec)

	if calls != 3 {
		t.Fatalf("executor called %d times, want 3", calls)
	}
	for i, r := range results {
		if r.Err == nil {
			t.Errorf("results[%d].Err = nil, want failure", i)
		}
	}
}

func TestDrain_ReentrantEnqueue(t *testing.T) {
	var q Queue
	q.Enqueue("a")

	var rec recorder
	exec := ExecutorFunc(func(kind, param string) error {
		if kind == "open_url" {
			q.Enqueue("b")
		}
		return rec.Execute(kind, param)
	})
	q.Drain(known, exec)

	if len(rec.calls) != 2 || rec.calls[1].kind != "hotkey" {
		t.Errorf("calls = %v, want a then b", rec.calls)
	}
}

func TestEnqueue_Concurrent(t *testing.T) {
	var q Queue
	var wg sync.WaitGroup
	const producers, each = 8, 200
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				q.Enqueue("a")
			}
		}()
	}

	executed := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	exec := ExecutorFunc(func(string, string) error { executed++; return nil })
	for {
		q.Drain(known, exec)
		select {
		case <-done:
			q.Drain(known, exec)
			if executed != producers*each {
				t.Errorf("executed = %d, want %d", executed, producers*each)
			}
			return
		default:
		}
	}
}
