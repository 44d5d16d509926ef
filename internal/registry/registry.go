// Package registry holds the table of button definitions. It is a plain data
// structure: the owner goroutine is the only caller, so it carries no locks.
package registry

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyID     = errors.New("button id is empty")
	ErrEmptyName   = errors.New("button name is empty")
	ErrDuplicateID = errors.New("button id already exists")
	ErrIDMismatch  = errors.New("button id cannot be changed")
	ErrNotFound    = errors.New("button not found")
)

// Button is a named action bound to an identifier.
type Button struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ActionType  string `json:"action_type"`  // "launch_app", "open_url", "hotkey", "media_*", "play_sound"
	ActionParam string `json:"action_param"` // e.g. "notepad.exe", "CTRL+ALT+T", "https://example.com"
	IconPath    string `json:"icon_path"`
}

// Registry keeps buttons in insertion order with an index for lookups.
type Registry struct {
	buttons []Button
	index   map[string]int
}

func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// FromList builds a registry from a persisted list. Entries that would fail
// Add are skipped and reported in the returned error slice.
func FromList(buttons []Button) (*Registry, []error) {
	r := New()
	var skipped []error
	for _, b := range buttons {
		if err := r.Add(b); err != nil {
			skipped = append(skipped, fmt.Errorf("button %q: %w", b.ID, err))
		}
	}
	return r, skipped
}

func (r *Registry) Add(b Button) error {
	if b.ID == "" {
		return ErrEmptyID
	}
	if b.Name == "" {
		return ErrEmptyName
	}
	if _, ok := r.index[b.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
	}
	r.index[b.ID] = len(r.buttons)
	r.buttons = append(r.buttons, b)
	return nil
}

// Update replaces every field except the id.
func (r *Registry) Update(id string, b Button) error {
	if b.Name == "" {
		return ErrEmptyName
	}
	if b.ID != id {
		return fmt.Errorf("%w: %s != %s", ErrIDMismatch, b.ID, id)
	}
	i, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.buttons[i] = b
	return nil
}

// Remove deletes the definition. Sweeping the layout is the caller's job.
func (r *Registry) Remove(id string) error {
	i, ok := r.index[id]
	if !ok || id == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.buttons = append(r.buttons[:i], r.buttons[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.buttons); j++ {
		r.index[r.buttons[j].ID] = j
	}
	return nil
}

func (r *Registry) Get(id string) (Button, bool) {
	i, ok := r.index[id]
	if !ok {
		return Button{}, false
	}
	return r.buttons[i], true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// List returns a copy of all definitions in insertion order.
func (r *Registry) List() []Button {
	out := make([]Button, len(r.buttons))
	copy(out, r.buttons)
	return out
}

func (r *Registry) Len() int {
	return len(r.buttons)
}
