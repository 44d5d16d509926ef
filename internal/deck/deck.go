// Package deck ties the button registry and the layout store together and
// persists them after every successful change. A Deck is owned by one
// goroutine; nothing here locks.
package deck

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"webdeck/internal/layout"
	"webdeck/internal/registry"
)

var (
	// ErrNotSaved means the change is live in memory but the persister failed.
	ErrNotSaved = errors.New("change applied but not saved")
	// ErrRolledBack means the persister failed and the change was undone.
	ErrRolledBack      = errors.New("change rolled back after save failure")
	ErrInvalidPreset   = errors.New("invalid preset name")
	ErrPresetNotFound  = errors.New("preset not found")
	ErrPresetsDisabled = errors.New("presets are not supported by this backend")
)

// Document is the persisted form of a deck and also the snapshot shape sent to
// clients.
type Document struct {
	Buttons []registry.Button `json:"buttons"`
	Layout  layout.Grid       `json:"layout"`
}

// Persister saves and loads the current document.
type Persister interface {
	Load() (Document, error)
	Save(doc Document) error
}

// PresetStore keeps named copies of a document. Persisters may implement it.
type PresetStore interface {
	SavePreset(name string, doc Document) error
	LoadPreset(name string) (Document, error)
	ListPresets() ([]string, error)
}

type Deck struct {
	reg   *registry.Registry
	store *layout.Store
	saver Persister
}

// New builds a deck from doc, repairing what it can. Each repair is logged.
// saver may be nil for an in-memory deck.
func New(doc Document, saver Persister) *Deck {
	reg, store := build(doc)
	return &Deck{reg: reg, store: store, saver: saver}
}

// Open loads the persisted document. When that fails the default deck is used
// and saved right away.
func Open(saver Persister) *Deck {
	doc, err := saver.Load()
	if err == nil {
		return New(doc, saver)
	}
	log.Printf("[deck] load failed, using default configuration: %v", err)
	d := New(DefaultDocument(), saver)
	if err := d.save(); err != nil {
		log.Printf("[deck] warning: %v", err)
	}
	return d
}

func build(doc Document) (*registry.Registry, *layout.Store) {
	reg, skipped := registry.FromList(doc.Buttons)
	for _, err := range skipped {
		log.Printf("[deck] skipping button: %v", err)
	}
	store, notes := layout.FromGrid(reg, doc.Layout)
	for _, n := range notes {
		log.Printf("[deck] layout: %s", n)
	}
	for _, id := range store.SweepUnknown() {
		log.Printf("[deck] layout referenced unknown button %q, cell cleared", id)
	}
	return reg, store
}

func (d *Deck) persist() error {
	if d.saver == nil {
		return nil
	}
	return d.saver.Save(d.Document())
}

func (d *Deck) save() error {
	if err := d.persist(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotSaved, err)
	}
	return nil
}

// Document returns a copy of the current state in persisted form.
func (d *Deck) Document() Document {
	return Document{Buttons: d.reg.List(), Layout: d.store.Grid()}
}

// Snapshot is Document with stale cell references removed.
func (d *Deck) Snapshot() Document {
	doc := d.Document()
	doc.Layout = sanitize(doc.Layout, d.reg)
	return doc
}

func sanitize(g layout.Grid, known layout.Checker) layout.Grid {
	for _, page := range g.Pages {
		for _, row := range page {
			for c, id := range row {
				if id != "" && !known.Has(id) {
					row[c] = ""
				}
			}
		}
	}
	return g
}

// MapIcons returns a copy of doc with every icon path passed through fn.
func (doc Document) MapIcons(fn func(string) string) Document {
	out := Document{Buttons: make([]registry.Button, len(doc.Buttons)), Layout: doc.Layout}
	for i, b := range doc.Buttons {
		b.IconPath = fn(b.IconPath)
		out.Buttons[i] = b
	}
	return out
}

func (d *Deck) Buttons() []registry.Button { return d.reg.List() }

func (d *Deck) Button(id string) (registry.Button, bool) { return d.reg.Get(id) }

func (d *Deck) Grid() layout.Grid { return d.store.Grid() }

func (d *Deck) FindPosition(id string) (layout.Position, bool) { return d.store.FindPosition(id) }

func (d *Deck) AddButton(b registry.Button) error {
	if err := d.reg.Add(b); err != nil {
		return err
	}
	return d.save()
}

func (d *Deck) UpdateButton(id string, b registry.Button) error {
	if err := d.reg.Update(id, b); err != nil {
		return err
	}
	return d.save()
}

// RemoveButton deletes the definition and clears every cell that held it.
func (d *Deck) RemoveButton(id string) error {
	if err := d.reg.Remove(id); err != nil {
		return err
	}
	if n := d.store.Sweep(id); n > 0 {
		log.Printf("[deck] removed %q from %d layout cell(s)", id, n)
	}
	return d.save()
}

func (d *Deck) SetPosition(id string, pos layout.Position) error {
	changed, err := d.store.SetPosition(id, pos)
	if err != nil || !changed {
		return err
	}
	return d.save()
}

func (d *Deck) ClearPosition(pos layout.Position) error {
	changed, err := d.store.ClearPosition(pos)
	if err != nil || !changed {
		return err
	}
	return d.save()
}

func (d *Deck) Swap(a, b string) error {
	if err := d.store.Swap(a, b); err != nil {
		return err
	}
	return d.save()
}

// Resize changes the grid dimensions. If the new grid cannot be saved the old
// one is restored and ErrRolledBack is returned.
func (d *Deck) Resize(pageCount, rows, cols int) (layout.ResizeResult, error) {
	prev := d.store.Grid()
	res, err := d.store.Resize(pageCount, rows, cols)
	if err != nil {
		return res, err
	}
	if len(res.Dropped) > 0 {
		log.Printf("[deck] resize to %dx%dx%d unplaced %v", pageCount, rows, cols, res.Dropped)
	}
	if err := d.persist(); err != nil {
		d.store.Replace(prev)
		return layout.ResizeResult{}, fmt.Errorf("%w: %w", ErrRolledBack, err)
	}
	return res, nil
}

// ValidatePresetName accepts plain file names only.
func ValidatePresetName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\:`) {
		return fmt.Errorf("%w: %q", ErrInvalidPreset, name)
	}
	return nil
}

func (d *Deck) presets() (PresetStore, error) {
	ps, ok := d.saver.(PresetStore)
	if !ok {
		return nil, ErrPresetsDisabled
	}
	return ps, nil
}

func (d *Deck) SavePreset(name string) error {
	if err := ValidatePresetName(name); err != nil {
		return err
	}
	ps, err := d.presets()
	if err != nil {
		return err
	}
	return ps.SavePreset(name, d.Document())
}

func (d *Deck) ListPresets() ([]string, error) {
	ps, err := d.presets()
	if err != nil {
		return nil, err
	}
	return ps.ListPresets()
}

// LoadPreset replaces buttons and layout with the named preset. The current
// state is untouched unless the preset was read successfully.
func (d *Deck) LoadPreset(name string) error {
	if err := ValidatePresetName(name); err != nil {
		return err
	}
	ps, err := d.presets()
	if err != nil {
		return err
	}
	doc, err := ps.LoadPreset(name)
	if err != nil {
		return err
	}
	d.reg, d.store = build(doc)
	log.Printf("[deck] loaded preset %q (%d buttons)", name, d.reg.Len())
	return d.save()
}
