// Package layout implements the paged button grid and its placement, swap and
// resize algorithms. Like the registry it is owned by a single goroutine and
// does no locking of its own.
package layout

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds       = errors.New("position out of bounds")
	ErrUnknownButton     = errors.New("button does not exist")
	ErrNotPlaced         = errors.New("button is not placed")
	ErrInvalidSwap       = errors.New("swap needs two distinct non-empty ids")
	ErrInvalidDimensions = errors.New("dimensions must be at least 1 and hold at most 10000 cells")
)

// Checker answers whether a button id is registered.
type Checker interface {
	Has(id string) bool
}

// Store owns a Grid and mutates it in place.
type Store struct {
	grid  Grid
	known Checker
}

// New creates an empty store. known may be nil, in which case every non-empty
// id is accepted by SetPosition.
func New(known Checker, pageCount, rows, cols int) *Store {
	return &Store{grid: NewGrid(pageCount, rows, cols), known: known}
}

// FromGrid wraps a previously persisted grid after normalizing it.
func FromGrid(known Checker, g Grid) (*Store, []string) {
	norm, notes := Normalize(g)
	return &Store{grid: norm, known: known}, notes
}

// Grid returns a deep copy of the current grid.
func (s *Store) Grid() Grid {
	return s.grid.Clone()
}

func (s *Store) Dimensions() (pageCount, rows, cols int) {
	return s.grid.PageCount, s.grid.Rows, s.grid.Cols
}

func (s *Store) checkBounds(pos Position) error {
	if !s.grid.inBounds(pos) {
		return fmt.Errorf("%w: %s (grid is %dx%dx%d)", ErrOutOfBounds, pos, s.grid.PageCount, s.grid.Rows, s.grid.Cols)
	}
	return nil
}

// ButtonAt returns the id at pos, or "" for an empty or out of range cell.
func (s *Store) ButtonAt(pos Position) string {
	if !s.grid.inBounds(pos) {
		return ""
	}
	return s.grid.Pages[pos.Page][pos.Row][pos.Col]
}

// SetPosition writes id into pos. Any other cell already holding id is cleared
// first; whatever occupied pos is overwritten and becomes unplaced. An empty id
// clears the cell. It reports whether anything changed.
func (s *Store) SetPosition(id string, pos Position) (bool, error) {
	if err := s.checkBounds(pos); err != nil {
		return false, err
	}
	if id != "" && s.known != nil && !s.known.Has(id) {
		return false, fmt.Errorf("%w: %s", ErrUnknownButton, id)
	}

	changed := false
	if id != "" {
		s.grid.each(func(p Position, cur string) {
			if cur == id && p != pos {
				s.grid.Pages[p.Page][p.Row][p.Col] = ""
				changed = true
			}
		})
	}
	cell := &s.grid.Pages[pos.Page][pos.Row][pos.Col]
	if *cell != id {
		*cell = id
		changed = true
	}
	return changed, nil
}

// ClearPosition empties pos. Clearing an empty cell succeeds without change.
func (s *Store) ClearPosition(pos Position) (bool, error) {
	if err := s.checkBounds(pos); err != nil {
		return false, err
	}
	cell := &s.grid.Pages[pos.Page][pos.Row][pos.Col]
	if *cell == "" {
		return false, nil
	}
	*cell = ""
	return true, nil
}

// FindPosition returns the first cell holding id in page, row, column order.
func (s *Store) FindPosition(id string) (Position, bool) {
	if id == "" {
		return Position{}, false
	}
	for p := 0; p < s.grid.PageCount; p++ {
		for r, row := range s.grid.Pages[p] {
			for c, cur := range row {
				if cur == id {
					return Position{Page: p, Row: r, Col: c}, true
				}
			}
		}
	}
	return Position{}, false
}

// Swap exchanges the cells holding a and b. Both must be placed; on failure
// nothing changes.
func (s *Store) Swap(a, b string) error {
	if a == "" || b == "" || a == b {
		return ErrInvalidSwap
	}
	pa, ok := s.FindPosition(a)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPlaced, a)
	}
	pb, ok := s.FindPosition(b)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPlaced, b)
	}
	s.grid.Pages[pa.Page][pa.Row][pa.Col] = b
	s.grid.Pages[pb.Page][pb.Row][pb.Col] = a
	return nil
}

// Sweep clears every cell holding id and returns how many were cleared.
func (s *Store) Sweep(id string) int {
	if id == "" {
		return 0
	}
	cleared := 0
	s.grid.each(func(p Position, cur string) {
		if cur == id {
			s.grid.Pages[p.Page][p.Row][p.Col] = ""
			cleared++
		}
	})
	return cleared
}

// SweepUnknown clears cells whose id the checker does not know.
func (s *Store) SweepUnknown() []string {
	if s.known == nil {
		return nil
	}
	var stale []string
	s.grid.each(func(p Position, cur string) {
		if cur != "" && !s.known.Has(cur) {
			s.grid.Pages[p.Page][p.Row][p.Col] = ""
			stale = append(stale, cur)
		}
	})
	return stale
}

// Placed counts non-empty cells.
func (s *Store) Placed() int {
	n := 0
	s.grid.each(func(_ Position, cur string) {
		if cur != "" {
			n++
		}
	})
	return n
}

// Replace installs g wholesale, normalizing it first. Used to roll back a
// change whose persistence failed.
func (s *Store) Replace(g Grid) {
	s.grid, _ = Normalize(g)
}
