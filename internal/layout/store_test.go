package layout

import (
	"errors"
	"testing"
)

type knownSet map[string]bool

func (k knownSet) Has(id string) bool { return k[id] }

func newStore(t *testing.T, pages, rows, cols int, ids ...string) *Store {
	t.Helper()
	known := knownSet{}
	for _, id := range ids {
		known[id] = true
	}
	return New(known, pages, rows, cols)
}

func mustSet(t *testing.T, s *Store, id string, pos Position) {
	t.Helper()
	if _, err := s.SetPosition(id, pos); err != nil {
		t.Fatalf("SetPosition(%q, %v) error = %v", id, pos, err)
	}
}

func TestSetPosition_Validation(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		pos     Position
		wantErr error
	}{
		{name: "valid", id: "a", pos: Position{0, 2, 4}},
		{name: "page out of range", id: "a", pos: Position{1, 0, 0}, wantErr: ErrOutOfBounds},
		{name: "negative row", id: "a", pos: Position{0, -1, 0}, wantErr: ErrOutOfBounds},
		{name: "col out of range", id: "a", pos: Position{0, 0, 5}, wantErr: ErrOutOfBounds},
		{name: "unknown id", id: "ghost", pos: Position{0, 0, 0}, wantErr: ErrUnknownButton},
		{name: "empty id clears", id: "", pos: Position{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, 1, 3, 5, "a")
			_, err := s.SetPosition(tt.id, tt.pos)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetPosition() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && s.Placed() != 0 {
				t.Errorf("Placed() = %d after rejected placement, want 0", s.Placed())
			}
		})
	}
}

func TestSetPosition_MovesExistingPlacement(t *testing.T) {
	s := newStore(t, 2, 2, 2, "a")
	mustSet(t, s, "a", Position{0, 0, 0})
	mustSet(t, s, "a", Position{1, 1, 1})

	if got := s.ButtonAt(Position{0, 0, 0}); got != "" {
		t.Errorf("old cell = %q, want empty", got)
	}
	pos, ok := s.FindPosition("a")
	if !ok || pos != (Position{1, 1, 1}) {
		t.Errorf("FindPosition(a) = %v, %v; want {1 1 1}", pos, ok)
	}
	if s.Placed() != 1 {
		t.Errorf("Placed() = %d, want 1", s.Placed())
	}
}

func TestSetPosition_SamePlaceIsNoop(t *testing.T) {
	s := newStore(t, 1, 3, 3, "a")
	mustSet(t, s, "a", Position{0, 1, 1})

	changed, err := s.SetPosition("a", Position{0, 1, 1})
	if err != nil {
		t.Fatalf("SetPosition() error = %v", err)
	}
	if changed {
		t.Error("SetPosition() changed = true for a button already in place")
	}
	if got := s.ButtonAt(Position{0, 1, 1}); got != "a" {
		t.Errorf("ButtonAt() = %q, want a", got)
	}
}

func TestSetPosition_Displaces(t *testing.T) {
	s := newStore(t, 1, 3, 3, "a", "b")
	target := Position{0, 2, 1}
	mustSet(t, s, "b", target)
	mustSet(t, s, "a", target)

	if _, ok := s.FindPosition("b"); ok {
		t.Error("FindPosition(b) found a placement after being displaced")
	}
	if pos, ok := s.FindPosition("a"); !ok || pos != target {
		t.Errorf("FindPosition(a) = %v, %v; want %v", pos, ok, target)
	}
}

func TestClearPosition(t *testing.T) {
	s := newStore(t, 1, 2, 2, "a")
	mustSet(t, s, "a", Position{0, 0, 1})

	if changed, err := s.ClearPosition(Position{0, 0, 1}); err != nil || !changed {
		t.Fatalf("ClearPosition() = %v, %v; want true, nil", changed, err)
	}
	if changed, err := s.ClearPosition(Position{0, 0, 1}); err != nil || changed {
		t.Errorf("ClearPosition() on empty cell = %v, %v; want false, nil", changed, err)
	}
	if _, err := s.ClearPosition(Position{0, 5, 0}); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ClearPosition() out of bounds error = %v", err)
	}
}

func TestSwap(t *testing.T) {
	s := newStore(t, 2, 3, 3, "a", "b", "c")
	pa, pb := Position{0, 0, 0}, Position{1, 2, 2}
	mustSet(t, s, "a", pa)
	mustSet(t, s, "b", pb)

	if err := s.Swap("a", "b"); err != nil {
		t.Fatalf("Swap() error = %v", err)
	}
	if got, _ := s.FindPosition("a"); got != pb {
		t.Errorf("after swap a at %v, want %v", got, pb)
	}

	if err := s.Swap("a", "b"); err != nil {
		t.Fatalf("second Swap() error = %v", err)
	}
	if got, _ := s.FindPosition("a"); got != pa {
		t.Errorf("after double swap a at %v, want %v", got, pa)
	}
	if got, _ := s.FindPosition("b"); got != pb {
		t.Errorf("after double swap b at %v, want %v", got, pb)
	}
}

func TestSwap_FailsAtomically(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		wantErr error
	}{
		{name: "second unplaced", a: "a", b: "c", wantErr: ErrNotPlaced},
		{name: "first unplaced", a: "c", b: "a", wantErr: ErrNotPlaced},
		{name: "same id", a: "a", b: "a", wantErr: ErrInvalidSwap},
		{name: "empty id", a: "", b: "a", wantErr: ErrInvalidSwap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, 1, 3, 3, "a", "b", "c")
			mustSet(t, s, "a", Position{0, 0, 0})
			mustSet(t, s, "b", Position{0, 1, 0})
			before := s.Grid()

			if err := s.Swap(tt.a, tt.b); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Swap() error = %v, want %v", err, tt.wantErr)
			}
			after := s.Grid()
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					if before.Pages[0][r][c] != after.Pages[0][r][c] {
						t.Errorf("cell (%d,%d) changed from %q to %q", r, c, before.Pages[0][r][c], after.Pages[0][r][c])
					}
				}
			}
		})
	}
}

func TestSweep(t *testing.T) {
	s := New(nil, 2, 2, 2)
	s.grid.Pages[0][0][0] = "a"
	s.grid.Pages[1][1][1] = "a"
	s.grid.Pages[0][1][0] = "b"

	if n := s.Sweep("a"); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if _, ok := s.FindPosition("a"); ok {
		t.Error("FindPosition(a) still finds a swept id")
	}
	if s.ButtonAt(Position{0, 1, 0}) != "b" {
		t.Error("Sweep() touched an unrelated cell")
	}
}

func TestSweepUnknown(t *testing.T) {
	s := newStore(t, 1, 2, 2, "a")
	s.grid.Pages[0][0][0] = "a"
	s.grid.Pages[0][1][1] = "stale"

	stale := s.SweepUnknown()
	if len(stale) != 1 || stale[0] != "stale" {
		t.Errorf("SweepUnknown() = %v, want [stale]", stale)
	}
	if s.Placed() != 1 {
		t.Errorf("Placed() = %d, want 1", s.Placed())
	}
}

func TestGridIsCopy(t *testing.T) {
	s := newStore(t, 1, 1, 1, "a")
	mustSet(t, s, "a", Position{0, 0, 0})
	g := s.Grid()
	g.Pages[0][0][0] = "mutated"
	if s.ButtonAt(Position{0, 0, 0}) != "a" {
		t.Error("Grid() returned a view of internal state")
	}
}
