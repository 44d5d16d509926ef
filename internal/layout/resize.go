package layout

import "fmt"

// ResizeResult describes where each previously placed button ended up.
type ResizeResult struct {
	Kept      []string `json:"kept"`      // same coordinates as before
	Relocated []string `json:"relocated"` // moved into a free cell
	Dropped   []string `json:"dropped"`   // no free cell left; still registered, no longer placed
}

type placement struct {
	pos Position
	id  string
}

// Resize installs a grid of the new dimensions. Buttons whose cell still
// exists stay put; the rest fill the remaining empty cells in page, row,
// column order, and whatever does not fit is unplaced. The store is only
// modified when the whole new grid has been built.
func (s *Store) Resize(pageCount, rows, cols int) (ResizeResult, error) {
	if !ValidDimensions(pageCount, rows, cols) {
		return ResizeResult{}, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, pageCount, rows, cols)
	}

	var occupied []placement
	s.grid.each(func(pos Position, id string) {
		if id != "" {
			occupied = append(occupied, placement{pos: pos, id: id})
		}
	})

	next := NewGrid(pageCount, rows, cols)
	var res ResizeResult
	placed := make(map[string]bool)
	var relocate []string

	for _, pl := range occupied {
		if next.inBounds(pl.pos) && next.Pages[pl.pos.Page][pl.pos.Row][pl.pos.Col] == "" {
			next.Pages[pl.pos.Page][pl.pos.Row][pl.pos.Col] = pl.id
			placed[pl.id] = true
			res.Kept = append(res.Kept, pl.id)
			continue
		}
		relocate = append(relocate, pl.id)
	}

	var free []Position
	next.each(func(pos Position, id string) {
		if id == "" {
			free = append(free, pos)
		}
	})

	for _, id := range relocate {
		if placed[id] {
			continue
		}
		if len(free) == 0 {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		pos := free[0]
		free = free[1:]
		next.Pages[pos.Page][pos.Row][pos.Col] = id
		placed[id] = true
		res.Relocated = append(res.Relocated, id)
	}

	s.grid = next
	return res, nil
}
