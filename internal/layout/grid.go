package layout

import (
	"encoding/json"
	"fmt"
	"sort"
)

const (
	DefaultPageCount = 1
	DefaultRows      = 3
	DefaultCols      = 5

	// MaxCells bounds PageCount x Rows x Cols.
	MaxCells = 10000
)

// Position addresses a single cell.
type Position struct {
	Page int `json:"page"`
	Row  int `json:"row"`
	Col  int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("page %d, row %d, col %d", p.Page, p.Row, p.Col)
}

// Grid is the paged rows x cols arrangement of button ids. An empty string is
// an empty cell.
type Grid struct {
	PageCount int
	Rows      int
	Cols      int
	Pages     map[int][][]string
}

// ValidDimensions reports whether every dimension is at least 1 and the grid
// holds no more than MaxCells cells.
func ValidDimensions(pageCount, rows, cols int) bool {
	if pageCount < 1 || rows < 1 || cols < 1 {
		return false
	}
	if pageCount > MaxCells || rows > MaxCells || cols > MaxCells {
		return false
	}
	n := pageCount * rows
	return n <= MaxCells && n*cols <= MaxCells
}

// NewGrid allocates an empty grid. Dimensions below 1 are clamped to 1, and a
// grid that would exceed MaxCells gets the default dimensions instead.
func NewGrid(pageCount, rows, cols int) Grid {
	pageCount, rows, cols = max(1, pageCount), max(1, rows), max(1, cols)
	if !ValidDimensions(pageCount, rows, cols) {
		pageCount, rows, cols = DefaultPageCount, DefaultRows, DefaultCols
	}
	g := Grid{
		PageCount: pageCount,
		Rows:      rows,
		Cols:      cols,
		Pages:     make(map[int][][]string),
	}
	for p := 0; p < g.PageCount; p++ {
		g.Pages[p] = emptyPage(g.Rows, g.Cols)
	}
	return g
}

func emptyPage(rows, cols int) [][]string {
	page := make([][]string, rows)
	for r := range page {
		page[r] = make([]string, cols)
	}
	return page
}

// Clone returns a deep copy.
func (g Grid) Clone() Grid {
	out := Grid{PageCount: g.PageCount, Rows: g.Rows, Cols: g.Cols, Pages: make(map[int][][]string, len(g.Pages))}
	for idx, page := range g.Pages {
		cp := make([][]string, len(page))
		for r, row := range page {
			cp[r] = append([]string(nil), row...)
		}
		out.Pages[idx] = cp
	}
	return out
}

func (g Grid) inBounds(pos Position) bool {
	return pos.Page >= 0 && pos.Page < g.PageCount &&
		pos.Row >= 0 && pos.Row < g.Rows &&
		pos.Col >= 0 && pos.Col < g.Cols
}

// Capacity is the total number of cells.
func (g Grid) Capacity() int {
	return g.PageCount * g.Rows * g.Cols
}

// each visits every cell in page, row, column order.
func (g Grid) each(fn func(pos Position, id string)) {
	for p := 0; p < g.PageCount; p++ {
		page := g.Pages[p]
		for r := 0; r < len(page); r++ {
			for c := 0; c < len(page[r]); c++ {
				fn(Position{Page: p, Row: r, Col: c}, page[r][c])
			}
		}
	}
}

// Normalize repairs a grid read from storage so that every page in
// [0, PageCount) exists with exactly Rows x Cols cells. It returns the repaired
// grid and a description of each repair.
func Normalize(g Grid) (Grid, []string) {
	var notes []string
	if g.PageCount < 1 || g.Rows < 1 || g.Cols < 1 {
		notes = append(notes, fmt.Sprintf("invalid dimensions %dx%dx%d clamped to at least 1", g.PageCount, g.Rows, g.Cols))
	}
	if !ValidDimensions(max(1, g.PageCount), max(1, g.Rows), max(1, g.Cols)) {
		notes = append(notes, fmt.Sprintf("dimensions %dx%dx%d exceed %d cells, layout re-initialized to %dx%dx%d",
			g.PageCount, g.Rows, g.Cols, MaxCells, DefaultPageCount, DefaultRows, DefaultCols))
		return NewGrid(DefaultPageCount, DefaultRows, DefaultCols), notes
	}
	out := NewGrid(g.PageCount, g.Rows, g.Cols)

	if len(g.Pages) != out.PageCount || g.Pages[0] == nil {
		notes = append(notes, "pages missing or inconsistent with page_count, layout re-initialized")
		return out, notes
	}

	for p := 0; p < out.PageCount; p++ {
		src, ok := g.Pages[p]
		if !ok {
			notes = append(notes, fmt.Sprintf("page %d missing, left empty", p))
			continue
		}
		if !hasShape(src, out.Rows, out.Cols) {
			notes = append(notes, fmt.Sprintf("page %d does not match %dx%d, overlapping cells kept", p, out.Rows, out.Cols))
		}
		for r := 0; r < out.Rows && r < len(src); r++ {
			for c := 0; c < out.Cols && c < len(src[r]); c++ {
				out.Pages[p][r][c] = src[r][c]
			}
		}
	}
	return out, notes
}

func hasShape(page [][]string, rows, cols int) bool {
	if len(page) != rows {
		return false
	}
	for _, row := range page {
		if len(row) != cols {
			return false
		}
	}
	return true
}

type gridJSON struct {
	PageCount int               `json:"page_count"`
	Rows      int               `json:"rows_per_page"`
	Cols      int               `json:"cols_per_page"`
	Pages     []json.RawMessage `json:"pages"`
}

// MarshalJSON writes pages as an array of [pageIndex, rows] pairs, ordered by
// page index.
func (g Grid) MarshalJSON() ([]byte, error) {
	idx := make([]int, 0, len(g.Pages))
	for p := range g.Pages {
		idx = append(idx, p)
	}
	sort.Ints(idx)

	out := gridJSON{PageCount: g.PageCount, Rows: g.Rows, Cols: g.Cols, Pages: make([]json.RawMessage, 0, len(idx))}
	for _, p := range idx {
		pair, err := json.Marshal([]any{p, g.Pages[p]})
		if err != nil {
			return nil, err
		}
		out.Pages = append(out.Pages, pair)
	}
	return json.Marshal(out)
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	in := gridJSON{PageCount: DefaultPageCount, Rows: DefaultRows, Cols: DefaultCols}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	pages := make(map[int][][]string, len(in.Pages))
	for i, raw := range in.Pages {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return fmt.Errorf("pages[%d]: expected [index, grid] pair", i)
		}
		var idx int
		if err := json.Unmarshal(pair[0], &idx); err != nil {
			return fmt.Errorf("pages[%d] index: %w", i, err)
		}
		var cells [][]string
		if err := json.Unmarshal(pair[1], &cells); err != nil {
			return fmt.Errorf("pages[%d] grid: %w", i, err)
		}
		pages[idx] = cells
	}
	*g = Grid{PageCount: in.PageCount, Rows: in.Rows, Cols: in.Cols, Pages: pages}
	return nil
}
