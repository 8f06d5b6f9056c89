// Package grid addresses the cells of a cubed-sphere diagnostics grid.
//
// A grid has Faces faces of Res x Res columns and Layers vertical layers, of
// which only the first ActiveLayers carry data. Every other package in this
// module addresses a column of the grid only through the linear cell index
// returned by Flatten, so the ordering below is load bearing:
//
//	cell = (face*Res + row)*Res + col
//
// which is the C-order flattening of a (Faces, Res, Res) array. A snapshot
// variable shaped (1, Layers, Faces, Res, Res) therefore stores layer l of
// cell c at element l*NumCells() + c.
package grid

import (
	"fmt"
)

// Dims describes the extent of a grid
type Dims struct {
	Faces        int // Number of cube faces (6 for a cubed sphere)
	Res          int // Columns along each face edge
	Layers       int // Total vertical layers stored in a snapshot, padding included
	ActiveLayers int // Leading layers carrying real data
}

// Coord locates a column on the grid
type Coord struct {
	Face int
	Row  int
	Col  int
}

// Validate checks the dimensions are usable
func (d Dims) Validate() error {
	if d.Faces <= 0 || d.Res <= 0 || d.Layers <= 0 || d.ActiveLayers <= 0 {
		return fmt.Errorf("invalid grid dimensions: faces=%d, res=%d, layers=%d, active=%d",
			d.Faces, d.Res, d.Layers, d.ActiveLayers)
	}
	if d.ActiveLayers > d.Layers {
		return fmt.Errorf("active layers %d exceed total layers %d", d.ActiveLayers, d.Layers)
	}
	return nil
}

// NumCells returns N = Faces*Res*Res
func (d Dims) NumCells() int {
	return d.Faces * d.Res * d.Res
}

// SnapshotShape returns the shape every per-interval variable is stored with
func (d Dims) SnapshotShape() []int {
	return []int{1, d.Layers, d.Faces, d.Res, d.Res}
}

// Flatten returns the linear cell index of c, or -1 if c is outside the grid
func (d Dims) Flatten(c Coord) int {
	if c.Face < 0 || c.Face >= d.Faces ||
		c.Row < 0 || c.Row >= d.Res ||
		c.Col < 0 || c.Col >= d.Res {
		return -1
	}
	return (c.Face*d.Res+c.Row)*d.Res + c.Col
}

// Unflatten is the inverse of Flatten
func (d Dims) Unflatten(cell int) (Coord, bool) {
	if cell < 0 || cell >= d.NumCells() {
		return Coord{}, false
	}
	perFace := d.Res * d.Res
	within := cell % perFace
	return Coord{
		Face: cell / perFace,
		Row:  within / d.Res,
		Col:  within % d.Res,
	}, true
}

// LayerOffset returns the element offset of layer in a flattened snapshot variable
func (d Dims) LayerOffset(layer int) int {
	return layer * d.NumCells()
}

// GridRows and GridCols give the shape of the exported rank grid.
// Rows run over (face, row) pairs, columns over col.
func (d Dims) GridRows() int { return d.Faces * d.Res }
func (d Dims) GridCols() int { return d.Res }

// Reshape lays a per-cell column out as GridRows() x GridCols()
func (d Dims) Reshape(values []int) ([][]int, error) {
	if len(values) != d.NumCells() {
		return nil, fmt.Errorf("reshape: have %d values, grid has %d cells", len(values), d.NumCells())
	}
	rows := make([][]int, d.GridRows())
	for r := range rows {
		start := r * d.GridCols()
		rows[r] = append([]int(nil), values[start:start+d.GridCols()]...)
	}
	return rows, nil
}

// Unreshape is the inverse of Reshape
func (d Dims) Unreshape(rows [][]int) ([]int, error) {
	if len(rows) != d.GridRows() {
		return nil, fmt.Errorf("unreshape: have %d rows, want %d", len(rows), d.GridRows())
	}
	values := make([]int, 0, d.NumCells())
	for r, row := range rows {
		if len(row) != d.GridCols() {
			return nil, fmt.Errorf("unreshape: row %d has %d columns, want %d", r, len(row), d.GridCols())
		}
		// Re-derive each index through Flatten so the two conventions cannot drift
		for c, v := range row {
			cell := d.Flatten(Coord{Face: r / d.Res, Row: r % d.Res, Col: c})
			if cell != len(values) {
				return nil, fmt.Errorf("unreshape: row %d col %d maps to cell %d, expected %d",
					r, c, cell, len(values))
			}
			values = append(values, v)
		}
	}
	return values, nil
}
