// Package diagtest writes NetCDF snapshot fixtures for tests.
package diagtest

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ctessum/cdf"

	"github.com/notargets/kppmap/grid"
)

// SnapshotDims are the dimension names of a per-interval variable
var SnapshotDims = []string{"time", "lev", "nf", "Ydim", "Xdim"}

// WriteSnapshot writes a NetCDF classic file at path holding vars, each
// shaped like d.SnapshotShape() and given in flattened C order.
func WriteSnapshot(t testing.TB, path string, d grid.Dims, vars map[string][]float64) {
	t.Helper()

	shape := d.SnapshotShape()
	h := cdf.NewHeader(SnapshotDims, shape)
	h.AddAttribute("", "title", "kppmap test snapshot")

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.AddVariable(name, SnapshotDims, []float32{0})
	}
	h.Define()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	cf, err := cdf.Create(f, h)
	if err != nil {
		t.Fatalf("write header %s: %v", path, err)
	}

	for _, name := range names {
		values := vars[name]
		data := make([]float32, len(values))
		for i, v := range values {
			data[i] = float32(v)
		}
		w := cf.Writer(name, make([]int, len(shape)), shape)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %s to %s: %v", name, path, err)
		}
	}
}

// LayerValues spreads per-cell values over a full snapshot variable: layer
// l of cell c gets perLayer(l, c), padding layers stay zero.
func LayerValues(d grid.Dims, perLayer func(layer, cell int) float64) []float64 {
	n := d.NumCells()
	out := make([]float64, d.Layers*n)
	for l := 0; l < d.ActiveLayers; l++ {
		for c := 0; c < n; c++ {
			out[d.LayerOffset(l)+c] = perLayer(l, c)
		}
	}
	return out
}

// Constant fills every active layer of cell c with values[c]
func Constant(d grid.Dims, values []int) []float64 {
	return LayerValues(d, func(_, c int) float64 { return float64(values[c]) })
}
