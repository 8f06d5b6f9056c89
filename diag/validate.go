package diag

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
)

// CheckShape asserts arr is shaped (1, Layers, Faces, Res, Res)
func CheckShape(key string, arr *sparse.DenseArray, d grid.Dims) error {
	want := d.SnapshotShape()
	if !ShapeEqual(arr.Shape, want) {
		return fmt.Errorf("%s shape is %v, want %v: %w", key, arr.Shape, want, errdefs.ErrAssertionFailed)
	}
	return nil
}

// CheckPadding asserts every layer from ActiveLayers up to Layers is zero
func CheckPadding(key string, arr *sparse.DenseArray, d grid.Dims) error {
	n := d.NumCells()
	end := d.LayerOffset(d.Layers)
	if len(arr.Elements) < end {
		return fmt.Errorf("%s holds %d values, %d layers of %d cells need %d: %w",
			key, len(arr.Elements), d.Layers, n, end, errdefs.ErrAssertionFailed)
	}
	for i := d.LayerOffset(d.ActiveLayers); i < end; i++ {
		if arr.Elements[i] != 0 {
			return fmt.Errorf("%s layers %d to %d are not all zeros (layer %d cell %d = %g): %w",
				key, d.ActiveLayers, d.Layers, i/n, i%n, arr.Elements[i], errdefs.ErrAssertionFailed)
		}
	}
	return nil
}

// CheckActiveLength asserts the active layers flatten to ActiveLayers*N values
func CheckActiveLength(key string, arr *sparse.DenseArray, d grid.Dims) error {
	want := d.LayerOffset(d.ActiveLayers)
	if len(arr.Elements) < want {
		return fmt.Errorf("%s active layers hold %d values, want %d: %w",
			key, len(arr.Elements), want, errdefs.ErrAssertionFailed)
	}
	return nil
}

// Layer returns the N values of one layer of a snapshot variable
func Layer(key string, arr *sparse.DenseArray, d grid.Dims, layer int) ([]float64, error) {
	n := d.NumCells()
	start := d.LayerOffset(layer)
	if layer < 0 || start+n > len(arr.Elements) {
		return nil, fmt.Errorf("%s has no layer %d for %d cells (holds %d values): %w",
			key, layer, n, len(arr.Elements), errdefs.ErrAssertionFailed)
	}
	return arr.Elements[start : start+n], nil
}

// Strict runs every shape and padding check on arr
func Strict(key string, arr *sparse.DenseArray, d grid.Dims) error {
	if err := CheckShape(key, arr, d); err != nil {
		return err
	}
	if err := CheckPadding(key, arr, d); err != nil {
		return err
	}
	return CheckActiveLength(key, arr, d)
}
