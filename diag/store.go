// Package diag is the read-only view of the solver's grid diagnostics.
//
// A snapshot is a key/value store of N-dimensional arrays, one per
// diagnostic variable. The pipeline only ever reads from a snapshot; the
// storage format itself is owned by the solver. NetCDFStore reads NetCDF
// classic files, MapStore holds arrays in memory.
package diag

import (
	"fmt"
	"sort"

	"github.com/ctessum/sparse"

	"github.com/notargets/kppmap/errdefs"
)

// Store is a read-only key/value array store
type Store interface {
	// Keys lists the variables in the store
	Keys() []string
	// Shape returns the dimensions of a variable without reading it
	Shape(key string) ([]int, error)
	// Read loads a whole variable
	Read(key string) (*sparse.DenseArray, error)
	// Close releases the underlying resources
	Close() error
}

// HasKey reports whether s holds key
func HasKey(s Store, key string) bool {
	for _, k := range s.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// MapStore is an in-memory Store
type MapStore map[string]*sparse.DenseArray

// Keys returns the variable names in sorted order
func (m MapStore) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Shape returns a copy of the variable's dimensions
func (m MapStore) Shape(key string) ([]int, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("variable %s: %w", key, errdefs.ErrKeyNotFound)
	}
	return append([]int(nil), v.Shape...), nil
}

// Read returns the stored array
func (m MapStore) Read(key string) (*sparse.DenseArray, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("variable %s: %w", key, errdefs.ErrKeyNotFound)
	}
	return v, nil
}

// Close is a no-op
func (m MapStore) Close() error { return nil }

// NewArray builds a dense array of the given shape from values
func NewArray(values []float64, shape ...int) (*sparse.DenseArray, error) {
	arr := sparse.ZerosDense(shape...)
	if len(arr.Elements) != len(values) {
		return nil, fmt.Errorf("shape %v holds %d elements, have %d", shape, len(arr.Elements), len(values))
	}
	copy(arr.Elements, values)
	return arr, nil
}

// ShapeEqual compares two shapes
func ShapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
