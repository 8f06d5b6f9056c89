package diag

import (
	"errors"
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/notargets/kppmap/errdefs"
)

// NetCDFStore reads variables from a NetCDF classic file. NetCDF-4
// diagnostics must be converted first (nccopy -k classic).
type NetCDFStore struct {
	path string
	file *os.File
	cf   *cdf.File
}

// OpenNetCDF opens the snapshot at path. The caller owns the returned store
// and must Close it.
func OpenNetCDF(path string) (*NetCDFStore, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", path, errdefs.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}

	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read netcdf header %s: %w", path, err)
	}
	return &NetCDFStore{path: path, file: f, cf: cf}, nil
}

// Path returns the file the store was opened from
func (s *NetCDFStore) Path() string { return s.path }

// Keys lists the variables in header order
func (s *NetCDFStore) Keys() []string {
	return s.cf.Header.Variables()
}

// Dimensions returns the dimension names of a variable
func (s *NetCDFStore) Dimensions(key string) []string {
	return s.cf.Header.Dimensions(key)
}

// Shape returns the dimension lengths of a variable
func (s *NetCDFStore) Shape(key string) ([]int, error) {
	if !HasKey(s, key) {
		return nil, fmt.Errorf("%s in %s: %w", key, s.path, errdefs.ErrKeyNotFound)
	}
	return s.cf.Header.Lengths(key), nil
}

// Read loads a whole variable as float64. Elements equal to the variable's
// _FillValue are read as zero.
func (s *NetCDFStore) Read(key string) (*sparse.DenseArray, error) {
	shape, err := s.Shape(key)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		shape = []int{1}
	}
	arr := sparse.ZerosDense(shape...)

	r := s.cf.Reader(key, nil, nil)
	buf := r.Zero(len(arr.Elements))
	n, err := r.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", key, s.path, err)
	}
	if n != len(arr.Elements) {
		return nil, fmt.Errorf("read %s from %s: dims are %d but read %d values: %w",
			key, s.path, len(arr.Elements), n, errdefs.ErrAssertionFailed)
	}

	if err := convertValues(arr.Elements, buf); err != nil {
		return nil, fmt.Errorf("read %s from %s: %w", key, s.path, err)
	}

	if fill, ok := s.fillValue(key); ok {
		for i, v := range arr.Elements {
			if v == fill {
				arr.Elements[i] = 0
			}
		}
	}
	return arr, nil
}

// Close releases the file handle
func (s *NetCDFStore) Close() error {
	return s.file.Close()
}

// fillValue returns the variable's _FillValue attribute as float64
func (s *NetCDFStore) fillValue(key string) (float64, bool) {
	attr := s.cf.Header.GetAttribute(key, "_FillValue")
	if attr == nil {
		return 0, false
	}
	vals := make([]float64, 1)
	if err := convertValues(vals, attr); err != nil {
		return 0, false
	}
	return vals[0], true
}

// convertValues copies a typed netcdf slice into dst
func convertValues(dst []float64, src interface{}) error {
	switch v := src.(type) {
	case []float64:
		copy(dst, v)
	case []float32:
		for i := range dst {
			dst[i] = float64(v[i])
		}
	case []int32:
		for i := range dst {
			dst[i] = float64(v[i])
		}
	case []int16:
		for i := range dst {
			dst[i] = float64(v[i])
		}
	case []int8:
		for i := range dst {
			dst[i] = float64(v[i])
		}
	case []uint8:
		for i := range dst {
			dst[i] = float64(v[i])
		}
	default:
		return fmt.Errorf("unsupported netcdf value type %T", src)
	}
	return nil
}
