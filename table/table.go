// Package table reads and writes the delimited text artifacts produced by
// the pipeline. Writes are atomic: data goes to a temporary file in the
// destination directory that is renamed into place only after every row
// has been written, so a failed run never leaves a partial artifact.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"github.com/notargets/kppmap/errdefs"
)

// Table is a header plus string rows
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the position of name in the header, or -1
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Write stores t at path using delim as the field separator.
// A nil header writes rows only.
func Write(path string, delim rune, t *Table) error {
	return WriteFunc(path, delim, func(w *csv.Writer) error {
		if t.Header != nil {
			if err := w.Write(t.Header); err != nil {
				return err
			}
		}
		for _, row := range t.Rows {
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteFunc streams rows produced by fill into path atomically
func WriteFunc(path string, delim rune, fill func(w *csv.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			err = multierr.Append(err, tmp.Close())
		}
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	w.Comma = delim
	if err = fill(w); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Read loads a delimited file. If header is true the first record becomes
// the table header. Records may have differing field counts.
func Read(path string, delim rune, header bool) (*Table, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	t := &Table{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if header && t.Header == nil {
			t.Header = rec
			continue
		}
		t.Rows = append(t.Rows, rec)
	}
	if header && t.Header == nil {
		return nil, fmt.Errorf("%s has no header: %w", path, errdefs.ErrAssertionFailed)
	}
	return t, nil
}

// Open opens path for reading, mapping a missing file onto ErrFileNotFound
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, errdefs.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Exists reports whether path names an existing file
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ParseInt parses an integer field. Float-formatted integers such as "3.0"
// are accepted; fractional values are not.
func ParseInt(field string) (int, error) {
	s := strings.TrimSpace(field)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", field)
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not an integer", field)
	}
	return int(f), nil
}

// FormatInts renders values as fields
func FormatInts(values []int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
