package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/notargets/kppmap/diag"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/mapping"
)

// Dump lists the variables of a snapshot on w. If outDir is set every
// variable's values are also written to <outDir>/<var>.txt.
func (p *Pipeline) Dump(path, outDir string, w io.Writer) (err error) {
	if err := requireFile(path); err != nil {
		return err
	}
	s, err := p.open(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close())
	}()

	infos, err := diag.Describe(s)
	if err != nil {
		return err
	}
	for _, info := range infos {
		shape := make([]string, len(info.Shape))
		for i, n := range info.Shape {
			shape[i] = fmt.Sprint(n)
		}
		fmt.Fprintf(w, "%s\t(%s)\n", info.Name, strings.Join(shape, ", "))
	}
	if outDir == "" {
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, info := range infos {
		if err := p.dumpVariable(s, info.Name, filepath.Join(outDir, info.Name+".txt")); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) dumpVariable(s diag.Store, key, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	n, err := diag.DumpVariable(s, key, f)
	if err != nil {
		return fmt.Errorf("dump %s: %w", key, err)
	}
	p.log.Debug("dumped variable", zap.String("variable", key), zap.String("path", path), zap.Int("values", n))
	return nil
}

// Compare checks two snapshots within threshold. The comparison is returned
// even when the snapshots differ, together with ErrAssertionFailed.
func (p *Pipeline) Compare(pathA, pathB string, threshold float64) (c *diag.Comparison, err error) {
	if threshold < 0 {
		return nil, fmt.Errorf("negative threshold %g: %w", threshold, errdefs.ErrInvalidArguments)
	}
	for _, path := range []string{pathA, pathB} {
		if err := requireFile(path); err != nil {
			return nil, err
		}
	}
	a, err := p.open(pathA)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, a.Close())
	}()
	b, err := p.open(pathB)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, b.Close())
	}()

	c, err = diag.Compare(a, b, threshold)
	if err != nil {
		return nil, err
	}
	if !c.Equal() {
		return c, fmt.Errorf("%s and %s differ: %w", pathA, pathB, errdefs.ErrAssertionFailed)
	}
	return c, nil
}

// Histogram bins the fragmentation artifact at path
func (p *Pipeline) Histogram(path string) ([]mapping.Bin, error) {
	frag, err := mapping.ReadFragmentation(path, p.delim)
	if err != nil {
		return nil, err
	}
	return mapping.Histogram(frag), nil
}
