package diag

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// VarInfo summarises one variable
type VarInfo struct {
	Name  string
	Shape []int
}

// Describe lists every variable of s with its shape
func Describe(s Store) ([]VarInfo, error) {
	keys := s.Keys()
	infos := make([]VarInfo, 0, len(keys))
	for _, k := range keys {
		shape, err := s.Shape(k)
		if err != nil {
			return nil, err
		}
		infos = append(infos, VarInfo{Name: k, Shape: shape})
	}
	return infos, nil
}

// DumpVariable writes a variable's values as nested bracketed lists, one
// innermost row per line, and returns the number of values written.
func DumpVariable(s Store, key string, w io.Writer) (int, error) {
	arr, err := s.Read(key)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	count := dumpNested(bw, arr.Elements, arr.Shape, 0)
	return count, bw.Flush()
}

func dumpNested(w *bufio.Writer, values []float64, shape []int, indent int) int {
	pad := strings.Repeat("  ", indent)
	if len(shape) <= 1 || shape[0] == 0 {
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Fprintf(w, "%s[%s]\n", pad, strings.Join(fields, ", "))
		return len(values)
	}

	stride := len(values) / shape[0]
	count := 0
	fmt.Fprintf(w, "%s[\n", pad)
	for i := 0; i < shape[0]; i++ {
		count += dumpNested(w, values[i*stride:(i+1)*stride], shape[1:], indent+1)
	}
	fmt.Fprintf(w, "%s]\n", pad)
	return count
}

// Comparison is the outcome of comparing two snapshots
type Comparison struct {
	OnlyInA       []string
	OnlyInB       []string
	ShapeMismatch []string
	// MaxDiff holds the largest absolute difference of every variable
	// present in both snapshots with equal shapes
	MaxDiff   map[string]float64
	Threshold float64
}

// Differing returns the variables whose max difference exceeds the threshold
func (c *Comparison) Differing() []string {
	var out []string
	for k, d := range c.MaxDiff {
		if d > c.Threshold || math.IsNaN(d) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Equal reports whether the snapshots match within the threshold
func (c *Comparison) Equal() bool {
	return len(c.OnlyInA) == 0 && len(c.OnlyInB) == 0 &&
		len(c.ShapeMismatch) == 0 && len(c.Differing()) == 0
}

// Compare checks two snapshots variable by variable
func Compare(a, b Store, threshold float64) (*Comparison, error) {
	c := &Comparison{MaxDiff: make(map[string]float64), Threshold: threshold}

	inB := make(map[string]bool)
	for _, k := range b.Keys() {
		inB[k] = true
	}
	inA := make(map[string]bool)
	var shared []string
	for _, k := range a.Keys() {
		inA[k] = true
		if inB[k] {
			shared = append(shared, k)
		} else {
			c.OnlyInA = append(c.OnlyInA, k)
		}
	}
	for _, k := range b.Keys() {
		if !inA[k] {
			c.OnlyInB = append(c.OnlyInB, k)
		}
	}
	sort.Strings(c.OnlyInA)
	sort.Strings(c.OnlyInB)
	sort.Strings(shared)

	for _, k := range shared {
		va, err := a.Read(k)
		if err != nil {
			return nil, err
		}
		vb, err := b.Read(k)
		if err != nil {
			return nil, err
		}
		if !ShapeEqual(va.Shape, vb.Shape) {
			c.ShapeMismatch = append(c.ShapeMismatch, k)
			continue
		}
		// L-infinity distance is the max absolute element difference
		c.MaxDiff[k] = floats.Distance(va.Elements, vb.Elements, math.Inf(1))
	}
	return c, nil
}
