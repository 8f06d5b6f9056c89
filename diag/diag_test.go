package diag_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/kppmap/diag"
	"github.com/notargets/kppmap/diag/diagtest"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
)

var kppNaming = diag.Naming{Prefix: "GEOSChem.KppDiags.", Suffix: ".nc4"}

var kppVars = diag.Variables{Cost: "KppTotSteps", Rank: "KppRank", IndexOnRank: "KppIndexOnRank"}

func TestNamingInterval(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		ok   bool
	}{
		{"GEOSChem.KppDiags.20190701_0000z.nc4", "20190701_0000z", true},
		{"/data/run/GEOSChem.KppDiags.20190701_0100z.nc4", "20190701_0100z", true},
		{"GEOSChem.KppDiags..nc4", "", false},
		{"GEOSChem.SpeciesConc.20190701_0000z.nc4", "", false},
		{"GEOSChem.KppDiags.20190701_0000z.nc", "", false},
		{"RankIndex.csv", "", false},
	}
	for _, tt := range tests {
		tag, ok := kppNaming.Interval(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.tag, tag, tt.name)
	}
}

func TestDiscoverDirectorySorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"GEOSChem.KppDiags.20190701_0200z.nc4",
		"GEOSChem.KppDiags.20190701_0000z.nc4",
		"GEOSChem.KppDiags.20190701_0100z.nc4",
		"RankIndex.csv",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "GEOSChem.KppDiags.sub.nc4"), 0o755))

	snaps, outDir, err := diag.Discover(dir, kppNaming)
	require.NoError(t, err)
	assert.Equal(t, dir, outDir)
	require.Len(t, snaps, 3)
	assert.Equal(t, "20190701_0000z", snaps[0].Interval)
	assert.Equal(t, "20190701_0100z", snaps[1].Interval)
	assert.Equal(t, "20190701_0200z", snaps[2].Interval)
}

func TestDiscoverErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := diag.Discover(dir, kppNaming)
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound, "empty directory")

	_, _, err = diag.Discover(filepath.Join(dir, "missing"), kppNaming)
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound, "missing path")

	stray := filepath.Join(dir, "other.nc4")
	require.NoError(t, os.WriteFile(stray, nil, 0o644))
	_, _, err = diag.Discover(stray, kppNaming)
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound, "unrecognised file name")

	single := filepath.Join(dir, "GEOSChem.KppDiags.20190701_0000z.nc4")
	require.NoError(t, os.WriteFile(single, nil, 0o644))
	snaps, outDir, err := diag.Discover(single, kppNaming)
	require.NoError(t, err)
	assert.Equal(t, dir, outDir)
	assert.Equal(t, []diag.Snapshot{{Interval: "20190701_0000z", Path: single}}, snaps)
}

func TestDetect(t *testing.T) {
	arr, err := diag.NewArray([]float64{1}, 1)
	require.NoError(t, err)

	_, err = diag.Detect(diag.MapStore{"KppRank": arr}, kppVars)
	assert.ErrorIs(t, err, errdefs.ErrKeyNotFound)

	c, err := diag.Detect(diag.MapStore{"KppTotSteps": arr}, kppVars)
	require.NoError(t, err)
	assert.Equal(t, diag.Minimal, c)

	// Half of the optional pair is treated as absent
	c, err = diag.Detect(diag.MapStore{"KppTotSteps": arr, "KppRank": arr}, kppVars)
	require.NoError(t, err)
	assert.Equal(t, diag.Minimal, c)

	c, err = diag.Detect(diag.MapStore{"KppTotSteps": arr, "KppRank": arr, "KppIndexOnRank": arr}, kppVars)
	require.NoError(t, err)
	assert.Equal(t, diag.WithRankIndex, c)
	assert.Equal(t, "with-rank-index", c.String())
}

func TestNetCDFStoreRoundTrip(t *testing.T) {
	d := grid.Dims{Faces: 1, Res: 2, Layers: 3, ActiveLayers: 2}
	path := filepath.Join(t.TempDir(), "GEOSChem.KppDiags.20190701_0000z.nc4")
	cost := diagtest.LayerValues(d, func(l, c int) float64 { return float64(10*l+c) + 0.5 })
	diagtest.WriteSnapshot(t, path, d, map[string][]float64{"KppTotSteps": cost})

	s, err := diag.OpenNetCDF(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"KppTotSteps"}, s.Keys())
	shape, err := s.Shape("KppTotSteps")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 1, 2, 2}, shape)
	assert.Equal(t, diagtest.SnapshotDims, s.Dimensions("KppTotSteps"))

	arr, err := s.Read("KppTotSteps")
	require.NoError(t, err)
	assert.Equal(t, cost, arr.Elements)

	_, err = s.Read("KppRank")
	assert.ErrorIs(t, err, errdefs.ErrKeyNotFound)
}

func TestOpenNetCDFMissing(t *testing.T) {
	_, err := diag.OpenNetCDF(filepath.Join(t.TempDir(), "missing.nc4"))
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound)
}

func TestDescribeAndDump(t *testing.T) {
	arr, err := diag.NewArray([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	s := diag.MapStore{"v": arr}

	infos, err := diag.Describe(s)
	require.NoError(t, err)
	assert.Equal(t, []diag.VarInfo{{Name: "v", Shape: []int{2, 3}}}, infos)

	var buf bytes.Buffer
	n, err := diag.DumpVariable(s, "v", &buf)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"[", "  [1, 2, 3]", "  [4, 5, 6]", "]"}, lines)
}

func TestCompare(t *testing.T) {
	mk := func(vals ...float64) diag.MapStore {
		a, err := diag.NewArray(vals, len(vals))
		require.NoError(t, err)
		return diag.MapStore{"x": a}
	}

	c, err := diag.Compare(mk(1, 2, 3), mk(1, 2, 3.0000001), 1e-6)
	require.NoError(t, err)
	assert.True(t, c.Equal())

	c, err = diag.Compare(mk(1, 2, 3), mk(1, 2.5, 3), 1e-6)
	require.NoError(t, err)
	assert.False(t, c.Equal())
	assert.Equal(t, []string{"x"}, c.Differing())
	assert.InDelta(t, 0.5, c.MaxDiff["x"], 1e-12)

	c, err = diag.Compare(mk(1, 2), mk(1, 2, 3), 1e-6)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, c.ShapeMismatch)
	assert.False(t, c.Equal())

	other, err := diag.NewArray([]float64{0}, 1)
	require.NoError(t, err)
	b := mk(1)
	b["y"] = other
	c, err = diag.Compare(mk(1), b, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, c.OnlyInB)
	assert.Empty(t, c.OnlyInA)
	assert.False(t, c.Equal())
}
