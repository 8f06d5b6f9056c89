package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/kppmap/diag/diagtest"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
)

var toyDims = grid.Dims{Faces: 1, Res: 2, Layers: 3, ActiveLayers: 2}

const toyConfig = `
[grid]
faces = 1
resolution = 2
layers = 3
active_layers = 2

[logging]
level = "error"
`

// setupRun writes the toy config and one snapshot carrying costs [3, 5, 2, 7]
// owned by ranks [0, 0, 1, 1]
func setupRun(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	cfgPath = filepath.Join(dir, "kppmap.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(toyConfig), 0o644))

	costs := []int{3, 5, 2, 7}
	diagtest.WriteSnapshot(t, filepath.Join(dir, "GEOSChem.KppDiags.20190701_0000z.nc4"), toyDims,
		map[string][]float64{
			"KppTotSteps": diagtest.LayerValues(toyDims, func(l, c int) float64 {
				if l == 0 {
					return float64(costs[c])
				}
				return 0
			}),
			"KppRank":        diagtest.Constant(toyDims, []int{0, 0, 1, 1}),
			"KppIndexOnRank": diagtest.Constant(toyDims, []int{1, 2, 1, 2}),
		})
	return cfgPath, dir
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run("test", args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, _ := run()
	assert.Equal(t, errdefs.ExitSuccess, code)

	code, _, stderr := run("frobnicate")
	assert.Equal(t, errdefs.ExitInvalidArguments, code)
	assert.Contains(t, stderr, "Error:")

	code, _, _ = run("convert")
	assert.Equal(t, errdefs.ExitInvalidArguments, code)

	code, _, _ = run("convert", "--bogus", ".")
	assert.Equal(t, errdefs.ExitInvalidArguments, code)

	code, stdout, _ := run("--version")
	assert.Equal(t, errdefs.ExitSuccess, code)
	assert.Contains(t, stdout, "test")

	// Remap help names the layout of every artifact it writes
	code, stdout, _ = run("remap", "--help")
	assert.Equal(t, errdefs.ExitSuccess, code)
	for _, want := range []string{"<name>.csv", "padded with empty fields", "pick_index", "rank_<r>.csv"} {
		assert.Contains(t, stdout, want)
	}
}

func TestRun_Errors(t *testing.T) {
	cfgPath, dir := setupRun(t)

	code, _, _ := run("--config", cfgPath, "convert", filepath.Join(dir, "nowhere"))
	assert.Equal(t, errdefs.ExitFileNotFound, code)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[grid]\nfaces = -1\n"), 0o644))
	code, _, _ = run("--config", bad, "convert", dir)
	assert.Equal(t, errdefs.ExitInvalidArguments, code)

	// Default grid does not fit the toy snapshot
	code, _, _ = run("--debug", "--log-level", "error", "convert", dir)
	assert.Equal(t, errdefs.ExitAssertionFailed, code)
}

func TestRun_Workflow(t *testing.T) {
	cfgPath, dir := setupRun(t)
	rankIndex := filepath.Join(dir, "RankIndex.csv")

	code, stdout, stderr := run("--config", cfgPath, "convert", dir)
	require.Equal(t, errdefs.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "with-rank-index")

	code, stdout, stderr = run("--config", cfgPath, "aggregate", rankIndex, filepath.Join(dir, "TotalSteps.csv"))
	require.Equal(t, errdefs.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "20190701_0000z")
	raw, err := os.ReadFile(filepath.Join(dir, "RankSteps.csv"))
	require.NoError(t, err)
	assert.Equal(t, "rank,20190701_0000z\n0,5\n1,7\n", string(raw))

	code, _, _ = run("--config", cfgPath, "aggregate", rankIndex, filepath.Join(dir, "TotalSteps.csv"))
	assert.Equal(t, errdefs.ExitInvalidArguments, code, "existing output without --force")

	assignmentPath := filepath.Join(dir, "next.assignment")
	require.NoError(t, os.WriteFile(assignmentPath, []byte("1,1\n1,1\n"), 0o644))
	mappings := filepath.Join(dir, "Mappings")
	code, stdout, stderr = run("--config", cfgPath, "remap", "-o", mappings, rankIndex, assignmentPath)
	require.Equal(t, errdefs.ExitSuccess, code, stderr)
	assert.Equal(t, "Rank 0: 1\nRank 1: 1\n", stdout)

	code, stdout, stderr = run("--config", cfgPath, "histogram", filepath.Join(mappings, "next.fragmentation.csv"))
	require.Equal(t, errdefs.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "TARGETS")

	short := filepath.Join(dir, "short.assignment")
	require.NoError(t, os.WriteFile(short, []byte("1,1,1\n"), 0o644))
	code, _, _ = run("--config", cfgPath, "remap", "-o", mappings, rankIndex, short)
	assert.Equal(t, errdefs.ExitAssertionFailed, code)
}

func TestRun_Inspect(t *testing.T) {
	cfgPath, dir := setupRun(t)
	snap := filepath.Join(dir, "GEOSChem.KppDiags.20190701_0000z.nc4")

	code, stdout, stderr := run("--config", cfgPath, "dump", snap)
	require.Equal(t, errdefs.ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "KppTotSteps")

	code, stdout, _ = run("--config", cfgPath, "compare", snap, snap)
	assert.Equal(t, errdefs.ExitSuccess, code)
	assert.Contains(t, stdout, "3 variables match")

	other := filepath.Join(dir, "other.nc4")
	diagtest.WriteSnapshot(t, other, toyDims, map[string][]float64{
		"KppTotSteps": diagtest.Constant(toyDims, []int{1, 1, 1, 1}),
	})
	code, stdout, _ = run("--config", cfgPath, "compare", snap, other)
	assert.Equal(t, errdefs.ExitAssertionFailed, code)
	assert.Contains(t, stdout, "only in")
}
