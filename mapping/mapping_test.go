package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/kppmap/assignment"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/partitions"
	"github.com/notargets/kppmap/table"
)

func workedTable(t *testing.T) *partitions.RankIndexTable {
	t.Helper()
	tbl, err := partitions.NewRankIndexTable([]int{0, 0, 1, 1}, []int{1, 2, 1, 2})
	require.NoError(t, err)
	return tbl
}

// TestBuild_WorkedExample reassigns every cell to rank 1
func TestBuild_WorkedExample(t *testing.T) {
	a := &assignment.Assignment{Name: "all_to_one", Targets: []int{1, 1, 1, 1}}
	m, err := Build(context.Background(), workedTable(t), a, 0)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{1, 1}, {1, 1}}, m.Targets)
	assert.Equal(t, []int{1, 1}, m.Fragmentation)

	target, err := m.Target(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, target)
	_, err = m.Target(0, 3)
	assert.ErrorIs(t, err, errdefs.ErrKeyNotFound)
}

func TestBuild_Identity(t *testing.T) {
	tbl, err := partitions.FromAssignment([]int{3, 0, 1, 2, 3, 0, 1, 2, 2, 2})
	require.NoError(t, err)
	a := &assignment.Assignment{Name: "identity", Targets: append([]int(nil), tbl.Rank...)}

	m, err := Build(context.Background(), tbl, a, 2)
	require.NoError(t, err)
	for r := 0; r < m.NumRanks(); r++ {
		for idx := 1; idx <= tbl.CellsPerRank[r]; idx++ {
			target, err := m.Target(r, idx)
			require.NoError(t, err)
			if target != r {
				t.Errorf("rank %d index %d moves to %d", r, idx, target)
			}
		}
		assert.Equal(t, 1, m.Fragmentation[r], "rank %d", r)
	}
}

func TestBuild_Fragmentation(t *testing.T) {
	tbl, err := partitions.FromAssignment([]int{0, 0, 0, 1, 1, 2})
	require.NoError(t, err)
	a := &assignment.Assignment{Name: "scatter", Targets: []int{0, 1, 2, 1, 1, 0}}

	m, err := Build(context.Background(), tbl, a, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 1}, m.Fragmentation)
	assert.Equal(t, [][]int{{0, 1, 2}, {1, 1}, {0}}, m.Targets)
}

func TestBuild_JoinMismatch(t *testing.T) {
	tbl := workedTable(t)

	_, err := Build(context.Background(), tbl, &assignment.Assignment{Targets: []int{1, 1, 1}}, 0)
	assert.ErrorIs(t, err, errdefs.ErrKeyNotFound)
	_, err = Build(context.Background(), tbl, &assignment.Assignment{Targets: []int{1, 1, 1, 1, 1}}, 0)
	assert.ErrorIs(t, err, errdefs.ErrKeyNotFound)
	_, err = Build(context.Background(), tbl, &assignment.Assignment{Targets: []int{1, -1, 1, 1}}, 0)
	assert.ErrorIs(t, err, errdefs.ErrAssertionFailed)
}

func TestBuildSeries(t *testing.T) {
	tbl := workedTable(t)
	batch := []assignment.Interval{
		{ID: 1, Assignment: &assignment.Assignment{Name: "interval_1", Targets: []int{0, 0, 1, 1}}},
		{ID: 4, Assignment: &assignment.Assignment{Name: "interval_4", Targets: []int{1, 0, 0, 1}}},
	}
	s, err := BuildSeries(context.Background(), tbl, batch, 1)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 4}, s.Intervals)
	assert.Equal(t, [][]int{{0, 0}, {1, 0}}, s.Targets[0])
	assert.Equal(t, [][]int{{1, 1}, {0, 1}}, s.Targets[1])
	assert.Equal(t, [][]int{{1, 1}, {2, 2}}, s.Fragmentation)

	// Out of order intervals are rejected
	_, err = BuildSeries(context.Background(), tbl, []assignment.Interval{batch[1], batch[0]}, 1)
	assert.ErrorIs(t, err, errdefs.ErrAssertionFailed)
}

func TestWriteMap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Mappings")
	tbl, err := partitions.FromAssignment([]int{0, 0, 0, 1, 1})
	require.NoError(t, err)
	m, err := Build(context.Background(), tbl,
		&assignment.Assignment{Name: "next", Targets: []int{1, 0, 1, 1, 1}}, 0)
	require.NoError(t, err)
	require.NoError(t, WriteMap(dir, ',', m))

	raw, err := os.ReadFile(MapPath(dir, m))
	require.NoError(t, err)
	assert.Equal(t, "1,0,1\n1,1,\n", string(raw))

	frag, err := ReadFragmentation(filepath.Join(dir, "next.fragmentation.csv"), ',')
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, frag)
}

func TestWriteSeries(t *testing.T) {
	dir := t.TempDir()
	tbl := workedTable(t)
	batch := []assignment.Interval{
		{ID: 2, Assignment: &assignment.Assignment{Targets: []int{0, 1, 1, 1}}},
		{ID: 7, Assignment: &assignment.Assignment{Targets: []int{1, 1, 0, 0}}},
	}
	s, err := BuildSeries(context.Background(), tbl, batch, 0)
	require.NoError(t, err)
	require.NoError(t, WriteSeries(dir, ',', s))

	rank0, err := table.Read(RankPath(dir, 0), ',', true)
	require.NoError(t, err)
	assert.Equal(t, []string{"interval", "1", "2"}, rank0.Header)
	assert.Equal(t, [][]string{{"2", "0", "1"}, {"7", "1", "1"}}, rank0.Rows)

	frag, err := ReadFragmentation(filepath.Join(dir, "fragmentation.csv"), ',')
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 1, 1}, frag)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]int{1, 3, 3, 1, 1})
	assert.Equal(t, []Bin{{1, 3}, {2, 0}, {3, 2}}, bins)

	bins = Histogram([]int{0, 2})
	assert.Equal(t, []Bin{{0, 1}, {1, 0}, {2, 1}}, bins)

	assert.Empty(t, Histogram(nil))

	path := filepath.Join(t.TempDir(), "histogram.csv")
	require.NoError(t, WriteHistogram(path, ',', []Bin{{1, 3}}))
	tab, err := table.Read(path, ',', true)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "3"}}, tab.Rows)
}

func TestReadFragmentation_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFragmentation(filepath.Join(dir, "missing.csv"), ',')
	assert.ErrorIs(t, err, errdefs.ErrFileNotFound)

	path := filepath.Join(dir, "other.csv")
	require.NoError(t, table.Write(path, ',', &table.Table{Header: []string{"rank"}, Rows: [][]string{{"0"}}}))
	_, err = ReadFragmentation(path, ',')
	assert.ErrorIs(t, err, errdefs.ErrKeyNotFound)
}
