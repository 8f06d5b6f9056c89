package partitions

import (
	"fmt"

	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/grid"
)

// RankIndexTable is the canonical cell -> (rank, indexOnRank) table of one
// partition epoch. It is built once and only read afterwards.
type RankIndexTable struct {
	// Per-cell ownership, indexed by cell
	Rank        []int // Cell c is owned by Rank[c]
	IndexOnRank []int // 1-based position of cell c in its rank's local list

	// Per-rank sizing
	NumRanks     int   // max(Rank)+1
	CellsPerRank []int // count_r

	// Rank-local to global mapping
	LocalToGlobal [][]int // [rank][indexOnRank-1] -> cell
}

// NewRankIndexTable builds a table from per-cell rank and index columns and
// validates it
func NewRankIndexTable(rank, indexOnRank []int) (*RankIndexTable, error) {
	if len(rank) != len(indexOnRank) {
		return nil, fmt.Errorf("rank column has %d cells, index column has %d: %w",
			len(rank), len(indexOnRank), errdefs.ErrAssertionFailed)
	}

	// Determine number of ranks
	numRanks := 0
	for cell, r := range rank {
		if r < 0 {
			return nil, fmt.Errorf("cell %d has negative rank %d: %w", cell, r, errdefs.ErrAssertionFailed)
		}
		if indexOnRank[cell] < 1 {
			return nil, fmt.Errorf("cell %d has index on rank %d, indices are 1-based: %w",
				cell, indexOnRank[cell], errdefs.ErrAssertionFailed)
		}
		if r+1 > numRanks {
			numRanks = r + 1
		}
	}

	t := &RankIndexTable{
		Rank:        append([]int(nil), rank...),
		IndexOnRank: append([]int(nil), indexOnRank...),
		NumRanks:    numRanks,
	}
	if err := t.buildRankMappings(); err != nil {
		return nil, err
	}
	if err := t.ValidateLayout(); err != nil {
		return nil, err
	}
	return t, nil
}

// FromAssignment numbers the cells of every rank in cell order, the way a
// solver lays out its local lists when handed a flat cell -> rank array
func FromAssignment(rank []int) (*RankIndexTable, error) {
	next := make(map[int]int)
	index := make([]int, len(rank))
	for cell, r := range rank {
		next[r]++
		index[cell] = next[r]
	}
	return NewRankIndexTable(rank, index)
}

// buildRankMappings creates the rank-local to global mapping
func (t *RankIndexTable) buildRankMappings() error {
	// Count cells per rank
	t.CellsPerRank = make([]int, t.NumRanks)
	for _, r := range t.Rank {
		t.CellsPerRank[r]++
	}

	// Initialize mapping structures, -1 marks an unclaimed slot
	t.LocalToGlobal = make([][]int, t.NumRanks)
	for r := 0; r < t.NumRanks; r++ {
		t.LocalToGlobal[r] = make([]int, t.CellsPerRank[r])
		for i := range t.LocalToGlobal[r] {
			t.LocalToGlobal[r][i] = -1
		}
	}

	// Place every cell at its local slot
	for cell, r := range t.Rank {
		idx := t.IndexOnRank[cell]
		if idx > t.CellsPerRank[r] {
			return fmt.Errorf("cell %d: index on rank %d exceeds rank %d cell count %d: %w",
				cell, idx, r, t.CellsPerRank[r], errdefs.ErrAssertionFailed)
		}
		if prev := t.LocalToGlobal[r][idx-1]; prev >= 0 {
			return fmt.Errorf("rank %d index %d claimed by cells %d and %d: %w",
				r, idx, prev, cell, errdefs.ErrAssertionFailed)
		}
		t.LocalToGlobal[r][idx-1] = cell
	}
	return nil
}

// NumCells returns N
func (t *RankIndexTable) NumCells() int {
	return len(t.Rank)
}

// GetRank returns the rank owning cell, or -1 if the cell is not in the table
func (t *RankIndexTable) GetRank(cell int) int {
	if cell < 0 || cell >= len(t.Rank) {
		return -1
	}
	return t.Rank[cell]
}

// Lookup returns the rank and 1-based index on rank of cell
func (t *RankIndexTable) Lookup(cell int) (rank, indexOnRank int, err error) {
	if cell < 0 || cell >= len(t.Rank) {
		return 0, 0, fmt.Errorf("cell %d not in rank index table of %d cells: %w",
			cell, len(t.Rank), errdefs.ErrKeyNotFound)
	}
	return t.Rank[cell], t.IndexOnRank[cell], nil
}

// Cell returns the cell at a rank-local position
func (t *RankIndexTable) Cell(rank, indexOnRank int) (int, error) {
	if rank < 0 || rank >= t.NumRanks ||
		indexOnRank < 1 || indexOnRank > t.CellsPerRank[rank] {
		return -1, fmt.Errorf("rank %d index %d not in rank index table: %w",
			rank, indexOnRank, errdefs.ErrKeyNotFound)
	}
	return t.LocalToGlobal[rank][indexOnRank-1], nil
}

// MaxCellsPerRank returns max(count_r)
func (t *RankIndexTable) MaxCellsPerRank() int {
	m := 0
	for _, c := range t.CellsPerRank {
		if c > m {
			m = c
		}
	}
	return m
}

// ValidateLayout checks that every rank's indices are exactly {1..count_r}
// and that the local and global views agree
func (t *RankIndexTable) ValidateLayout() error {
	// Verify 1: Conservation - per-rank counts sum to N
	total := 0
	for _, c := range t.CellsPerRank {
		total += c
	}
	if total != len(t.Rank) {
		return fmt.Errorf("per-rank counts sum to %d, table has %d cells: %w",
			total, len(t.Rank), errdefs.ErrAssertionFailed)
	}

	// Verify 2: Contiguity - no unclaimed local slot
	for r, cells := range t.LocalToGlobal {
		for i, cell := range cells {
			if cell < 0 {
				return fmt.Errorf("rank %d has no cell at index %d: %w", r, i+1, errdefs.ErrAssertionFailed)
			}
		}
	}

	// Verify 3: Correspondence - local slot points back at the cell
	for cell, r := range t.Rank {
		if t.LocalToGlobal[r][t.IndexOnRank[cell]-1] != cell {
			return fmt.Errorf("cell %d: rank %d slot %d maps to cell %d: %w",
				cell, r, t.IndexOnRank[cell], t.LocalToGlobal[r][t.IndexOnRank[cell]-1],
				errdefs.ErrAssertionFailed)
		}
	}
	return nil
}

// FirstMismatch compares per-cell rank and index columns against the table
// and returns the first differing cell, or -1 if they agree
func (t *RankIndexTable) FirstMismatch(rank, indexOnRank []int) int {
	for cell := range t.Rank {
		if cell >= len(rank) || cell >= len(indexOnRank) {
			return cell
		}
		if rank[cell] != t.Rank[cell] || indexOnRank[cell] != t.IndexOnRank[cell] {
			return cell
		}
	}
	if len(rank) != len(t.Rank) || len(indexOnRank) != len(t.Rank) {
		return len(t.Rank)
	}
	return -1
}

// RankGrid lays the rank column out as the grid-shaped assignment
func (t *RankIndexTable) RankGrid(d grid.Dims) ([][]int, error) {
	if d.NumCells() != len(t.Rank) {
		return nil, fmt.Errorf("grid has %d cells, rank index table has %d: %w",
			d.NumCells(), len(t.Rank), errdefs.ErrAssertionFailed)
	}
	return d.Reshape(t.Rank)
}
