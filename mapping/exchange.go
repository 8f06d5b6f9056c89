package mapping

import (
	"encoding/csv"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/notargets/kppmap/assignment"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/partitions"
	"github.com/notargets/kppmap/table"
)

// Exchange holds the pick and place indices that move every cell from its
// current rank to its assigned rank. Cells keep cell order on the new rank,
// so the new layout is the one partitions.FromAssignment builds.
type Exchange struct {
	NumSources int
	NumTargets int

	// Current and next rank index tables
	From *partitions.RankIndexTable
	To   *partitions.RankIndexTable

	// Pick/Place indices per rank pair, 1-based
	PickIndices  [][]PickBuffer  // [sourceRank][targetRank]
	PlaceIndices [][]PlaceBuffer // [targetRank][sourceRank]
}

// PickBuffer holds the local indices a source rank packs for one target
type PickBuffer struct {
	Indices    []int // Index on the source rank
	TargetRank int
}

// PlaceBuffer holds where a target rank unpacks cells from one source
type PlaceBuffer struct {
	Indices    []int // Index on the target rank
	SourceRank int
}

// NewExchange builds the exchange from the current table to assignment a
func NewExchange(from *partitions.RankIndexTable, a *assignment.Assignment) (*Exchange, error) {
	if err := checkJoin(from, a); err != nil {
		return nil, err
	}
	to, err := partitions.FromAssignment(a.Targets)
	if err != nil {
		return nil, fmt.Errorf("assignment %s: %w", a.Name, err)
	}

	ex := &Exchange{
		NumSources: from.NumRanks,
		NumTargets: to.NumRanks,
		From:       from,
		To:         to,
	}
	ex.initializeBuffers()
	ex.buildIndices()
	if err := ex.Verify(); err != nil {
		return nil, err
	}
	return ex, nil
}

// initializeBuffers creates empty pick and place buffer structures
func (ex *Exchange) initializeBuffers() {
	ex.PickIndices = make([][]PickBuffer, ex.NumSources)
	for p := range ex.PickIndices {
		ex.PickIndices[p] = make([]PickBuffer, ex.NumTargets)
		for q := range ex.PickIndices[p] {
			ex.PickIndices[p][q] = PickBuffer{TargetRank: q}
		}
	}
	ex.PlaceIndices = make([][]PlaceBuffer, ex.NumTargets)
	for q := range ex.PlaceIndices {
		ex.PlaceIndices[q] = make([]PlaceBuffer, ex.NumSources)
		for p := range ex.PlaceIndices[q] {
			ex.PlaceIndices[q][p] = PlaceBuffer{SourceRank: p}
		}
	}
}

// buildIndices walks every source rank in local order so that the k-th
// pick of a pair lines up with the k-th place
func (ex *Exchange) buildIndices() {
	for p := 0; p < ex.NumSources; p++ {
		for i, cell := range ex.From.LocalToGlobal[p] {
			q := ex.To.Rank[cell]
			ex.PickIndices[p][q].Indices = append(ex.PickIndices[p][q].Indices, i+1)
			ex.PlaceIndices[q][p].Indices = append(ex.PlaceIndices[q][p].Indices, ex.To.IndexOnRank[cell])
		}
	}
}

// GetPickIndices returns pick indices for sending from source to target rank
func (ex *Exchange) GetPickIndices(source, target int) []int {
	if source < 0 || source >= ex.NumSources || target < 0 || target >= ex.NumTargets {
		return nil
	}
	return ex.PickIndices[source][target].Indices
}

// GetPlaceIndices returns place indices for target rank receiving from source
func (ex *Exchange) GetPlaceIndices(target, source int) []int {
	if source < 0 || source >= ex.NumSources || target < 0 || target >= ex.NumTargets {
		return nil
	}
	return ex.PlaceIndices[target][source].Indices
}

// Counts returns the number of cells moving from each source to each target
func (ex *Exchange) Counts() [][]int {
	counts := make([][]int, ex.NumSources)
	for p := range counts {
		counts[p] = make([]int, ex.NumTargets)
		for q := range counts[p] {
			counts[p][q] = len(ex.PickIndices[p][q].Indices)
		}
	}
	return counts
}

// Verify checks index validity and conservation properties
func (ex *Exchange) Verify() error {
	if len(ex.PickIndices) != ex.NumSources || len(ex.PlaceIndices) != ex.NumTargets {
		return fmt.Errorf("exchange buffers do not cover %d sources and %d targets: %w",
			ex.NumSources, ex.NumTargets, errdefs.ErrAssertionFailed)
	}

	// Verify 1: Local validity - every index is in range and used once
	picked := make([][]bool, ex.NumSources)
	for p := range picked {
		picked[p] = make([]bool, ex.From.CellsPerRank[p])
	}
	placed := make([][]bool, ex.NumTargets)
	for q := range placed {
		placed[q] = make([]bool, ex.To.CellsPerRank[q])
	}
	for p := 0; p < ex.NumSources; p++ {
		for q := 0; q < ex.NumTargets; q++ {
			for _, idx := range ex.PickIndices[p][q].Indices {
				if idx < 1 || idx > ex.From.CellsPerRank[p] {
					return fmt.Errorf("invalid pick index %d on rank %d (max %d): %w",
						idx, p, ex.From.CellsPerRank[p], errdefs.ErrAssertionFailed)
				}
				if picked[p][idx-1] {
					return fmt.Errorf("pick index %d on rank %d sent twice: %w",
						idx, p, errdefs.ErrAssertionFailed)
				}
				picked[p][idx-1] = true
			}
			for _, idx := range ex.PlaceIndices[q][p].Indices {
				if idx < 1 || idx > ex.To.CellsPerRank[q] {
					return fmt.Errorf("invalid place index %d on rank %d (max %d): %w",
						idx, q, ex.To.CellsPerRank[q], errdefs.ErrAssertionFailed)
				}
				if placed[q][idx-1] {
					return fmt.Errorf("place index %d on rank %d filled twice: %w",
						idx, q, errdefs.ErrAssertionFailed)
				}
				placed[q][idx-1] = true
			}
		}
	}

	// Verify 2: Correspondence - pick and place arrays have same length
	for p := 0; p < ex.NumSources; p++ {
		for q := 0; q < ex.NumTargets; q++ {
			pickLen := len(ex.PickIndices[p][q].Indices)
			placeLen := len(ex.PlaceIndices[q][p].Indices)
			if pickLen != placeLen {
				return fmt.Errorf("length mismatch: pick[%d][%d]=%d, place[%d][%d]=%d: %w",
					p, q, pickLen, q, p, placeLen, errdefs.ErrAssertionFailed)
			}
		}
	}

	// Verify 3: Conservation - with no repeats, full counts mean every cell
	// is picked once and every slot filled once
	totalPicks := 0
	for p := 0; p < ex.NumSources; p++ {
		for q := 0; q < ex.NumTargets; q++ {
			totalPicks += len(ex.PickIndices[p][q].Indices)
		}
	}
	if totalPicks != ex.From.NumCells() {
		return fmt.Errorf("conservation error: total picks %d != cells %d: %w",
			totalPicks, ex.From.NumCells(), errdefs.ErrAssertionFailed)
	}
	return nil
}

// ExchangeHeader is the header of the exchange artifact. Each row moves one
// cell; rows of a rank pair appear in pick order.
var ExchangeHeader = []string{"source_rank", "pick_index", "target_rank", "place_index"}

// ExchangePath returns where WriteExchange stores the plan for name
func ExchangePath(dir, name string) string {
	return filepath.Join(dir, name+".exchange.csv")
}

// NextRankIndexPath returns where WriteExchange stores the next rank index
func NextRankIndexPath(dir, name string) string {
	return filepath.Join(dir, name+".RankIndex.csv")
}

// WriteExchange stores the pick and place indices of every rank pair as
// <name>.exchange.csv and the next rank index as <name>.RankIndex.csv
func WriteExchange(dir string, delim rune, name string, ex *Exchange) error {
	err := table.WriteFunc(ExchangePath(dir, name), delim, func(w *csv.Writer) error {
		if err := w.Write(ExchangeHeader); err != nil {
			return err
		}
		for p := 0; p < ex.NumSources; p++ {
			for q := 0; q < ex.NumTargets; q++ {
				place := ex.PlaceIndices[q][p].Indices
				for k, idx := range ex.PickIndices[p][q].Indices {
					row := []string{strconv.Itoa(p), strconv.Itoa(idx), strconv.Itoa(q), strconv.Itoa(place[k])}
					if err := w.Write(row); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return partitions.WriteRankIndex(NextRankIndexPath(dir, name), delim, ex.To)
}

// ReadExchange loads an exchange artifact between the from and to layouts
// and verifies it
func ReadExchange(path string, delim rune, from, to *partitions.RankIndexTable) (*Exchange, error) {
	tab, err := table.Read(path, delim, true)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(tab.Header, ExchangeHeader) {
		return nil, fmt.Errorf("%s: want header %v, got %v: %w",
			path, ExchangeHeader, tab.Header, errdefs.ErrAssertionFailed)
	}

	ex := &Exchange{
		NumSources: from.NumRanks,
		NumTargets: to.NumRanks,
		From:       from,
		To:         to,
	}
	ex.initializeBuffers()
	for n, row := range tab.Rows {
		if len(row) != len(ExchangeHeader) {
			return nil, fmt.Errorf("%s row %d has %d fields: %w", path, n+1, len(row), errdefs.ErrAssertionFailed)
		}
		var v [4]int
		for i, field := range row {
			if v[i], err = table.ParseInt(field); err != nil {
				return nil, fmt.Errorf("%s row %d: %v: %w", path, n+1, err, errdefs.ErrAssertionFailed)
			}
		}
		p, q := v[0], v[2]
		if p < 0 || p >= ex.NumSources || q < 0 || q >= ex.NumTargets {
			return nil, fmt.Errorf("%s row %d: rank pair (%d, %d) outside %d x %d: %w",
				path, n+1, p, q, ex.NumSources, ex.NumTargets, errdefs.ErrAssertionFailed)
		}
		ex.PickIndices[p][q].Indices = append(ex.PickIndices[p][q].Indices, v[1])
		ex.PlaceIndices[q][p].Indices = append(ex.PlaceIndices[q][p].Indices, v[3])
	}
	if err := ex.Verify(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ex, nil
}
