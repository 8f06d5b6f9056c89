package diag

import (
	"fmt"

	"github.com/notargets/kppmap/errdefs"
)

// Variables names the diagnostics the pipeline reads
type Variables struct {
	Cost        string // Per-cell cost, required
	Rank        string // Owning rank, optional
	IndexOnRank string // 1-based position on the owning rank, optional
}

// Capability records which optional variables a data source provides.
// It is resolved once from the reference snapshot and passed through.
type Capability int

const (
	// Minimal sources carry the cost variable only
	Minimal Capability = iota
	// WithRankIndex sources also carry rank and index-on-rank
	WithRankIndex
)

func (c Capability) String() string {
	switch c {
	case Minimal:
		return "minimal"
	case WithRankIndex:
		return "with-rank-index"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// Detect inspects s. The cost variable is required; rank and index-on-rank
// are only used as a pair.
func Detect(s Store, v Variables) (Capability, error) {
	if !HasKey(s, v.Cost) {
		return Minimal, fmt.Errorf("missing variable %s: %w", v.Cost, errdefs.ErrKeyNotFound)
	}
	if HasKey(s, v.Rank) && HasKey(s, v.IndexOnRank) {
		return WithRankIndex, nil
	}
	return Minimal, nil
}
