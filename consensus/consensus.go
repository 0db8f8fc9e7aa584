package consensus

import (
	"encoding/json"

	"github.com/shenwei356/refmsa/internal/errs"
)

// ColumnCounts is the per-column {A,C,G,T,U} tally recorded in the JSON
// side-file alongside the generated consensus.
type ColumnCounts struct {
	A, C, G, T, U int
}

// Options controls consensus generation streaming behavior; per §4.8
// batch_size and threads affect only how rows are consulted, never the
// result.
type Options struct {
	SeqLimit  int // 0 = no cap
	BatchSize int
	Threads   int
}

// DefaultOptions matches the CLI defaults referenced by §6.
var DefaultOptions = Options{BatchSize: 1000, Threads: 1}

// Build computes the column-majority consensus over rows, all of which
// must share length L, returning the consensus sequence and the
// per-column counts used to produce it (for the JSON side-file).
// seq_limit caps how many of rows are consulted per column (0 = all).
func Build(rows [][]byte, opt Options) ([]byte, []ColumnCounts, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	l := len(rows[0])
	for _, r := range rows {
		if len(r) != l {
			return nil, nil, errs.New(errs.InvalidArgument, "", "consensus: input rows must share one length")
		}
	}

	limit := len(rows)
	if opt.SeqLimit > 0 && opt.SeqLimit < limit {
		limit = opt.SeqLimit
	}

	out := make([]byte, l)
	counts := make([]ColumnCounts, l)

	for col := 0; col < l; col++ {
		var c ColumnCounts
		for r := 0; r < limit; r++ {
			switch rows[r][col] {
			case 'A', 'a':
				c.A++
			case 'C', 'c':
				c.C++
			case 'G', 'g':
				c.G++
			case 'T', 't':
				c.T++
			case 'U', 'u':
				c.U++
			}
		}
		counts[col] = c
		out[col] = majority(c)
	}

	return out, counts, nil
}

// majority picks the unique strict maximum over {A,C,G,T,U} with
// priority A>C>G>T>U on ties, and A for an all-zero (pure-gap) column.
func majority(c ColumnCounts) byte {
	best := byte('A')
	bestN := c.A
	if c.C > bestN {
		best, bestN = 'C', c.C
	}
	if c.G > bestN {
		best, bestN = 'G', c.G
	}
	if c.T > bestN {
		best, bestN = 'T', c.T
	}
	if c.U > bestN {
		best, bestN = 'U', c.U
	}
	return best
}

// MarshalSideFile renders the per-column counts as the JSON side-file
// format described in §4.8.
func MarshalSideFile(counts []ColumnCounts) ([]byte, error) {
	return json.Marshal(counts)
}
