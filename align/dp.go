// Package align implements the pairwise aligner facade (C6): a banded
// gap-affine dynamic-programming aligner, an exact wavefront aligner,
// and an anchor-driven segmented variant, unified behind a single
// CIGAR-returning contract.
package align

import (
	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/internal/errs"
)

// DPOptions configures the banded gap-affine aligner.
type DPOptions struct {
	Match, Mismatch, NScore int
	GapOpen, GapExtend      int

	// Extension-only knobs (§4.6.2); zero values disable them for the
	// plain global_align_dp path.
	ZDrop      int
	EndBonus   int
	ExtendOnly bool
}

// DefaultDPOptions matches the global_align_dp defaults.
var DefaultDPOptions = DPOptions{
	Match: 5, Mismatch: -4, NScore: 0,
	GapOpen: 6, GapExtend: 2,
}

// ExtendDPOptions matches the extend_align_dp defaults (§4.6.2).
var ExtendDPOptions = DPOptions{
	Match: 5, Mismatch: -4, NScore: 0,
	GapOpen: 6, GapExtend: 2,
	ZDrop: 200, EndBonus: 50, ExtendOnly: true,
}

func baseIndex(b byte) int {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't', 'U', 'u':
		return 3
	default:
		return 4 // N or any other ambiguity code
	}
}

func subScore(a, b byte, opt DPOptions) int {
	ia, ib := baseIndex(a), baseIndex(b)
	if ia == 4 || ib == 4 {
		return opt.NScore
	}
	if ia == ib {
		return opt.Match
	}
	return opt.Mismatch
}

// bandwidth implements the §4.6.1 heuristic: banding only kicks in when
// the two lengths are within 50% of each other.
func bandwidth(refLen, qryLen int) (bw int, banded bool) {
	lo, hi := refLen, qryLen
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return 0, false
	}
	if float64(lo) >= 0.5*float64(hi) {
		bw = int(200 + 0.1*(float64(refLen)+float64(qryLen)/2))
		return bw, true
	}
	return 0, false
}

const negInf = -(1 << 50)

// runCigar builds a single-opcode cigar of length n, chunking into
// multiple units when n exceeds the 28-bit unit field.
func runCigar(op byte, n int) (cigar.Cigar, error) {
	if n == 0 {
		return nil, nil
	}
	var c cigar.Cigar
	for n > 0 {
		l := n
		if l > cigar.MaxUnitLen {
			l = cigar.MaxUnitLen
		}
		u, err := cigar.Encode(op, uint32(l))
		if err != nil {
			return nil, err
		}
		c = append(c, u)
		n -= l
	}
	return c, nil
}

type dpState uint8

const (
	stM dpState = iota
	stIx        // gap in query: consumes ref only (D)
	stIy        // gap in ref: consumes query only (I)
)

type dpCell struct {
	score [3]int64
	from  [3]dpState
}

// GlobalAlignDP is global_align_dp (§4.6.1): banded gap-affine DP over a
// generic substitution matrix, right-aligned gaps, no end-bonus/z-drop.
func GlobalAlignDP(ref, query []byte, opt DPOptions) (cigar.Cigar, error) {
	if len(ref) == 0 && len(query) == 0 {
		return nil, nil
	}
	if len(ref) == 0 {
		return runCigar('I', len(query))
	}
	if len(query) == 0 {
		return runCigar('D', len(ref))
	}

	bw, banded := bandwidth(len(ref), len(query))
	c, err := bandedGapAffine(ref, query, opt, bw, banded)
	if err != nil {
		return nil, err
	}
	if banded && (c.RefLength() != len(ref) || c.QryLength() != len(query)) {
		// band too narrow to reach a valid global alignment: retry unbanded.
		c, err = bandedGapAffine(ref, query, opt, 0, false)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

func inBand(i, j, bw int, banded bool) bool {
	if !banded {
		return true
	}
	d := i - j
	if d < 0 {
		d = -d
	}
	return d <= bw
}

func bandedGapAffine(ref, query []byte, opt DPOptions, bw int, banded bool) (cigar.Cigar, error) {
	h := len(ref) + 1
	w := len(query) + 1

	grid := make([]dpCell, h*w)
	at := func(i, j int) *dpCell { return &grid[i*w+j] }

	for k := range grid {
		grid[k].score = [3]int64{negInf, negInf, negInf}
	}

	open, ext := int64(opt.GapOpen), int64(opt.GapExtend)

	at(0, 0).score[stM] = 0
	for i := 1; i < h; i++ {
		if !inBand(i, 0, bw, banded) {
			continue
		}
		at(i, 0).score[stIx] = -(open + ext*int64(i))
		at(i, 0).from[stIx] = stIx
	}
	for j := 1; j < w; j++ {
		if !inBand(0, j, bw, banded) {
			continue
		}
		at(0, j).score[stIy] = -(open + ext*int64(j))
		at(0, j).from[stIy] = stIy
	}

	for i := 1; i < h; i++ {
		lo, hi := 0, w-1
		if banded {
			lo = i - bw
			if lo < 0 {
				lo = 0
			}
			hi = i + bw
			if hi > w-1 {
				hi = w - 1
			}
		}
		for j := lo; j <= hi; j++ {
			if j == 0 {
				continue
			}
			cell := at(i, j)

			// M: best of the three predecessor states at (i-1,j-1) plus substitution score.
			prev := at(i-1, j-1)
			best := prev.score[stM]
			bestFrom := stM
			if prev.score[stIx] > best {
				best, bestFrom = prev.score[stIx], stIx
			}
			if prev.score[stIy] > best {
				best, bestFrom = prev.score[stIy], stIy
			}
			if best > negInf/2 {
				cell.score[stM] = best + int64(subScore(ref[i-1], query[j-1], opt))
				cell.from[stM] = bestFrom
			}

			// Ix: gap in query, consumes ref[i-1] only.
			up := at(i-1, j)
			openIx := up.score[stM] - open - ext
			extIx := up.score[stIx] - ext
			if openIx >= extIx {
				cell.score[stIx] = openIx
				cell.from[stIx] = stM
			} else {
				cell.score[stIx] = extIx
				cell.from[stIx] = stIx
			}

			// Iy: gap in ref, consumes query[j-1] only.
			left := at(i, j-1)
			openIy := left.score[stM] - open - ext
			extIy := left.score[stIy] - ext
			if openIy >= extIy {
				cell.score[stIy] = openIy
				cell.from[stIy] = stM
			} else {
				cell.score[stIy] = extIy
				cell.from[stIy] = stIy
			}
		}
	}

	last := at(h-1, w-1)
	state := stM
	best := last.score[stM]
	if last.score[stIx] > best {
		best, state = last.score[stIx], stIx
	}
	if last.score[stIy] > best {
		best, state = last.score[stIy], stIy
	}
	if best <= negInf/2 {
		return nil, errs.New(errs.AlignmentInconsistency, "", "align: banded DP failed to reach a valid global alignment")
	}

	return traceback(ref, query, grid, w, state), nil
}

// traceback walks the DP grid from (len(ref),len(query)) back to (0,0),
// accumulating a canonical CIGAR via append-with-merge as it goes, then
// reverses the unit order (since traceback runs end-to-start).
func traceback(ref, query []byte, grid []dpCell, w int, state dpState) cigar.Cigar {
	at := func(i, j int) *dpCell { return &grid[i*w+j] }

	i, j := len(ref), len(query)
	var rev cigar.Cigar
	for i > 0 || j > 0 {
		cell := at(i, j)
		switch state {
		case stM:
			u, _ := cigar.Encode('M', 1)
			rev = append(rev, u)
			state = cell.from[stM]
			i--
			j--
		case stIx:
			u, _ := cigar.Encode('D', 1)
			rev = append(rev, u)
			state = cell.from[stIx]
			i--
		case stIy:
			u, _ := cigar.Encode('I', 1)
			rev = append(rev, u)
			state = cell.from[stIy]
			j--
		}
	}

	for a, b := 0, len(rev)-1; a < b; a, b = a+1, b-1 {
		rev[a], rev[b] = rev[b], rev[a]
	}

	return cigar.AppendWithMerge(nil, rev)
}
