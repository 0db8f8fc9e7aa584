package align

import (
	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/internal/errs"
)

// WFOptions configures the exact wavefront aligner.
type WFOptions struct {
	Mismatch, GapOpen, GapExtend int
	MaxScore                    int // safety bound on the edit-distance-like score; 0 = a generous default
}

// DefaultWFOptions matches global_align_wf's gap-affine penalties.
// Heuristics (adaptive wavefront reduction) are disabled by default, per
// §4.6.3, favoring exactness over throughput on the high-identity viral
// inputs this back-end targets.
var DefaultWFOptions = WFOptions{Mismatch: 3, GapOpen: 4, GapExtend: 1}

// wfPoint is one cell of a wavefront component: the furthest-reaching
// offset along the reference axis for a given score s and diagonal k,
// plus enough of a back-pointer to reconstruct the CIGAR run that
// produced it.
//
//   - For an M cell: start is the reference offset where the current
//     match/mismatch run began (so the run contributes a single M unit
//     of length h-start); fromTable/fromS/fromK name the predecessor
//     cell the run closed from ('M' for a mismatch, 'I'/'D' for a
//     closed gap, 0 for the alignment origin).
//   - For an I or D cell: h is the landing offset and the cell always
//     contributes exactly one I or D unit; fromTable/fromS/fromK name
//     the predecessor this single-base step extended.
type wfPoint struct {
	h, start           int
	fromTable          byte
	fromS, fromK       int
}

type wfLayer = map[int]wfPoint

// GlobalAlignWF is global_align_wf (§4.6.3): an exact gap-affine
// wavefront aligner. It grows wavefronts by increasing score s,
// extending each diagonal greedily through runs of matches, and
// reconstructs the alignment once the wavefront reaches the opposite
// corner — the conventional WFA shape, simplified here to plain maps
// (no bit-packed offsets, no adaptive-reduction heuristic) since exact
// alignment with heuristics disabled is what §4.6.3 calls for.
func GlobalAlignWF(ref, query []byte, opt WFOptions) (cigar.Cigar, error) {
	m, n := len(ref), len(query)
	if m == 0 && n == 0 {
		return nil, nil
	}
	if m == 0 {
		return runCigar('I', n)
	}
	if n == 0 {
		return runCigar('D', m)
	}

	kEnd := m - n

	extend := func(k, h int) int {
		v := h - k
		for h < m && v < n && ref[h] == query[v] {
			h++
			v++
		}
		return h
	}

	M := []wfLayer{{}}
	I := []wfLayer{{}}
	D := []wfLayer{{}}

	h0 := extend(0, 0)
	M[0][0] = wfPoint{h: h0, start: 0, fromTable: 0}

	if kEnd == 0 && h0 >= m {
		return backtraceWF(M, I, D, 0, 0), nil
	}

	maxScore := opt.MaxScore
	if maxScore <= 0 {
		maxScore = 4 * (m + n + 16) * (opt.Mismatch + opt.GapOpen + opt.GapExtend + 1)
	}

	ensure := func(layers *[]wfLayer, s int) {
		for len(*layers) <= s {
			*layers = append(*layers, wfLayer{})
		}
	}

	for s := 1; s <= maxScore; s++ {
		ensure(&M, s)
		ensure(&I, s)
		ensure(&D, s)

		spMM := s - opt.Mismatch
		spOpen := s - opt.GapOpen - opt.GapExtend
		spExtI := s - opt.GapExtend
		spExtD := s - opt.GapExtend

		seen := map[int]bool{}
		if spMM >= 0 && spMM < len(M) {
			for k := range M[spMM] {
				seen[k] = true
			}
		}
		if spOpen >= 0 && spOpen < len(M) {
			for k := range M[spOpen] {
				seen[k-1] = true // insertion open
				seen[k+1] = true // deletion open
			}
		}
		if spExtI >= 0 && spExtI < len(I) {
			for k := range I[spExtI] {
				seen[k-1] = true
			}
		}
		if spExtD >= 0 && spExtD < len(D) {
			for k := range D[spExtD] {
				seen[k+1] = true
			}
		}

		for k := range seen {
			// Insertion: closes at diagonal k from M/I at k+1; h unchanged.
			var bestI wfPoint
			haveI := false
			if spOpen >= 0 && spOpen < len(M) {
				if pt, ok := M[spOpen][k+1]; ok {
					if !haveI || pt.h > bestI.h {
						bestI, haveI = wfPoint{h: pt.h, fromTable: 'M', fromS: spOpen, fromK: k + 1}, true
					}
				}
			}
			if spExtI >= 0 && spExtI < len(I) {
				if pt, ok := I[spExtI][k+1]; ok {
					if !haveI || pt.h > bestI.h {
						bestI, haveI = wfPoint{h: pt.h, fromTable: 'I', fromS: spExtI, fromK: k + 1}, true
					}
				}
			}
			if haveI {
				v := bestI.h - k
				if bestI.h <= m && v >= 0 && v <= n {
					I[s][k] = bestI
				} else {
					haveI = false
				}
			}

			// Deletion: closes at diagonal k from M/D at k-1; h advances by 1.
			var bestD wfPoint
			haveD := false
			if spOpen >= 0 && spOpen < len(M) {
				if pt, ok := M[spOpen][k-1]; ok {
					h := pt.h + 1
					if !haveD || h > bestD.h {
						bestD, haveD = wfPoint{h: h, fromTable: 'M', fromS: spOpen, fromK: k - 1}, true
					}
				}
			}
			if spExtD >= 0 && spExtD < len(D) {
				if pt, ok := D[spExtD][k-1]; ok {
					h := pt.h + 1
					if !haveD || h > bestD.h {
						bestD, haveD = wfPoint{h: h, fromTable: 'D', fromS: spExtD, fromK: k - 1}, true
					}
				}
			}
			if haveD {
				v := bestD.h - k
				if bestD.h <= m && v >= 0 && v <= n {
					D[s][k] = bestD
				} else {
					haveD = false
				}
			}

			// Mismatch / gap-close into M, then extend the match run.
			var bestM wfPoint
			haveM := false
			if spMM >= 0 && spMM < len(M) {
				if pt, ok := M[spMM][k]; ok {
					h := pt.h + 1
					v := h - k
					if h <= m && v >= 0 && v <= n {
						bestM, haveM = wfPoint{h: h, start: pt.h, fromTable: 'M', fromS: spMM, fromK: k}, true
					}
				}
			}
			if haveI && (!haveM || bestI.h > bestM.h) {
				bestM, haveM = wfPoint{h: bestI.h, start: bestI.h, fromTable: 'I', fromS: s, fromK: k}, true
			}
			if haveD && (!haveM || bestD.h > bestM.h) {
				bestM, haveM = wfPoint{h: bestD.h, start: bestD.h, fromTable: 'D', fromS: s, fromK: k}, true
			}
			if haveM {
				bestM.h = extend(k, bestM.h)
				M[s][k] = bestM
			}
		}

		if pt, ok := M[s][kEnd]; ok && pt.h >= m {
			return backtraceWF(M, I, D, s, kEnd), nil
		}
	}

	return nil, errs.New(errs.AlignmentInconsistency, "", "align: wavefront search exceeded its score bound")
}

func backtraceWF(M, I, D []wfLayer, s, k int) cigar.Cigar {
	var rev cigar.Cigar
	table := byte('M')
	for {
		switch table {
		case 'M':
			pt := M[s][k]
			if n := pt.h - pt.start; n > 0 {
				c, _ := runCigar('M', n)
				for i := len(c) - 1; i >= 0; i-- {
					rev = append(rev, c[i])
				}
			}
			if pt.fromTable == 0 {
				goto done
			}
			table, s, k = pt.fromTable, pt.fromS, pt.fromK
		case 'I':
			pt := I[s][k]
			u, _ := cigar.Encode('I', 1)
			rev = append(rev, u)
			table, s, k = pt.fromTable, pt.fromS, pt.fromK
		case 'D':
			pt := D[s][k]
			u, _ := cigar.Encode('D', 1)
			rev = append(rev, u)
			table, s, k = pt.fromTable, pt.fromS, pt.fromK
		}
	}
done:
	for a, b := 0, len(rev)-1; a < b; a, b = a+1, b-1 {
		rev[a], rev[b] = rev[b], rev[a]
	}
	return cigar.AppendWithMerge(nil, rev)
}
