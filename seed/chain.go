package seed

import (
	"math"
	"sort"

	"github.com/rdleal/intervalst/interval"
)

func chainIntCmp(x, y int) int { return x - y }

// dominationKey groups chains by the reference/strand they occupy, so a
// dominance check on one reference never suppresses a chain against an
// unrelated one.
type dominationKey struct {
	rid uint32
	rev bool
}

// ChainResult is a monotone, gap/bandwidth-admissible subsequence of anchors,
// referencing a contiguous run in the output anchor array chain()
// returns alongside it — the "arenas + indices" re-expression of the
// legacy pointer-chased anchor chain.
type ChainResult struct {
	Score      float64
	Count      int
	StartIndex int
	RefStart   uint32
	RefEnd     uint32
	QryStart   uint32
	QryEnd     uint32
	RidRef     uint32
	IsRev      bool
}

// Params controls DP chaining.
type Params struct {
	MaxDistX    uint32
	MaxDistY    uint32
	BW          uint32
	MaxSkip     int
	MaxIter     int
	MinCnt      int
	MinScore    float64
	GapPenalty  float64
	SkipPenalty float64
}

// DefaultParams matches the reference defaults.
var DefaultParams = Params{
	MaxDistX:    5000,
	MaxDistY:    5000,
	BW:          500,
	MaxSkip:     25,
	MaxIter:     5000,
	MinCnt:      3,
	MinScore:    40,
	GapPenalty:  0.01,
	SkipPenalty: 0.01,
}

// Chain runs gap-affine DP chaining over anchors per §4.4.2: anchors are
// sorted by (rid_ref, is_rev, pos_ref, pos_qry); each i considers only
// its nearest max_iter predecessors within max_dist_x on the reference
// axis, short-circuiting after max_skip consecutive non-improving
// transitions. Chains are extracted greedily in descending score order
// and returned, together with the anchors array compacted into the
// contiguous runs each Chain.StartIndex/Count addresses, sorted by score
// descending.
func Chain(anchors []Anchor, p Params) ([]Anchor, []ChainResult) {
	n := len(anchors)
	if n == 0 {
		return nil, nil
	}

	sorted := make([]Anchor, n)
	copy(sorted, anchors)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.RidRef != b.RidRef {
			return a.RidRef < b.RidRef
		}
		if a.IsRev != b.IsRev {
			return !a.IsRev && b.IsRev
		}
		if a.PosRef != b.PosRef {
			return a.PosRef < b.PosRef
		}
		return a.PosQry < b.PosQry
	})

	score := make([]float64, n)
	prev := make([]int, n)
	for i := range prev {
		prev[i] = -1
	}

	for i := 0; i < n; i++ {
		score[i] = float64(sorted[i].Span)
		skip := 0
		iter := 0
		for j := i - 1; j >= 0; j-- {
			if sorted[j].RidRef != sorted[i].RidRef || sorted[j].IsRev != sorted[i].IsRev {
				break
			}
			dr := int64(sorted[i].PosRef) - int64(sorted[j].PosRef)
			if dr > int64(p.MaxDistX) {
				break
			}
			iter++
			if iter > p.MaxIter {
				break
			}

			improved := false
			dq := int64(sorted[i].PosQry) - int64(sorted[j].PosQry)
			if dq > 0 && dq <= int64(p.MaxDistY) {
				dd := dr - dq
				if dd < 0 {
					dd = -dd
				}
				if dd <= int64(p.BW) {
					minDrDq := dr
					if dq < minDrDq {
						minDrDq = dq
					}
					base := minDrDq
					if int64(sorted[i].Span) < base {
						base = int64(sorted[i].Span)
					}
					penalty := p.GapPenalty*float64(dd) + p.SkipPenalty*float64(minDrDq) + 0.5*math.Log2(float64(dd)+1)
					transition := float64(base) - penalty
					if transition > 0 {
						if cand := score[j] + transition; cand > score[i] {
							score[i] = cand
							prev[i] = j
							improved = true
						}
					}
				}
			}
			if improved {
				skip = 0
			} else {
				skip++
				if skip > p.MaxSkip {
					break
				}
			}
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return score[order[a]] > score[order[b]] })

	visited := make([]bool, n)
	var chains []ChainResult
	var outAnchors []Anchor
	domTrees := make(map[dominationKey]*interval.SearchTree[int, int])

	for _, i := range order {
		if visited[i] {
			continue
		}
		if score[i] < p.MinScore {
			continue
		}

		var path []int
		cur := i
		for cur != -1 && !visited[cur] {
			path = append(path, cur)
			visited[cur] = true
			nxt := prev[cur]
			if nxt != -1 && visited[nxt] {
				break
			}
			cur = nxt
		}
		if len(path) < p.MinCnt {
			continue
		}
		for a, b := 0, len(path)-1; a < b; a, b = a+1, b-1 {
			path[a], path[b] = path[b], path[a]
		}

		refStart, refEnd := sorted[path[0]].PosRef, sorted[path[0]].PosRef+uint32(sorted[path[0]].Span)
		qryStart, qryEnd := sorted[path[0]].PosQry, sorted[path[0]].PosQry+uint32(sorted[path[0]].Span)
		for _, idx := range path {
			a := sorted[idx]
			if a.PosRef < refStart {
				refStart = a.PosRef
			}
			if e := a.PosRef + uint32(a.Span); e > refEnd {
				refEnd = e
			}
			if a.PosQry < qryStart {
				qryStart = a.PosQry
			}
			if e := a.PosQry + uint32(a.Span); e > qryEnd {
				qryEnd = e
			}
		}

		// A chain whose ref span already overlaps a higher-scoring chain
		// on the same reference/strand (processed earlier, since order is
		// score-descending) is redundant: drop it rather than emit a
		// second, weaker alignment over territory the winner already
		// covers. Anchors already claimed in visited above still can't be
		// reused by a later, lower-scoring chain either way.
		dk := dominationKey{rid: sorted[i].RidRef, rev: sorted[i].IsRev}
		dt, ok := domTrees[dk]
		if !ok {
			dt = interval.NewSearchTree[int, int](chainIntCmp)
			domTrees[dk] = dt
		}
		// The tree's intervals are closed, while refEnd is exclusive.
		if _, dominated := dt.AnyIntersection(int(refStart), int(refEnd)-1); dominated {
			continue
		}
		dt.Insert(int(refStart), int(refEnd)-1, int(refStart))

		start := len(outAnchors)
		for _, idx := range path {
			outAnchors = append(outAnchors, sorted[idx])
		}

		chains = append(chains, ChainResult{
			Score:      score[i],
			Count:      len(path),
			StartIndex: start,
			RefStart:   refStart,
			RefEnd:     refEnd,
			QryStart:   qryStart,
			QryEnd:     qryEnd,
			RidRef:     sorted[i].RidRef,
			IsRev:      sorted[i].IsRev,
		})
	}

	sort.Slice(chains, func(a, b int) bool { return chains[a].Score > chains[b].Score })

	return outAnchors, chains
}

// Best returns the first chain of chains, which is the highest-scoring one
// when chains is sorted by descending score as Chain returns it; it does
// not sort or scan. Used by the anchor-segmented aligner which only
// consumes a single chain.
func Best(chains []ChainResult) (ChainResult, bool) {
	if len(chains) == 0 {
		return ChainResult{}, false
	}
	return chains[0], true
}
