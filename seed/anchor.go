// Package seed implements the anchor collector and DP chainer (C4): a
// hash-join between reference and query minimizer hits under a
// frequency-filter policy, followed by gap/skip-penalized chaining that
// seeds the anchor-segmented aligner.
package seed

import (
	"math"
	"sort"

	"github.com/shenwei356/refmsa/minimizer"
)

// Anchor is a (ref_pos, qry_pos, hash, span, rev?) tuple created when a
// reference and a query hit share a 56-bit hash.
type Anchor struct {
	Hash   uint64
	RidRef uint32
	PosRef uint32
	RidQry uint32
	PosQry uint32
	Span   uint8
	IsRev  bool
}

// Diagonal returns the query-length-independent monotone coordinate used
// to group/sort anchors expected to belong to the same alignment band:
// ref_pos-qry_pos for forward anchors, ref_pos+qry_pos+span for reverse
// ones.
func (a Anchor) Diagonal() int64 {
	if !a.IsRev {
		return int64(a.PosRef) - int64(a.PosQry)
	}
	return int64(a.PosRef) + int64(a.PosQry) + int64(a.Span)
}

// Filter controls the frequency-based pruning collect applies before
// expanding ref/query hash matches into anchors.
type Filter struct {
	FTopFrac      float64 // top fraction of distinct ref hashes treated as "repetitive"
	UFloor        int     // minimum occurrence threshold, regardless of FTopFrac
	UCeil         int     // maximum occurrence threshold, regardless of FTopFrac
	QOccFrac      float64 // fraction of qry_hits above which a hash is query-suppressed
	SampleEveryBp int     // sparse-sampling stride for over-represented ref hashes
}

// DefaultFilter matches the reference defaults.
var DefaultFilter = Filter{
	FTopFrac:      2e-4,
	UFloor:        10,
	UCeil:         1_000_000,
	QOccFrac:      0.01,
	SampleEveryBp: 500,
}

// Stats reports collection-time diagnostics useful for tuning filter
// parameters; not part of the anchor algebra itself, kept for
// operational visibility.
type Stats struct {
	DistinctRefHashes    int
	RefOccThr            int
	QLimit               float64
	QryHitsConsidered    int
	QryHitsSkippedAbsent int
	QryHitsSkippedQFreq  int
	QryHitsSampledOut    int
	AnchorsEmitted       int
}

type refEntry struct {
	hash     uint64
	start    int
	count    int
}

// Collect hash-joins ref_hits and qry_hits into anchors under filter,
// discarding collection diagnostics. See CollectWithStats for the
// instrumented variant.
func Collect(refHits, qryHits []minimizer.Hit, filter Filter) []Anchor {
	anchors, _ := CollectWithStats(refHits, qryHits, filter)
	return anchors
}

// CollectWithStats implements §4.4.1: filtering happens before
// occurrence expansion, per the mandated ordering.
func CollectWithStats(refHits, qryHits []minimizer.Hit, filter Filter) ([]Anchor, Stats) {
	var stats Stats

	// Step 1: sort ref_hits by (hash, rid, pos, strand); index hash -> (start, count).
	sorted := make([]minimizer.Hit, len(refHits))
	copy(sorted, refHits)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Hash56() != b.Hash56() {
			return a.Hash56() < b.Hash56()
		}
		if a.Rid() != b.Rid() {
			return a.Rid() < b.Rid()
		}
		if a.Pos() != b.Pos() {
			return a.Pos() < b.Pos()
		}
		return !a.Strand() && b.Strand()
	})

	index := map[uint64]refEntry{}
	occs := make([]int, 0, len(sorted))
	i := 0
	for i < len(sorted) {
		h := sorted[i].Hash56()
		j := i
		for j < len(sorted) && sorted[j].Hash56() == h {
			j++
		}
		index[h] = refEntry{hash: h, start: i, count: j - i}
		occs = append(occs, j-i)
		i = j
	}
	stats.DistinctRefHashes = len(occs)

	// Step 2: ref_occ_thr via partial selection, not full sort.
	topFracCutoff := math.Inf(1)
	k := int(filter.FTopFrac * float64(len(occs)))
	if k > 0 {
		if k > len(occs) {
			k = len(occs)
		}
		topFracCutoff = float64(nthLargest(append([]int(nil), occs...), k))
	}
	refOccThr := math.Max(float64(filter.UFloor), math.Min(float64(filter.UCeil), topFracCutoff))
	stats.RefOccThr = int(refOccThr)

	// Step 3: qry_occ over qry_hits, q_limit.
	qryOcc := map[uint64]int{}
	for _, h := range qryHits {
		qryOcc[h.Hash56()]++
	}
	qLimit := math.Inf(1)
	if filter.QOccFrac > 0 {
		qLimit = filter.QOccFrac * float64(len(qryHits))
	}
	stats.QLimit = qLimit

	// Step 4: expand.
	var anchors []Anchor
	for _, qh := range qryHits {
		stats.QryHitsConsidered++
		h := qh.Hash56()
		entry, ok := index[h]
		if !ok {
			stats.QryHitsSkippedAbsent++
			continue
		}
		if float64(qryOcc[h]) > qLimit {
			stats.QryHitsSkippedQFreq++
			continue
		}

		proceed := true
		if entry.count > int(refOccThr) {
			if filter.SampleEveryBp == 0 {
				proceed = false
			} else {
				proceed = int(qh.Pos())%filter.SampleEveryBp == 0
			}
			if !proceed {
				stats.QryHitsSampledOut++
			}
		}
		if !proceed {
			continue
		}

		for r := entry.start; r < entry.start+entry.count; r++ {
			rh := sorted[r]
			span := rh.Span()
			if qh.Span() < span {
				span = qh.Span()
			}
			anchors = append(anchors, Anchor{
				Hash:   h,
				RidRef: rh.Rid(),
				PosRef: rh.Pos(),
				RidQry: qh.Rid(),
				PosQry: qh.Pos(),
				Span:   span,
				IsRev:  rh.Strand() != qh.Strand(),
			})
			stats.AnchorsEmitted++
		}
	}

	return anchors, stats
}

// nthLargest returns the k-th largest value in vals (1-based: k=1 is the
// maximum) via quickselect, leaving vals in a partially-ordered state.
// O(n) expected time, unlike a full sort.
func nthLargest(vals []int, k int) int {
	if k < 1 {
		k = 1
	}
	if k > len(vals) {
		k = len(vals)
	}
	target := len(vals) - k // index of the k-th largest in ascending order
	lo, hi := 0, len(vals)-1
	for lo < hi {
		pivot := vals[(lo+hi)/2]
		i, j := partition(vals, lo, hi, pivot)
		switch {
		case target <= j:
			hi = j
		case target >= i:
			lo = i
		default:
			return vals[target] // j < target < i: equal to pivot
		}
	}
	return vals[target]
}

// partition is a Hoare partition of vals[lo..hi] around pivot; afterwards
// vals[lo..j] <= pivot, vals[i..hi] >= pivot and anything between equals
// pivot.
func partition(vals []int, lo, hi int, pivot int) (int, int) {
	i, j := lo, hi
	for i <= j {
		for vals[i] < pivot {
			i++
		}
		for vals[j] > pivot {
			j--
		}
		if i <= j {
			vals[i], vals[j] = vals[j], vals[i]
			i++
			j--
		}
	}
	return i, j
}
