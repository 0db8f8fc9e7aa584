// Package sketch implements the MinHash-style bottom-s sketch over k-mers
// (C2): sketch construction, Jaccard similarity, and the derived Mash
// distance / ANI estimators.
//
// Hash ordering at scale is delegated to github.com/twotwotwo/sorts, a
// parallel-sort library suited to sorting large seed arrays; a plain
// sort.Slice would be a correctness-equivalent but much slower stand-in
// once s runs into the tens of thousands for whole-genome references.
package sketch

import (
	"math"
	"sort"

	"github.com/shenwei356/refmsa/hashutil"
	"github.com/shenwei356/refmsa/internal/errs"
	"github.com/twotwotwo/sorts"
)

// DefaultSeed is the configuration constant used to hash k-mer codes unless
// the caller overrides it.
const DefaultSeed uint64 = 42

// Sketch is an ordered, distinct, ascending list of up to S 64-bit hashes,
// all computed with the same k.
type Sketch struct {
	K      int
	S      int
	Hashes []uint64
}

// uint64Slice adapts []uint64 to sorts.Interface (twotwotwo/sorts mirrors
// sort.Interface plus Swap/Less/Len, but its parallel quicksort dispatches
// on large inputs where stdlib's sort.Sort would not).
type uint64Slice []uint64

func (s uint64Slice) Len() int           { return len(s) }
func (s uint64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Build constructs a sketch over seq with the given k-mer length k, sketch
// size s, canonicalization mode and hash seed. k=0, s=0, k>31 or |seq|<k all
// yield an empty (not an error) sketch, per spec. Empty input is likewise
// not an error.
func Build(seq []byte, k, s int, noncanonical bool, seed uint64) Sketch {
	if k <= 0 || k > 31 || s <= 0 || len(seq) < k {
		return Sketch{K: k, S: s}
	}

	coder := hashutil.NewKmerCoder(k)
	hashes := make([]uint64, 0, len(seq))

	for _, b := range seq {
		code := hashutil.NT4(b)
		if code >= 4 {
			coder.Reset()
			continue
		}
		kmerCode, ok := coder.Push(code, noncanonical)
		if !ok {
			continue
		}
		var buf [8]byte
		putLE64(buf[:], kmerCode)
		hashes = append(hashes, hashutil.Murmur3X64(buf[:], seed))
	}

	if len(hashes) > 1<<12 {
		sorts.Quicksort(uint64Slice(hashes))
	} else {
		sort.Sort(uint64Slice(hashes))
	}

	hashes = dedupSorted(hashes)
	if len(hashes) > s {
		hashes = hashes[:s]
	}

	return Sketch{K: k, S: s, Hashes: hashes}
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func dedupSorted(xs []uint64) []uint64 {
	if len(xs) == 0 {
		return xs
	}
	j := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[j] {
			j++
			xs[j] = xs[i]
		}
	}
	return xs[:j+1]
}

// Jaccard computes |A∩B|/|A∪B| over the sorted-unique hash sets of a and b
// via a linear two-pointer merge. a.K must equal b.K.
func Jaccard(a, b Sketch) (float64, error) {
	j, _, err := JaccardWithStats(a, b)
	return j, err
}

// JaccardStats exposes the intersection/union counters the two-pointer
// merge in Jaccard computes, for diagnostics and for JaccardWithStats'
// callers that need the raw counts rather than just the ratio.
type JaccardStats struct {
	Intersection int
	Union        int
}

// JaccardWithStats is Jaccard, additionally returning the raw
// intersection/union counts behind the ratio.
func JaccardWithStats(a, b Sketch) (float64, JaccardStats, error) {
	if a.K != b.K {
		return 0, JaccardStats{}, errs.Newf(errs.InvalidArgument, "", "jaccard: mismatched k (%d != %d)", a.K, b.K)
	}
	if len(a.Hashes) == 0 && len(b.Hashes) == 0 {
		return 1.0, JaccardStats{}, nil
	}
	if len(a.Hashes) == 0 || len(b.Hashes) == 0 {
		return 0.0, JaccardStats{Union: len(a.Hashes) + len(b.Hashes)}, nil
	}

	var i, j, isect int
	for i < len(a.Hashes) && j < len(b.Hashes) {
		switch {
		case a.Hashes[i] == b.Hashes[j]:
			isect++
			i++
			j++
		case a.Hashes[i] < b.Hashes[j]:
			i++
		default:
			j++
		}
	}
	union := len(a.Hashes) + len(b.Hashes) - isect
	stats := JaccardStats{Intersection: isect, Union: union}
	if union == 0 {
		return 1.0, stats, nil
	}
	return float64(isect) / float64(union), stats, nil
}

// MashDistance derives the Mash evolutionary-distance estimate from a
// Jaccard index j and k-mer length k: -ln(2j/(1+j))/k. j=0 maps to +Inf,
// j=1 maps to 0.
func MashDistance(j float64, k int) float64 {
	if j <= 0 {
		return math.Inf(1)
	}
	if j >= 1 {
		return 0
	}
	return -math.Log(2*j/(1+j)) / float64(k)
}

// ANI derives an average-nucleotide-identity estimate from a Jaccard index:
// clamp01((2j/(1+j))^(1/k)). j=0 maps to 0, j=1 maps to 1.
func ANI(j float64, k int) float64 {
	if j <= 0 {
		return 0
	}
	if j >= 1 {
		return 1
	}
	v := math.Pow(2*j/(1+j), 1/float64(k))
	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
