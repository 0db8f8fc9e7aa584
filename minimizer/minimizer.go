// Package minimizer implements the C3 minimizer extractor: a monotonic
// sliding-window scan over rolling canonical k-mer codes that emits a dense
// but sub-linear fingerprint of packed 16-byte hits.
package minimizer

import (
	"github.com/shenwei356/refmsa/hashutil"
)

// Hit is the packed 16-byte minimizer hit described in spec.md §3:
//
//	word0: high 56 bits = hash56, low 8 bits = span
//	word1: high bit = strand, next 31 bits = rid, low 32 bits = pos
type Hit struct {
	word0 uint64
	word1 uint64
}

// Pack builds a Hit from its logical fields. hash56 must fit in 56 bits,
// span in 8 bits, rid in 31 bits and pos in 32 bits; callers (this package
// and seed.Collect) are responsible for respecting those ranges.
func Pack(hash56 uint64, span uint8, rid uint32, strand bool, pos uint32) Hit {
	w0 := (hash56 << 8) | uint64(span)
	w1 := uint64(pos)
	w1 |= uint64(rid) << 32
	if strand {
		w1 |= 1 << 63
	}
	return Hit{word0: w0, word1: w1}
}

// Hash56 returns the 56-bit hash field.
func (h Hit) Hash56() uint64 { return h.word0 >> 8 }

// Span returns the span field.
func (h Hit) Span() uint8 { return uint8(h.word0 & 0xff) }

// Pos returns the 0-based position field.
func (h Hit) Pos() uint32 { return uint32(h.word1 & 0xffffffff) }

// Rid returns the reference-id field.
func (h Hit) Rid() uint32 { return uint32((h.word1 >> 32) & 0x7fffffff) }

// Strand returns the strand bit: true when the forward k-mer is the
// canonical one (always true in noncanonical mode), false when the
// reverse complement is.
func (h Hit) Strand() bool { return h.word1&(1<<63) != 0 }

// candidate is a (hash, pos) pair tracked in the monotonic deque before a
// span/strand is attached at emission time.
type candidate struct {
	hash uint64
	pos  uint32
	fwd  bool // canonical-strand bit computed at push time
}

// ring is a fixed-capacity ring-backed double-ended queue of candidates,
// sized to the window w. It supports push-back, pop-back and pop-front in
// O(1), which is what the monotonic-minimum scan needs.
type ring struct {
	buf        []candidate
	head, tail int // [head, tail) is the live range, mod len(buf)
	n          int
}

func newRing(capHint int) *ring {
	if capHint < 4 {
		capHint = 4
	}
	return &ring{buf: make([]candidate, capHint)}
}

func (r *ring) reset() {
	r.head, r.tail, r.n = 0, 0, 0
}

func (r *ring) grow() {
	newBuf := make([]candidate, len(r.buf)*2)
	for i := 0; i < r.n; i++ {
		newBuf[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.buf = newBuf
	r.head = 0
	r.tail = r.n
}

func (r *ring) pushBack(c candidate) {
	if r.n == len(r.buf) {
		r.grow()
	}
	r.buf[r.tail] = c
	r.tail = (r.tail + 1) % len(r.buf)
	r.n++
}

func (r *ring) popBack() {
	if r.n == 0 {
		return
	}
	r.tail = (r.tail - 1 + len(r.buf)) % len(r.buf)
	r.n--
}

func (r *ring) popFront() {
	if r.n == 0 {
		return
	}
	r.head = (r.head + 1) % len(r.buf)
	r.n--
}

func (r *ring) back() candidate  { return r.buf[(r.tail-1+len(r.buf))%len(r.buf)] }
func (r *ring) front() candidate { return r.buf[r.head] }
func (r *ring) empty() bool      { return r.n == 0 }

// Extract scans seq for the minimizer of every window of w consecutive
// k-mers, canonicalizing per noncanonical, and returns the hits in input
// order, each tagged with rid (the index of seq among the sequences being
// fingerprinted — a reference id or, for a query scanned on its own, 0).
// Returns (nil, 0) for k=0, w=0, |seq|<k, k>31 or w>=256.
//
// resets reports how many input bytes forced a window reset (any byte
// other than A/C/G/T/U in either case, N included, as classified by
// hashutil.NT4),
// a diagnostic the original C++ implementation logged and the distilled
// spec dropped.
func Extract(seq []byte, k, w int, noncanonical bool, rid uint32) (hits []Hit, resets int) {
	if k <= 0 || w <= 0 || len(seq) < k || k > 31 || w >= 256 {
		return nil, 0
	}

	coder := hashutil.NewKmerCoder(k)
	dq := newRing(w + 2)

	var lastHash uint64
	var lastPos uint32
	haveLast := false

	hits = make([]Hit, 0, len(seq)/2+1)

	// i is the 0-based position in seq of the byte that ends the current
	// k-mer; pos counts valid bytes since the last reset, minus one, and
	// only drives the window-full check.
	pos := -1
	for i, b := range seq {
		code := hashutil.NT4(b)
		if code >= 4 {
			coder.Reset()
			dq.reset()
			haveLast = false
			resets++
			pos = -1
			continue
		}

		kmerCode, ok := coder.Push(code, noncanonical)
		if !ok {
			pos++ // still counts toward forming the first full k-mer
			continue
		}
		pos++

		h56 := hashutil.Mix64(kmerCode) >> 8 // high 56 bits of the mixed value

		cur := candidate{hash: h56, pos: uint32(i), fwd: coder.ForwardLE()}

		// evict from the back while its hash is >= the new one
		for !dq.empty() && dq.back().hash >= cur.hash {
			dq.popBack()
		}
		dq.pushBack(cur)

		if pos-w+1 < 0 {
			continue // window not yet full
		}
		winStart := i - w + 1
		for !dq.empty() && int(dq.front().pos) < winStart {
			dq.popFront()
		}

		min := dq.front()
		if !haveLast || min.hash != lastHash || min.pos != lastPos {
			strand := true
			if !noncanonical {
				strand = min.fwd
			}
			hits = append(hits, Pack(min.hash, uint8(k), rid, strand, min.pos))
			lastHash, lastPos, haveLast = min.hash, min.pos, true
		}
	}

	return hits, resets
}
