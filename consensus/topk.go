// Package consensus implements the Top-K-by-length streaming selector
// and the column-majority consensus generator (C8).
package consensus

import "container/heap"

// Item is a Top-K heap entry: a candidate record identified by its
// length and arrival order, used for both heap ordering and stable
// tie-breaking.
type Item struct {
	Length int
	Order  int
	Record interface{}
}

// topKHeap is a min-heap ordered by (length ASC, order DESC): the root
// is always the "worst currently kept" item — the shortest, or at equal
// length the most recently arrived.
type topKHeap []Item

func (h topKHeap) Len() int { return len(h) }
func (h topKHeap) Less(i, j int) bool {
	if h[i].Length != h[j].Length {
		return h[i].Length < h[j].Length
	}
	return h[i].Order > h[j].Order
}
func (h topKHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *topKHeap) Push(x interface{}) {
	*h = append(*h, x.(Item))
}
func (h *topKHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK is a bounded streaming Top-K-by-length selector: at most K items
// are retained at any time, each candidate costing O(log K).
type TopK struct {
	k     int
	order int
	h     topKHeap
}

// NewTopK creates a selector retaining at most k items. k<=0 retains
// nothing and Push is a no-op.
func NewTopK(k int) *TopK {
	return &TopK{k: k}
}

// Push offers a candidate of the given length. Arrival order is tracked
// internally so equal-length candidates break ties by earliest arrival.
func (t *TopK) Push(length int, record interface{}) {
	order := t.order
	t.order++
	if t.k <= 0 {
		return
	}
	cand := Item{Length: length, Order: order, Record: record}
	if t.h.Len() < t.k {
		heap.Push(&t.h, cand)
		return
	}
	root := t.h[0]
	// cand replaces root iff cand is (length DESC, order ASC)-better:
	// strictly longer, or equal length and earlier arrival.
	if cand.Length > root.Length || (cand.Length == root.Length && cand.Order < root.Order) {
		t.h[0] = cand
		heap.Fix(&t.h, 0)
	}
}

// Extract drains the selector, returning retained items sorted by
// (length DESC, order ASC).
func (t *TopK) Extract() []Item {
	items := make([]Item, len(t.h))
	copy(items, t.h)
	t.h = t.h[:0]

	// insertion sort is fine here: K is expected to be modest (≤ a few
	// thousand, per --cons-n's default) and this runs once per stream.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			a, b := items[j-1], items[j]
			less := a.Length < b.Length || (a.Length == b.Length && a.Order > b.Order)
			if !less {
				break
			}
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
	return items
}

// Len reports how many items are currently retained.
func (t *TopK) Len() int { return t.h.Len() }
