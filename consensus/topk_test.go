package consensus

import "testing"

func TestTopKRetainsLongest(t *testing.T) {
	tk := NewTopK(2)
	tk.Push(5, "a")
	tk.Push(9, "b")
	tk.Push(3, "c")
	tk.Push(7, "d")

	items := tk.Extract()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Length != 9 || items[1].Length != 7 {
		t.Fatalf("expected lengths [9,7], got [%d,%d]", items[0].Length, items[1].Length)
	}
}

func TestTopKStableTieBreak(t *testing.T) {
	// Top-K stability: with equal lengths, the earlier-arriving record wins.
	tk := NewTopK(1)
	tk.Push(5, "first")
	tk.Push(5, "second")

	items := tk.Extract()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Record.(string) != "first" {
		t.Fatalf("expected the earlier-arriving record to win, got %v", items[0].Record)
	}
}

func TestTopKExtractOrder(t *testing.T) {
	tk := NewTopK(5)
	lens := []int{3, 3, 8, 1, 8}
	for _, l := range lens {
		tk.Push(l, nil)
	}
	items := tk.Extract()
	for i := 1; i < len(items); i++ {
		a, b := items[i-1], items[i]
		if a.Length < b.Length {
			t.Fatalf("not sorted by length descending at %d", i)
		}
		if a.Length == b.Length && a.Order > b.Order {
			t.Fatalf("equal-length items not sorted by order ascending at %d", i)
		}
	}
}

func TestTopKZeroCapacityIsNoOp(t *testing.T) {
	tk := NewTopK(0)
	tk.Push(100, "x")
	if items := tk.Extract(); len(items) != 0 {
		t.Fatalf("expected no items retained for k=0")
	}
}

func TestTopKFewerThanK(t *testing.T) {
	tk := NewTopK(10)
	tk.Push(1, "a")
	tk.Push(2, "b")
	items := tk.Extract()
	if len(items) != 2 {
		t.Fatalf("expected all 2 items retained when under capacity, got %d", len(items))
	}
}
