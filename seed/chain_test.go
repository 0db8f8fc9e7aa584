package seed

import (
	"testing"

	"github.com/shenwei356/refmsa/minimizer"
)

func TestChainRejectsBelowThresholds(t *testing.T) {
	anchors := []Anchor{
		{RidRef: 0, PosRef: 0, PosQry: 0, Span: 21},
		{RidRef: 0, PosRef: 30, PosQry: 30, Span: 21},
	}
	p := DefaultParams
	p.MinCnt = 5 // more than the 2 anchors available
	_, chains := Chain(anchors, p)
	if len(chains) != 0 {
		t.Fatalf("expected no chains below min_cnt, got %d", len(chains))
	}
}

func TestChainBuildsCollinearChain(t *testing.T) {
	var anchors []Anchor
	for i := 0; i < 5; i++ {
		anchors = append(anchors, Anchor{
			RidRef: 0,
			PosRef: uint32(i * 40),
			PosQry: uint32(i * 40),
			Span:   21,
		})
	}
	_, chains := Chain(anchors, DefaultParams)
	if len(chains) == 0 {
		t.Fatalf("expected at least one chain")
	}
	if chains[0].Count < DefaultParams.MinCnt {
		t.Fatalf("best chain count %d below min_cnt %d", chains[0].Count, DefaultParams.MinCnt)
	}
	if chains[0].IsRev {
		t.Fatalf("expected a forward chain from collinear forward anchors")
	}
}

func TestChainSortedByScoreDescending(t *testing.T) {
	var anchors []Anchor
	// A long collinear run (rid 0) and a short, weaker one (rid 1).
	for i := 0; i < 8; i++ {
		anchors = append(anchors, Anchor{RidRef: 0, PosRef: uint32(i * 40), PosQry: uint32(i * 40), Span: 21})
	}
	for i := 0; i < 3; i++ {
		anchors = append(anchors, Anchor{RidRef: 1, PosRef: uint32(i * 40), PosQry: uint32(i * 40), Span: 21})
	}
	_, chains := Chain(anchors, DefaultParams)
	for i := 1; i < len(chains); i++ {
		if chains[i].Score > chains[i-1].Score {
			t.Fatalf("chains not sorted by score descending at %d", i)
		}
	}
}

func TestChainThresholdInvariant(t *testing.T) {
	var anchors []Anchor
	for i := 0; i < 10; i++ {
		anchors = append(anchors, Anchor{RidRef: 0, PosRef: uint32(i * 40), PosQry: uint32(i * 40), Span: 21})
	}
	_, chains := Chain(anchors, DefaultParams)
	for _, c := range chains {
		if c.Count < DefaultParams.MinCnt {
			t.Fatalf("chain count %d < min_cnt %d", c.Count, DefaultParams.MinCnt)
		}
		if c.Score < DefaultParams.MinScore {
			t.Fatalf("chain score %v < min_score %v", c.Score, DefaultParams.MinScore)
		}
	}
}

func TestChainOutputAnchorsAreContiguousPerChain(t *testing.T) {
	var anchors []Anchor
	for i := 0; i < 6; i++ {
		anchors = append(anchors, Anchor{RidRef: 0, PosRef: uint32(i * 40), PosQry: uint32(i * 40), Span: 21})
	}
	out, chains := Chain(anchors, DefaultParams)
	for _, c := range chains {
		if c.StartIndex+c.Count > len(out) {
			t.Fatalf("chain run [%d,%d) exceeds output length %d", c.StartIndex, c.StartIndex+c.Count, len(out))
		}
	}
}

func TestChainEmptyInput(t *testing.T) {
	out, chains := Chain(nil, DefaultParams)
	if out != nil || chains != nil {
		t.Fatalf("expected nil, nil for empty input")
	}
}

func TestCollectThenChainSelfSimilarSequence(t *testing.T) {
	// S3: reference and query both "ACGTACGTACGTACGTACGTACGTACGTACGT",
	// k=7,w=5 — collect+chain returns at least one forward chain.
	seq := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	refHits, _ := minimizer.Extract(seq, 7, 5, true, 0)
	qryHits, _ := minimizer.Extract(seq, 7, 5, true, 0)

	anchors := Collect(refHits, qryHits, DefaultFilter)
	if len(anchors) == 0 {
		t.Fatalf("expected at least one anchor from a self-comparison")
	}

	_, chains := Chain(anchors, DefaultParams)
	found := false
	for _, c := range chains {
		if !c.IsRev {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected at least one forward chain, got %+v", chains)
	}
}

func TestBestReturnsFirstChain(t *testing.T) {
	chains := []ChainResult{{Score: 10}, {Score: 99}, {Score: 40}}
	best, ok := Best(chains)
	if !ok || best.Score != 10 {
		// Best assumes an already-sorted (descending) input, matching
		// what Chain() returns; it simply takes the first element.
		t.Fatalf("Best should return the first chain in an already-sorted slice")
	}
	if _, ok := Best(nil); ok {
		t.Fatalf("expected ok=false for empty input")
	}
}
