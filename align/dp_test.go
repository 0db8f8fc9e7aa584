package align

import "testing"

func lengthsOK(t *testing.T, ref, query []byte, got interface {
	RefLength() int
	QryLength() int
}) {
	t.Helper()
	if got.RefLength() != len(ref) {
		t.Fatalf("RefLength = %d, want %d", got.RefLength(), len(ref))
	}
	if got.QryLength() != len(query) {
		t.Fatalf("QryLength = %d, want %d", got.QryLength(), len(query))
	}
}

func TestGlobalAlignDPIdentical(t *testing.T) {
	ref := []byte("ACGTACGTACGTACGT")
	query := []byte("ACGTACGTACGTACGT")
	c, err := GlobalAlignDP(ref, query, DefaultDPOptions)
	if err != nil {
		t.Fatal(err)
	}
	lengthsOK(t, ref, query, c)
	if c.HasInsertion() {
		t.Fatalf("identical sequences should align without insertions")
	}
}

func TestGlobalAlignDPWithSubstitution(t *testing.T) {
	ref := []byte("ACGTACGTACGT")
	query := []byte("ACGTTCGTACGT") // single substitution at position 4
	c, err := GlobalAlignDP(ref, query, DefaultDPOptions)
	if err != nil {
		t.Fatal(err)
	}
	lengthsOK(t, ref, query, c)
}

func TestGlobalAlignDPWithIndel(t *testing.T) {
	ref := []byte("ACGTACGTACGTACGT")
	query := []byte("ACGTACACGTACGT") // a 2-base deletion relative to ref
	c, err := GlobalAlignDP(ref, query, DefaultDPOptions)
	if err != nil {
		t.Fatal(err)
	}
	lengthsOK(t, ref, query, c)
}

func TestGlobalAlignDPEmptySides(t *testing.T) {
	ref := []byte("ACGT")
	c, err := GlobalAlignDP(ref, nil, DefaultDPOptions)
	if err != nil {
		t.Fatal(err)
	}
	if c.RefLength() != len(ref) || c.QryLength() != 0 {
		t.Fatalf("pure deletion shortcut mismatch: %s", c.String())
	}

	query := []byte("ACGT")
	c2, err := GlobalAlignDP(nil, query, DefaultDPOptions)
	if err != nil {
		t.Fatal(err)
	}
	if c2.RefLength() != 0 || c2.QryLength() != len(query) {
		t.Fatalf("pure insertion shortcut mismatch: %s", c2.String())
	}

	c3, err := GlobalAlignDP(nil, nil, DefaultDPOptions)
	if err != nil || c3 != nil {
		t.Fatalf("both-empty should be a nil no-op CIGAR, got %v, %v", c3, err)
	}
}

func TestBandwidthHeuristic(t *testing.T) {
	if _, banded := bandwidth(1000, 100); banded {
		t.Fatalf("expected banding disabled for very different lengths")
	}
	bw, banded := bandwidth(1000, 1000)
	if !banded {
		t.Fatalf("expected banding enabled for similar lengths")
	}
	if bw <= 0 {
		t.Fatalf("expected positive bandwidth, got %d", bw)
	}
}

func TestSubScoreMatrix(t *testing.T) {
	opt := DefaultDPOptions
	if subScore('A', 'A', opt) != opt.Match {
		t.Fatalf("expected match score")
	}
	if subScore('A', 'C', opt) != opt.Mismatch {
		t.Fatalf("expected mismatch score")
	}
	if subScore('A', 'N', opt) != opt.NScore {
		t.Fatalf("expected N-interaction score")
	}
	if subScore('N', 'N', opt) != opt.NScore {
		t.Fatalf("expected N-interaction score")
	}
}
