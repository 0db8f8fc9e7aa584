package cigar

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		op  byte
		len uint32
	}{
		{'M', 1}, {'I', 12345}, {'D', maxLen}, {'=', 7}, {'X', 1}, {'S', 3}, {'H', 9}, {'P', 2}, {'N', 4},
	}
	for _, c := range cases {
		u, err := Encode(c.op, c.len)
		if err != nil {
			t.Fatalf("Encode(%c,%d): %v", c.op, c.len, err)
		}
		op, length := Decode(u)
		if op != c.op || length != c.len {
			t.Fatalf("round-trip mismatch: got (%c,%d), want (%c,%d)", op, length, c.op, c.len)
		}
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	if _, err := Encode('Q', 5); err == nil {
		t.Fatalf("expected error for unknown opcode")
	}
	if _, err := Encode('M', 0); err == nil {
		t.Fatalf("expected error for zero length")
	}
	if _, err := Encode('M', maxLen+1); err == nil {
		t.Fatalf("expected error for overflowing length")
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	s := "10M2I3D5="
	c, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.String(); got != s {
		t.Fatalf("String() = %q, want %q", got, s)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse("M10"); err == nil {
		t.Fatalf("expected error for missing leading length")
	}
	if _, err := Parse("10"); err == nil {
		t.Fatalf("expected error for trailing length with no opcode")
	}
	if _, err := Parse("10Q"); err == nil {
		t.Fatalf("expected error for unknown opcode")
	}
}

func TestAppendWithMergeCanonicalizes(t *testing.T) {
	a, _ := Parse("5M3I")
	b, _ := Parse("2I4M")
	merged := AppendWithMerge(a, b)
	if !merged.Canonical() {
		t.Fatalf("merged cigar not canonical: %s", merged.String())
	}
	if got, want := merged.String(), "5M5I4M"; got != want {
		t.Fatalf("merged = %q, want %q", got, want)
	}
}

func TestAppendWithMergeAssociative(t *testing.T) {
	a, _ := Parse("4M2D")
	b, _ := Parse("2D3I")
	c, _ := Parse("3I6M")

	left := AppendWithMerge(append(Cigar{}, a...), b)
	left = AppendWithMerge(left, c)

	bc := AppendWithMerge(append(Cigar{}, b...), c)
	right := AppendWithMerge(append(Cigar{}, a...), bc)

	if left.String() != right.String() {
		t.Fatalf("not associative: (a+b)+c = %q, a+(b+c) = %q", left.String(), right.String())
	}
}

func TestAppendWithMergeEmptyOperands(t *testing.T) {
	a, _ := Parse("5M")
	if got := AppendWithMerge(nil, a).String(); got != "5M" {
		t.Fatalf("merge with nil acc = %q, want 5M", got)
	}
	if got := AppendWithMerge(append(Cigar{}, a...), nil).String(); got != "5M" {
		t.Fatalf("merge with nil other = %q, want 5M", got)
	}
}

func TestRefAndQryLength(t *testing.T) {
	c, _ := Parse("5M2I3D1S2=1X")
	if got, want := c.RefLength(), 5+3+2+1; got != want {
		t.Fatalf("RefLength = %d, want %d", got, want)
	}
	if got, want := c.QryLength(), 5+2+1+2+1; got != want {
		t.Fatalf("QryLength = %d, want %d", got, want)
	}
}

func TestHasInsertion(t *testing.T) {
	withIns, _ := Parse("5M2I3M")
	withoutIns, _ := Parse("5M3D3M")
	if !withIns.HasInsertion() {
		t.Fatalf("expected HasInsertion true")
	}
	if withoutIns.HasInsertion() {
		t.Fatalf("expected HasInsertion false")
	}
}

func TestPadQueryToRefBasic(t *testing.T) {
	// ref:   ACGTACGT (8)
	// query: ACG--CGT aligned as 3M2D3M against an 8-long ref
	c, _ := Parse("3M2D3M")
	seq := []byte("ACGCGT") // 3 (M) + 3 (M) = 6 chars consumed, no I/S
	got := string(PadQueryToRef(seq, c))
	want := "ACG--CGT"
	if got != want {
		t.Fatalf("PadQueryToRef = %q, want %q", got, want)
	}
	if len(got) != c.RefLength() {
		t.Fatalf("padded length %d != RefLength %d", len(got), c.RefLength())
	}
}

func TestPadQueryToRefTreatsNPLikeD(t *testing.T) {
	c, _ := Parse("2M1N1P2M")
	seq := []byte("ACGT")
	got := string(PadQueryToRef(seq, c))
	want := "AC--GT"
	if got != want {
		t.Fatalf("PadQueryToRef = %q, want %q", got, want)
	}
}

func TestPadQueryToRefHardClipIsNoOp(t *testing.T) {
	c, _ := Parse("2H4M2H")
	seq := []byte("ACGT")
	got := string(PadQueryToRef(seq, c))
	if got != "ACGT" {
		t.Fatalf("PadQueryToRef = %q, want ACGT", got)
	}
}

func TestPadQueryToRefEmptyIsNoOp(t *testing.T) {
	c, _ := Parse("4M")
	if got := PadQueryToRef(nil, c); got != nil {
		t.Fatalf("expected nil for empty seq")
	}
	seq := []byte("ACGT")
	if got := string(PadQueryToRef(seq, nil)); got != "ACGT" {
		t.Fatalf("expected unchanged seq for empty cigar, got %q", got)
	}
}

func TestDelQueryToRefDropsInsertions(t *testing.T) {
	// query has an insertion relative to ref that must vanish in ref coords.
	c, _ := Parse("3M2I3M")
	seq := []byte("ACGTTCGT") // 3 + 2(ins) + 3
	got := string(DelQueryToRef(seq, c))
	want := "ACGCGT"
	if got != want {
		t.Fatalf("DelQueryToRef = %q, want %q", got, want)
	}
	if len(got) != c.RefLength() {
		t.Fatalf("result length %d != RefLength %d", len(got), c.RefLength())
	}
}

func TestDelQueryToRefNoInsertionMatchesPad(t *testing.T) {
	c, _ := Parse("4M2D4M")
	seq := []byte("ACGTACGT")
	pad := string(PadQueryToRef(seq, c))
	del := string(DelQueryToRef(seq, c))
	if pad != del {
		t.Fatalf("PadQueryToRef and DelQueryToRef should agree when there is no insertion: %q vs %q", pad, del)
	}
}
