package consensus

import "testing"

func TestBuildColumnMajoritySpecScenario(t *testing.T) {
	// S5: inputs ["ACGT-", "AC-T-", "ACGT-"] with seq_limit=0 produce
	// consensus "ACGTA" (column 3 is G=2 -> G wins; column 5 all-gap -> A).
	rows := [][]byte{
		[]byte("ACGT-"),
		[]byte("AC-T-"),
		[]byte("ACGT-"),
	}
	cons, counts, err := Build(rows, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if string(cons) != "ACGTA" {
		t.Fatalf("consensus = %q, want %q", string(cons), "ACGTA")
	}
	if len(counts) != 5 {
		t.Fatalf("expected 5 column count vectors, got %d", len(counts))
	}
	if counts[4].A != 0 || counts[4].C != 0 || counts[4].G != 0 || counts[4].T != 0 || counts[4].U != 0 {
		t.Fatalf("expected column 5 to be all-zero (pure gap), got %+v", counts[4])
	}
}

func TestBuildRejectsUnequalLengths(t *testing.T) {
	rows := [][]byte{[]byte("ACGT"), []byte("ACG")}
	if _, _, err := Build(rows, Options{}); err == nil {
		t.Fatalf("expected error for mismatched row lengths")
	}
}

func TestBuildEmptyInput(t *testing.T) {
	cons, counts, err := Build(nil, Options{})
	if err != nil || cons != nil || counts != nil {
		t.Fatalf("expected nil, nil, nil for empty input")
	}
}

func TestBuildSeqLimitCapsConsultedRows(t *testing.T) {
	rows := [][]byte{
		[]byte("A"),
		[]byte("A"),
		[]byte("C"),
		[]byte("C"),
		[]byte("C"),
	}
	// Without a cap, C wins (3 vs 2). With seq_limit=2, only the first
	// two rows (both A) are consulted, so A wins.
	full, _, _ := Build(rows, Options{})
	capped, _, _ := Build(rows, Options{SeqLimit: 2})
	if string(full) != "C" {
		t.Fatalf("uncapped consensus = %q, want C", string(full))
	}
	if string(capped) != "A" {
		t.Fatalf("capped consensus = %q, want A", string(capped))
	}
}

func TestMajorityTiePriority(t *testing.T) {
	tests := []struct {
		c    ColumnCounts
		want byte
	}{
		{ColumnCounts{}, 'A'},
		{ColumnCounts{A: 1, C: 1}, 'A'},
		{ColumnCounts{C: 1, G: 1}, 'C'},
		{ColumnCounts{G: 1, T: 1}, 'G'},
		{ColumnCounts{T: 1, U: 1}, 'T'},
		{ColumnCounts{U: 3}, 'U'},
	}
	for _, tc := range tests {
		if got := majority(tc.c); got != tc.want {
			t.Fatalf("majority(%+v) = %c, want %c", tc.c, got, tc.want)
		}
	}
}

func TestMarshalSideFileRoundTrips(t *testing.T) {
	counts := []ColumnCounts{{A: 2, C: 1}, {G: 3}}
	data, err := MarshalSideFile(counts)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty JSON output")
	}
}
