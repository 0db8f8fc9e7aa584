package msa

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/external"
	"github.com/shenwei356/refmsa/seqio"
)

func TestRowToCigarRunLengthEncodesGapRuns(t *testing.T) {
	c := rowToCigar([]byte("AC--GTACGT"))
	if got, want := c.String(), "2M2D6M"; got != want {
		t.Fatalf("rowToCigar = %q, want %q", got, want)
	}
}

func TestRowToCigarAllMatchNoGaps(t *testing.T) {
	c := rowToCigar([]byte("ACGTACGT"))
	if got, want := c.String(), "8M"; got != want {
		t.Fatalf("rowToCigar = %q, want %q", got, want)
	}
}

func TestParseRefMSABuildsCigarsAndGapVectors(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, "refmsa.fasta", map[string]string{
		"center": "ACGT--ACGT",
		"other":  "ACGTGGACGT",
	})
	rm, err := ParseRefMSA(path, "center")
	if err != nil {
		t.Fatal(err)
	}
	if rm.Width != 10 {
		t.Fatalf("Width = %d, want 10", rm.Width)
	}
	if rm.Cigars["center"].String() != "4M2D4M" {
		t.Fatalf("center cigar = %q, want 4M2D4M", rm.Cigars["center"].String())
	}
	if rm.Cigars["other"].String() != "10M" {
		t.Fatalf("other cigar = %q, want 10M", rm.Cigars["other"].String())
	}
	for i, want := range []bool{false, false, false, false, true, true, false, false, false, false} {
		if rm.CenterGap[i] != want {
			t.Fatalf("CenterGap[%d] = %v, want %v", i, rm.CenterGap[i], want)
		}
		if rm.AnyGap[i] != want {
			t.Fatalf("AnyGap[%d] = %v, want %v (no other row has a gap here)", i, rm.AnyGap[i], want)
		}
	}
}

func TestParseRefMSARejectsUnequalRowLengths(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, "refmsa.fasta", map[string]string{
		"center": "ACGT",
		"other":  "ACGTA",
	})
	if _, err := ParseRefMSA(path, "center"); err == nil {
		t.Fatalf("expected error for unequal row lengths")
	}
}

func TestParseRefMSARequiresCenterRow(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, "refmsa.fasta", map[string]string{
		"other": "ACGT",
	})
	if _, err := ParseRefMSA(path, "center"); err == nil {
		t.Fatalf("expected error when center id is absent")
	}
}

func TestParseRefMSARejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, "refmsa.fasta", map[string]string{})
	if _, err := ParseRefMSA(path, "center"); err == nil {
		t.Fatalf("expected error for empty reference-MSA file")
	}
}

func TestKeepColumnsNeitherFlagKeepsEverything(t *testing.T) {
	rm := &RefMSA{Width: 4, CenterGap: []bool{false, true, false, false}, AnyGap: []bool{false, true, true, false}}
	keep := rm.keepColumns(Options{})
	for i, k := range keep {
		if !k {
			t.Fatalf("column %d should be kept when neither flag is set", i)
		}
	}
}

func TestKeepColumnsFirstLengthDropsCenterGapOnly(t *testing.T) {
	rm := &RefMSA{Width: 4, CenterGap: []bool{false, true, false, false}, AnyGap: []bool{false, true, true, false}}
	keep := rm.keepColumns(Options{KeepFirstLength: true})
	want := []bool{true, false, true, true}
	for i := range want {
		if keep[i] != want[i] {
			t.Fatalf("keep[%d] = %v, want %v", i, keep[i], want[i])
		}
	}
}

func TestKeepColumnsAllLengthDropsAnyGapColumn(t *testing.T) {
	rm := &RefMSA{Width: 4, CenterGap: []bool{false, true, false, false}, AnyGap: []bool{false, true, true, false}}
	keep := rm.keepColumns(Options{KeepAllLength: true})
	want := []bool{true, false, false, true}
	for i := range want {
		if keep[i] != want[i] {
			t.Fatalf("keep[%d] = %v, want %v", i, keep[i], want[i])
		}
	}
}

func TestApplyKeepFiltersColumns(t *testing.T) {
	row := []byte("ACGT")
	keep := []bool{true, false, true, false}
	if got, want := string(applyKeep(row, keep)), "AG"; got != want {
		t.Fatalf("applyKeep = %q, want %q", got, want)
	}
}

func TestBuildQueryIndexMapsIDsToSeq(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, "qry.fasta", map[string]string{"q1": "ACGT", "q2": "TTTT"})
	idx, err := buildQueryIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(idx["q1"]) != "ACGT" || string(idx["q2"]) != "TTTT" {
		t.Fatalf("unexpected query index contents: %+v", idx)
	}
}

func TestMergeWorkerFileProjectsNonInsertionRecord(t *testing.T) {
	dir := t.TempDir()
	samPath := filepath.Join(dir, "aligned_0.sam")
	sw, err := seqio.NewSamWriter(samPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := sw.WriteAligned("q1", "ref1", "3M2D3M"); err != nil {
		t.Fatal(err)
	}
	if err := sw.Close(); err != nil {
		t.Fatal(err)
	}

	qidx := queryIndex{"q1": []byte("ACGCGT")}
	keep := []bool{true, true, true, true, true, true, true, true}

	refCigar, err := cigar.Parse("8M")
	if err != nil {
		t.Fatal(err)
	}
	rm := &RefMSA{Width: 8, Cigars: map[string]cigar.Cigar{"ref1": refCigar}}

	outPath := filepath.Join(dir, "out.fasta")
	out, err := seqio.NewFastaWriter(outPath, 80)
	if err != nil {
		t.Fatal(err)
	}
	if err := mergeWorkerFile(out, samPath, qidx, keep, rm); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	recs, err := seqio.ReadAllFasta(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "q1" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if got, want := string(recs[0].Seq), "ACG--CGT"; got != want {
		t.Fatalf("projected seq = %q, want %q", got, want)
	}
}

func TestMergeWorkerFileComposesInsertionRecord(t *testing.T) {
	dir := t.TempDir()
	samPath := filepath.Join(dir, "aligned_insertion_0.sam")
	sw, err := seqio.NewSamWriter(samPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := sw.WriteAligned("q1", "consensus", "3M2I3M"); err != nil {
		t.Fatal(err)
	}
	if err := sw.Close(); err != nil {
		t.Fatal(err)
	}

	refCigar, err := cigar.Parse("6M")
	if err != nil {
		t.Fatal(err)
	}
	rm := &RefMSA{Width: 6, Cigars: map[string]cigar.Cigar{"consensus": refCigar}}

	qidx := queryIndex{"q1": []byte("ACGTTCGT")} // 3 + 2(ins) + 3
	keep := []bool{true, true, true, true, true, true}

	outPath := filepath.Join(dir, "out.fasta")
	out, err := seqio.NewFastaWriter(outPath, 80)
	if err != nil {
		t.Fatal(err)
	}
	if err := mergeWorkerFile(out, samPath, qidx, keep, rm); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	recs, err := seqio.ReadAllFasta(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "q1" {
		t.Fatalf("unexpected records: %+v", recs)
	}
	if got, want := string(recs[0].Seq), "ACGCGT"; got != want {
		t.Fatalf("composed/projected seq = %q, want %q", got, want)
	}
	if len(recs[0].Seq) != rm.Width {
		t.Fatalf("row width %d != reference-MSA width %d", len(recs[0].Seq), rm.Width)
	}
}

func TestMergeWorkerFileErrorsOnUnknownQueryID(t *testing.T) {
	dir := t.TempDir()
	samPath := filepath.Join(dir, "aligned_0.sam")
	sw, err := seqio.NewSamWriter(samPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := sw.WriteAligned("ghost", "ref1", "4M"); err != nil {
		t.Fatal(err)
	}
	if err := sw.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := seqio.NewFastaWriter(filepath.Join(dir, "out.fasta"), 80)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	rm := &RefMSA{Width: 4, Cigars: map[string]cigar.Cigar{}}
	if err := mergeWorkerFile(out, samPath, queryIndex{}, []bool{true, true, true, true}, rm); err == nil {
		t.Fatalf("expected error for SAM record with unknown query id")
	}
}

func TestOrchestratorMergeEndToEndNoInsertions(t *testing.T) {
	ref := "ACGTACGTACGTACGTACGTACGTACGTACGT"
	o, dir := setupIndexedOrchestrator(t, map[string]string{"ref1": ref})
	o.Opt.QryFasta = writeFasta(t, dir, "qry.fasta", map[string]string{"q1": ref})
	o.Opt.OutFasta = filepath.Join(dir, "merged.fasta")

	if err := o.AlignStream(context.Background()); err != nil {
		t.Fatal(err)
	}

	refMSAPath := writeFasta(t, dir, "refmsa.fasta", map[string]string{"ref1": ref})
	if err := o.Merge(refMSAPath); err != nil {
		t.Fatal(err)
	}
	if o.State() != Merged {
		t.Fatalf("expected Merged state, got %v", o.State())
	}

	recs, err := seqio.ReadAllFasta(o.Opt.OutFasta)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 output records (center + q1), got %d", len(recs))
	}
	if recs[0].ID != "ref1" {
		t.Fatalf("expected center record first, got %q", recs[0].ID)
	}
	for _, r := range recs {
		if len(r.Seq) != len(ref) {
			t.Fatalf("record %s has length %d, want %d", r.ID, len(r.Seq), len(ref))
		}
	}

	if _, err := os.Stat(o.Opt.OutFasta); err != nil {
		t.Fatal(err)
	}
}

// TestMergeProjectsNonInsertionRowsIntoMergedColumnSpace guards against a
// non-rectangular merged FASTA: a non-insertion record's reference
// (ref2, shorter than the reference-MSA's merged width) must still be
// composed with its own reference-MSA row before trimming, the same way
// insertion records are, whenever some other query's insertion widened
// the reference-MSA beyond the raw reference lengths.
func TestMergeProjectsNonInsertionRowsIntoMergedColumnSpace(t *testing.T) {
	dir := t.TempDir()
	opt := baseOptions(t)
	opt.RefFasta = writeFasta(t, dir, "ref.fasta", map[string]string{
		"ref1": "AAAACCCCAAAA", // consensus, len 12
		"ref2": "GGGGTTTT",     // a second, shorter reference, len 8
	})
	opt.CenterFasta = writeFasta(t, dir, "center.fasta", map[string]string{
		"ref1": "AAAACCCCAAAA",
	})
	opt.Threads = 1
	opt.OutFasta = filepath.Join(dir, "merged.fasta")

	o := NewOrchestrator(opt)
	if err := o.Index(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	resultsDir := filepath.Join(dir, "results")
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		t.Fatal(err)
	}
	noInsPath := filepath.Join(resultsDir, "aligned_0.sam")
	insPath := filepath.Join(resultsDir, "aligned_insertion_0.sam")

	swNoIns, err := seqio.NewSamWriter(noInsPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := swNoIns.WriteAligned("q1", "ref2", "8M"); err != nil {
		t.Fatal(err)
	}
	if err := swNoIns.Close(); err != nil {
		t.Fatal(err)
	}

	swIns, err := seqio.NewSamWriter(insPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := swIns.WriteAligned("q2", "ref1", "4M2I8M"); err != nil {
		t.Fatal(err)
	}
	if err := swIns.Close(); err != nil {
		t.Fatal(err)
	}

	o.workerFiles = []workerFiles{{noInsertion: noInsPath, insertion: insPath}}
	o.state = AlignDone
	o.Opt.QryFasta = writeFasta(t, dir, "qry.fasta", map[string]string{
		"q1": "GGGGTTTT",
		"q2": "AAAAXXCCCCAAAA",
	})

	// The externally-produced reference-MSA widens the consensus by a
	// 2-column insertion span (q2's insertion) to width 14; ref2's own
	// row must be expressed in that same merged column space even though
	// ref2 itself is only 8 bases long.
	refMSAPath := writeFasta(t, dir, "refmsa.fasta", map[string]string{
		"ref1": "AAAA--CCCCAAAA",
		"ref2": "----GGGGTTTT--",
	})

	if err := o.Merge(refMSAPath); err != nil {
		t.Fatal(err)
	}

	recs, err := seqio.ReadAllFasta(o.Opt.OutFasta)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 rows (center + q1 + q2), got %d", len(recs))
	}
	for _, r := range recs {
		if len(r.Seq) != 14 {
			t.Fatalf("row %s has length %d, want 14 (non-rectangular merge output)", r.ID, len(r.Seq))
		}
	}
	for _, r := range recs {
		if r.ID == "q1" && string(r.Seq) != "----GGGGTTTT--" {
			t.Fatalf("q1 projected = %q, want %q", r.Seq, "----GGGGTTTT--")
		}
		if r.ID == "q2" && string(r.Seq) != "AAAA--CCCCAAAA" {
			t.Fatalf("q2 projected = %q, want %q", r.Seq, "AAAA--CCCCAAAA")
		}
	}
}

func TestRunRefMSACollaboratorSkipsCollabWhenNoInsertions(t *testing.T) {
	ref := "ACGTACGTACGTACGTACGTACGTACGTACGT"
	o, dir := setupIndexedOrchestrator(t, map[string]string{"ref1": ref})
	o.Opt.QryFasta = writeFasta(t, dir, "qry.fasta", map[string]string{"q1": ref})

	if err := o.AlignStream(context.Background()); err != nil {
		t.Fatal(err)
	}

	path, err := o.RunRefMSACollaborator(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := seqio.ReadAllFasta(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "ref1" {
		t.Fatalf("expected just the consensus row, got %+v", recs)
	}
}

func TestRunRefMSACollaboratorRequiresCollabWhenInsertionsPresent(t *testing.T) {
	ref := "AAAACCCCAAAA"
	o, dir := setupIndexedOrchestrator(t, map[string]string{"ref1": ref})
	o.Opt.QryFasta = writeFasta(t, dir, "qry.fasta", map[string]string{"q1": "AAAACCCCGGGGAAAA"})

	if err := o.AlignStream(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := o.RunRefMSACollaborator(context.Background(), nil); err == nil {
		t.Fatalf("expected error when insertions are present but no collaborator is configured")
	}

	stub := &external.Stub{Fn: func(input, output string) error {
		return os.WriteFile(output, []byte(">ref1\nAAAACCCC--GGGGAAAA\n>q1\nAAAACCCCGGGGAAAA\n"), 0644)
	}}
	path, err := o.RunRefMSACollaborator(context.Background(), stub)
	if err != nil {
		t.Fatal(err)
	}
	if len(stub.Calls) != 1 {
		t.Fatalf("expected exactly one collaborator call, got %d", len(stub.Calls))
	}
	recs, err := seqio.ReadAllFasta(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 rows in the reference-MSA output, got %d", len(recs))
	}
}
