package msa

import (
	"context"
	"io"
	"path/filepath"

	"github.com/rdleal/intervalst/interval"

	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/external"
	"github.com/shenwei356/refmsa/internal/errs"
	"github.com/shenwei356/refmsa/seqio"
)

// RefMSA is the parsed reference-MSA file: a per-id M/D-only CIGAR
// projecting that id's raw sequence into the merged column space, plus
// the gap-column bookkeeping the trimming rules in §4.7.3 step 5 need.
type RefMSA struct {
	Width     int
	Cigars    map[string]cigar.Cigar
	CenterGap []bool // column i is '-' in the center (consensus/first-ref) row
	AnyGap    []bool // column i is '-' in at least one reference-MSA row
}

// ParseRefMSA reads the reference-MSA FASTA file (the consensus plus the
// insertion-carrying queries, realigned externally, §4.7.3 step 1) into a
// RefMSA keyed by record id.
func ParseRefMSA(file, centerID string) (*RefMSA, error) {
	rows, err := seqio.ReadAllFasta(file)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.New(errs.InvalidArgument, file, "msa: reference-MSA file has no records")
	}
	width := len(rows[0].Seq)
	rm := &RefMSA{
		Width:  width,
		Cigars: make(map[string]cigar.Cigar, len(rows)),
		AnyGap: make([]bool, width),
	}
	var centerRow []byte
	for _, row := range rows {
		if len(row.Seq) != width {
			return nil, errs.New(errs.InvalidArgument, file, "msa: reference-MSA rows have unequal length")
		}
		rm.Cigars[row.ID] = rowToCigar(row.Seq)
		for i, b := range row.Seq {
			if b == '-' {
				rm.AnyGap[i] = true
			}
		}
		if row.ID == centerID {
			centerRow = row.Seq
		}
	}
	if centerRow == nil {
		return nil, errs.New(errs.InvalidArgument, file, "msa: reference-MSA file has no row for center id "+centerID)
	}
	rm.CenterGap = make([]bool, width)
	for i, b := range centerRow {
		rm.CenterGap[i] = b == '-'
	}
	return rm, nil
}

// rowToCigar run-length-encodes an aligned row into an M/D-only CIGAR:
// non-gap runs become M, gap runs become D.
func rowToCigar(seq []byte) cigar.Cigar {
	var acc cigar.Cigar
	i := 0
	for i < len(seq) {
		isGap := seq[i] == '-'
		j := i + 1
		for j < len(seq) && (seq[j] == '-') == isGap {
			j++
		}
		op := byte('M')
		if isGap {
			op = 'D'
		}
		u, err := cigar.Encode(op, uint32(j-i))
		if err == nil {
			acc = cigar.AppendWithMerge(acc, cigar.Cigar{u})
		}
		i = j
	}
	return acc
}

func intervalIntCmp(x, y int) int { return x - y }

// buildGapTree run-length-encodes a per-column gap mask into an interval
// search tree of closed [start,end-1] gap spans: most reference-MSA files have gap
// columns grouped into a handful of insertion spans rather than scattered
// singletons, so a handful of ranges answers the membership query below
// far cheaper than re-walking the mask column by column.
func buildGapTree(gaps []bool) *interval.SearchTree[int, int] {
	t := interval.NewSearchTree[int, int](intervalIntCmp)
	i := 0
	for i < len(gaps) {
		if !gaps[i] {
			i++
			continue
		}
		j := i + 1
		for j < len(gaps) && gaps[j] {
			j++
		}
		t.Insert(i, j-1, i)
		i = j
	}
	return t
}

// keepColumns computes the per-column keep mask from the trimming rules
// in §4.7.3 step 5. Options.Validate already rejects KeepFirstLength &&
// KeepAllLength together.
func (rm *RefMSA) keepColumns(opt Options) []bool {
	keep := make([]bool, rm.Width)
	for i := range keep {
		keep[i] = true
	}
	var gapTree *interval.SearchTree[int, int]
	switch {
	case opt.KeepFirstLength:
		gapTree = buildGapTree(rm.CenterGap)
	case opt.KeepAllLength:
		gapTree = buildGapTree(rm.AnyGap)
	default:
		return keep
	}
	for i := range keep {
		if _, ok := gapTree.AnyIntersection(i, i); ok {
			keep[i] = false
		}
	}
	return keep
}

func applyKeep(row []byte, keep []bool) []byte {
	out := make([]byte, 0, len(row))
	for i, b := range row {
		if keep[i] {
			out = append(out, b)
		}
	}
	return out
}

// queryIndex is a small id -> sequence lookup built once from the query
// FASTA, since per-worker SAM records never carry seq/qual (§6 fixes them
// to "*"): the merge pass needs the raw base string back to project it.
type queryIndex map[string][]byte

func buildQueryIndex(file string) (queryIndex, error) {
	recs, err := seqio.ReadAllFasta(file)
	if err != nil {
		return nil, err
	}
	idx := make(queryIndex, len(recs))
	for _, r := range recs {
		idx[r.ID] = r.Seq
	}
	return idx, nil
}

// insertionQueryIDs scans every worker's insertion SAM file and returns the
// distinct qnames found there, in file order (duplicates across workers
// collapsed, since a query is assigned to exactly one worker).
func (o *Orchestrator) insertionQueryIDs() ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, wf := range o.workerFiles {
		r, err := seqio.NewSamReader(wf.insertion)
		if err != nil {
			return nil, err
		}
		for {
			rec, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				r.Close()
				return nil, err
			}
			if !seen[rec.QName] {
				seen[rec.QName] = true
				ids = append(ids, rec.QName)
			}
		}
		if err := r.Close(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// PrepareRefMSAInput implements the un-aligned half of §4.7.3's "produced
// externally by running the insertion-pool aligner on the concatenation of
// the consensus and the insertion-carrying queries": it writes that pool
// FASTA to <workdir>/results/ref_msa_input.fasta and returns the path plus
// whether any insertion-carrying query was found, for the caller to hand
// to whichever collaborator it wants to invoke.
func (o *Orchestrator) PrepareRefMSAInput() (path string, hasInsertions bool, err error) {
	if o.state != AlignDone {
		return "", false, errs.New(errs.InvalidArgument, "", "msa: PrepareRefMSAInput called out of order")
	}
	ids, err := o.insertionQueryIDs()
	if err != nil {
		return "", false, err
	}
	qidx, err := buildQueryIndex(o.Opt.QryFasta)
	if err != nil {
		return "", false, err
	}

	resultsDir := filepath.Join(o.Opt.WorkDir, "results")
	path = filepath.Join(resultsDir, "ref_msa_input.fasta")
	out, err := seqio.NewFastaWriter(path, o.Opt.WrapWidth)
	if err != nil {
		return "", false, err
	}
	defer out.Close()

	if err := out.WriteRecord(o.idx.Consensus.Record.ID, o.idx.Consensus.Record.Seq); err != nil {
		return "", false, err
	}
	for _, id := range ids {
		seq, ok := qidx[id]
		if !ok {
			return "", false, errs.New(errs.ParseError, id, "msa: insertion record references unknown query id")
		}
		if err := out.WriteRecord(id, seq); err != nil {
			return "", false, err
		}
	}
	return path, len(ids) > 0, nil
}

// RunRefMSACollaborator runs collab over the pool FASTA built by
// PrepareRefMSAInput, writing the aligned reference-MSA FASTA to
// <workdir>/results/ref_msa.fasta and returning its path. When no query
// ever produced an insertion record, the pool (a single, trivially
// "aligned" consensus row) is copied straight through and collab is never
// invoked — collab may be nil in that case.
func (o *Orchestrator) RunRefMSACollaborator(ctx context.Context, collab external.Collaborator) (string, error) {
	poolPath, hasInsertions, err := o.PrepareRefMSAInput()
	if err != nil {
		return "", err
	}
	outPath := filepath.Join(o.Opt.WorkDir, "results", "ref_msa.fasta")
	if !hasInsertions {
		recs, err := seqio.ReadAllFasta(poolPath)
		if err != nil {
			return "", err
		}
		out, err := seqio.NewFastaWriter(outPath, o.Opt.WrapWidth)
		if err != nil {
			return "", err
		}
		defer out.Close()
		for _, r := range recs {
			if err := out.WriteRecord(r.ID, r.Seq); err != nil {
				return "", err
			}
		}
		return outPath, nil
	}
	if collab == nil {
		return "", errs.New(errs.InvalidArgument, "", "msa: insertion-carrying queries present but no MSA collaborator configured")
	}
	if err := collab.Align(ctx, poolPath, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// Merge implements §4.7.3: AlignDone -> Merged.
func (o *Orchestrator) Merge(refMSAFile string) error {
	if o.state != AlignDone {
		return errs.New(errs.InvalidArgument, "", "msa: Merge called out of order")
	}

	centerID := o.idx.Consensus.Record.ID
	rm, err := ParseRefMSA(refMSAFile, centerID)
	if err != nil {
		return err
	}
	keep := rm.keepColumns(o.Opt)

	qidx, err := buildQueryIndex(o.Opt.QryFasta)
	if err != nil {
		return err
	}

	out, err := seqio.NewFastaWriter(o.Opt.OutFasta, o.Opt.WrapWidth)
	if err != nil {
		return err
	}
	defer out.Close()

	centerRow := make([]byte, rm.Width)
	for i := range centerRow {
		if rm.CenterGap[i] {
			centerRow[i] = '-'
		} else {
			centerRow[i] = 'N'
		}
	}
	// Re-derive the center's own aligned row by replaying its CIGAR over
	// its raw sequence, so the emitted bases are the real consensus/
	// first-reference bases rather than the 'N' placeholder above.
	if c, ok := rm.Cigars[centerID]; ok {
		centerRow = cigar.PadQueryToRef(o.idx.Consensus.Record.Seq, c)
	}
	if err := out.WriteRecord(centerID, applyKeep(centerRow, keep)); err != nil {
		return err
	}

	for t := 0; t < o.Opt.Threads; t++ {
		if err := mergeWorkerFile(out, o.workerFiles[t].noInsertion, qidx, keep, rm); err != nil {
			return err
		}
		if err := mergeWorkerFile(out, o.workerFiles[t].insertion, qidx, keep, rm); err != nil {
			return err
		}
	}

	o.state = Merged
	return nil
}

// mergeWorkerFile streams one per-worker SAM file, projecting each record
// into the reference-MSA's merged column space and writing a FASTA row.
// Both non-insertion and insertion records carry a CIGAR against their
// raw best_ref, not against the merged columns, so every record must
// first be composed with that reference's reference-MSA row (rm.Cigars)
// before trimming: skipping this for non-insertion records would leave
// their rows |best_ref|-wide instead of rm.Width-wide whenever an
// insertion-carrying query widened the reference-MSA, breaking the
// output FASTA's rectangularity.
func mergeWorkerFile(out *seqio.FastaWriter, file string, qidx queryIndex, keep []bool, rm *RefMSA) error {
	r, err := seqio.NewSamReader(file)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		seq, ok := qidx[rec.QName]
		if !ok {
			return errs.New(errs.ParseError, rec.QName, "msa: SAM record references unknown query id")
		}
		samCigar, err := cigar.Parse(rec.Cigar)
		if err != nil {
			return err
		}

		refCigar, ok := rm.Cigars[rec.RName]
		if !ok {
			return errs.New(errs.ParseError, rec.RName, "msa: record's reference id absent from reference-MSA file")
		}
		composed, err := cigar.Chain(samCigar, refCigar)
		if err != nil {
			return err
		}
		// Chain's result is in merged-column coordinates; any I units
		// left over are true insertions beyond the fixed column set
		// and must be dropped from the row (but still consumed from
		// seq) so every output row keeps the reference-MSA's width.
		projected := cigar.DelQueryToRef(seq, composed)
		if err := out.WriteRecord(rec.QName, applyKeep(projected, keep)); err != nil {
			return err
		}
	}
	return nil
}
