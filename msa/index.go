package msa

import (
	"context"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"github.com/shenwei356/refmsa/consensus"
	"github.com/shenwei356/refmsa/external"
	"github.com/shenwei356/refmsa/internal/errs"
	"github.com/shenwei356/refmsa/minimizer"
	"github.com/shenwei356/refmsa/seqio"
	"github.com/shenwei356/refmsa/sketch"
)

// RefEntry is one reference record plus its precomputed sketch and
// minimizer hit list, built once and read-only across all workers.
type RefEntry struct {
	Record     *seqio.Record
	Sketch     sketch.Sketch
	Minimizers []minimizer.Hit
}

// Index is the process-wide reference index (§3: "Built once in the
// orchestrator constructor; read-only across all workers").
type Index struct {
	Refs      []RefEntry
	Consensus RefEntry

	// ConsensusInput summarizes the reference rows actually handed to
	// the collaborator for consensus reduction, when that path ran.
	ConsensusInput ConsensusInputStats
}

// ConsensusInputStats reports the Top-K-by-length selection (--cons-n)
// applied before the consensus collaborator runs, for an end-of-run log
// line rather than re-deriving it from the reference FASTA.
type ConsensusInputStats struct {
	N         int
	MeanLen   float64
	StdevLen  float64
}

// BuildIndex implements §4.7.1: sketch+minimizer every reference record,
// then choose the center consensus — the first reference verbatim under
// keep_first_length, otherwise the first record of the -c center FASTA
// when one is given, or else the external collaborator's reduction of the
// Top-K reference records (see reduceToConsensus).
func BuildIndex(ctx context.Context, opt Options, collab external.Collaborator) (*Index, error) {
	refs, err := seqio.ReadAllFasta(opt.RefFasta)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, errs.New(errs.InvalidArgument, opt.RefFasta, "msa: reference FASTA has no records")
	}

	idx := &Index{Refs: make([]RefEntry, len(refs))}
	for i, r := range refs {
		idx.Refs[i] = buildEntry(r, opt, uint32(i))
	}

	var centerRec *seqio.Record
	if opt.KeepFirstLength {
		centerRec = refs[0].Clone()
	} else {
		var stats ConsensusInputStats
		centerRec, stats, err = reduceToConsensus(ctx, opt, refs, collab)
		if err != nil {
			return nil, err
		}
		idx.ConsensusInput = stats
	}
	idx.Consensus = buildEntry(centerRec, opt, uint32(len(refs)))
	return idx, nil
}

func buildEntry(r *seqio.Record, opt Options, rid uint32) RefEntry {
	sk := sketch.Build(r.Seq, opt.KmerSize, opt.SketchSize, false, sketch.DefaultSeed)
	hits, _ := minimizer.Extract(r.Seq, opt.KmerSize, opt.KmerWindow, false, rid)
	return RefEntry{Record: r, Sketch: sk, Minimizers: hits}
}

// reduceToConsensus returns the first record of opt.CenterFasta when that
// is set, without running the collaborator. Otherwise it runs the external
// collaborator over the reference FASTA, then reduces the resulting aligned columns to a single
// consensus record via consensus.Build (§4.8), writing the JSON
// side-file and the aligned-reference intermediate into workDir.
func reduceToConsensus(ctx context.Context, opt Options, refs []*seqio.Record, collab external.Collaborator) (*seqio.Record, ConsensusInputStats, error) {
	if opt.CenterFasta != "" {
		centerRecs, err := seqio.ReadAllFasta(opt.CenterFasta)
		if err != nil {
			return nil, ConsensusInputStats{}, err
		}
		if len(centerRecs) == 0 {
			return nil, ConsensusInputStats{}, errs.New(errs.InvalidArgument, opt.CenterFasta, "msa: center FASTA has no records")
		}
		return centerRecs[0], ConsensusInputStats{}, nil
	}

	cleanDir := filepath.Join(opt.WorkDir, "data", "clean")
	if err := os.MkdirAll(cleanDir, 0755); err != nil {
		return nil, ConsensusInputStats{}, errs.Wrap(errs.IoFailure, cleanDir, err)
	}

	selected, stats := selectConsensusInput(refs, opt.ConsN)
	poolPath := filepath.Join(cleanDir, "consensus_input.fasta")
	poolWriter, err := seqio.NewFastaWriter(poolPath, opt.WrapWidth)
	if err != nil {
		return nil, ConsensusInputStats{}, err
	}
	for _, r := range selected {
		if err := poolWriter.WriteRecord(r.ID, r.Seq); err != nil {
			poolWriter.Close()
			return nil, ConsensusInputStats{}, err
		}
	}
	if err := poolWriter.Close(); err != nil {
		return nil, ConsensusInputStats{}, err
	}

	alignedRefPath := filepath.Join(cleanDir, "ref_aligned.fasta")
	if err := collab.Align(ctx, poolPath, alignedRefPath); err != nil {
		return nil, ConsensusInputStats{}, err
	}

	aligned, err := seqio.ReadAllFasta(alignedRefPath)
	if err != nil {
		return nil, ConsensusInputStats{}, err
	}
	if len(aligned) == 0 {
		return nil, ConsensusInputStats{}, errs.New(errs.ExternalToolFailure, alignedRefPath,
			"msa: collaborator produced an empty aligned reference FASTA")
	}

	rows := make([][]byte, len(aligned))
	for i, rec := range aligned {
		rows[i] = rec.Seq
	}
	consSeq, counts, err := consensus.Build(rows, opt.ConsOpt)
	if err != nil {
		return nil, ConsensusInputStats{}, err
	}

	sideFile := filepath.Join(cleanDir, "consensus.counts.json")
	data, err := consensus.MarshalSideFile(counts)
	if err != nil {
		return nil, ConsensusInputStats{}, err
	}
	if err := os.WriteFile(sideFile, data, 0644); err != nil {
		return nil, ConsensusInputStats{}, errs.Wrap(errs.IoFailure, sideFile, err)
	}

	return &seqio.Record{ID: "consensus", Seq: consSeq}, stats, nil
}

// selectConsensusInput caps the reference panel fed to the consensus
// collaborator to the n longest records (0 = no cap), streamed through
// consensus.TopK the same bounded min-heap selector the "Top-K by
// length" rule (§4.8 + §6 --cons-n) names for bounding the
// collaborator's input size on large panels, and summarizes the
// selection's length distribution via gonum/stat for an end-of-run log
// line.
func selectConsensusInput(refs []*seqio.Record, n int) ([]*seqio.Record, ConsensusInputStats) {
	selected := refs
	if n > 0 && n < len(refs) {
		tk := consensus.NewTopK(n)
		for _, r := range refs {
			tk.Push(len(r.Seq), r)
		}
		items := tk.Extract()
		selected = make([]*seqio.Record, len(items))
		for i, it := range items {
			selected[i] = it.Record.(*seqio.Record)
		}
	}

	lens := make([]float64, len(selected))
	for i, r := range selected {
		lens[i] = float64(len(r.Seq))
	}
	mean := stat.Mean(lens, nil)
	return selected, ConsensusInputStats{
		N:        len(selected),
		MeanLen:  mean,
		StdevLen: stat.StdDev(lens, nil),
	}
}
