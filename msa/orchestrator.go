package msa

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/shenwei356/refmsa/align"
	"github.com/shenwei356/refmsa/diagnostics"
	"github.com/shenwei356/refmsa/external"
	"github.com/shenwei356/refmsa/internal/errs"
	"github.com/shenwei356/refmsa/seqio"
	"github.com/shenwei356/refmsa/sketch"
)

// State is the orchestrator's position in its Constructed -> Indexed ->
// Aligning -> AlignDone -> Merged state machine (§4.7).
type State int

const (
	Constructed State = iota
	Indexed
	Aligning
	AlignDone
	Merged
)

// Orchestrator drives the whole reference-guided MSA run.
type Orchestrator struct {
	Opt   Options
	state State
	idx   *Index

	workerFiles []workerFiles

	// Diag collects per-query best-reference similarity for the optional
	// diagnostics histogram; nil disables collection.
	Diag   *diagnostics.Collector
	diagMu sync.Mutex

	// OnBatch, if set, is called after each AlignStream batch is flushed
	// with the cumulative number of queries processed so far, for a
	// caller-driven progress bar. Nil disables the callback.
	OnBatch func(done int)
}

type workerFiles struct {
	noInsertion string
	insertion   string
}

// NewOrchestrator starts a fresh run in the Constructed state.
func NewOrchestrator(opt Options) *Orchestrator {
	return &Orchestrator{Opt: opt, state: Constructed}
}

// State reports the orchestrator's current state.
func (o *Orchestrator) State() State { return o.state }

// RefIndex exposes the frozen reference index built by Index, for callers
// (e.g. the VCF driver) that need to resolve a SAM record's rname back to
// its reference bases. Returns nil before Index has run.
func (o *Orchestrator) RefIndex() *Index { return o.idx }

// WorkerResultFiles returns the per-worker (non-insertion, insertion) SAM
// file path pairs written by AlignStream, for callers that need to replay
// them (e.g. the VCF driver) after Merge has already consumed them.
func (o *Orchestrator) WorkerResultFiles() []struct{ NoInsertion, Insertion string } {
	out := make([]struct{ NoInsertion, Insertion string }, len(o.workerFiles))
	for i, wf := range o.workerFiles {
		out[i] = struct{ NoInsertion, Insertion string }{wf.noInsertion, wf.insertion}
	}
	return out
}

// Index builds the reference index (§4.7.1), advancing Constructed ->
// Indexed.
func (o *Orchestrator) Index(ctx context.Context, collab external.Collaborator) error {
	if o.state != Constructed {
		return errs.New(errs.InvalidArgument, "", "msa: Index called out of order")
	}
	idx, err := BuildIndex(ctx, o.Opt, collab)
	if err != nil {
		return err
	}
	o.idx = idx
	o.state = Indexed
	return nil
}

// workerResult is the outcome of aligning one query. Each worker appends
// its own results in the order it pulled them from the shared cursor, so
// writers stay deterministic per worker (§4.7.2: "output records preserve
// input order of the queries assigned to it") without needing a separate
// order field.
type workerResult struct {
	qname     string
	rname     string
	cigar     string
	insertion bool
}

// AlignStream implements §4.7.2: dynamic granularity-1 scheduling across
// T workers, fork-join barrier per batch, two per-worker SAM writers.
func (o *Orchestrator) AlignStream(ctx context.Context) error {
	if o.state != Indexed {
		return errs.New(errs.InvalidArgument, "", "msa: AlignStream called out of order")
	}
	o.state = Aligning

	resultsDir := filepath.Join(o.Opt.WorkDir, "results")
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return errs.Wrap(errs.IoFailure, resultsDir, err)
	}
	writers := make([]*workerPair, o.Opt.Threads)
	o.workerFiles = make([]workerFiles, o.Opt.Threads)
	for t := 0; t < o.Opt.Threads; t++ {
		noIns := filepath.Join(resultsDir, fmt.Sprintf("aligned_%d.sam", t))
		ins := filepath.Join(resultsDir, fmt.Sprintf("aligned_insertion_%d.sam", t))
		wNoIns, err := seqio.NewSamWriter(noIns)
		if err != nil {
			return err
		}
		wIns, err := seqio.NewSamWriter(ins)
		if err != nil {
			return err
		}
		writers[t] = &workerPair{noInsertion: wNoIns, insertion: wIns}
		o.workerFiles[t] = workerFiles{noInsertion: noIns, insertion: ins}
	}
	defer func() {
		for _, w := range writers {
			w.noInsertion.Close()
			w.insertion.Close()
		}
	}()

	qr, err := seqio.NewFastaReader(o.Opt.QryFasta)
	if err != nil {
		return err
	}

	batchSize := o.Opt.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	processed := 0
	for {
		batch, eof, err := readBatch(qr, batchSize)
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := o.alignBatch(ctx, batch, writers); err != nil {
				return err
			}
			for _, w := range writers {
				if err := w.noInsertion.Flush(); err != nil {
					return err
				}
				if err := w.insertion.Flush(); err != nil {
					return err
				}
			}
			processed += len(batch)
			if o.OnBatch != nil {
				o.OnBatch(processed)
			}
		}
		if eof {
			break
		}
	}

	o.state = AlignDone
	return nil
}

type workerPair struct {
	noInsertion *seqio.SamWriter
	insertion   *seqio.SamWriter
}

func readBatch(r *seqio.FastaReader, n int) ([]*seqio.Record, bool, error) {
	batch := make([]*seqio.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := r.Next()
		if err == io.EOF {
			return batch, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		batch = append(batch, rec)
	}
	return batch, false, nil
}

// alignBatch dispatches batch across T workers with dynamic, granularity-1
// scheduling (a shared mutex-guarded work-item cursor rather than a static
// split), then barriers until every worker drains its share before the
// next batch is read.
func (o *Orchestrator) alignBatch(ctx context.Context, batch []*seqio.Record, writers []*workerPair) error {
	T := o.Opt.Threads
	var cursor int
	var mu sync.Mutex
	next := func() (int, *seqio.Record, bool) {
		mu.Lock()
		defer mu.Unlock()
		if cursor >= len(batch) {
			return 0, nil, false
		}
		i := cursor
		cursor++
		return i, batch[i], true
	}

	perWorkerResults := make([][]workerResult, T)
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex

	for t := 0; t < T; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			var out []workerResult
			for {
				_, rec, ok := next()
				if !ok {
					break
				}
				res, err := o.alignOne(rec)
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					continue
				}
				out = append(out, res)
			}
			perWorkerResults[t] = out
		}(t)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	for t := 0; t < T; t++ {
		for _, res := range perWorkerResults[t] {
			w := writers[t]
			if res.insertion {
				if err := w.insertion.WriteAligned(res.qname, res.rname, res.cigar); err != nil {
					return err
				}
			} else {
				if err := w.noInsertion.WriteAligned(res.qname, res.rname, res.cigar); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// alignOne implements the five sub-steps of §4.7.2 for a single query.
func (o *Orchestrator) alignOne(q *seqio.Record) (workerResult, error) {
	qSketch := sketch.Build(q.Seq, o.Opt.KmerSize, o.Opt.SketchSize, false, sketch.DefaultSeed)

	bestIdx := -1
	bestJ := -1.0
	for i, ref := range o.idx.Refs {
		j, err := sketch.Jaccard(qSketch, ref.Sketch)
		if err != nil {
			return workerResult{}, err
		}
		if j > bestJ {
			bestJ = j
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return workerResult{}, errs.New(errs.InvalidArgument, q.ID, "msa: empty reference index")
	}
	bestRef := o.idx.Refs[bestIdx]

	if o.Diag != nil {
		o.diagMu.Lock()
		o.Diag.Record(bestJ, sketch.ANI(bestJ, o.Opt.KmerSize))
		o.diagMu.Unlock()
	}

	cigar1, err := align.GlobalAlignWF(bestRef.Record.Seq, q.Seq, o.Opt.Align.WF)
	if err != nil {
		return workerResult{}, err
	}

	if !cigar1.HasInsertion() {
		return workerResult{qname: q.ID, rname: bestRef.Record.ID, cigar: cigar1.String()}, nil
	}

	cigar2, err := align.GlobalAlignWF(o.idx.Consensus.Record.Seq, q.Seq, o.Opt.Align.WF)
	if err != nil {
		return workerResult{}, err
	}
	final := cigar2
	if len(final) == 0 {
		final = cigar1
	}
	return workerResult{
		qname:     q.ID,
		rname:     o.idx.Consensus.Record.ID,
		cigar:     final.String(),
		insertion: final.HasInsertion(),
	}, nil
}
