// Package msa implements the reference-guided MSA orchestrator (C7): an
// explicit Constructed -> Indexed -> Aligning -> AlignDone -> Merged state
// machine gluing together seed/cigar/align/consensus/seqio/external.
package msa

import (
	"runtime"

	"github.com/shenwei356/refmsa/align"
	"github.com/shenwei356/refmsa/consensus"
	"github.com/shenwei356/refmsa/internal/errs"
	"github.com/shenwei356/refmsa/seed"
)

func newValidationError(msg string) error {
	return errs.New(errs.InvalidArgument, "", "msa: "+msg)
}

// Options is the immutable configuration context threaded through every
// stage of the orchestrator, built once from CLI flags/config file (§6).
type Options struct {
	RefFasta   string
	QryFasta   string
	OutFasta   string
	WorkDir    string
	SaveWorkdir bool

	Threads   int
	KmerSize  int
	KmerWindow int
	ConsN     int // --cons-n: Top-K by length for consensus input
	SketchSize int

	CenterFasta string // -c: optional user-supplied center FASTA
	Collaborator string // -p: keyword or command template

	KeepFirstLength bool
	KeepAllLength   bool

	BatchSize int // default 25600, never less than 1
	WrapWidth int

	VCF bool

	Seed  seed.Filter
	Chain seed.Params
	Align align.Options

	ConsOpt consensus.Options
}

// DefaultBatchSize is §4.7.2's default query-chunk size.
const DefaultBatchSize = 25600

// NewOptions fills in defaults matching §6/§4's stated values, clamping
// Threads to >= 1 hardware concurrency when unset.
func NewOptions() Options {
	opt := Options{
		Threads:    runtime.NumCPU(),
		KmerSize:   15,
		KmerWindow: 10,
		ConsN:      1000,
		SketchSize: 2000,
		BatchSize:  DefaultBatchSize,
		WrapWidth:  80,
		Seed:       seed.DefaultFilter,
		Chain:      seed.DefaultParams,
		Align:      align.DefaultOptions,
		ConsOpt:    consensus.DefaultOptions,
	}
	return opt
}

// Validate enforces the constraints §6 and §9 call for: required paths,
// thread/batch bounds, and the keep-first+keep-all ambiguity the Design
// Notes direct us to reject rather than guess at.
func (o *Options) Validate() error {
	if o.RefFasta == "" {
		return newValidationError("reference FASTA (-r) is required")
	}
	if o.QryFasta == "" {
		return newValidationError("query FASTA is required")
	}
	if o.OutFasta == "" {
		return newValidationError("output FASTA (-o) is required")
	}
	if o.Threads < 1 {
		o.Threads = 1
	}
	if o.Threads > 100000 {
		return newValidationError("-t/--threads must be in 1..100000")
	}
	if o.BatchSize < 1 {
		o.BatchSize = 1
	}
	if o.KmerSize < 4 || o.KmerSize > 31 {
		return newValidationError("--kmer-size must be in 4..31")
	}
	if o.KeepFirstLength && o.KeepAllLength {
		return newValidationError(
			"--keep-first-length and --keep-all-length together is ambiguous; " +
				"the legacy implementation never exercised this combination " +
				"(see Design Notes / Open Question) — pass only one")
	}
	return nil
}
