package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	logging "github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/diagnostics"
	"github.com/shenwei356/refmsa/external"
	"github.com/shenwei356/refmsa/internal/errs"
	"github.com/shenwei356/refmsa/msa"
	"github.com/shenwei356/refmsa/seqio"
	"github.com/shenwei356/refmsa/vcfout"
)

func runMSA(cmd *cobra.Command, args []string) {
	if getFlagBool(cmd, "quiet") {
		logLevel.SetLevel(logging.ERROR, "")
	}

	if cfgPath := getFlagString(cmd, "config"); cfgPath != "" {
		cfg, err := loadFileConfig(cfgPath)
		checkError(err)
		applyFileConfig(cmd, cfg)
	}

	opt := msa.NewOptions()
	opt.QryFasta = getFlagString(cmd, "in")
	opt.RefFasta = getFlagString(cmd, "ref")
	opt.OutFasta = getFlagString(cmd, "out")
	opt.WorkDir = getFlagString(cmd, "out-dir")
	opt.CenterFasta = getFlagString(cmd, "center")
	opt.Collaborator = getFlagString(cmd, "collaborator")
	opt.KeepFirstLength = getFlagBool(cmd, "keep-first-length")
	opt.KeepAllLength = getFlagBool(cmd, "keep-all-length")
	opt.SaveWorkdir = getFlagBool(cmd, "save-workdir")
	opt.VCF = getFlagBool(cmd, "vcf")

	if threads := getFlagNonNegativeInt(cmd, "threads"); threads > 0 {
		opt.Threads = threads
	}
	opt.KmerSize = getFlagPositiveInt(cmd, "kmer-size")
	opt.KmerWindow = getFlagPositiveInt(cmd, "kmer-window")
	opt.ConsN = getFlagPositiveInt(cmd, "cons-n")
	opt.SketchSize = getFlagPositiveInt(cmd, "sketch-size")

	checkError(opt.Validate())

	workDir, err := resolveWorkDir(opt.WorkDir)
	checkError(err)
	checkError(ensureWorkDir(workDir))
	opt.WorkDir = workDir
	if !opt.SaveWorkdir {
		defer os.RemoveAll(opt.WorkDir)
	}

	qryPath, err := resolveQueryInput(opt.QryFasta, opt.WorkDir, opt.Threads)
	checkError(err)
	opt.QryFasta = qryPath

	needsCollaborator := !opt.KeepFirstLength && opt.CenterFasta == ""
	var collab external.Collaborator
	if opt.Collaborator != "" {
		sp, err := external.NewSubprocess(opt.Collaborator, opt.Threads)
		checkError(err)
		collab = sp
	} else if needsCollaborator {
		checkError(errs.New(errs.InvalidArgument, "",
			"msa: -p/--collaborator is required unless --keep-first-length or -c/--center is given"))
	}

	timeStart := time.Now()
	log.Infof("reference: %s", opt.RefFasta)
	log.Infof("query: %s", opt.QryFasta)
	log.Infof("working directory: %s", opt.WorkDir)

	o := msa.NewOrchestrator(opt)
	// Best-reference Jaccard/ANI are recorded unconditionally (cheap
	// float appends) so the end-of-run summary below always has numbers
	// to report; --diagnostics only gates the extra PNG render.
	o.Diag = &diagnostics.Collector{}

	verbose := !getFlagBool(cmd, "quiet")
	var pbs *mpb.Progress
	if verbose {
		if total, err := seqio.CountRecords(opt.QryFasta); err == nil && total > 0 {
			pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
			bar := pbs.AddBar(int64(total),
				mpb.PrependDecorators(
					decor.Name("aligned: ", decor.WC{W: len("aligned: "), C: decor.DindentRight}),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
					decor.EwmaETA(decor.ET_STYLE_GO, 10),
					decor.OnComplete(decor.Name(""), ". done"),
				),
			)
			done := 0
			o.OnBatch = func(n int) {
				bar.IncrBy(n - done)
				done = n
			}
		}
	}

	ctx := context.Background()
	checkError(o.Index(ctx, collab))
	if o.RefIndex().ConsensusInput.N > 0 {
		log.Infof("consensus input: %d records, mean length %.1f (stdev %.1f)",
			o.RefIndex().ConsensusInput.N, o.RefIndex().ConsensusInput.MeanLen, o.RefIndex().ConsensusInput.StdevLen)
	}
	log.Info("index built")

	checkError(o.AlignStream(ctx))
	if pbs != nil {
		pbs.Wait()
	}
	log.Info("stream alignment done")

	refMSAPath, err := o.RunRefMSACollaborator(ctx, collab)
	checkError(err)

	checkError(o.Merge(refMSAPath))
	log.Infof("merged MSA written to %s", opt.OutFasta)

	if opt.VCF {
		checkError(writeVCF(o, opt.RefFasta, opt.QryFasta, opt.OutFasta+".vcf"))
		log.Infof("VCF written to %s.vcf", opt.OutFasta)
	}

	if meanJ, stdevJ, meanA, _ := o.Diag.Summary(); meanJ > 0 {
		log.Infof("best-reference similarity: mean Jaccard %.4f (stdev %.4f), mean ANI %.4f", meanJ, stdevJ, meanA)
	}
	if getFlagBool(cmd, "diagnostics") {
		resultsDir := filepath.Join(opt.WorkDir, "results")
		pngPath := filepath.Join(resultsDir, "similarity.png")
		checkError(o.Diag.WritePNG(pngPath))
		log.Infof("similarity histogram written to %s", pngPath)
	}

	log.Infof("elapsed time: %s", time.Since(timeStart))
}

// writeVCF replays every per-worker SAM file (both the non-insertion and
// insertion writers) against the reference panel to emit §6's optional
// VCF, independent of the merged-column coordinates Merge produces: each
// SAM record already names the pairwise (query, best-reference-or-
// consensus) CIGAR the VCF walk needs.
func writeVCF(o *msa.Orchestrator, refFastaPath, qryFastaPath, vcfPath string) error {
	idx := o.RefIndex()
	refSeqs := make(map[string][]byte, len(idx.Refs)+1)
	for _, r := range idx.Refs {
		refSeqs[r.Record.ID] = r.Record.Seq
	}
	refSeqs[idx.Consensus.Record.ID] = idx.Consensus.Record.Seq

	qRecs, err := seqio.ReadAllFasta(qryFastaPath)
	if err != nil {
		return err
	}
	qidx := make(map[string][]byte, len(qRecs))
	for _, r := range qRecs {
		qidx[r.ID] = r.Seq
	}

	f, err := os.Create(vcfPath)
	if err != nil {
		return errs.Wrap(errs.IoFailure, vcfPath, err)
	}
	defer f.Close()

	if err := vcfout.WriteHeader(f, qryFastaPath, refFastaPath); err != nil {
		return err
	}

	for _, wf := range o.WorkerResultFiles() {
		for _, file := range []string{wf.NoInsertion, wf.Insertion} {
			if err := emitVCFFromSAM(f, file, refSeqs, qidx); err != nil {
				return err
			}
		}
	}
	return nil
}

func emitVCFFromSAM(w io.Writer, samFile string, refSeqs map[string][]byte, qidx map[string][]byte) error {
	r, err := seqio.NewSamReader(samFile)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		refSeq, ok := refSeqs[rec.RName]
		if !ok {
			return errs.New(errs.ParseError, rec.RName, "cmd: VCF emission found an unknown reference id")
		}
		qSeq, ok := qidx[rec.QName]
		if !ok {
			return errs.New(errs.ParseError, rec.QName, "cmd: VCF emission found an unknown query id")
		}
		c, err := cigar.Parse(rec.Cigar)
		if err != nil {
			return err
		}
		if err := vcfout.Emit(w, rec.RName, rec.QName, refSeq, qSeq, c); err != nil {
			return err
		}
	}
}
