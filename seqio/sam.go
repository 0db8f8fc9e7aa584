package seqio

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/shenwei356/xopen"

	"github.com/shenwei356/refmsa/internal/errs"
)

// SamHeader is the exact header line every per-worker SAM file carries
// (§6: "a @HD\tVN:1.6\tSO:unknown header line").
const SamHeader = "@HD\tVN:1.6\tSO:unknown"

// SamRecord is one aligned-query record as written by the stream-alignment
// stage and consumed by the merge stage. The MSA pipeline always fixes
// pos=1, mapq=60, flag=0, rnext=*, pnext=0, tlen=0, seq=*, qual=* — only
// qname, rname and cigar vary.
type SamRecord struct {
	QName string
	Flag  int
	RName string
	Pos   int
	MapQ  int
	Cigar string
	RNext string
	PNext int
	TLen  int
	Seq   string
	Qual  string
}

// SamWriter appends records to one of the per-worker output streams
// (aligned_t.sam or aligned_insertion_t.sam).
type SamWriter struct {
	fh *xopen.Writer
	w  *bufio.Writer
}

// NewSamWriter opens file for writing and emits the SAM header line.
func NewSamWriter(file string) (*SamWriter, error) {
	fh, err := xopen.Wopen(file)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "seqio: create SAM "+file, err)
	}
	sw := &SamWriter{fh: fh, w: bufio.NewWriter(fh)}
	if _, err := sw.w.WriteString(SamHeader + "\n"); err != nil {
		return nil, errs.Wrap(errs.IoFailure, "seqio: write SAM header", err)
	}
	return sw, nil
}

// WriteAligned writes one MSA-pipeline record: qname, rname and cigar are
// the only fields that vary; the rest follow the fixed values §6 mandates.
func (w *SamWriter) WriteAligned(qname, rname, cigar string) error {
	_, err := w.w.WriteString(qname + "\t0\t" + rname + "\t1\t60\t" + cigar + "\t*\t0\t0\t*\t*\n")
	if err != nil {
		return errs.Wrap(errs.IoFailure, "seqio: write SAM record", err)
	}
	return nil
}

// Flush flushes buffered output without closing the file (per-batch
// flush, §4.7.2 step 5).
func (w *SamWriter) Flush() error {
	if err := w.w.Flush(); err != nil {
		return errs.Wrap(errs.IoFailure, "seqio: flush SAM writer", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *SamWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if err := w.fh.Close(); err != nil {
		return errs.Wrap(errs.IoFailure, "seqio: close SAM writer", err)
	}
	return nil
}

// SamReader streams SamRecord values from a SAM file, skipping header
// lines (anything starting with '@').
type SamReader struct {
	file    string
	fh      *xopen.Reader
	scanner *bufio.Scanner
}

// NewSamReader opens file for streaming.
func NewSamReader(file string) (*SamReader, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "seqio: open SAM "+file, err)
	}
	return &SamReader{file: file, fh: fh, scanner: bufio.NewScanner(fh)}, nil
}

// Next returns the next data record, or (nil, io.EOF) at end of stream.
func (r *SamReader) Next() (*SamRecord, error) {
	for r.scanner.Scan() {
		line := strings.TrimRight(r.scanner.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}
		return parseSamLine(line, r.file)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.IoFailure, "seqio: scan SAM "+r.file, err)
	}
	return nil, io.EOF
}

// Close closes the underlying file.
func (r *SamReader) Close() error {
	return r.fh.Close()
}

func parseSamLine(line, file string) (*SamRecord, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 11 {
		return nil, errs.New(errs.ParseError, "", "seqio: malformed SAM line in "+file+": "+line)
	}
	flag, err := strconv.Atoi(cols[1])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, "seqio: SAM flag in "+file, err)
	}
	pos, err := strconv.Atoi(cols[3])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, "seqio: SAM pos in "+file, err)
	}
	mapq, err := strconv.Atoi(cols[4])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, "seqio: SAM mapq in "+file, err)
	}
	pnext, err := strconv.Atoi(cols[7])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, "seqio: SAM pnext in "+file, err)
	}
	tlen, err := strconv.Atoi(cols[8])
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, "seqio: SAM tlen in "+file, err)
	}
	return &SamRecord{
		QName: cols[0],
		Flag:  flag,
		RName: cols[2],
		Pos:   pos,
		MapQ:  mapq,
		Cigar: cols[5],
		RNext: cols[6],
		PNext: pnext,
		TLen:  tlen,
		Seq:   cols[9],
		Qual:  cols[10],
	}, nil
}
