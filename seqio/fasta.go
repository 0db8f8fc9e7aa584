package seqio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"

	"github.com/shenwei356/refmsa/internal/errs"
)

// The reader accepts any byte in a sequence line; bytes outside the 5-letter
// alphabet are handled downstream by hashutil.NT4 rather than rejected here.
func init() {
	seq.ValidateSeq = false
}

// FastaReader streams FASTA records from a file, transparently decoding
// gzip/bzip2/xz input via xopen-backed fastx.Reader.
type FastaReader struct {
	file string
	r    *fastx.Reader
}

// NewFastaReader opens file for streaming; an empty path is rejected.
func NewFastaReader(file string) (*FastaReader, error) {
	if file == "" {
		return nil, errs.New(errs.InvalidArgument, "", "seqio: empty FASTA path")
	}
	r, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "seqio: open FASTA "+file, err)
	}
	return &FastaReader{file: file, r: r}, nil
}

// Next returns the next record, or (nil, io.EOF) at end of stream.
func (f *FastaReader) Next() (*Record, error) {
	rec, err := f.r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errs.Wrap(errs.ParseError, "seqio: read FASTA "+f.file, err)
	}
	id := string(rec.ID)
	name := string(rec.Name)
	desc := ""
	if len(name) > len(id) {
		desc = strings.TrimSpace(name[len(id):])
	}
	return &Record{
		ID:          id,
		Description: desc,
		Seq:         append([]byte(nil), rec.Seq.Seq...),
	}, nil
}

// ReadAllFasta reads file to the end, returning every record. Used for small inputs
// such as the reference FASTA and the consensus/insertion-pool files; the
// query stream itself is always consumed via Next in chunked batches.
func ReadAllFasta(file string) ([]*Record, error) {
	r, err := NewFastaReader(file)
	if err != nil {
		return nil, err
	}
	var out []*Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountRecords counts the records in file without materializing them, for
// sizing a progress bar ahead of a streaming pass over the same file.
func CountRecords(file string) (int, error) {
	r, err := NewFastaReader(file)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// FastaWriter writes line-wrapped FASTA records, transparently gzip'ing
// when the destination path ends in ".gz" (xopen.Wopen picks the codec
// from the file extension, the same as its read-side counterpart).
type FastaWriter struct {
	w     *bufio.Writer
	close []io.Closer
	wrap  int
}

// DefaultWrapWidth is the default FASTA line-wrap width (§6).
const DefaultWrapWidth = 80

// NewFastaWriter opens file for writing with the given line-wrap width (0
// or negative falls back to DefaultWrapWidth).
func NewFastaWriter(file string, wrap int) (*FastaWriter, error) {
	if wrap <= 0 {
		wrap = DefaultWrapWidth
	}
	fh, err := xopen.Wopen(file)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "seqio: create FASTA "+file, err)
	}
	fw := &FastaWriter{wrap: wrap, close: []io.Closer{fh}}
	fw.w = bufio.NewWriter(fh)
	return fw, nil
}

// WriteRecord writes one FASTA record, wrapping seq at the configured
// width.
func (f *FastaWriter) WriteRecord(id string, seq []byte) error {
	if _, err := fmt.Fprintf(f.w, ">%s\n", id); err != nil {
		return errs.Wrap(errs.IoFailure, "seqio: write FASTA header", err)
	}
	for i := 0; i < len(seq); i += f.wrap {
		end := i + f.wrap
		if end > len(seq) {
			end = len(seq)
		}
		if _, err := f.w.Write(seq[i:end]); err != nil {
			return errs.Wrap(errs.IoFailure, "seqio: write FASTA body", err)
		}
		if err := f.w.WriteByte('\n'); err != nil {
			return errs.Wrap(errs.IoFailure, "seqio: write FASTA body", err)
		}
	}
	return nil
}

// Close flushes and closes all underlying writers, innermost first.
func (f *FastaWriter) Close() error {
	if err := f.w.Flush(); err != nil {
		return errs.Wrap(errs.IoFailure, "seqio: flush FASTA writer", err)
	}
	for _, c := range f.close {
		if err := c.Close(); err != nil {
			return errs.Wrap(errs.IoFailure, "seqio: close FASTA writer", err)
		}
	}
	return nil
}
