// Package vcfout renders a packed CIGAR against its reference and query
// bases into VCF SNP/INS/DEL records (§6), grounded on the
// cigar_to_vcf walk used by the single-reference viral driver this system
// generalizes from: it walks ref/query coordinates unit by unit instead of
// a char-expanded CIGAR string, since refmsa's CIGARs never leave their
// packed representation.
package vcfout

import (
	"bufio"
	"fmt"
	"io"

	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/internal/errs"
)

// WriteHeader writes the VCF meta/header lines (§6): fileformat, source,
// reference, the SEQID INFO definition, and the tab-separated column
// header.
func WriteHeader(w io.Writer, sourceFile, referenceFile string) error {
	bw := bufio.NewWriter(w)
	lines := []string{
		"##fileformat=VCFv4.1\n",
		"##source=" + sourceFile + "\n",
		"##reference=" + referenceFile + "\n",
		"##INFO=<ID=SEQID,Number=1,Type=String,Description=\"Query sequence ID\">\n",
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n",
	}
	for _, l := range lines {
		if _, err := bw.WriteString(l); err != nil {
			return errs.Wrap(errs.IoFailure, sourceFile, err)
		}
	}
	return errs.Wrap(errs.IoFailure, sourceFile, bw.Flush())
}

// Emit walks c unit by unit, writing one VCF record per SNP (a mismatching
// M/=/X column) and per contiguous insertion/deletion run, anchored at the
// preceding reference base the way the original single-reference driver
// does it. refID/queryID name the CHROM and the SEQID info field; refSeq
// and querySeq are the raw (unaligned) bases c was computed from.
func Emit(w io.Writer, refID, queryID string, refSeq, querySeq []byte, c cigar.Cigar) error {
	bw := bufio.NewWriter(w)
	var refPos, qryPos int // 0-based

	writeLine := func(pos int, ref, alt, typ string) error {
		_, err := fmt.Fprintf(bw, "%s\t%d\t.\t%s\t%s\t.\tPASS\tSEQID=%s, TYPE=%s\n",
			refID, pos, ref, alt, queryID, typ)
		return err
	}

	for _, u := range c {
		op, n := cigar.Decode(u)
		length := int(n)
		switch op {
		case 'M', '=', 'X':
			for k := 0; k < length; k++ {
				if refPos < len(refSeq) && qryPos < len(querySeq) && refSeq[refPos] != querySeq[qryPos] {
					if err := writeLine(refPos+1, string(refSeq[refPos]), string(querySeq[qryPos]), "SNP"); err != nil {
						return errs.Wrap(errs.IoFailure, queryID, err)
					}
				}
				refPos++
				qryPos++
			}
		case 'I':
			if refPos > 0 && qryPos+length <= len(querySeq) {
				ref := string(refSeq[refPos-1])
				alt := ref + string(querySeq[qryPos:qryPos+length])
				if err := writeLine(refPos, ref, alt, "INS"); err != nil {
					return errs.Wrap(errs.IoFailure, queryID, err)
				}
			}
			qryPos += length
		case 'D':
			if refPos > 0 && refPos+length <= len(refSeq) {
				ref := string(refSeq[refPos-1 : refPos+length])
				alt := string(refSeq[refPos-1])
				if err := writeLine(refPos, ref, alt, "DEL"); err != nil {
					return errs.Wrap(errs.IoFailure, queryID, err)
				}
			}
			refPos += length
		default:
			// N/S/H/P never appear in the global-alignment CIGARs this
			// pipeline produces; skip defensively rather than miscount
			// coordinates.
		}
	}
	return errs.Wrap(errs.IoFailure, queryID, bw.Flush())
}
