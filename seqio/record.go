// Package seqio wraps bio/seqio/fastx FASTA reading and xopen-backed FASTA
// and SAM writing in the record shape the rest of refmsa consumes.
package seqio

// Record is a sequence record: {id, description, seq, qual} per §3 of the
// data model. Qual is nil for FASTA-sourced records.
type Record struct {
	ID          string
	Description string
	Seq         []byte
	Qual        []byte
}

// Clone returns a deep copy of r, so callers may retain a record across
// reader buffer reuse.
func (r *Record) Clone() *Record {
	out := &Record{ID: r.ID, Description: r.Description}
	if r.Seq != nil {
		out.Seq = append([]byte(nil), r.Seq...)
	}
	if r.Qual != nil {
		out.Qual = append([]byte(nil), r.Qual...)
	}
	return out
}
