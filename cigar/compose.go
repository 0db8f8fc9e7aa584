package cigar

import "github.com/shenwei356/refmsa/internal/errs"

// Chain composes two CIGARs that share an intermediate coordinate axis.
// queryToMid aligns a query against some sequence ("mid"); midToRef aligns
// that same mid sequence against a further reference. The result aligns the
// query directly against the outer reference, as if mid never existed:
// RefLength equals midToRef.RefLength() and QryLength equals
// queryToMid.QryLength().
//
// Used by the merge pass (§4.7.3 step 4) to re-express an insertion-carrying
// query's consensus-relative CIGAR in the reference-MSA's merged column
// space: queryToMid is the worker's alignment of the query against the
// consensus, midToRef is the consensus's own M/D-only row from the
// reference-MSA file. midToRef must consist solely of M and D units (as
// produced by run-length-encoding an aligned FASTA row); any other opcode is
// copied to the result unchanged without consuming queryToMid units.
//
// Built by walking midToRef unit by unit and, for each M run, pulling
// exactly that many mid-consuming units out of queryToMid (passing its I
// runs straight through, since they don't touch the mid axis); every
// emitted unit is folded into the accumulator via AppendWithMerge so the
// result stays canonical.
func Chain(queryToMid, midToRef Cigar) (Cigar, error) {
	var out Cigar

	qi := 0
	var curOp byte
	var curLen int

	advance := func() bool {
		for curLen == 0 {
			if qi >= len(queryToMid) {
				return false
			}
			op, length := Decode(queryToMid[qi])
			qi++
			if op == 'I' {
				out = appendOp(out, op, length)
				continue
			}
			curOp, curLen = op, int(length)
		}
		return true
	}

	for _, u := range midToRef {
		op, length := Decode(u)
		if op != 'M' {
			out = appendOp(out, op, length)
			continue
		}
		remaining := int(length)
		for remaining > 0 {
			if !advance() {
				return nil, errs.New(errs.InvalidArgument, "", "cigar: chain: queryToMid ends before midToRef is satisfied")
			}
			take := remaining
			if curLen < take {
				take = curLen
			}
			out = appendOp(out, curOp, uint32(take))
			curLen -= take
			remaining -= take
		}
	}

	if curLen > 0 {
		return nil, errs.New(errs.InvalidArgument, "", "cigar: chain: queryToMid consumes more mid-axis units than midToRef provides")
	}
	for qi < len(queryToMid) {
		op, length := Decode(queryToMid[qi])
		qi++
		if op != 'I' {
			return nil, errs.New(errs.InvalidArgument, "", "cigar: chain: queryToMid consumes more mid-axis units than midToRef provides")
		}
		out = appendOp(out, op, length)
	}

	return out, nil
}

func appendOp(acc Cigar, op byte, length uint32) Cigar {
	u, err := Encode(op, length)
	if err != nil {
		// op/length were just decoded from a valid Unit or come from a
		// non-zero run length, so encoding cannot fail here.
		panic(err)
	}
	return AppendWithMerge(acc, Cigar{u})
}
