package cigar

// PadQueryToRef projects seq (a query sequence) into reference coordinates
// per cigar: M/I/S/=/X units copy |len| characters from seq into the
// output (including any pre-existing '-' already in seq); D/N/P units
// insert len '-' characters without consuming seq; H units are skipped
// entirely (neither consumed nor emitted).
//
// The final size is known up front from cigar alone, so the output is
// allocated exactly once and filled in a single forward pass — no
// incremental grow/copy, keeping the operation O(|seq|+|cigar|).
//
// An empty seq or empty cigar is a no-op (returns seq unchanged).
func PadQueryToRef(seq []byte, c Cigar) []byte {
	if len(seq) == 0 || len(c) == 0 {
		return seq
	}

	outLen := 0
	for _, u := range c {
		op := Op(u & 0xf)
		if op == OpH {
			continue
		}
		outLen += int(u >> 4)
	}

	out := make([]byte, outLen)
	var si, oi int
	for _, u := range c {
		op := Op(u & 0xf)
		n := int(u >> 4)
		switch op {
		case OpH:
			// neither consumed nor emitted
		case OpD, OpN, OpP:
			for i := 0; i < n; i++ {
				out[oi] = '-'
				oi++
			}
		default: // M, I, S, =, X: copy from seq
			copy(out[oi:oi+n], seq[si:si+n])
			si += n
			oi += n
		}
	}
	return out
}

// DelQueryToRef is the companion projection used when composing a SAM
// CIGAR with a reference-MSA CIGAR during the merge pass: it behaves like
// PadQueryToRef except that I units consume seq but are NOT copied to the
// output (they are deleted), so for a CIGAR without S or P units (which,
// as in PadQueryToRef, are still emitted) the result's length equals
// c.RefLength(), matching the merged-MSA column count even when the
// composed CIGAR still carries insertions relative to the per-worker
// alignment.
func DelQueryToRef(seq []byte, c Cigar) []byte {
	if len(seq) == 0 || len(c) == 0 {
		return seq
	}

	outLen := 0
	for _, u := range c {
		op := Op(u & 0xf)
		switch op {
		case OpH, OpI:
			// neither emitted
		default:
			outLen += int(u >> 4)
		}
	}

	out := make([]byte, outLen)
	var si, oi int
	for _, u := range c {
		op := Op(u & 0xf)
		n := int(u >> 4)
		switch op {
		case OpH:
			// neither consumed nor emitted
		case OpI:
			si += n // consumed, not emitted
		case OpD, OpN, OpP:
			for i := 0; i < n; i++ {
				out[oi] = '-'
				oi++
			}
		default: // M, S, =, X: copy from seq
			copy(out[oi:oi+n], seq[si:si+n])
			si += n
			oi += n
		}
	}
	return out
}
