package align

import (
	"sort"

	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/seed"
)

// GlobalAlignSegmented is global_align_segmented (§4.6.4): chain the
// supplied anchors, then DP-align the flanks and gaps between
// consecutive anchors, stitching the per-segment CIGARs together with
// append_with_merge. Falls back to a whole-pair DP alignment whenever
// chaining fails to produce anything usable or the stitched CIGAR
// doesn't account for the full pair.
func GlobalAlignSegmented(ref, query []byte, anchors []seed.Anchor, opts Options) (cigar.Cigar, error) {
	chainAnchors, chains := seed.Chain(anchors, opts.Chain)
	best, ok := seed.Best(chains)
	if !ok {
		return GlobalAlignDP(ref, query, opts.DP)
	}

	members := chainAnchors[best.StartIndex : best.StartIndex+best.Count]
	ordered := make([]seed.Anchor, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].PosQry != ordered[j].PosQry {
			return ordered[i].PosQry < ordered[j].PosQry
		}
		return ordered[i].PosRef < ordered[j].PosRef
	})

	var acc cigar.Cigar
	refCursor, qryCursor := 0, 0

	alignSegment := func(refSeg, qrySeg []byte) (cigar.Cigar, bool) {
		c, err := GlobalAlignDP(refSeg, qrySeg, opts.DP)
		if err != nil || c.RefLength() != len(refSeg) || c.QryLength() != len(qrySeg) {
			return nil, false
		}
		return c, true
	}

	appendSegment := func(refSeg, qrySeg []byte) {
		if len(refSeg) == 0 && len(qrySeg) == 0 {
			return
		}
		if c, ok := alignSegment(refSeg, qrySeg); ok {
			acc = cigar.AppendWithMerge(acc, c)
			refCursor += c.RefLength()
			qryCursor += c.QryLength()
			return
		}
		// Safety fallback (§4.6.4 step 6): |qry_seg| I then |ref_seg| D,
		// advancing by the nominal segment lengths so totals still add up.
		var fallback cigar.Cigar
		if len(qrySeg) > 0 {
			c, _ := runCigar('I', len(qrySeg))
			fallback = cigar.AppendWithMerge(fallback, c)
		}
		if len(refSeg) > 0 {
			c, _ := runCigar('D', len(refSeg))
			fallback = cigar.AppendWithMerge(fallback, c)
		}
		acc = cigar.AppendWithMerge(acc, fallback)
		refCursor += len(refSeg)
		qryCursor += len(qrySeg)
	}

	for _, a := range ordered {
		posRef, posQry, span := int(a.PosRef), int(a.PosQry), int(a.Span)
		if posRef < refCursor || posQry < qryCursor {
			// anchor falls behind cursors already advanced by a prior
			// segment's actual CIGAR consumption; skip it.
			continue
		}

		// gap segment between the previous cursor and this anchor
		appendSegment(ref[refCursor:posRef], query[qryCursor:posQry])

		// anchor-span segment
		refEnd := posRef + span
		qryEnd := posQry + span
		if refEnd > len(ref) {
			refEnd = len(ref)
		}
		if qryEnd > len(query) {
			qryEnd = len(query)
		}
		appendSegment(ref[refCursor:refEnd], query[qryCursor:qryEnd])
	}

	// right flank
	appendSegment(ref[refCursor:], query[qryCursor:])

	if acc.RefLength() != len(ref) || acc.QryLength() != len(query) {
		return GlobalAlignDP(ref, query, opts.DP)
	}
	return acc, nil
}
