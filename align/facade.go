package align

import (
	"github.com/shenwei356/refmsa/cigar"
	"github.com/shenwei356/refmsa/seed"
)

// Backend is the AlignBackend sum type the orchestrator selects between.
// Back-end-specific parameter structs never leak past this facade.
type Backend int

const (
	Wavefront Backend = iota // preferred default, per §4.6.3
	DP
	AnchorSegmented
)

// Options bundles every back-end's parameters behind one facade value;
// only the fields relevant to Backend are consulted.
type Options struct {
	Backend Backend

	DP   DPOptions
	WF   WFOptions
	Seed seed.Filter
	Chain seed.Params
}

// DefaultOptions selects the wavefront back-end with its default
// penalties, matching the orchestrator's default pick.
var DefaultOptions = Options{
	Backend: Wavefront,
	DP:      DefaultDPOptions,
	WF:      DefaultWFOptions,
	Seed:    seed.DefaultFilter,
	Chain:   seed.DefaultParams,
}

// Align dispatches to the selected back-end. anchors is only consulted
// for Backend == AnchorSegmented; callers may pass nil otherwise.
func Align(ref, query []byte, anchors []seed.Anchor, opts Options) (cigar.Cigar, error) {
	switch opts.Backend {
	case DP:
		return GlobalAlignDP(ref, query, opts.DP)
	case AnchorSegmented:
		return GlobalAlignSegmented(ref, query, anchors, opts)
	default:
		return GlobalAlignWF(ref, query, opts.WF)
	}
}
