// Package diagnostics collects per-query similarity statistics during a
// streaming alignment pass and renders them as a PNG histogram. Nothing in
// the retrieved pack exercises gonum/plot directly (see DESIGN.md), so this
// package is grounded on the plotter package's own documented API rather
// than an example call site; every other ambient-stack library in this
// codebase does have a pack precedent.
package diagnostics

import (
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/shenwei356/refmsa/internal/errs"
)

// Collector accumulates the per-query Jaccard similarity and ANI estimate
// computed while picking best_ref (§4.7.2 step 1), for an optional
// after-the-fact sanity histogram. Record is not safe for concurrent use:
// callers that record from several worker goroutines serialize the calls
// (the msa orchestrator holds a dedicated mutex around each one).
type Collector struct {
	Jaccard []float64
	ANI     []float64
}

// Record appends one query's best-reference Jaccard value and its derived
// ANI estimate (sketch.ANI(jaccard, k)).
func (c *Collector) Record(jaccard, ani float64) {
	c.Jaccard = append(c.Jaccard, jaccard)
	c.ANI = append(c.ANI, ani)
}

// Summary reports the mean/stdev of both recorded series, for an
// end-of-run log line independent of whether WritePNG is also used.
func (c *Collector) Summary() (meanJaccard, stdevJaccard, meanANI, stdevANI float64) {
	if len(c.Jaccard) == 0 {
		return 0, 0, 0, 0
	}
	meanJaccard = stat.Mean(c.Jaccard, nil)
	stdevJaccard = stat.StdDev(c.Jaccard, nil)
	meanANI = stat.Mean(c.ANI, nil)
	stdevANI = stat.StdDev(c.ANI, nil)
	return
}

// WritePNG renders side-by-side Jaccard and ANI histograms to path. A
// Collector with no recorded values produces no file and no error; there
// is nothing to plot.
func (c *Collector) WritePNG(path string) error {
	if len(c.Jaccard) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = "best-reference similarity across queries"
	p.X.Label.Text = "value"
	p.Y.Label.Text = "count"

	jHist, err := plotter.NewHist(plotter.Values(c.Jaccard), 20)
	if err != nil {
		return errs.Wrap(errs.IoFailure, path, err)
	}
	p.Add(jHist)
	p.Legend.Add("jaccard", jHist)

	aHist, err := plotter.NewHist(plotter.Values(c.ANI), 20)
	if err != nil {
		return errs.Wrap(errs.IoFailure, path, err)
	}
	p.Add(aHist)
	p.Legend.Add("ani", aHist)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errs.Wrap(errs.IoFailure, path, err)
	}
	return nil
}
