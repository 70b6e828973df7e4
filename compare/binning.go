// Package compare holds the statistics behind a comparison report: common
// binning across files, change detection, and a two-sample KS test.
package compare

import (
	"math"

	"capybara/columnar"
)

const (
	floatBins  = 10
	maxIntBins = 100
)

// Binning is the histogram axis shared by all files for one key. Bins cover
// [Min, Min+Range).
type Binning struct {
	Min   float64
	Range float64
	NBins int
	Int   bool
}

// NewBinning picks the axis for a key from the finite values of all arrays.
// It reports false when there is no finite value at all.
func NewBinning(arrays []columnar.Array) (Binning, bool) {
	xMin, found := math.Inf(1), false
	for _, a := range arrays {
		for _, e := range a.Events {
			for _, v := range e {
				if isFinite(v) && v < xMin {
					xMin, found = v, true
				}
			}
		}
	}
	if !found {
		return Binning{}, false
	}

	xRange := 0.0
	isInt := false
	for _, a := range arrays {
		if a.Kind == columnar.Int {
			isInt = true
		}
		for _, e := range a.Events {
			for _, v := range e {
				if isFinite(v) && v-xMin > xRange {
					xRange = v - xMin
				}
			}
		}
	}

	b := Binning{Min: xMin, NBins: floatBins, Int: isInt}
	if isInt {
		xRange++
		b.NBins = int(math.Min(maxIntBins, math.Ceil(xRange)))
	} else {
		xRange *= 1.1
	}

	if xRange == 0 {
		xRange = 1
	}
	b.Range = xRange

	return b, true
}

// Edges returns the NBins+1 bin edges in data coordinates.
func (b Binning) Edges() []float64 {
	edges := make([]float64, b.NBins+1)
	width := b.Range / float64(b.NBins)
	for i := range edges {
		edges[i] = b.Min + float64(i)*width
	}
	return edges
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
